package quality

import "mcp-food-resolver/internal/models"

const DefaultTrustThreshold = 0.8

// Gate accepts a successful result only when it is trusted, complete and
// carries ingredients.
type Gate struct {
	Threshold float64
}

func (g Gate) Passes(result models.ResolutionResult) bool {
	if !result.Success || result.Record == nil || result.TrustScore == nil {
		return false
	}
	return *result.TrustScore >= g.Threshold &&
		!result.Incomplete &&
		len(result.Record.Ingredients) > 0
}
