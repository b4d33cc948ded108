// Package quality scores candidate records and decides whether they are good
// enough to accept without asking further providers.
package quality

import (
	"math"
	"strings"

	"mcp-food-resolver/internal/models"
)

// DefaultReliability is the base score of a source missing from the table.
const DefaultReliability = 0.5

var defaultWeights = map[string]float64{
	models.SourceUSDA:          0.75,
	models.SourceOpenFoodFacts: 0.70,
	models.SourceNutritionix:   0.70,
	models.SourceUPCItemDB:     0.55,
	models.SourceLocal:         0.55,
}

const (
	nameBonus        = 0.05
	brandBonus       = 0.05
	ingredientsBonus = 0.10
	nutrientBonus    = 0.05
	servingBonus     = 0.05
)

// Scorer computes trust scores from a static per-source reliability table.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	weights map[string]float64
}

func NewScorer(weights map[string]float64) *Scorer {
	w := make(map[string]float64, len(weights))
	for k, v := range weights {
		w[k] = v
	}
	return &Scorer{weights: w}
}

func DefaultScorer() *Scorer {
	return NewScorer(defaultWeights)
}

func (s *Scorer) Reliability(source string) float64 {
	if w, ok := s.weights[source]; ok {
		return w
	}
	return DefaultReliability
}

// Score returns a value in [0,1] for record as reported by source.
func (s *Scorer) Score(record *models.FoodRecord, source string) float64 {
	score := s.Reliability(source)
	if record != nil {
		if strings.TrimSpace(record.ProductName) != "" {
			score += nameBonus
		}
		if strings.TrimSpace(record.Brand) != "" {
			score += brandBonus
		}
		if len(record.Ingredients) > 0 {
			score += ingredientsBonus
		}
		for _, v := range []*float64{
			record.Nutrition.TotalCarbsGrams,
			record.Nutrition.FiberGrams,
			record.Nutrition.SugarsGrams,
		} {
			if v != nil {
				score += nutrientBonus
			}
		}
		if record.ServingSizeGrams > 0 {
			score += servingBonus
		}
	}

	// Rounded so sums like 0.55+0.05*5 land exactly on the threshold.
	score = math.Round(score*1e4) / 1e4
	return math.Max(0, math.Min(1, score))
}
