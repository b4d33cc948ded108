package providers

import (
	"context"
	"fmt"
	"strings"

	"mcp-food-resolver/internal/identifier"
	"mcp-food-resolver/internal/models"
)

// placeholderTrust is the score given to synthesized records for unknown
// identifiers.
const placeholderTrust = 0.3

// Local answers from an in-process table and never touches the network. It
// is the designated fallback: unknown identifiers get a synthesized
// placeholder record so the chain always ends in an answer.
type Local struct {
	byBarcode map[string]models.FoodRecord
	byName    map[string]models.FoodRecord
}

// NewLocal returns the fallback with its built-in table.
func NewLocal() *Local {
	return NewLocalWithTable(builtinBarcodes, builtinNames)
}

// NewLocalWithTable builds a fallback over the given tables. Name keys are
// matched case-insensitively.
func NewLocalWithTable(barcodes, names map[string]models.FoodRecord) *Local {
	l := &Local{
		byBarcode: make(map[string]models.FoodRecord, len(barcodes)),
		byName:    make(map[string]models.FoodRecord, len(names)),
	}
	for k, v := range barcodes {
		l.byBarcode[k] = v
	}
	for k, v := range names {
		l.byName[strings.ToLower(k)] = v
	}
	return l
}

func (l *Local) Descriptor() models.SourceDescriptor {
	return models.SourceDescriptor{
		Name:         models.SourceLocal,
		PriorityRank: 99,
		Fallback:     true,
	}
}

func (l *Local) Resolve(_ context.Context, id identifier.Identifier) (models.ResolutionResult, error) {
	table := l.byName
	if id.IsBarcode() {
		table = l.byBarcode
	}
	if rec, ok := table[id.Key]; ok {
		rec = rec.Clone()
		return models.Succeeded(models.SourceLocal, &rec), nil
	}
	return placeholder(id), nil
}

// placeholder synthesizes conservative per-100 g estimates for an unknown
// item. It is flagged incomplete and low-trust.
func placeholder(id identifier.Identifier) models.ResolutionResult {
	score := placeholderTrust
	return models.ResolutionResult{
		Success:    true,
		SourceName: models.SourceLocal,
		TrustScore: &score,
		Incomplete: true,
		Record: &models.FoodRecord{
			ProductName:      fmt.Sprintf("Unknown product %s", id.Query),
			ServingSizeGrams: models.DefaultServingSizeGrams,
			Nutrition: models.Nutrition{
				TotalCarbsGrams: models.Grams(15),
				FiberGrams:      models.Grams(1),
				SugarsGrams:     models.Grams(5),
			},
		},
	}
}
