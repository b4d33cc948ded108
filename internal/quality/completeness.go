package quality

import (
	"strings"

	"mcp-food-resolver/internal/models"
)

// IsIncomplete reports whether record lacks any field downstream processing
// needs: name, brand, ingredients, the required nutrients, or a serving size.
func IsIncomplete(record *models.FoodRecord) bool {
	if record == nil {
		return true
	}
	return strings.TrimSpace(record.ProductName) == "" ||
		strings.TrimSpace(record.Brand) == "" ||
		len(record.Ingredients) == 0 ||
		!record.Nutrition.Populated() ||
		record.ServingSizeGrams <= 0
}
