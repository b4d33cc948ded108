package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"mcp-food-resolver/internal/identifier"
	"mcp-food-resolver/internal/models"
)

const (
	openFoodFactsURL         = "https://world.openfoodfacts.org"
	openFoodFactsAttribution = "Food data from Open Food Facts (openfoodfacts.org), available under the Open Database License (ODbL)."
	kilojoulesPerKilocalorie = 4.184
)

// OpenFoodFacts queries the open, community-maintained Open Food Facts
// database. Nutriments are reported per 100 g.
type OpenFoodFacts struct {
	cfg Config
}

func NewOpenFoodFacts(cfg Config) *OpenFoodFacts {
	return &OpenFoodFacts{cfg: cfg.withDefaults(openFoodFactsURL, &models.RateLimit{Window: time.Minute, MaxCalls: 100})}
}

func (p *OpenFoodFacts) Descriptor() models.SourceDescriptor {
	return models.SourceDescriptor{
		Name:         models.SourceOpenFoodFacts,
		PriorityRank: 1,
		AccessPolicy: models.AccessPolicy{
			LicenseName:         "ODbL",
			AttributionRequired: true,
			AttributionText:     openFoodFactsAttribution,
			RateLimit:           p.cfg.RateLimit,
		},
	}
}

type offProductResponse struct {
	Code    string      `json:"code"`
	Product *offProduct `json:"product"`
}

type offSearchResponse struct {
	Count    int          `json:"count"`
	Products []offProduct `json:"products"`
}

type offProduct struct {
	ProductName     string        `json:"product_name"`
	GenericName     string        `json:"generic_name"`
	Brands          string        `json:"brands"`
	IngredientsText string        `json:"ingredients_text"`
	ServingQuantity number        `json:"serving_quantity"`
	Nutriments      offNutriments `json:"nutriments"`
}

type offNutriments struct {
	Carbohydrates100g number `json:"carbohydrates_100g"`
	Fiber100g         number `json:"fiber_100g"`
	Sugars100g        number `json:"sugars_100g"`
	Proteins100g      number `json:"proteins_100g"`
	Fat100g           number `json:"fat_100g"`
	EnergyKcal100g    number `json:"energy-kcal_100g"`
	EnergyKj100g      number `json:"energy-kj_100g"`
}

func (p *OpenFoodFacts) Resolve(ctx context.Context, id identifier.Identifier) (models.ResolutionResult, error) {
	name := models.SourceOpenFoodFacts
	headers := headerMap("User-Agent", p.cfg.UserAgent)

	var product *offProduct
	if id.IsBarcode() {
		var resp offProductResponse
		u := fmt.Sprintf("%s/api/v2/product/%s.json", p.cfg.BaseURL, url.PathEscape(id.Query))
		if err := getJSON(ctx, p.cfg.Client, name, u, headers, &resp); err != nil {
			return models.ResolutionResult{}, err
		}
		product = resp.Product
	} else {
		var resp offSearchResponse
		q := url.Values{}
		q.Set("search_terms", id.Query)
		q.Set("search_simple", "1")
		q.Set("action", "process")
		q.Set("json", "1")
		q.Set("page_size", "1")
		u := fmt.Sprintf("%s/cgi/search.pl?%s", p.cfg.BaseURL, q.Encode())
		if err := getJSON(ctx, p.cfg.Client, name, u, headers, &resp); err != nil {
			return models.ResolutionResult{}, err
		}
		if len(resp.Products) > 0 {
			product = &resp.Products[0]
		}
	}

	if product == nil {
		return models.ResolutionResult{}, fail(name, ErrNotFound, "no product for %q", id.Query)
	}
	record := product.toRecord()
	if record.ProductName == "" {
		return models.ResolutionResult{}, fail(name, ErrData, "product %q has no name", id.Query)
	}
	return models.Succeeded(name, record), nil
}

func (p offProduct) toRecord() *models.FoodRecord {
	serving := models.DefaultServingSizeGrams
	if p.ServingQuantity.Valid && p.ServingQuantity.Value > 0 {
		serving = p.ServingQuantity.Value
	}
	factor := serving / 100

	n := p.Nutriments
	calories := n.EnergyKcal100g.scaled(factor)
	if calories == nil && n.EnergyKj100g.Valid {
		kcal := number{Value: n.EnergyKj100g.Value / kilojoulesPerKilocalorie, Valid: true}
		calories = kcal.scaled(factor)
	}

	name := strings.TrimSpace(p.ProductName)
	if name == "" {
		name = strings.TrimSpace(p.GenericName)
	}

	return &models.FoodRecord{
		ProductName:      name,
		Brand:            firstBrand(p.Brands),
		Ingredients:      ParseIngredients(p.IngredientsText),
		ServingSizeGrams: serving,
		Nutrition: models.Nutrition{
			TotalCarbsGrams: n.Carbohydrates100g.scaled(factor),
			FiberGrams:      n.Fiber100g.scaled(factor),
			SugarsGrams:     n.Sugars100g.scaled(factor),
			ProteinGrams:    n.Proteins100g.scaled(factor),
			FatGrams:        n.Fat100g.scaled(factor),
			Calories:        calories,
		},
	}
}

// firstBrand picks the first entry of a comma-separated brand list.
func firstBrand(brands string) string {
	first, _, _ := strings.Cut(brands, ",")
	return strings.TrimSpace(first)
}
