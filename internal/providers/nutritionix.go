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
	nutritionixURL         = "https://trackapi.nutritionix.com"
	nutritionixAttribution = "Powered by Nutritionix"
)

// Nutritionix queries the commercial Nutritionix track API. Values are per
// serving.
type Nutritionix struct {
	cfg Config
}

func NewNutritionix(cfg Config) *Nutritionix {
	return &Nutritionix{cfg: cfg.withDefaults(nutritionixURL, &models.RateLimit{Window: 24 * time.Hour, MaxCalls: 50})}
}

func (p *Nutritionix) Descriptor() models.SourceDescriptor {
	return models.SourceDescriptor{
		Name:         models.SourceNutritionix,
		PriorityRank: 3,
		AccessPolicy: models.AccessPolicy{
			LicenseName:         "Nutritionix API Terms",
			AttributionRequired: true,
			AttributionText:     nutritionixAttribution,
			RateLimit:           p.cfg.RateLimit,
		},
	}
}

type nixItemResponse struct {
	Foods []nixFood `json:"foods"`
}

type nixInstantResponse struct {
	Branded []struct {
		NixItemID string `json:"nix_item_id"`
		FoodName  string `json:"food_name"`
	} `json:"branded"`
}

type nixFood struct {
	FoodName            string `json:"food_name"`
	BrandName           string `json:"brand_name"`
	IngredientStatement string `json:"nf_ingredient_statement"`
	ServingWeightGrams  number `json:"serving_weight_grams"`
	Calories            number `json:"nf_calories"`
	TotalFat            number `json:"nf_total_fat"`
	TotalCarbohydrate   number `json:"nf_total_carbohydrate"`
	DietaryFiber        number `json:"nf_dietary_fiber"`
	Sugars              number `json:"nf_sugars"`
	Protein             number `json:"nf_protein"`
}

// Supports requires application credentials.
func (p *Nutritionix) Supports(identifier.Identifier) bool {
	return p.cfg.AppID != "" && p.cfg.APIKey != ""
}

func (p *Nutritionix) Resolve(ctx context.Context, id identifier.Identifier) (models.ResolutionResult, error) {
	name := models.SourceNutritionix
	if p.cfg.AppID == "" || p.cfg.APIKey == "" {
		return models.ResolutionResult{}, fail(name, ErrUnsupported, "no application credentials configured")
	}
	headers := headerMap("x-app-id", p.cfg.AppID, "x-app-key", p.cfg.APIKey, "User-Agent", p.cfg.UserAgent)

	q := url.Values{}
	if id.IsBarcode() {
		q.Set("upc", id.Query)
	} else {
		itemID, err := p.searchItemID(ctx, id, headers)
		if err != nil {
			return models.ResolutionResult{}, err
		}
		q.Set("nix_item_id", itemID)
	}

	var resp nixItemResponse
	u := fmt.Sprintf("%s/v2/search/item?%s", p.cfg.BaseURL, q.Encode())
	if err := getJSON(ctx, p.cfg.Client, name, u, headers, &resp); err != nil {
		return models.ResolutionResult{}, err
	}
	if len(resp.Foods) == 0 {
		return models.ResolutionResult{}, fail(name, ErrNotFound, "no item for %q", id.Query)
	}
	record := resp.Foods[0].toRecord()
	if record.ProductName == "" {
		return models.ResolutionResult{}, fail(name, ErrData, "item %q has no name", id.Query)
	}
	return models.Succeeded(name, record), nil
}

func (p *Nutritionix) searchItemID(ctx context.Context, id identifier.Identifier, headers map[string]string) (string, error) {
	q := url.Values{}
	q.Set("query", id.Query)
	q.Set("branded", "true")
	q.Set("common", "false")

	var resp nixInstantResponse
	u := fmt.Sprintf("%s/v2/search/instant?%s", p.cfg.BaseURL, q.Encode())
	if err := getJSON(ctx, p.cfg.Client, models.SourceNutritionix, u, headers, &resp); err != nil {
		return "", err
	}
	for _, b := range resp.Branded {
		if b.NixItemID != "" {
			return b.NixItemID, nil
		}
	}
	return "", fail(models.SourceNutritionix, ErrNotFound, "no branded item for %q", id.Query)
}

func (f nixFood) toRecord() *models.FoodRecord {
	serving := models.DefaultServingSizeGrams
	if f.ServingWeightGrams.Valid && f.ServingWeightGrams.Value > 0 {
		serving = f.ServingWeightGrams.Value
	}
	return &models.FoodRecord{
		ProductName:      strings.TrimSpace(f.FoodName),
		Brand:            strings.TrimSpace(f.BrandName),
		Ingredients:      ParseIngredients(f.IngredientStatement),
		ServingSizeGrams: serving,
		Nutrition: models.Nutrition{
			TotalCarbsGrams: f.TotalCarbohydrate.ptr(),
			FiberGrams:      f.DietaryFiber.ptr(),
			SugarsGrams:     f.Sugars.ptr(),
			ProteinGrams:    f.Protein.ptr(),
			FatGrams:        f.TotalFat.ptr(),
			Calories:        f.Calories.ptr(),
		},
	}
}
