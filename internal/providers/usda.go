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

const usdaURL = "https://api.nal.usda.gov"

// FoodData Central nutrient ids.
const (
	nutrientProtein      = 1003
	nutrientFat          = 1004
	nutrientCarbohydrate = 1005
	nutrientEnergy       = 1008
	nutrientFiber        = 1079
	nutrientSugars       = 2000
)

// USDA queries the FoodData Central search API. Branded food nutrients are
// reported per 100 g (or 100 ml) and scaled to the labelled serving.
type USDA struct {
	cfg Config
}

func NewUSDA(cfg Config) *USDA {
	return &USDA{cfg: cfg.withDefaults(usdaURL, &models.RateLimit{Window: time.Hour, MaxCalls: 1000})}
}

func (p *USDA) Descriptor() models.SourceDescriptor {
	return models.SourceDescriptor{
		Name:         models.SourceUSDA,
		PriorityRank: 2,
		AccessPolicy: models.AccessPolicy{
			LicenseName: "Public Domain (CC0)",
			RateLimit:   p.cfg.RateLimit,
		},
	}
}

type usdaSearchResponse struct {
	TotalHits int        `json:"totalHits"`
	Foods     []usdaFood `json:"foods"`
}

type usdaFood struct {
	FdcID           int                `json:"fdcId"`
	Description     string             `json:"description"`
	BrandOwner      string             `json:"brandOwner"`
	BrandName       string             `json:"brandName"`
	GtinUpc         string             `json:"gtinUpc"`
	Ingredients     string             `json:"ingredients"`
	ServingSize     number             `json:"servingSize"`
	ServingSizeUnit string             `json:"servingSizeUnit"`
	FoodNutrients   []usdaFoodNutrient `json:"foodNutrients"`
}

type usdaFoodNutrient struct {
	NutrientID int    `json:"nutrientId"`
	UnitName   string `json:"unitName"`
	Value      number `json:"value"`
}

func (p *USDA) Supports(identifier.Identifier) bool {
	return p.cfg.APIKey != ""
}

func (p *USDA) Resolve(ctx context.Context, id identifier.Identifier) (models.ResolutionResult, error) {
	name := models.SourceUSDA
	if p.cfg.APIKey == "" {
		return models.ResolutionResult{}, fail(name, ErrUnsupported, "no API key configured")
	}

	q := url.Values{}
	q.Set("api_key", p.cfg.APIKey)
	q.Set("query", id.Query)
	if id.IsBarcode() {
		q.Set("dataType", "Branded")
		q.Set("pageSize", "5")
	} else {
		q.Set("pageSize", "1")
	}
	u := fmt.Sprintf("%s/fdc/v1/foods/search?%s", p.cfg.BaseURL, q.Encode())

	var resp usdaSearchResponse
	if err := getJSON(ctx, p.cfg.Client, name, u, headerMap("User-Agent", p.cfg.UserAgent), &resp); err != nil {
		return models.ResolutionResult{}, err
	}

	food := pickUSDAFood(resp.Foods, id)
	if food == nil {
		return models.ResolutionResult{}, fail(name, ErrNotFound, "no food for %q", id.Query)
	}
	record := food.toRecord()
	if record.ProductName == "" {
		return models.ResolutionResult{}, fail(name, ErrData, "food %d has no description", food.FdcID)
	}
	return models.Succeeded(name, record), nil
}

// pickUSDAFood returns the first food whose GTIN matches a barcode query, or
// the first hit for a name query.
func pickUSDAFood(foods []usdaFood, id identifier.Identifier) *usdaFood {
	for i := range foods {
		if !id.IsBarcode() {
			return &foods[i]
		}
		if sameGTIN(foods[i].GtinUpc, id.Query) {
			return &foods[i]
		}
	}
	return nil
}

// sameGTIN compares barcodes ignoring leading zero padding (UPC-A vs EAN-13
// vs GTIN-14).
func sameGTIN(a, b string) bool {
	a = strings.TrimLeft(strings.TrimSpace(a), "0")
	b = strings.TrimLeft(strings.TrimSpace(b), "0")
	return a != "" && a == b
}

func (f usdaFood) toRecord() *models.FoodRecord {
	serving := models.DefaultServingSizeGrams
	unit := strings.ToLower(f.ServingSizeUnit)
	if f.ServingSize.Valid && f.ServingSize.Value > 0 && (unit == "g" || unit == "grm" || unit == "ml" || unit == "mlt") {
		serving = f.ServingSize.Value
	}
	factor := serving / 100

	var n models.Nutrition
	for _, fn := range f.FoodNutrients {
		v := fn.Value
		if strings.EqualFold(fn.UnitName, "MG") {
			v = number{Value: v.Value / 1000, Valid: v.Valid}
		}
		switch fn.NutrientID {
		case nutrientCarbohydrate:
			n.TotalCarbsGrams = v.scaled(factor)
		case nutrientFiber:
			n.FiberGrams = v.scaled(factor)
		case nutrientSugars:
			n.SugarsGrams = v.scaled(factor)
		case nutrientProtein:
			n.ProteinGrams = v.scaled(factor)
		case nutrientFat:
			n.FatGrams = v.scaled(factor)
		case nutrientEnergy:
			if strings.EqualFold(fn.UnitName, "KCAL") {
				n.Calories = fn.Value.scaled(factor)
			}
		}
	}

	brand := strings.TrimSpace(f.BrandName)
	if brand == "" {
		brand = strings.TrimSpace(f.BrandOwner)
	}

	return &models.FoodRecord{
		ProductName:      strings.TrimSpace(f.Description),
		Brand:            brand,
		Ingredients:      ParseIngredients(f.Ingredients),
		ServingSizeGrams: serving,
		Nutrition:        n,
	}
}
