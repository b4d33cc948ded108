// internal/models/food.go
package models

import (
	"time"
)

// DefaultServingSizeGrams is used when a provider omits the serving size.
const DefaultServingSizeGrams = 100.0

type FoodRecord struct {
	ProductName      string    `json:"product_name"`
	Brand            string    `json:"brand"`
	Ingredients      []string  `json:"ingredients"`
	Nutrition        Nutrition `json:"nutrition"`
	ServingSizeGrams float64   `json:"serving_size_grams"`
	GlycemicIndex    *float64  `json:"glycemic_index,omitempty"`
}

// Nutrition holds values per serving. Carbs, fiber and sugars are required;
// a nil pointer means the provider did not report the value.
type Nutrition struct {
	TotalCarbsGrams *float64 `json:"total_carbs_grams"`
	FiberGrams      *float64 `json:"fiber_grams"`
	SugarsGrams     *float64 `json:"sugars_grams"`
	ProteinGrams    *float64 `json:"protein_grams,omitempty"`
	FatGrams        *float64 `json:"fat_grams,omitempty"`
	Calories        *float64 `json:"calories,omitempty"`
}

// Populated reports whether every required nutrient is present.
func (n Nutrition) Populated() bool {
	return n.TotalCarbsGrams != nil && n.FiberGrams != nil && n.SugarsGrams != nil
}

// Grams returns a pointer to v, for building Nutrition literals.
func Grams(v float64) *float64 {
	return &v
}

type ResolutionResult struct {
	Success         bool        `json:"success"`
	Record          *FoodRecord `json:"record,omitempty"`
	SourceName      string      `json:"source_name,omitempty"`
	TrustScore      *float64    `json:"trust_score,omitempty"`
	Incomplete      bool        `json:"incomplete"`
	ErrorMessage    string      `json:"error_message,omitempty"`
	AttributionText string      `json:"attribution_text,omitempty"`
}

// Failed builds a failure result carrying msg.
func Failed(msg string) ResolutionResult {
	return ResolutionResult{Success: false, ErrorMessage: msg}
}

// Succeeded builds a success result for record from source.
func Succeeded(source string, record *FoodRecord) ResolutionResult {
	return ResolutionResult{Success: true, SourceName: source, Record: record}
}

type CacheEntry struct {
	Key        string           `json:"key"`
	Result     ResolutionResult `json:"result"`
	ResolvedAt time.Time        `json:"resolved_at"`
}

// Expired reports whether the entry is outside the validity window at now.
func (e CacheEntry) Expired(now time.Time, validity time.Duration) bool {
	return now.Sub(e.ResolvedAt) >= validity
}

type CacheStats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

// RateLimit is a fixed quota of MaxCalls per Window.
type RateLimit struct {
	Window   time.Duration `json:"window" yaml:"window"`
	MaxCalls int           `json:"max_calls" yaml:"max_calls"`
}

type AccessPolicy struct {
	LicenseName         string     `json:"license_name,omitempty"`
	AttributionRequired bool       `json:"attribution_required"`
	AttributionText     string     `json:"attribution_text,omitempty"`
	RateLimit           *RateLimit `json:"rate_limit,omitempty"`
}

// SourceDescriptor is the static configuration of one provider.
type SourceDescriptor struct {
	Name         string       `json:"name"`
	PriorityRank int          `json:"priority_rank"`
	Fallback     bool         `json:"fallback"`
	AccessPolicy AccessPolicy `json:"access_policy"`
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Clone returns a deep copy of the record.
func (f FoodRecord) Clone() FoodRecord {
	out := f
	if f.Ingredients != nil {
		out.Ingredients = append([]string(nil), f.Ingredients...)
	}
	out.GlycemicIndex = cloneFloat(f.GlycemicIndex)
	out.Nutrition = Nutrition{
		TotalCarbsGrams: cloneFloat(f.Nutrition.TotalCarbsGrams),
		FiberGrams:      cloneFloat(f.Nutrition.FiberGrams),
		SugarsGrams:     cloneFloat(f.Nutrition.SugarsGrams),
		ProteinGrams:    cloneFloat(f.Nutrition.ProteinGrams),
		FatGrams:        cloneFloat(f.Nutrition.FatGrams),
		Calories:        cloneFloat(f.Nutrition.Calories),
	}
	return out
}

// Clone returns a deep copy of the result.
func (r ResolutionResult) Clone() ResolutionResult {
	out := r
	out.TrustScore = cloneFloat(r.TrustScore)
	if r.Record != nil {
		rec := r.Record.Clone()
		out.Record = &rec
	}
	return out
}

// Names of the built-in sources.
const (
	SourceOpenFoodFacts = "OpenFoodFacts"
	SourceUSDA          = "USDA FoodData Central"
	SourceNutritionix   = "Nutritionix"
	SourceUPCItemDB     = "UPCitemdb"
	SourceLocal         = "Local"
)
