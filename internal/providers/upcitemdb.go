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

const upcItemDBURL = "https://api.upcitemdb.com"

// UPCItemDB is a generic barcode lookup service. It knows product names and
// brands but carries no nutrition, so its records are always incomplete.
type UPCItemDB struct {
	cfg Config
}

func NewUPCItemDB(cfg Config) *UPCItemDB {
	return &UPCItemDB{cfg: cfg.withDefaults(upcItemDBURL, &models.RateLimit{Window: 24 * time.Hour, MaxCalls: 100})}
}

func (p *UPCItemDB) Descriptor() models.SourceDescriptor {
	return models.SourceDescriptor{
		Name:         models.SourceUPCItemDB,
		PriorityRank: 4,
		AccessPolicy: models.AccessPolicy{
			LicenseName: "UPCitemdb API Terms",
			RateLimit:   p.cfg.RateLimit,
		},
	}
}

type upcLookupResponse struct {
	Code  string `json:"code"`
	Total int    `json:"total"`
	Items []struct {
		Title string `json:"title"`
		Brand string `json:"brand"`
		EAN   string `json:"ean"`
		UPC   string `json:"upc"`
	} `json:"items"`
}

// Supports accepts barcodes only.
func (p *UPCItemDB) Supports(id identifier.Identifier) bool {
	return id.IsBarcode()
}

func (p *UPCItemDB) Resolve(ctx context.Context, id identifier.Identifier) (models.ResolutionResult, error) {
	name := models.SourceUPCItemDB
	if !id.IsBarcode() {
		return models.ResolutionResult{}, fail(name, ErrUnsupported, "name lookups are not supported")
	}

	q := url.Values{}
	q.Set("upc", id.Query)
	path := "/prod/trial/lookup"
	headers := headerMap("User-Agent", p.cfg.UserAgent)
	if p.cfg.APIKey != "" {
		path = "/prod/v1/lookup"
		headers = headerMap("User-Agent", p.cfg.UserAgent, "user_key", p.cfg.APIKey, "key_type", "3scale")
	}

	var resp upcLookupResponse
	u := fmt.Sprintf("%s%s?%s", p.cfg.BaseURL, path, q.Encode())
	if err := getJSON(ctx, p.cfg.Client, name, u, headers, &resp); err != nil {
		return models.ResolutionResult{}, err
	}
	if resp.Code != "" && !strings.EqualFold(resp.Code, "OK") {
		return models.ResolutionResult{}, fail(name, ErrData, "lookup returned code %s", resp.Code)
	}
	if len(resp.Items) == 0 || strings.TrimSpace(resp.Items[0].Title) == "" {
		return models.ResolutionResult{}, fail(name, ErrNotFound, "no item for %q", id.Query)
	}

	item := resp.Items[0]
	record := &models.FoodRecord{
		ProductName:      strings.TrimSpace(item.Title),
		Brand:            strings.TrimSpace(item.Brand),
		ServingSizeGrams: models.DefaultServingSizeGrams,
	}
	return models.Succeeded(name, record), nil
}
