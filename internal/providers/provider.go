// Package providers holds one adapter per external food data source plus the
// offline fallback. Each adapter turns an identifier into a canonical
// FoodRecord or a classified error.
package providers

import (
	"context"
	"net/http"

	"mcp-food-resolver/internal/identifier"
	"mcp-food-resolver/internal/models"
)

// Provider is a single data source. Resolve returns either a successful
// result or an error wrapping one of the Err* kinds.
type Provider interface {
	Descriptor() models.SourceDescriptor
	Resolve(ctx context.Context, id identifier.Identifier) (models.ResolutionResult, error)
}

// Supporter is implemented by providers that can tell up front, without a
// network call, that they cannot answer an identifier.
type Supporter interface {
	Supports(id identifier.Identifier) bool
}

// Supports reports whether p may be able to answer id. Providers that do not
// implement Supporter are assumed to support everything.
func Supports(p Provider, id identifier.Identifier) bool {
	if s, ok := p.(Supporter); ok {
		return s.Supports(id)
	}
	return true
}

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config carries the per-provider settings. Zero values fall back to each
// adapter's defaults.
type Config struct {
	BaseURL   string
	APIKey    string
	AppID     string
	UserAgent string
	RateLimit *models.RateLimit
	Client    HTTPClient
}

const DefaultUserAgent = "mcp-food-resolver/1.0 (+https://github.com/mcp-food-resolver)"

func (c Config) withDefaults(baseURL string, limit *models.RateLimit) Config {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.RateLimit == nil {
		c.RateLimit = limit
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Client == nil {
		c.Client = http.DefaultClient
	}
	return c
}
