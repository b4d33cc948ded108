package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mcp-food-resolver/internal/identifier"
	"mcp-food-resolver/internal/resolver"
)

func (s *FoodResolverServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetFood writes the ResolutionResult with a status derived from the
// failure class.
func (s *FoodResolverServer) handleGetFood(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.resolveContext(r.Context())
	defer cancel()

	res, err := s.service.ResolveDetailed(ctx, chi.URLParam(r, "identifier"))
	var verr *identifier.ValidationError
	status := http.StatusOK
	switch {
	case err == nil:
	case errors.As(err, &verr):
		status = http.StatusBadRequest
	case errors.Is(err, resolver.ErrCanceled):
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusNotFound
	}
	s.writeJSON(w, r, status, res)
}

func (s *FoodResolverServer) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.service.CacheStats())
}

func (s *FoodResolverServer) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearCache(r.Context()); err != nil {
		s.writeJSON(w, r, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *FoodResolverServer) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	found, err := s.service.Invalidate(r.Context(), chi.URLParam(r, "identifier"))
	var verr *identifier.ValidationError
	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case err != nil:
		s.writeJSON(w, r, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	case !found:
		s.writeJSON(w, r, http.StatusNotFound, map[string]string{"error": "not cached"})
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *FoodResolverServer) handleWarmCache(w http.ResponseWriter, r *http.Request) {
	var body WarmCacheParams
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Identifiers) == 0 {
		s.writeJSON(w, r, http.StatusBadRequest, map[string]string{"error": "body must be {\"identifiers\": [...]}"})
		return
	}
	s.writeJSON(w, r, http.StatusOK, s.service.WarmCache(r.Context(), body.Identifiers))
}

func (s *FoodResolverServer) handleAttribution(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"attribution": s.service.AttributionText()})
}

func (s *FoodResolverServer) handleSources(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.service.Sources())
}
