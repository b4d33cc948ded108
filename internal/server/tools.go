// internal/server/tools.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
)

type ResolveFoodParams struct {
	Identifier string `json:"identifier" description:"Barcode (8 to 14 digits) or product name to resolve"`
}

type WarmCacheParams struct {
	Identifiers []string `json:"identifiers" description:"Barcodes or product names to resolve ahead of time"`
}

type toolHandler func(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error)

func (s *FoodResolverServer) tools() map[string]toolHandler {
	return map[string]toolHandler{
		"resolve_food":    s.handleResolveFood,
		"cache_stats":     s.handleCacheStatsTool,
		"clear_cache":     s.handleClearCacheTool,
		"warm_cache":      s.handleWarmCacheTool,
		"get_attribution": s.handleAttributionTool,
	}
}

func (s *FoodResolverServer) handleMCP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var request protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	handler, ok := s.tools()[request.Name]
	if !ok {
		http.Error(w, fmt.Sprintf("Unknown tool: %s", request.Name), http.StatusNotFound)
		return
	}

	result, err := handler(r.Context(), &request)
	if err != nil {
		s.logger.InfoContext(r.Context(), "tool call failed", "tool", request.Name, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, r, http.StatusOK, result)
}

// extractParams converts the request arguments into target.
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("failed to marshal arguments: %w", err)
	}
	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return fmt.Errorf("failed to unmarshal parameters: %w", err)
	}
	return nil
}

// handleResolveFood returns the ResolutionResult as JSON. A failed
// resolution is still a successful tool call.
func (s *FoodResolverServer) handleResolveFood(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params ResolveFoodParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	ctx, cancel := s.resolveContext(ctx)
	defer cancel()
	result, _ := s.service.ResolveDetailed(ctx, params.Identifier)
	return s.createJSONResponse(result)
}

func (s *FoodResolverServer) handleCacheStatsTool(_ context.Context, _ *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	return s.createJSONResponse(s.service.CacheStats())
}

func (s *FoodResolverServer) handleClearCacheTool(ctx context.Context, _ *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	if err := s.service.ClearCache(ctx); err != nil {
		return nil, err
	}
	return s.createJSONResponse(map[string]interface{}{"cleared": true})
}

func (s *FoodResolverServer) handleWarmCacheTool(ctx context.Context, req *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	var params WarmCacheParams
	if err := extractParams(req, &params); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	if len(params.Identifiers) == 0 {
		return nil, fmt.Errorf("identifiers are required")
	}
	return s.createJSONResponse(s.service.WarmCache(ctx, params.Identifiers))
}

func (s *FoodResolverServer) handleAttributionTool(_ context.Context, _ *protocol.CallToolRequest) (*protocol.CallToolResult, error) {
	return s.createJSONResponse(map[string]string{"attribution": s.service.AttributionText()})
}
