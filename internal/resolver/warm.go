package resolver

import (
	"context"
	"time"
)

type WarmSummary struct {
	Requested int `json:"requested"`
	Resolved  int `json:"resolved"`
	Failed    int `json:"failed"`
}

// WarmCache resolves ids one after another, pausing between calls, so that
// later lookups hit the cache. Individual failures are logged and counted.
// It stops early when ctx is done.
func (r *Resolver) WarmCache(ctx context.Context, ids []string) WarmSummary {
	summary := WarmSummary{Requested: len(ids)}
	for i, raw := range ids {
		if i > 0 && r.warmDelay > 0 {
			t := time.NewTimer(r.warmDelay)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
		if ctx.Err() != nil {
			r.logger.InfoContext(ctx, "cache warm-up interrupted", "done", i, "requested", len(ids))
			summary.Failed += len(ids) - i
			break
		}

		if res := r.Resolve(ctx, raw); res.Success {
			summary.Resolved++
		} else {
			summary.Failed++
			r.logger.WarnContext(ctx, "cache warm-up item failed", "identifier", raw, "error", res.ErrorMessage)
		}
	}
	r.logger.InfoContext(ctx, "cache warm-up finished",
		"requested", summary.Requested,
		"resolved", summary.Resolved,
		"failed", summary.Failed)
	return summary
}
