package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

const maxResponseBytes = 4 << 20

// getJSON issues a GET with headers and decodes the JSON body into out.
// Status codes and decode failures are mapped onto the Err* kinds.
func getJSON(ctx context.Context, client HTTPClient, source, url string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fail(source, ErrTransport, "failed to create HTTP request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fail(source, ErrTransport, "request timed out: %v", err)
		}
		return fail(source, ErrTransport, "HTTP request failed: %v", err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxResponseBytes)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fail(source, ErrNotFound, "status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fail(source, ErrQuotaExceeded, "status %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(body, 512))
		return fail(source, ErrTransport, "request failed with status %d: %s", resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return fail(source, ErrTransport, "failed to read response: %v", err)
		}
		return fail(source, ErrData, "failed to decode response: %v", err)
	}
	return nil
}

// headerMap builds headers from key/value pairs, skipping empty values.
func headerMap(kv ...string) map[string]string {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			m[kv[i]] = kv[i+1]
		}
	}
	return m
}
