package edge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"regexp"
)

const cacheKeyPrefix = "linkup:edge-cache:"

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	BodyBase64  string `json:"body_base64"`
}

// matchesCacheRoutes reports whether path matches any of the session's
// cache_routes patterns.
func matchesCacheRoutes(routes []*regexp.Regexp, path string) bool {
	for _, r := range routes {
		if r.MatchString(path) {
			return true
		}
	}
	return false
}

// cacheKey is keyed by the rewritten upstream URL and method, per §4.8 —
// computed after target selection (and after the trace short-circuit, so
// a second-hop request reuses the first hop's cache entries).
func cacheKey(method string, upstreamURL string) string {
	return cacheKeyPrefix + method + ":" + upstreamURL
}

func (h *Handler) readCachedResponse(ctx context.Context, key string) (cachedResponse, bool) {
	raw, err := h.rdb.Get(ctx, key)
	if err != nil || raw == "" {
		return cachedResponse{}, false
	}
	var payload cachedResponse
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return cachedResponse{}, false
	}
	return payload, true
}

func (h *Handler) writeCachedResponse(ctx context.Context, key string, status int, contentType string, body []byte) {
	payload := cachedResponse{
		Status:      status,
		ContentType: contentType,
		BodyBase64:  base64.StdEncoding.EncodeToString(body),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = h.rdb.Raw().Set(ctx, key, raw, h.cacheTTL).Err()
}

func isCacheableMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}
