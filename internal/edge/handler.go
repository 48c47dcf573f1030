package edge

import (
	"bytes"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/linkupdev/linkup-go/internal/headers"
	"github.com/linkupdev/linkup-go/internal/pkg/response"
	"github.com/linkupdev/linkup-go/internal/router"
)

// handleProxy mirrors the local proxy's catch-all (§4.6/§4.7) with one
// addition: a response cache keyed by the fully-resolved upstream URL and
// method when the session's cache_routes match, per §4.8.
func (h *Handler) handleProxy(c *gin.Context) {
	req := c.Request
	hdrs := headers.FromHTTPHeader(req.Header)

	sessionName, sess, err := router.ResolveSession(req.Context(), h.store, req.Host, hdrs)
	if err != nil {
		h.reportRouterError(c, err, "")
		return
	}

	targetURL, serviceName, targetDomain, err := router.SelectTarget(req.URL, req.Host, hdrs, sess, sessionName)
	if err != nil {
		h.reportRouterError(c, err, sessionName)
		return
	}

	router.AdditionalHeaders(hdrs, sessionName, serviceName, targetDomain)

	cacheable := isCacheableMethod(req.Method) && matchesCacheRoutes(sess.CacheRoutes, req.URL.Path)
	key := cacheKey(req.Method, targetURL.String())

	if cacheable {
		if cached, ok := h.readCachedResponse(req.Context(), key); ok {
			body, _ := base64.StdEncoding.DecodeString(cached.BodyBase64)
			c.Data(cached.Status, cached.ContentType, body)
			return
		}
	}

	h.forwardHTTP(c, targetURL, hdrs, cacheable, key)
}

func (h *Handler) reportRouterError(c *gin.Context, err error, sessionName string) {
	routerErr, ok := err.(*router.Error)
	if !ok {
		response.InternalError(c, err)
		return
	}

	fields := []zap.Field{zap.String("request_url", requestURLWithoutQuery(c)), zap.String("reason", routerErr.Error())}
	if sessionName != "" {
		fields = append(fields, zap.String("session_name", sessionName))
	}
	h.logger.Warn("router error", fields...)

	switch routerErr.Kind {
	case router.NoSuchSession:
		response.UnprocessableEntity(c, routerErr.Error())
	case router.NoTarget:
		response.NotFound(c, routerErr.Error())
	case router.StoreUnavailable:
		response.InternalError(c, routerErr)
	default:
		response.BadGateway(c, routerErr.Error())
	}
}

func requestURLWithoutQuery(c *gin.Context) string {
	u := *c.Request.URL
	u.RawQuery = ""
	return u.String()
}

// forwardHTTP forwards to targetURL with injected propagation headers, and
// additionally buffers the response body to populate the cache when
// cacheable is true.
func (h *Handler) forwardHTTP(c *gin.Context, targetURL *url.URL, injected *headers.Map, cacheable bool, key string) {
	req := c.Request

	upstreamReq, err := http.NewRequestWithContext(req.Context(), req.Method, targetURL.String(), req.Body)
	if err != nil {
		response.BadGateway(c, "could not build upstream request: "+err.Error())
		return
	}

	upstreamReq.Header = cloneHeader(req.Header)
	upstreamReq.Header.Del("Host")
	applyInjectedHeaders(upstreamReq.Header, injected)

	resp, err := h.client.Do(upstreamReq)
	if err != nil {
		response.BadGateway(c, "upstream unreachable: "+err.Error())
		return
	}
	defer resp.Body.Close()

	header := c.Writer.Header()
	for k, values := range resp.Header {
		for _, v := range values {
			header.Add(k, v)
		}
	}
	applyPermissiveCORSHeaders(header)

	if !cacheable {
		c.Writer.WriteHeader(resp.StatusCode)
		_, _ = io.Copy(c.Writer, resp.Body)
		return
	}

	var buf bytes.Buffer
	c.Writer.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(io.MultiWriter(c.Writer, &buf), resp.Body)

	if resp.StatusCode == http.StatusOK {
		h.writeCachedResponse(req.Context(), key, resp.StatusCode, resp.Header.Get("Content-Type"), buf.Bytes())
	}
}

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, v := range h {
		cloned := make([]string, len(v))
		copy(cloned, v)
		out[k] = cloned
	}
	return out
}

func applyInjectedHeaders(h http.Header, injected *headers.Map) {
	for _, name := range []string{headers.Traceparent, headers.Tracestate, headers.XForwardedHost} {
		if v, ok := injected.Get(name); ok {
			h.Set(name, v)
		}
	}
}

func applyPermissiveCORSHeaders(h http.Header) {
	if h.Get("Access-Control-Allow-Origin") == "" {
		h.Set("Access-Control-Allow-Origin", "*")
	}
	if h.Get("Access-Control-Allow-Methods") == "" {
		h.Set("Access-Control-Allow-Methods", "*")
	}
	if h.Get("Access-Control-Allow-Headers") == "" {
		h.Set("Access-Control-Allow-Headers", "*")
	}
}
