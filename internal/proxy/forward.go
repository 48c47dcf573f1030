package proxy

import (
	"io"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/linkupdev/linkup-go/internal/headers"
	"github.com/linkupdev/linkup-go/internal/pkg/response"
)

// forwardHTTP implements the HTTP half of §4.7's forwarding contract:
// method, body and all headers but Host travel upstream unchanged plus the
// router's additions; the upstream's status, headers (multi-valued
// preserved) and body stream back verbatim, redirects included.
func (a *App) forwardHTTP(c *gin.Context, targetURL *url.URL, injected *headers.Map) {
	req := c.Request

	outboundURL := *targetURL
	upstreamReq, err := http.NewRequestWithContext(req.Context(), req.Method, outboundURL.String(), req.Body)
	if err != nil {
		response.BadGateway(c, "could not build upstream request: "+err.Error())
		return
	}

	upstreamReq.Header = cloneHeader(req.Header)
	upstreamReq.Header.Del("Host")
	applyInjectedHeaders(upstreamReq.Header, injected)

	resp, err := a.client.Do(upstreamReq)
	if err != nil {
		response.BadGateway(c, "upstream unreachable: "+err.Error())
		return
	}
	defer resp.Body.Close()

	header := c.Writer.Header()
	for key, values := range resp.Header {
		for _, v := range values {
			header.Add(key, v)
		}
	}
	applyPermissiveCORSHeaders(header)

	c.Writer.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(c.Writer, resp.Body)
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

// applyPermissiveCORSHeaders mirrors the gin-contrib/cors middleware for
// proxied responses, which bypass the request-scoped CORS middleware
// because they are streamed directly to the ResponseWriter.
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
