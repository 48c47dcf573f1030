package proxy

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/linkupdev/linkup-go/internal/headers"
	"github.com/linkupdev/linkup-go/internal/pkg/metrics"
	"github.com/linkupdev/linkup-go/internal/pkg/response"
	"github.com/linkupdev/linkup-go/internal/router"
)

// handleProxy implements §4.7's catch-all: resolve session, select target,
// inject headers, then forward as HTTP or splice as WebSocket.
func (a *App) handleProxy(c *gin.Context) {
	start := time.Now()
	req := c.Request

	hdrs := headers.FromHTTPHeader(req.Header)

	sessionName, sess, err := router.ResolveSession(req.Context(), a.store, req.Host, hdrs)
	if err != nil {
		a.reportRouterError(c, err, "", metrics.OutcomeNoSession, start)
		return
	}

	targetURL, serviceName, targetDomain, err := router.SelectTarget(req.URL, req.Host, hdrs, sess, sessionName)
	if err != nil {
		a.reportRouterError(c, err, sessionName, metrics.OutcomeNoTarget, start)
		return
	}

	router.AdditionalHeaders(hdrs, sessionName, serviceName, targetDomain)

	if isWebSocketUpgrade(req.Header) {
		a.forwardWebSocket(c, targetURL, hdrs)
		metrics.RecordOutcome(metrics.OutcomeResolved, time.Since(start).Seconds())
		return
	}

	a.forwardHTTP(c, targetURL, hdrs)
	outcome := metrics.OutcomeResolved
	if c.IsAborted() {
		// forwardHTTP aborts with 502 only when the upstream could not be reached.
		outcome = metrics.OutcomeUpstreamError
	}
	metrics.RecordOutcome(outcome, time.Since(start).Seconds())
}

func (a *App) reportRouterError(c *gin.Context, err error, sessionName string, outcome metrics.Outcome, start time.Time) {
	metrics.RecordOutcome(outcome, time.Since(start).Seconds())

	var routerErr *router.Error
	if errors.As(err, &routerErr) {
		fields := []zap.Field{zap.String("request_url", requestURLWithoutQuery(c)), zap.String("reason", routerErr.Error())}
		if sessionName != "" {
			fields = append(fields, zap.String("session_name", sessionName))
		}
		a.logger.Warn("router error", fields...)
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
		return
	}
	response.InternalError(c, err)
}

func isWebSocketUpgrade(h map[string][]string) bool {
	upgrade := firstHeaderValue(h, "Upgrade")
	connection := firstHeaderValue(h, "Connection")
	return strings.EqualFold(upgrade, "websocket") && strings.Contains(strings.ToLower(connection), "upgrade")
}

func firstHeaderValue(h map[string][]string, key string) string {
	for k, values := range h {
		if strings.EqualFold(k, key) && len(values) > 0 {
			return values[0]
		}
	}
	return ""
}

func requestURLWithoutQuery(c *gin.Context) string {
	u := *c.Request.URL
	u.RawQuery = ""
	return u.String()
}
