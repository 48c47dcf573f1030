// Package edge implements the edge adapter (C8): the same router and
// session model as the local proxy, exposed as a plain http.Handler so it
// can be mounted behind any Go HTTP front door standing in for the actual
// edge runtime, plus the edge-only preview-session, tunnel metadata and
// response-cache operations.
package edge

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/linkupdev/linkup-go/internal/config"
	"github.com/linkupdev/linkup-go/internal/middleware"
	"github.com/linkupdev/linkup-go/internal/pkg/previewtoken"
	redisclient "github.com/linkupdev/linkup-go/internal/pkg/redis"
	"github.com/linkupdev/linkup-go/internal/store"
)

// Handler holds the edge adapter's dependencies.
type Handler struct {
	cfg      *config.AppConfig
	router   *gin.Engine
	store    store.StringStore
	rdb      *redisclient.Client
	client   *http.Client
	logger   *zap.Logger
	cacheTTL time.Duration
}

// New wires a Redis-backed store (the external KV standing in for the edge
// platform's KV namespace) and registers routes. Redis is required: the
// edge adapter has no in-process fallback, since its whole point is to run
// stateless and share state through the external KV.
func New(logger *zap.Logger, cfg *config.AppConfig) (*Handler, error) {
	rdb, err := redisclient.Connect(cfg.Redis.URLValue())
	if err != nil {
		return nil, err
	}

	if cfg.PreviewToken.Secret == "" && !cfg.IsDev() {
		return nil, fmt.Errorf("preview_token.secret must be set outside development: it signs preview-session access tokens, and the package default is public in this repository's source")
	}
	previewtoken.SetSecret(cfg.PreviewToken.Secret)

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	h := &Handler{
		cfg:    cfg,
		router: router,
		store:  store.NewRedis(rdb),
		rdb:    rdb,
		client: &http.Client{
			Transport: &http.Transport{ForceAttemptHTTP2: true},
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger:   logger,
		cacheTTL: 15 * time.Second,
	}
	h.registerRoutes()

	return h, nil
}

func (h *Handler) registerRoutes() {
	r := h.router

	r.GET("/linkup-check", func(c *gin.Context) { c.String(http.StatusOK, "OK") })
	r.GET("/linkup/check", func(c *gin.Context) { c.String(http.StatusOK, "OK") })

	r.POST("/linkup/preview-session", h.handleCreatePreviewSession)
	r.GET("/linkup/tunnel", h.handleTunnelMetadata)

	r.NoRoute(h.handleProxy)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// Addr returns the listen address.
func (h *Handler) Addr() string { return fmt.Sprintf(":%d", h.cfg.Port) }

// Router returns the HTTP handler.
func (h *Handler) Router() http.Handler { return h }

// Shutdown is a no-op: the edge adapter keeps no background resources of
// its own beyond the shared Redis client, which outlives individual
// requests by design.
func (h *Handler) Shutdown() {}
