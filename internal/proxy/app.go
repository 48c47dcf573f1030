// Package proxy implements the local session-aware reverse proxy server:
// HTTP forwarding, WebSocket splicing, and the session upsert/check
// endpoints, all backed by the router, allocator and session packages.
package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/linkupdev/linkup-go/internal/config"
	"github.com/linkupdev/linkup-go/internal/middleware"
	"github.com/linkupdev/linkup-go/internal/pkg/archive"
	"github.com/linkupdev/linkup-go/internal/pkg/metrics"
	redisclient "github.com/linkupdev/linkup-go/internal/pkg/redis"
	"github.com/linkupdev/linkup-go/internal/store"
)

// App holds the local proxy's dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	store  store.StringStore
	rdb    *redisclient.Client
	client *http.Client
	logger *zap.Logger
	cancel context.CancelFunc
}

// New wires the store, HTTP client and routes for the local proxy server.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	backend, rdb, err := newStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	if cfg.Archive.Enable {
		uploader, err := archive.NewUploader(cfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		backend = store.NewArchiving(backend, uploader, logger)
	}

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	client := &http.Client{
		Transport: &http.Transport{
			ForceAttemptHTTP2:     true,
			MaxIdleConnsPerHost:   32,
			ResponseHeaderTimeout: 0,
		},
		// Redirects propagate unchanged to the client per §4.7; the proxy
		// itself never follows one.
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	_, cancel := context.WithCancel(context.Background())

	app := &App{cfg: cfg, router: router, store: backend, rdb: rdb, client: client, logger: logger, cancel: cancel}
	app.registerRoutes()

	return app, nil
}

func newStore(cfg *config.AppConfig) (store.StringStore, *redisclient.Client, error) {
	switch cfg.Store.Backend {
	case "redis":
		rdb, err := redisclient.Connect(cfg.Redis.URLValue())
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedis(rdb), rdb, nil
	default:
		return store.NewMemory(), nil, nil
	}
}

func (a *App) registerRoutes() {
	r := a.router

	r.GET("/linkup-check", handleCheck)
	r.GET("/linkup/check", handleCheck)

	upsert := r.Group("/")
	if a.rdb != nil {
		// Rate limiting and idempotence require a shared backend to be
		// meaningful across cluster workers; single-process in-memory mode
		// skips both rather than enforce a limit no other worker can see.
		upsert.Use(middleware.RateLimit(a.rdb.Raw()), middleware.Idempotence(a.rdb.Raw()))
	}
	upsert.POST("/linkup", a.handleUpsertSession)
	upsert.POST("/linkup/local-session", a.handleUpsertSession)

	r.GET("/metrics", metrics.Handler())

	r.NoRoute(a.handleProxy)
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown releases background resources.
func (a *App) Shutdown() { a.cancel() }

func handleCheck(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

const upstreamDialTimeout = 2 * time.Second
