package edge

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linkupdev/linkup-go/internal/allocator"
	"github.com/linkupdev/linkup-go/internal/namegen"
	"github.com/linkupdev/linkup-go/internal/pkg/previewtoken"
	"github.com/linkupdev/linkup-go/internal/pkg/response"
	"github.com/linkupdev/linkup-go/internal/session"
)

const defaultPreviewTokenTTL = 5 * time.Minute

// CreatePreviewRequest creates a preview session whose services are pinned
// to caller-supplied URLs (a per-service override of origin), per §4.8.
type CreatePreviewRequest struct {
	DesiredName  string                    `json:"desired_name"`
	SessionToken string                    `json:"session_token"`
	Services     []session.StorableService `json:"services"`
	Domains      []session.StorableDomain  `json:"domains"`
	CacheRoutes  []string                  `json:"cache_routes,omitempty"`
}

// CreatePreviewResponse carries the allocated session name and a
// short-lived token binding the caller to it.
type CreatePreviewResponse struct {
	SessionName string `json:"session_name"`
	Token       string `json:"token"`
	ExpiresAt   int64  `json:"expires_at"`
}

func (h *Handler) handleCreatePreviewSession(c *gin.Context) {
	var req CreatePreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	storable := session.StorableSession{
		SessionToken: req.SessionToken,
		Services:     req.Services,
		Domains:      req.Domains,
		CacheRoutes:  req.CacheRoutes,
	}

	sess, err := session.FromStorable(storable)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ttl := h.previewTokenTTL()

	name, err := allocator.Allocate(c.Request.Context(), h.store, namegen.Animal, req.DesiredName, sess)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	token, err := previewtoken.Sign(name, ttl)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	response.OK(c, CreatePreviewResponse{
		SessionName: name,
		Token:       token,
		ExpiresAt:   time.Now().Add(ttl).Unix(),
	})
}

func (h *Handler) previewTokenTTL() time.Duration {
	if h.cfg.PreviewToken.TTLSec > 0 {
		return time.Duration(h.cfg.PreviewToken.TTLSec) * time.Second
	}
	return defaultPreviewTokenTTL
}
