package edge

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linkupdev/linkup-go/internal/pkg/previewtoken"
	"github.com/linkupdev/linkup-go/internal/pkg/response"
)

const tunnelMetaPrefix = "linkup:tunnel:"

// TunnelData is the metadata recorded against a session name by the
// (external, out-of-scope) tunnel manager. Actual tunnel lifecycle
// management is a Non-goal; this endpoint only reads what was recorded.
type TunnelData struct {
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	LastStarted time.Time `json:"last_started"`
}

func (h *Handler) handleTunnelMetadata(c *gin.Context) {
	sessionName := c.Query("session_name")
	if sessionName == "" {
		response.BadRequest(c, "session_name is required")
		return
	}

	token := bearerToken(c.GetHeader("Authorization"))
	if token == "" {
		response.Unauthorized(c, "preview token required")
		return
	}
	claims, err := previewtoken.Parse(token)
	if err != nil {
		response.Unauthorized(c, "invalid preview token: "+err.Error())
		return
	}
	if claims.SessionName != sessionName {
		response.Unauthorized(c, "preview token does not match session_name")
		return
	}

	data, ok, err := h.fetchTunnelData(c.Request.Context(), sessionName)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if !ok {
		response.NotFound(c, "no tunnel recorded for session "+sessionName)
		return
	}

	response.OK(c, data)
}

func bearerToken(authHeader string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
}

func (h *Handler) fetchTunnelData(ctx context.Context, sessionName string) (TunnelData, bool, error) {
	raw, err := h.rdb.Get(ctx, tunnelMetaPrefix+sessionName)
	if err != nil {
		return TunnelData{}, false, err
	}
	if raw == "" {
		return TunnelData{}, false, nil
	}

	var data TunnelData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return TunnelData{}, false, err
	}
	return data, true, nil
}
