package proxy

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkupdev/linkup-go/internal/namegen"
	"github.com/linkupdev/linkup-go/internal/pkg/response"
	"github.com/linkupdev/linkup-go/internal/session"

	"github.com/linkupdev/linkup-go/internal/allocator"
)

// handleUpsertSession implements POST /linkup and /linkup/local-session:
// validate the payload (§3), allocate a name (§4.4), respond with it.
func (a *App) handleUpsertSession(c *gin.Context) {
	var req session.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	desiredName, sess, err := session.FromUpdateRequest(req)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	name, err := allocator.Allocate(c.Request.Context(), a.store, namegen.Animal, desiredName, sess)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	c.String(http.StatusOK, name)
}
