package response

import (
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"
)

// OK sends a 200 response. Slices are wrapped in {"data": [...]}.
func OK(c *gin.Context, data interface{}) {
	if data != nil {
		v := reflect.ValueOf(data)
		if v.Kind() == reflect.Slice {
			c.JSON(http.StatusOK, gin.H{"data": data})
			return
		}
	}
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends a 400 error envelope.
func BadRequest(c *gin.Context, message string) {
	abort(c, http.StatusBadRequest, message)
}

// NotFound sends a 404 error envelope.
func NotFound(c *gin.Context, message string) {
	if message == "" {
		message = "not found"
	}
	abort(c, http.StatusNotFound, message)
}

// UnprocessableEntity sends a 422 error envelope, used for requests the
// router cannot resolve to a session.
func UnprocessableEntity(c *gin.Context, message string) {
	abort(c, http.StatusUnprocessableEntity, message)
}

// Unauthorized sends a 401 error envelope.
func Unauthorized(c *gin.Context, message string) {
	abort(c, http.StatusUnauthorized, message)
}

// Conflict sends a 409 error envelope.
func Conflict(c *gin.Context, message string) {
	abort(c, http.StatusConflict, message)
}

// BadGateway sends a 502 error envelope, used when an upstream target could
// not be reached or misbehaved.
func BadGateway(c *gin.Context, message string) {
	abort(c, http.StatusBadGateway, message)
}

// InternalError sends a 500 error envelope.
func InternalError(c *gin.Context, err error) {
	abort(c, http.StatusInternalServerError, err.Error())
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"ok": 0, "code": status, "message": message})
}
