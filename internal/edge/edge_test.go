package edge

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/linkupdev/linkup-go/internal/config"
	"github.com/linkupdev/linkup-go/internal/pkg/previewtoken"
	"github.com/linkupdev/linkup-go/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	router := gin.New()
	h := &Handler{
		cfg:    &config.AppConfig{},
		router: router,
		store:  store.NewMemory(),
		logger: zap.NewNop(),
	}
	router.POST("/linkup/preview-session", h.handleCreatePreviewSession)
	router.GET("/linkup/tunnel", h.handleTunnelMetadata)
	return h
}

func TestHandleCreatePreviewSession_AllocatesAndSignsToken(t *testing.T) {
	h := newTestHandler(t)

	reqBody := `{
		"session_token": "tok-1",
		"services": [{"name": "frontend", "location": "http://127.0.0.1:4000"}],
		"domains": [{"domain": "example.com", "default_service": "frontend"}]
	}`

	req := httptest.NewRequest("POST", "/linkup/preview-session", bytes.NewBufferString(reqBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.router.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp CreatePreviewResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.SessionName == "" {
		t.Fatal("expected non-empty session name")
	}
	if resp.Token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := previewtoken.Parse(resp.Token)
	if err != nil {
		t.Fatalf("Parse token: %v", err)
	}
	if claims.SessionName != resp.SessionName {
		t.Errorf("token session name = %q, want %q", claims.SessionName, resp.SessionName)
	}
}

func TestHandleTunnelMetadata_RequiresPreviewToken(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/linkup/tunnel?session_name=tiny-cow", nil)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without an Authorization header", rec.Code)
	}
}

func TestHandleTunnelMetadata_RejectsTokenForOtherSession(t *testing.T) {
	h := newTestHandler(t)

	token, err := previewtoken.Sign("tiny-cow", defaultPreviewTokenTTL)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/linkup/tunnel?session_name=someone-elses-session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 when the token's session doesn't match session_name", rec.Code)
	}
}

func TestMatchesCacheRoutes(t *testing.T) {
	routes := []*regexp.Regexp{regexp.MustCompile(`^/static/.*`)}

	if !matchesCacheRoutes(routes, "/static/app.js") {
		t.Error("expected match")
	}
	if matchesCacheRoutes(routes, "/api/users") {
		t.Error("expected no match")
	}
}

func TestIsCacheableMethod(t *testing.T) {
	if !isCacheableMethod("GET") || !isCacheableMethod("HEAD") {
		t.Error("GET and HEAD must be cacheable")
	}
	if isCacheableMethod("POST") {
		t.Error("POST must not be cacheable")
	}
}
