package proxy

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/linkupdev/linkup-go/internal/config"
	"github.com/linkupdev/linkup-go/internal/session"
	"github.com/linkupdev/linkup-go/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	router := gin.New()
	client := &http.Client{
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	app := &App{
		cfg:    &config.AppConfig{},
		router: router,
		store:  store.NewMemory(),
		client: client,
		logger: zap.NewNop(),
	}
	app.registerRoutes()
	return app
}

func TestHandleProxy_HTTPPassthrough(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("hello from upstream"))
	}))
	defer upstream.Close()

	a := newTestApp(t)
	sess, err := session.FromStorable(session.StorableSession{
		SessionToken: "tok",
		Services: []session.StorableService{
			{Name: "web", Location: upstream.URL},
		},
		Domains: []session.StorableDomain{
			{Domain: "example.com", DefaultService: "web"},
		},
	})
	if err != nil {
		t.Fatalf("FromStorable: %v", err)
	}
	a.store.Put(t.Context(), "my-session", mustJSON(t, sess))

	req := httptest.NewRequest(http.MethodGet, "http://my-session.example.com/path", nil)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Upstream") != "yes" {
		t.Errorf("missing upstream header, got %v", rec.Header())
	}
	if rec.Body.String() != "hello from upstream" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestHandleProxy_NoFollowRedirect(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer upstream.Close()

	a := newTestApp(t)
	sess, err := session.FromStorable(session.StorableSession{
		SessionToken: "tok",
		Services: []session.StorableService{
			{Name: "web", Location: upstream.URL},
		},
		Domains: []session.StorableDomain{
			{Domain: "example.com", DefaultService: "web"},
		},
	})
	if err != nil {
		t.Fatalf("FromStorable: %v", err)
	}
	a.store.Put(t.Context(), "my-session", mustJSON(t, sess))

	req := httptest.NewRequest(http.MethodGet, "http://my-session.example.com/", nil)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/elsewhere" {
		t.Errorf("Location = %q", loc)
	}
}

func TestHandleProxy_MultiSetCookiePreserved(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "a=1")
		w.Header().Add("Set-Cookie", "b=2")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	a := newTestApp(t)
	sess, err := session.FromStorable(session.StorableSession{
		SessionToken: "tok",
		Services: []session.StorableService{
			{Name: "web", Location: upstream.URL},
		},
		Domains: []session.StorableDomain{
			{Domain: "example.com", DefaultService: "web"},
		},
	})
	if err != nil {
		t.Fatalf("FromStorable: %v", err)
	}
	a.store.Put(t.Context(), "my-session", mustJSON(t, sess))

	req := httptest.NewRequest(http.MethodGet, "http://my-session.example.com/", nil)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	cookies := rec.Header().Values("Set-Cookie")
	if len(cookies) != 2 {
		t.Fatalf("Set-Cookie values = %v, want 2", cookies)
	}
}

func TestHandleProxy_PathRewrite(t *testing.T) {
	var gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	a := newTestApp(t)
	sess, err := session.FromStorable(session.StorableSession{
		SessionToken: "tok",
		Services: []session.StorableService{
			{
				Name:     "web",
				Location: upstream.URL,
				Rewrites: []session.StorableRewrite{
					{Source: `^/api/(.*)$`, Target: "/v2/$1"},
				},
			},
		},
		Domains: []session.StorableDomain{
			{Domain: "example.com", DefaultService: "web"},
		},
	})
	if err != nil {
		t.Fatalf("FromStorable: %v", err)
	}
	a.store.Put(t.Context(), "my-session", mustJSON(t, sess))

	req := httptest.NewRequest(http.MethodGet, "http://my-session.example.com/api/users", nil)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotPath != "/v2/users" {
		t.Errorf("upstream path = %q, want /v2/users", gotPath)
	}
}

func TestHandleUpsertSession_Idempotent(t *testing.T) {
	a := newTestApp(t)

	const bodyTemplate = `{
		"desired_name": %q,
		"session_token": "tok-shared",
		"services": [{"name": "web", "location": "http://127.0.0.1:9"}],
		"domains": [{"domain": "example.com", "default_service": "web"}]
	}`

	req1 := httptest.NewRequest(http.MethodPost, "/linkup/local-session", strings.NewReader(fmt.Sprintf(bodyTemplate, "")))
	req1.Header.Set("Content-Type", "application/json")
	rec1 := httptest.NewRecorder()
	a.router.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("first upsert status = %d, body = %s", rec1.Code, rec1.Body.String())
	}
	name1, _ := io.ReadAll(rec1.Body)

	req2 := httptest.NewRequest(http.MethodPost, "/linkup/local-session", strings.NewReader(fmt.Sprintf(bodyTemplate, string(name1))))
	req2.Header.Set("Content-Type", "application/json")
	rec2 := httptest.NewRecorder()
	a.router.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("second upsert status = %d, body = %s", rec2.Code, rec2.Body.String())
	}
	name2, _ := io.ReadAll(rec2.Body)

	if string(name1) != string(name2) {
		t.Errorf("upsert echoing desired_name with matching session_token should reuse the name: %q != %q", name1, name2)
	}
}

// TestHandleProxy_WebSocketSplice covers S4: a real upgrade handshake
// through a live server, a custom upstream response header surviving the
// splice, and a payload echoed back through it. It ends by closing the
// client side and does not assert how the splice shuts down.
func TestHandleProxy_WebSocketSplice(t *testing.T) {
	upstreamAddr := startEchoWebSocketUpstream(t)

	a := newTestApp(t)
	sess, err := session.FromStorable(session.StorableSession{
		SessionToken: "tok",
		Services: []session.StorableService{
			{Name: "web", Location: "http://" + upstreamAddr},
		},
		Domains: []session.StorableDomain{
			{Domain: "example.com", DefaultService: "web"},
		},
	})
	if err != nil {
		t.Fatalf("FromStorable: %v", err)
	}
	a.store.Put(t.Context(), "my-session", mustJSON(t, sess))

	proxySrv := httptest.NewServer(a.router)
	defer proxySrv.Close()

	proxyAddr := strings.TrimPrefix(proxySrv.URL, "http://")
	conn, err := net.Dial("tcp", proxyAddr)
	if err != nil {
		t.Fatalf("dial proxy: %v", err)
	}
	defer conn.Close()

	req := "GET /socket HTTP/1.1\r\n" +
		"Host: my-session.example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("write upgrade request: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	reader := bufio.NewReader(conn)
	tp := textproto.NewReader(reader)

	statusLine, err := tp.ReadLine()
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if !strings.Contains(statusLine, "101") {
		t.Fatalf("status line = %q, want 101 Switching Protocols", statusLine)
	}

	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		t.Fatalf("read handshake headers: %v", err)
	}
	if got := mimeHeader.Get("X-Upstream-Ws"); got != "yes" {
		t.Errorf("X-Upstream-Ws = %q, want it forwarded from upstream's handshake response", got)
	}

	payload := []byte("hello-over-the-wire")
	if _, err := conn.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	echoed := make([]byte, len(payload))
	if _, err := io.ReadFull(reader, echoed); err != nil {
		t.Fatalf("read echoed payload: %v", err)
	}
	if string(echoed) != string(payload) {
		t.Errorf("echoed payload = %q, want %q", echoed, payload)
	}

	// Closing the client side should let the splice goroutines and the
	// upstream connection unwind cleanly rather than hang.
	_ = conn.Close()
}

// startEchoWebSocketUpstream runs a raw TCP listener that completes a
// minimal WebSocket handshake with a custom response header, then echoes
// every byte it receives back verbatim until the connection closes.
func startEchoWebSocketUpstream(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen upstream: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		tp := textproto.NewReader(reader)
		if _, err := tp.ReadLine(); err != nil {
			return
		}
		if _, err := tp.ReadMIMEHeader(); err != nil && err != io.EOF {
			return
		}

		response := "HTTP/1.1 101 Switching Protocols\r\n" +
			"Upgrade: websocket\r\n" +
			"Connection: Upgrade\r\n" +
			"X-Upstream-Ws: yes\r\n" +
			"\r\n"
		if _, err := conn.Write([]byte(response)); err != nil {
			return
		}

		_, _ = io.Copy(conn, reader)
	}()

	return ln.Addr().String()
}

func mustJSON(t *testing.T, sess *session.Session) string {
	t.Helper()
	data, err := sess.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	return string(data)
}
