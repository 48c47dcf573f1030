package router

import (
	"context"
	"net/url"
	"testing"

	"github.com/linkupdev/linkup-go/internal/headers"
	"github.com/linkupdev/linkup-go/internal/session"
)

type memStore struct {
	data map[string]string
}

func (m *memStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func testSession(t *testing.T) *session.Session {
	t.Helper()
	sess, err := session.FromStorable(session.StorableSession{
		SessionToken: "tok",
		Services: []session.StorableService{
			{Name: "frontend", Location: "http://127.0.0.1:4000"},
			{Name: "backend", Location: "http://127.0.0.1:5000"},
		},
		Domains: []session.StorableDomain{
			{
				Domain:         "example.com",
				DefaultService: "frontend",
				Routes: []session.StorableRoute{
					{Path: "^/api(.*)", Service: "backend"},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("FromStorable: %v", err)
	}
	return sess
}

func newStoreWithSession(t *testing.T, name string) *memStore {
	t.Helper()
	sess := testSession(t)
	encoded, err := sess.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	return &memStore{data: map[string]string{name: string(encoded)}}
}

func TestResolveSession_BySubdomain(t *testing.T) {
	store := newStoreWithSession(t, "potatosession")

	name, sess, err := ResolveSession(context.Background(), store, "potatosession.example.com", headers.New())
	if err != nil {
		t.Fatalf("ResolveSession: %v", err)
	}
	if name != "potatosession" {
		t.Errorf("name = %q, want potatosession", name)
	}
	if sess == nil {
		t.Fatal("expected non-nil session")
	}
}

func TestResolveSession_ByReferer(t *testing.T) {
	store := newStoreWithSession(t, "potatosession")

	hdrs := headers.New()
	hdrs.Insert(headers.Referer, "https://potatosession.example.com/some/page")

	name, _, err := ResolveSession(context.Background(), store, "example.com", hdrs)
	if err != nil {
		t.Fatalf("ResolveSession: %v", err)
	}
	if name != "potatosession" {
		t.Errorf("name = %q, want potatosession", name)
	}
}

func TestResolveSession_ByTracestate(t *testing.T) {
	store := newStoreWithSession(t, "potatosession")

	hdrs := headers.New()
	hdrs.Insert(headers.Tracestate, "foo=bar,linkup-session=potatosession,baz=qux")

	name, _, err := ResolveSession(context.Background(), store, "example.com", hdrs)
	if err != nil {
		t.Fatalf("ResolveSession: %v", err)
	}
	if name != "potatosession" {
		t.Errorf("name = %q, want potatosession", name)
	}
}

func TestResolveSession_NoMatch(t *testing.T) {
	store := &memStore{data: map[string]string{}}

	_, _, err := ResolveSession(context.Background(), store, "nope.example.com", headers.New())
	routerErr, ok := err.(*Error)
	if !ok || routerErr.Kind != NoSuchSession {
		t.Fatalf("expected NoSuchSession, got %v", err)
	}
	if routerErr.Kind.Status() != 422 {
		t.Errorf("status = %d, want 422", routerErr.Kind.Status())
	}
}

func TestSelectTarget_DefaultService(t *testing.T) {
	sess := testSession(t)
	reqURL := &url.URL{Path: "/any"}

	target, service, targetDomain, err := SelectTarget(reqURL, "potatosession.example.com", headers.New(), sess, "potatosession")
	if err != nil {
		t.Fatalf("SelectTarget: %v", err)
	}
	if service != "frontend" {
		t.Errorf("service = %q, want frontend", service)
	}
	if target.String() != "http://127.0.0.1:4000/any" {
		t.Errorf("target = %q", target.String())
	}
	if targetDomain != "example.com" {
		t.Errorf("targetDomain = %q, want example.com", targetDomain)
	}
}

func TestSelectTarget_RouteMatch(t *testing.T) {
	sess := testSession(t)
	reqURL := &url.URL{Path: "/api/users"}

	_, service, _, err := SelectTarget(reqURL, "potatosession.example.com", headers.New(), sess, "potatosession")
	if err != nil {
		t.Fatalf("SelectTarget: %v", err)
	}
	if service != "backend" {
		t.Errorf("service = %q, want backend", service)
	}
}

func TestSelectTarget_TraceShortCircuit(t *testing.T) {
	sess := testSession(t)
	reqURL := &url.URL{Path: "/api/users", RawQuery: "x=1"}

	hdrs := headers.New()
	hdrs.Insert(headers.Tracestate, "linkup-service=frontend")

	target, service, _, err := SelectTarget(reqURL, "potatosession.example.com", hdrs, sess, "potatosession")
	if err != nil {
		t.Fatalf("SelectTarget: %v", err)
	}
	if service != "frontend" {
		t.Errorf("service = %q, want frontend (short-circuit bypasses route match)", service)
	}
	if target.String() != "http://127.0.0.1:4000/api/users?x=1" {
		t.Errorf("target = %q", target.String())
	}
}

func TestSelectTarget_NoDomainMatch(t *testing.T) {
	sess := testSession(t)
	reqURL := &url.URL{Path: "/any"}

	_, _, _, err := SelectTarget(reqURL, "potatosession.unknown.com", headers.New(), sess, "potatosession")
	routerErr, ok := err.(*Error)
	if !ok || routerErr.Kind != NoTarget {
		t.Fatalf("expected NoTarget, got %v", err)
	}
	if routerErr.Kind.Status() != 404 {
		t.Errorf("status = %d, want 404", routerErr.Kind.Status())
	}
}

func TestSelectTarget_PathRewrite(t *testing.T) {
	sess, err := session.FromStorable(session.StorableSession{
		SessionToken: "tok",
		Services: []session.StorableService{
			{
				Name:     "frontend",
				Location: "http://127.0.0.1:4000",
				Rewrites: []session.StorableRewrite{
					{Source: `^/foo/(.*)$`, Target: "/bar/$1"},
				},
			},
		},
		Domains: []session.StorableDomain{
			{Domain: "example.com", DefaultService: "frontend"},
		},
	})
	if err != nil {
		t.Fatalf("FromStorable: %v", err)
	}

	target, _, _, err := SelectTarget(&url.URL{Path: "/foo/x/y"}, "s.example.com", headers.New(), sess, "s")
	if err != nil {
		t.Fatalf("SelectTarget: %v", err)
	}
	if target.Path != "/bar/x/y" {
		t.Errorf("path = %q, want /bar/x/y", target.Path)
	}

	target2, _, _, err := SelectTarget(&url.URL{Path: "/zzz/foo/x"}, "s.example.com", headers.New(), sess, "s")
	if err != nil {
		t.Fatalf("SelectTarget: %v", err)
	}
	if target2.Path != "/zzz/foo/x" {
		t.Errorf("path = %q, want unchanged /zzz/foo/x", target2.Path)
	}
}

func TestSelectTarget_ChainedRewritesApplyInOrder(t *testing.T) {
	sess, err := session.FromStorable(session.StorableSession{
		SessionToken: "tok",
		Services: []session.StorableService{
			{
				Name:     "frontend",
				Location: "http://127.0.0.1:4000",
				Rewrites: []session.StorableRewrite{
					{Source: `^/a/(.*)$`, Target: "/b/$1"},
					{Source: `^/b/(.*)$`, Target: "/c/$1"},
				},
			},
		},
		Domains: []session.StorableDomain{
			{Domain: "example.com", DefaultService: "frontend"},
		},
	})
	if err != nil {
		t.Fatalf("FromStorable: %v", err)
	}

	target, _, _, err := SelectTarget(&url.URL{Path: "/a/x"}, "s.example.com", headers.New(), sess, "s")
	if err != nil {
		t.Fatalf("SelectTarget: %v", err)
	}
	if target.Path != "/c/x" {
		t.Errorf("path = %q, want /c/x (both rewrites should apply in sequence)", target.Path)
	}
}

func TestAdditionalHeaders_SynthesizesWhenAbsent(t *testing.T) {
	hdrs := headers.New()
	AdditionalHeaders(hdrs, "potatosession", "frontend", "example.com")

	tp, ok := hdrs.Get(headers.Traceparent)
	if !ok || tp == "" {
		t.Fatal("expected synthesized traceparent")
	}

	ts, ok := hdrs.Get(headers.Tracestate)
	if !ok {
		t.Fatal("expected tracestate")
	}
	if !containsEntry(ts, "linkup-session=potatosession") || !containsEntry(ts, "linkup-service=frontend") {
		t.Errorf("tracestate = %q missing expected entries", ts)
	}

	xfh, ok := hdrs.Get(headers.XForwardedHost)
	if !ok || xfh != "example.com" {
		t.Errorf("x-forwarded-host = %q, want example.com (target domain, not the session-labeled host)", xfh)
	}
}

func TestAdditionalHeaders_PreservesExistingTracestateEntries(t *testing.T) {
	hdrs := headers.New()
	hdrs.Insert(headers.Tracestate, "vendor=abc")

	AdditionalHeaders(hdrs, "potatosession", "frontend", "example.com")

	ts, _ := hdrs.Get(headers.Tracestate)
	if !containsEntry(ts, "vendor=abc") {
		t.Errorf("tracestate = %q lost existing entry", ts)
	}
}

func TestAdditionalHeaders_Idempotent(t *testing.T) {
	hdrs := headers.New()
	hdrs.Insert(headers.Traceparent, "00-aaaa-bbbb-00")
	hdrs.Insert(headers.Tracestate, "linkup-session=potatosession,linkup-service=frontend")
	hdrs.Insert(headers.XForwardedHost, "example.com")

	before := snapshot(hdrs)
	AdditionalHeaders(hdrs, "potatosession", "frontend", "example.com")
	after := snapshot(hdrs)

	if before != after {
		t.Errorf("headers changed on idempotent application:\nbefore: %v\nafter:  %v", before, after)
	}
}

func snapshot(hdrs *headers.Map) string {
	tp, _ := hdrs.Get(headers.Traceparent)
	ts, _ := hdrs.Get(headers.Tracestate)
	xfh, _ := hdrs.Get(headers.XForwardedHost)
	return tp + "|" + ts + "|" + xfh
}

func containsEntry(tracestate, entry string) bool {
	for _, e := range splitTracestate(tracestate) {
		if e == entry {
			return true
		}
	}
	return false
}

func TestDomainSuffixMatching(t *testing.T) {
	if !isDomainSuffix("api.example.com", "example.com") {
		t.Error("expected suffix match")
	}
	if isDomainSuffix("notexample.com", "example.com") {
		t.Error("expected no suffix match across label boundary")
	}
	if !isDomainSuffix("example.com", "example.com") {
		t.Error("expected exact match to count as suffix")
	}
}
