package session

import (
	"encoding/json"
	"testing"
)

const confJSON = `{
  "session_token": "abc123",
  "services": [
    {
      "name": "frontend",
      "location": "http://localhost:3000",
      "rewrites": [
        {"source": "^/old(.*)", "target": "/new$1"}
      ]
    },
    {
      "name": "backend",
      "location": "http://localhost:8080"
    }
  ],
  "domains": [
    {
      "domain": "example.com",
      "default_service": "frontend",
      "routes": [
        {"path": "^/api(.*)", "service": "backend"}
      ]
    },
    {
      "domain": "api.example.com",
      "default_service": "backend"
    }
  ]
}`

func TestFromStorable_RoundTrip(t *testing.T) {
	sess, err := ParseJSON([]byte(confJSON))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}

	if len(sess.Services) != 2 {
		t.Fatalf("expected 2 services, got %d", len(sess.Services))
	}
	if len(sess.Domains) != 2 {
		t.Fatalf("expected 2 domains, got %d", len(sess.Domains))
	}

	frontend, ok := sess.Services["frontend"]
	if !ok {
		t.Fatalf("missing frontend service")
	}
	if frontend.Origin.String() != "http://localhost:3000" {
		t.Errorf("frontend origin = %q", frontend.Origin.String())
	}
	if len(frontend.Rewrites) != 1 || frontend.Rewrites[0].Target != "/new$1" {
		t.Errorf("unexpected frontend rewrites: %+v", frontend.Rewrites)
	}

	example, ok := sess.Domains["example.com"]
	if !ok {
		t.Fatalf("missing example.com domain")
	}
	if example.DefaultService != "frontend" {
		t.Errorf("default service = %q", example.DefaultService)
	}
	if len(example.Routes) != 1 || example.Routes[0].Service != "backend" {
		t.Errorf("unexpected routes: %+v", example.Routes)
	}

	storable := sess.Storable()
	if len(storable.Services) != 2 || storable.Services[0].Name != "backend" || storable.Services[1].Name != "frontend" {
		t.Fatalf("expected services sorted [backend, frontend], got %+v", storable.Services)
	}
	if len(storable.Domains) != 2 || storable.Domains[0].Domain != "api.example.com" || storable.Domains[1].Domain != "example.com" {
		t.Fatalf("expected domains sorted [api.example.com, example.com], got %+v", storable.Domains)
	}

	first, err := sess.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	reparsed, err := ParseJSON(first)
	if err != nil {
		t.Fatalf("ParseJSON(round-trip): %v", err)
	}
	second, err := reparsed.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON(round-trip): %v", err)
	}

	if string(first) != string(second) {
		t.Errorf("serialization not stable:\nfirst:  %s\nsecond: %s", first, second)
	}
}

func TestFromStorable_MapIterationOrderIsByteStable(t *testing.T) {
	var storable StorableSession
	if err := json.Unmarshal([]byte(confJSON), &storable); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}

	sessA, err := FromStorable(storable)
	if err != nil {
		t.Fatalf("FromStorable: %v", err)
	}
	sessB, err := FromStorable(storable)
	if err != nil {
		t.Fatalf("FromStorable: %v", err)
	}

	jsonA, err := sessA.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	jsonB, err := sessB.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	if string(jsonA) != string(jsonB) {
		t.Errorf("two independently built sessions serialized differently:\nA: %s\nB: %s", jsonA, jsonB)
	}
}

func TestFromStorable_EmptyServicesRejected(t *testing.T) {
	_, err := FromStorable(StorableSession{
		Domains: []StorableDomain{{Domain: "example.com", DefaultService: "frontend"}},
	})
	cfgErr, ok := err.(*ConfigError)
	if !ok || cfgErr.Kind != ErrEmpty {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestFromStorable_UnknownServiceRejected(t *testing.T) {
	_, err := FromStorable(StorableSession{
		Services: []StorableService{{Name: "frontend", Location: "http://localhost:3000"}},
		Domains:  []StorableDomain{{Domain: "example.com", DefaultService: "missing"}},
	})
	cfgErr, ok := err.(*ConfigError)
	if !ok || cfgErr.Kind != ErrNoSuchService {
		t.Fatalf("expected ErrNoSuchService, got %v", err)
	}
}

func TestFromStorable_InvalidRegexRejected(t *testing.T) {
	_, err := FromStorable(StorableSession{
		Services: []StorableService{{
			Name:     "frontend",
			Location: "http://localhost:3000",
			Rewrites: []StorableRewrite{{Source: "(unclosed", Target: "/x"}},
		}},
		Domains: []StorableDomain{{Domain: "example.com", DefaultService: "frontend"}},
	})
	cfgErr, ok := err.(*ConfigError)
	if !ok || cfgErr.Kind != ErrInvalidRegex {
		t.Fatalf("expected ErrInvalidRegex, got %v", err)
	}
}

func TestFromStorable_InvalidOriginRejected(t *testing.T) {
	_, err := FromStorable(StorableSession{
		Services: []StorableService{{Name: "frontend", Location: "ftp://localhost:3000"}},
		Domains:  []StorableDomain{{Domain: "example.com", DefaultService: "frontend"}},
	})
	cfgErr, ok := err.(*ConfigError)
	if !ok || cfgErr.Kind != ErrInvalidURL {
		t.Fatalf("expected ErrInvalidURL, got %v", err)
	}
}

func TestDomainSelectionOrder(t *testing.T) {
	in := []string{"example.com", "api.example.com", "render-api.example.com", "another-example.com"}
	want := []string{"render-api.example.com", "api.example.com", "another-example.com", "example.com"}

	got := domainSelectionOrder(in)
	if !equalStrings(got, want) {
		t.Errorf("domainSelectionOrder(%v) = %v, want %v", in, got, want)
	}
}

func TestDomainSelectionOrder_SameLengthIsStable(t *testing.T) {
	in := []string{"a.domain.com", "b.domain.com", "c.domain.com"}

	got := domainSelectionOrder(in)
	if !equalStrings(got, in) {
		t.Errorf("domainSelectionOrder(%v) = %v, want unchanged %v", in, got, in)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
