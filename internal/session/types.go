// Package session implements the session data model: typed sessions with
// domains, routes, services and rewrites, their storable (wire) form, and
// the invariant validation required to convert between the two.
package session

import (
	"net/url"
	"regexp"
)

// Session is the in-memory, validated form of a session. Regexes are
// compiled once here and never rebuilt per request.
type Session struct {
	SessionToken         string
	Services             map[string]Service
	Domains              map[string]Domain
	CacheRoutes          []*regexp.Regexp
	DomainSelectionOrder []string
}

// Service is a named upstream origin plus its ordered path rewrites.
type Service struct {
	Origin   *url.URL
	Rewrites []Rewrite
}

// Rewrite replaces every regex match in a request path with target,
// substituting numbered/named capture groups.
type Rewrite struct {
	Source *regexp.Regexp
	Target string
}

// Domain is a public apex with a default service and ordered path routes.
type Domain struct {
	DefaultService string
	Routes         []Route
}

// Route matches a path regex to a service name within one domain.
type Route struct {
	Path    *regexp.Regexp
	Service string
}

// StorableSession is the JSON/YAML wire form of a Session.
type StorableSession struct {
	SessionToken string            `json:"session_token" yaml:"session_token"`
	Services     []StorableService `json:"services" yaml:"services"`
	Domains      []StorableDomain  `json:"domains" yaml:"domains"`
	CacheRoutes  []string          `json:"cache_routes,omitempty" yaml:"cache_routes,omitempty"`
}

// StorableService is the wire form of a Service.
type StorableService struct {
	Name     string            `json:"name" yaml:"name"`
	Location string            `json:"location" yaml:"location"`
	Rewrites []StorableRewrite `json:"rewrites,omitempty" yaml:"rewrites,omitempty"`
}

// StorableRewrite is the wire form of a Rewrite.
type StorableRewrite struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// StorableDomain is the wire form of a Domain.
type StorableDomain struct {
	Domain         string          `json:"domain" yaml:"domain"`
	DefaultService string          `json:"default_service" yaml:"default_service"`
	Routes         []StorableRoute `json:"routes,omitempty" yaml:"routes,omitempty"`
}

// StorableRoute is the wire form of a Route.
type StorableRoute struct {
	Path    string `json:"path" yaml:"path"`
	Service string `json:"service" yaml:"service"`
}

// UpdateSessionRequest is the body of the session-upsert endpoints.
type UpdateSessionRequest struct {
	DesiredName  string            `json:"desired_name"`
	SessionToken string            `json:"session_token"`
	Services     []StorableService `json:"services"`
	Domains      []StorableDomain  `json:"domains"`
	CacheRoutes  []string          `json:"cache_routes,omitempty"`
}
