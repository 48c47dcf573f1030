// Package headers provides a case-insensitive header container shared by
// the router, the local proxy, and the edge adapter so the routing
// algorithm never depends on a particular HTTP runtime's header type.
package headers

import "net/textproto"

// Preserved header names used by the router.
const (
	Referer            = "Referer"
	Tracestate         = "Tracestate"
	Traceparent        = "Traceparent"
	XForwardedHost     = "X-Forwarded-Host"
	Host               = "Host"
	Origin             = "Origin"
	LinkupDestination  = "Linkup-Destination"
)

// Map is a case-insensitive mapping from header name to header value. It
// intentionally only carries a single value per name: callers that need to
// preserve multi-valued headers (e.g. Set-Cookie) operate on the native
// http.Header of the underlying request/response directly, since the
// router never needs to read or write more than one value per propagation
// header.
type Map struct {
	values map[string]string
}

// New returns an empty Map.
func New() *Map {
	return &Map{values: make(map[string]string)}
}

// FromHTTPHeader copies single values (the last one wins for repeated keys,
// matching how most HTTP libraries expose "the" header value) from a native
// net/http.Header-shaped map into a Map.
func FromHTTPHeader(h map[string][]string) *Map {
	m := New()
	for key, values := range h {
		if len(values) == 0 {
			continue
		}
		m.Insert(key, values[len(values)-1])
	}
	return m
}

func canonical(key string) string {
	return textproto.CanonicalMIMEHeaderKey(key)
}

// Get returns the value for key, case-insensitively, and whether it was
// present.
func (m *Map) Get(key string) (string, bool) {
	v, ok := m.values[canonical(key)]
	return v, ok
}

// GetOrDefault returns the value for key, or def if absent.
func (m *Map) GetOrDefault(key, def string) string {
	if v, ok := m.Get(key); ok {
		return v
	}
	return def
}

// Insert sets key to value, case-insensitively, overwriting any prior value.
func (m *Map) Insert(key, value string) {
	m.values[canonical(key)] = value
}

// Remove deletes key, case-insensitively.
func (m *Map) Remove(key string) {
	delete(m.values, canonical(key))
}

// ContainsKey reports whether key is present, case-insensitively.
func (m *Map) ContainsKey(key string) bool {
	_, ok := m.values[canonical(key)]
	return ok
}

// Extend copies every entry from other into m, overwriting on collision.
func (m *Map) Extend(other *Map) {
	if other == nil {
		return
	}
	for k, v := range other.values {
		m.values[k] = v
	}
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.values)
}
