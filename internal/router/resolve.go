package router

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/linkupdev/linkup-go/internal/headers"
	"github.com/linkupdev/linkup-go/internal/session"
)

// ResolveSession implements §4.6.1: subdomain, then referer, then
// tracestate, first hit wins. host is the request's Host header value
// (may carry a port).
func ResolveSession(ctx context.Context, store Store, host string, hdrs *headers.Map) (string, *session.Session, error) {
	candidates := []string{firstLabel(stripPort(host))}

	if referer, ok := hdrs.Get(headers.Referer); ok {
		if u, err := url.Parse(referer); err == nil && u.Host != "" {
			candidates = append(candidates, firstLabel(stripPort(u.Host)))
		}
	}

	if tracestate, ok := hdrs.Get(headers.Tracestate); ok {
		if name, ok := tracestateValue(tracestate, "linkup-session"); ok {
			candidates = append(candidates, name)
		}
	}

	for _, name := range candidates {
		if name == "" {
			continue
		}
		sess, found, err := lookupSession(ctx, store, name)
		if err != nil {
			return "", nil, err
		}
		if found {
			return name, sess, nil
		}
	}

	return "", nil, newError(NoSuchSession, fmt.Sprintf("no session for host %q", host), nil)
}

func lookupSession(ctx context.Context, store Store, name string) (*session.Session, bool, error) {
	raw, ok, err := store.Get(ctx, name)
	if err != nil {
		return nil, false, newError(StoreUnavailable, "store get failed", err)
	}
	if !ok {
		return nil, false, nil
	}
	sess, err := session.ParseJSON([]byte(raw))
	if err != nil {
		return nil, false, newError(StoreUnavailable, "stored session is corrupt", err)
	}
	return sess, true, nil
}

func firstLabel(host string) string {
	if idx := strings.IndexByte(host, '.'); idx >= 0 {
		return host[:idx]
	}
	return host
}

func stripPort(host string) string {
	if idx := strings.LastIndexByte(host, ':'); idx >= 0 {
		return host[:idx]
	}
	return host
}

// tracestateValue scans a comma-separated `key=value` tracestate list for
// key, returning its value and whether it was present.
func tracestateValue(tracestate, key string) (string, bool) {
	for _, entry := range strings.Split(tracestate, ",") {
		entry = strings.TrimSpace(entry)
		name, value, found := strings.Cut(entry, "=")
		if found && name == key {
			return value, true
		}
	}
	return "", false
}
