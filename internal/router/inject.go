package router

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/linkupdev/linkup-go/internal/headers"
)

// AdditionalHeaders implements §4.6.3: it mutates hdrs in place, adding a
// traceparent if absent, ensuring tracestate carries linkup-session and
// linkup-service without duplicating existing entries, and setting
// x-forwarded-host to originalHost if absent. It never removes a header;
// the router only ever adds.
func AdditionalHeaders(hdrs *headers.Map, sessionName, serviceName, originalHost string) {
	if _, ok := hdrs.Get(headers.Traceparent); !ok {
		hdrs.Insert(headers.Traceparent, synthesizeTraceparent())
	}

	existing, _ := hdrs.Get(headers.Tracestate)
	hdrs.Insert(headers.Tracestate, upsertTracestate(existing, sessionName, serviceName))

	if _, ok := hdrs.Get(headers.XForwardedHost); !ok {
		hdrs.Insert(headers.XForwardedHost, originalHost)
	}
}

func synthesizeTraceparent() string {
	var traceID [16]byte
	var parentID [8]byte
	_, _ = rand.Read(traceID[:])
	_, _ = rand.Read(parentID[:])
	return "00-" + hex.EncodeToString(traceID[:]) + "-" + hex.EncodeToString(parentID[:]) + "-00"
}

// upsertTracestate ensures the tracestate list contains linkup-session and
// linkup-service entries equal to sessionName/serviceName, preserving every
// other entry in order. An existing linkup-session or linkup-service entry
// is overwritten in place with the new value rather than appended twice.
func upsertTracestate(tracestate, sessionName, serviceName string) string {
	entries := splitTracestate(tracestate)

	entries = setTracestateEntry(entries, "linkup-session", sessionName)
	entries = setTracestateEntry(entries, "linkup-service", serviceName)

	return strings.Join(entries, ",")
}

func splitTracestate(tracestate string) []string {
	if tracestate == "" {
		return nil
	}
	raw := strings.Split(tracestate, ",")
	entries := make([]string, 0, len(raw))
	for _, e := range raw {
		e = strings.TrimSpace(e)
		if e != "" {
			entries = append(entries, e)
		}
	}
	return entries
}

func setTracestateEntry(entries []string, key, value string) []string {
	wanted := key + "=" + value
	for i, e := range entries {
		name, _, found := strings.Cut(e, "=")
		if found && name == key {
			entries[i] = wanted
			return entries
		}
	}
	return append(entries, wanted)
}
