package router

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/linkupdev/linkup-go/internal/headers"
	"github.com/linkupdev/linkup-go/internal/session"
)

// SelectTarget implements §4.6.2. reqURL is the incoming request's URL
// (scheme/host may be empty on a server-side request; only Path, RawQuery
// and Fragment are read besides Host). requestHost is the Host header
// value, used to derive the target domain.
func SelectTarget(reqURL *url.URL, requestHost string, hdrs *headers.Map, sess *session.Session, sessionName string) (*url.URL, string, string, error) {
	host := stripPort(requestHost)
	targetDomain := host
	if firstLabel(host) == sessionName {
		targetDomain = strings.TrimPrefix(host, sessionName+".")
	}

	if tracestate, ok := hdrs.Get(headers.Tracestate); ok {
		if serviceName, ok := tracestateValue(tracestate, "linkup-service"); ok {
			if svc, ok := sess.Services[serviceName]; ok {
				rewritten := assembleURL(svc.Origin, reqURL.Path, reqURL.RawQuery, reqURL.Fragment)
				return rewritten, serviceName, targetDomain, nil
			}
		}
	}

	domainName, ok := selectDomain(sess.DomainSelectionOrder, targetDomain)
	if !ok {
		return nil, "", "", newError(NoTarget, fmt.Sprintf("no domain matches %q", targetDomain), nil)
	}
	domain := sess.Domains[domainName]

	serviceName := domain.DefaultService
	for _, route := range domain.Routes {
		if route.Path.MatchString(reqURL.Path) {
			serviceName = route.Service
			break
		}
	}

	svc, ok := sess.Services[serviceName]
	if !ok {
		return nil, "", "", newError(NoTarget, fmt.Sprintf("service %q not defined", serviceName), nil)
	}

	path := reqURL.Path
	for _, rewrite := range svc.Rewrites {
		if rewrite.Source.MatchString(path) {
			path = rewrite.Source.ReplaceAllString(path, rewrite.Target)
		}
	}

	return assembleURL(svc.Origin, path, reqURL.RawQuery, reqURL.Fragment), serviceName, targetDomain, nil
}

// selectDomain walks order and returns the first domain that is a suffix
// of targetDomain (equal, or a dot-bounded suffix).
func selectDomain(order []string, targetDomain string) (string, bool) {
	for _, domain := range order {
		if isDomainSuffix(targetDomain, domain) {
			return domain, true
		}
	}
	return "", false
}

func isDomainSuffix(target, domain string) bool {
	if target == domain {
		return true
	}
	return strings.HasSuffix(target, "."+domain)
}

func assembleURL(origin *url.URL, path, rawQuery, fragment string) *url.URL {
	return &url.URL{
		Scheme:   origin.Scheme,
		Host:     origin.Host,
		Path:     path,
		RawQuery: rawQuery,
		Fragment: fragment,
	}
}
