package session

import (
	"regexp"
	"sort"
)

// FromStorable validates a storable session against the invariants in §3
// and compiles its regexes, returning the in-memory Session.
func FromStorable(s StorableSession) (*Session, error) {
	if err := validateNotEmpty(s); err != nil {
		return nil, err
	}
	if err := validateServiceReferences(s); err != nil {
		return nil, err
	}

	services := make(map[string]Service, len(s.Services))
	for _, stored := range s.Services {
		origin, err := validateURLOrigin(stored.Location)
		if err != nil {
			return nil, err
		}

		rewrites := make([]Rewrite, 0, len(stored.Rewrites))
		for _, r := range stored.Rewrites {
			compiled, err := regexp.Compile(r.Source)
			if err != nil {
				return nil, newConfigError(ErrInvalidRegex, "invalid regex: "+r.Source, err)
			}
			rewrites = append(rewrites, Rewrite{Source: compiled, Target: r.Target})
		}

		services[stored.Name] = Service{Origin: origin, Rewrites: rewrites}
	}

	domains := make(map[string]Domain, len(s.Domains))
	domainNames := make([]string, 0, len(s.Domains))
	for _, stored := range s.Domains {
		routes := make([]Route, 0, len(stored.Routes))
		for _, r := range stored.Routes {
			compiled, err := regexp.Compile(r.Path)
			if err != nil {
				return nil, newConfigError(ErrInvalidRegex, "invalid regex: "+r.Path, err)
			}
			routes = append(routes, Route{Path: compiled, Service: r.Service})
		}

		domains[stored.Domain] = Domain{DefaultService: stored.DefaultService, Routes: routes}
		domainNames = append(domainNames, stored.Domain)
	}

	cacheRoutes := make([]*regexp.Regexp, 0, len(s.CacheRoutes))
	for _, raw := range s.CacheRoutes {
		compiled, err := regexp.Compile(raw)
		if err != nil {
			return nil, newConfigError(ErrInvalidRegex, "invalid regex: "+raw, err)
		}
		cacheRoutes = append(cacheRoutes, compiled)
	}

	return &Session{
		SessionToken:         s.SessionToken,
		Services:             services,
		Domains:              domains,
		CacheRoutes:          cacheRoutes,
		DomainSelectionOrder: domainSelectionOrder(domainNames),
	}, nil
}

// Storable converts a Session back to its wire form. Services and domains
// are emitted sorted by key so two sessions differing only by map iteration
// order serialize to byte-equal documents.
func (s *Session) Storable() StorableSession {
	serviceNames := make([]string, 0, len(s.Services))
	for name := range s.Services {
		serviceNames = append(serviceNames, name)
	}
	sort.Strings(serviceNames)

	services := make([]StorableService, 0, len(serviceNames))
	for _, name := range serviceNames {
		svc := s.Services[name]

		var rewrites []StorableRewrite
		if len(svc.Rewrites) > 0 {
			rewrites = make([]StorableRewrite, 0, len(svc.Rewrites))
			for _, r := range svc.Rewrites {
				rewrites = append(rewrites, StorableRewrite{Source: r.Source.String(), Target: r.Target})
			}
		}

		services = append(services, StorableService{
			Name:     name,
			Location: svc.Origin.String(),
			Rewrites: rewrites,
		})
	}

	domainNames := make([]string, 0, len(s.Domains))
	for name := range s.Domains {
		domainNames = append(domainNames, name)
	}
	sort.Strings(domainNames)

	domains := make([]StorableDomain, 0, len(domainNames))
	for _, name := range domainNames {
		dom := s.Domains[name]

		var routes []StorableRoute
		if len(dom.Routes) > 0 {
			routes = make([]StorableRoute, 0, len(dom.Routes))
			for _, r := range dom.Routes {
				routes = append(routes, StorableRoute{Path: r.Path.String(), Service: r.Service})
			}
		}

		domains = append(domains, StorableDomain{
			Domain:         name,
			DefaultService: dom.DefaultService,
			Routes:         routes,
		})
	}

	var cacheRoutes []string
	if len(s.CacheRoutes) > 0 {
		cacheRoutes = make([]string, 0, len(s.CacheRoutes))
		for _, r := range s.CacheRoutes {
			cacheRoutes = append(cacheRoutes, r.String())
		}
	}

	return StorableSession{
		SessionToken: s.SessionToken,
		Services:     services,
		Domains:      domains,
		CacheRoutes:  cacheRoutes,
	}
}
