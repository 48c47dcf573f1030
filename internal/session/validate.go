package session

import "net/url"

func validateNotEmpty(s StorableSession) error {
	if len(s.Services) == 0 {
		return newConfigError(ErrEmpty, "services must not be empty", nil)
	}
	if len(s.Domains) == 0 {
		return newConfigError(ErrEmpty, "domains must not be empty", nil)
	}
	return nil
}

func validateServiceReferences(s StorableSession) error {
	names := make(map[string]struct{}, len(s.Services))
	for _, svc := range s.Services {
		names[svc.Name] = struct{}{}
	}

	for _, domain := range s.Domains {
		if _, ok := names[domain.DefaultService]; !ok {
			return newConfigError(ErrNoSuchService, "no such service: "+domain.DefaultService, nil)
		}
		for _, route := range domain.Routes {
			if _, ok := names[route.Service]; !ok {
				return newConfigError(ErrNoSuchService, "no such service: "+route.Service, nil)
			}
		}
	}
	return nil
}

func validateURLOrigin(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, newConfigError(ErrInvalidURL, "invalid url: "+raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, newConfigError(ErrInvalidURL, "invalid url: "+raw, nil)
	}
	if u.Host == "" {
		return nil, newConfigError(ErrInvalidURL, "invalid url: "+raw, nil)
	}
	return u, nil
}
