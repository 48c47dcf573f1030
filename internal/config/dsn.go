package config

import (
	"fmt"
	"net/url"
	"strings"
)

// URLValue builds a redis:// / rediss:// connection URL from the structured
// fields when URL itself was not provided directly.
func (c RedisRuntimeConfig) URLValue() string {
	if strings.TrimSpace(c.URL) != "" {
		return c.URL
	}

	scheme := c.Scheme
	if scheme == "" {
		scheme = "redis"
	}

	host := c.Host
	if host == "" {
		host = defaultRedisHost
	}
	port := c.Port
	if port == 0 {
		port = defaultRedisPort
	}

	u := &url.URL{
		Scheme: scheme,
		Host:   fmt.Sprintf("%s:%d", host, port),
		Path:   fmt.Sprintf("/%d", c.DB),
	}
	if c.Username != "" || c.Password != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	return u.String()
}
