package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates the YAML config file at path, merging it over
// hard-coded defaults. A missing path falls back to DefaultConfigPath.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := defaultAppConfig()

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	raw := rawAppConfig{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	applyRawAppConfig(&cfg, raw)

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d in %q, expected 1-65535", cfg.Port, path)
	}
	if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
		return nil, fmt.Errorf("invalid redis.port %d in %q, expected 1-65535", cfg.Redis.Port, path)
	}
	if cfg.Redis.DB < 0 {
		return nil, fmt.Errorf("invalid redis.db %d in %q, expected >= 0", cfg.Redis.DB, path)
	}
	if cfg.Store.Backend != "memory" && cfg.Store.Backend != "redis" {
		return nil, fmt.Errorf("invalid store.backend %q in %q, expected \"memory\" or \"redis\"", cfg.Store.Backend, path)
	}

	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Store: StoreRuntimeConfig{
			Backend: defaultStoreKind,
		},
		PreviewToken: PreviewTokenConfig{
			TTLSec: defaultPreviewTTL,
		},
	}
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.Store.Backend = normalizeStoreBackend(cfg.Store.Backend)
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}

	env := raw.Env
	if env == "" {
		env = raw.NodeEnv
	}
	if env != "" {
		cfg.Env = normalizeEnv(env)
	}

	if raw.Cluster != nil {
		cfg.Cluster = *raw.Cluster
	}
	if raw.ClusterWorkers != 0 {
		cfg.ClusterWorkers = raw.ClusterWorkers
	}

	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)

	if raw.Store.Backend != "" {
		cfg.Store.Backend = normalizeStoreBackend(raw.Store.Backend)
	}

	paths := cfg.Paths
	if raw.Paths.Logs != "" {
		paths.Logs = raw.Paths.Logs
	}
	logDir := raw.LogDir
	if logDir == "" {
		logDir = raw.LogsDir
	}
	if logDir != "" {
		paths.Logs = logDir
	}
	cfg.Paths = normalizeRuntimePaths(paths)

	if raw.LogRotateSize != nil {
		cfg.LogRotateSize = raw.LogRotateSize
	}
	if raw.LogRotateKeep != nil {
		cfg.LogRotateKeep = raw.LogRotateKeep
	}

	origins := raw.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = raw.AllowedOrigins
	}
	if len(origins) > 0 {
		cfg.CORS.AllowedOrigins = normalizeOrigins(origins)
	}

	if raw.PreviewToken.Secret != "" {
		cfg.PreviewToken.Secret = raw.PreviewToken.Secret
	}
	if raw.PreviewToken.TTLSec != 0 {
		cfg.PreviewToken.TTLSec = raw.PreviewToken.TTLSec
	}

	if raw.Archive.Enable {
		cfg.Archive = raw.Archive
	}

	tz := raw.Timezone
	if tz == "" {
		tz = raw.TimeZone
	}
	if tz == "" {
		tz = raw.TZ
	}
	if tz != "" {
		cfg.Timezone = tz
	}
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	cfg := current
	if raw.RedisURL != "" {
		cfg.URL = raw.RedisURL
	}
	if raw.Redis.URL != "" {
		cfg.URL = raw.Redis.URL
	}
	if raw.Redis.Host != "" {
		cfg.Host = raw.Redis.Host
	}
	if raw.Redis.Port != 0 {
		cfg.Port = raw.Redis.Port
	}
	if raw.Redis.Username != "" {
		cfg.Username = raw.Redis.Username
	}
	if raw.Redis.Password != "" {
		cfg.Password = raw.Redis.Password
	}
	if raw.Redis.DB != nil {
		cfg.DB = *raw.Redis.DB
	}
	if raw.Redis.TLS != nil {
		cfg.TLS = *raw.Redis.TLS
	}
	if raw.Redis.Scheme != "" {
		cfg.Scheme = raw.Redis.Scheme
	}
	return normalizeRedisConfig(cfg)
}

// IsDev reports whether the configured environment is development.
func (c *AppConfig) IsDev() bool {
	return c.Env != "production"
}

// LogDir resolves the log directory relative to the executable when a
// relative path (or none) was configured.
func (c *AppConfig) LogDir() string {
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

// LogRotateSizeMB returns the configured rotate size and whether it was set.
func (c *AppConfig) LogRotateSizeMB() (int, bool) {
	if c.LogRotateSize == nil {
		return 0, false
	}
	return *c.LogRotateSize, true
}

// LogRotateKeepCount returns the configured rotate keep count and whether it was set.
func (c *AppConfig) LogRotateKeepCount() (int, bool) {
	if c.LogRotateKeep == nil {
		return 0, false
	}
	return *c.LogRotateKeep, true
}
