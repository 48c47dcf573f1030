package config

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                `yaml:"port"`
	Env            string             `yaml:"env"` // "development" | "production"
	Cluster        bool               `yaml:"cluster"`
	ClusterWorkers int                `yaml:"cluster_workers"`
	Redis          RedisRuntimeConfig `yaml:"redis"`
	Store          StoreRuntimeConfig `yaml:"store"`
	Paths          RuntimePathsConfig `yaml:"paths"`
	LogRotateSize  *int               `yaml:"log_rotate_size_mb"`
	LogRotateKeep  *int               `yaml:"log_rotate_keep"`
	CORS           CORSRuntimeConfig  `yaml:"cors"`
	PreviewToken   PreviewTokenConfig `yaml:"preview_token"`
	Archive        ArchiveConfig      `yaml:"archive"`
	Timezone       string             `yaml:"timezone"`
}

// RedisRuntimeConfig describes the optional Redis backend for the string store,
// rate limiter and idempotence middleware.
type RedisRuntimeConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
	Scheme   string `yaml:"scheme"`
}

// StoreRuntimeConfig selects the StringStore backend.
type StoreRuntimeConfig struct {
	// Backend is "memory" or "redis".
	Backend string `yaml:"backend"`
}

// RuntimePathsConfig mirrors the teacher's layout for resolving runtime
// directories relative to the executable.
type RuntimePathsConfig struct {
	Logs string `yaml:"logs"`
}

// CORSRuntimeConfig configures the permissive-by-default CORS middleware.
type CORSRuntimeConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// PreviewTokenConfig configures signing of edge preview-session tokens.
type PreviewTokenConfig struct {
	Secret string `yaml:"secret"`
	TTLSec int    `yaml:"ttl_seconds"`
}

// ArchiveConfig configures the optional S3-compatible session audit archive.
type ArchiveConfig struct {
	Enable          bool   `yaml:"enable"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyleAccess bool   `yaml:"path_style_access"`
	CustomDomain    string `yaml:"custom_domain"`
}

type rawAppConfig struct {
	Port               int                  `yaml:"port"`
	Env                string               `yaml:"env"`
	NodeEnv            string               `yaml:"node_env"`
	Cluster            *bool                `yaml:"cluster"`
	ClusterWorkers     int                  `yaml:"cluster_workers"`
	RedisURL           string               `yaml:"redis_url"`
	Redis              rawRedisConfig       `yaml:"redis"`
	Store              StoreRuntimeConfig   `yaml:"store"`
	Paths              rawPathsConfig       `yaml:"paths"`
	LogDir             string               `yaml:"log_dir"`
	LogsDir            string               `yaml:"logs_dir"`
	LogRotateSize      *int                 `yaml:"log_rotate_size_mb"`
	LogRotateKeep      *int                 `yaml:"log_rotate_keep"`
	AllowedOrigins     []string             `yaml:"allowed_origins"`
	CORSAllowedOrigins []string             `yaml:"cors_allowed_origins"`
	PreviewToken       PreviewTokenConfig   `yaml:"preview_token"`
	Archive            ArchiveConfig        `yaml:"archive"`
	Timezone           string               `yaml:"timezone"`
	TimeZone           string               `yaml:"time_zone"`
	TZ                 string               `yaml:"tz"`
}

type rawRedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       *int   `yaml:"db"`
	TLS      *bool  `yaml:"tls"`
	Scheme   string `yaml:"scheme"`
}

type rawPathsConfig struct {
	Logs string `yaml:"logs"`
}
