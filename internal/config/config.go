// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Asset host selection values.
const (
	AssetHostCloudinary = "cloudinary"
	AssetHostR2         = "r2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database. Optional: when unset the server runs on in-memory
	// stores and the wall does not survive restarts.
	DatabaseURL string `koanf:"database_url"`

	// Redis. Optional: enables atomic quota accounting shared across
	// replicas.
	RedisURL string `koanf:"redis_url"`

	// Quota
	DailyQuota       int    `koanf:"daily_quota"`
	BypassSecret     string `koanf:"bypass_secret"`
	BypassCredential string `koanf:"bypass_credential"`
	AdminCredential  string `koanf:"admin_credential"`

	// Identity lookup endpoint consulted when the request address is
	// unusable (loopback behind a tunnel).
	IPLookupURL string `koanf:"ip_lookup_url"`

	// Asset hosting
	AssetHost              string `koanf:"asset_host"`
	CloudinaryCloudName    string `koanf:"cloudinary_cloud_name"`
	CloudinaryUploadPreset string `koanf:"cloudinary_upload_preset"`

	// R2 (Cloudflare Object Storage)
	R2BucketName      string `koanf:"r2_bucket_name"`
	R2AccessKeyID     string `koanf:"r2_access_key_id"`
	R2SecretAccessKey string `koanf:"r2_secret_access_key"`
	R2Endpoint        string `koanf:"r2_endpoint"`
	R2PublicBaseURL   string `koanf:"r2_public_base_url"`
	R2MaxUploadSizeMB int    `koanf:"r2_max_upload_size_mb"`

	// CORS
	AllowedOrigins []string `koanf:"allowed_origins"`

	// Tracing
	TracingEnabled  bool   `koanf:"tracing_enabled"`
	TracingEndpoint string `koanf:"tracing_endpoint"`
}

// Configuration validation errors.
var (
	ErrMissingBypassSecret           = errors.New("BYPASS_SECRET is required")
	ErrInvalidAssetHost              = errors.New("ASSET_HOST must be \"cloudinary\" or \"r2\"")
	ErrMissingCloudinaryCloudName    = errors.New("CLOUDINARY_CLOUD_NAME is required")
	ErrMissingCloudinaryUploadPreset = errors.New("CLOUDINARY_UPLOAD_PRESET is required")
	ErrMissingR2BucketName           = errors.New("R2_BUCKET_NAME is required")
	ErrMissingR2AccessKeyID          = errors.New("R2_ACCESS_KEY_ID is required")
	ErrMissingR2SecretAccessKey      = errors.New("R2_SECRET_ACCESS_KEY is required")
	ErrMissingR2Endpoint             = errors.New("R2_ENDPOINT is required")
	ErrMissingR2PublicBaseURL        = errors.New("R2_PUBLIC_BASE_URL is required")
	ErrInvalidDailyQuota             = errors.New("DAILY_QUOTA must be a positive integer")
	ErrInvalidPort                   = errors.New("PORT must be a valid integer")
)

// Default values for non-secret configuration.
const (
	DefaultPort              = 8080
	DefaultEnv               = "development"
	DefaultDailyQuota        = 3
	DefaultIPLookupURL       = "https://api.ipify.org?format=json"
	DefaultAssetHost         = AssetHostCloudinary
	DefaultR2MaxUploadSizeMB = 15
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, portErr := getEnvIntOrDefaultMulti([]string{"WALL_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, fmt.Errorf("%w: %v", ErrInvalidPort, portErr))
	}

	dailyQuota, quotaErr := getEnvIntOrDefaultMulti([]string{"DAILY_QUOTA"}, k.Int("daily_quota"), DefaultDailyQuota)
	if quotaErr != nil {
		loadErrs = append(loadErrs, fmt.Errorf("%w: %v", ErrInvalidDailyQuota, quotaErr))
	}

	maxUploadSize, uploadSizeErr := getEnvIntOrDefaultMulti([]string{"R2_MAX_UPLOAD_SIZE_MB"}, k.Int("r2_max_upload_size_mb"), DefaultR2MaxUploadSizeMB)
	if uploadSizeErr != nil {
		loadErrs = append(loadErrs, uploadSizeErr)
	}

	tracingEnabled := k.Bool("tracing_enabled")
	if val := os.Getenv("TRACING_ENABLED"); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			tracingEnabled = true
		case "false", "0", "no", "off":
			tracingEnabled = false
		}
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                   port,
		Env:                    getEnvOrDefaultMulti([]string{"WALL_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:            getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:               getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		DailyQuota:             dailyQuota,
		BypassSecret:           getEnvOrKoanf("BYPASS_SECRET", k, "bypass_secret"),
		BypassCredential:       getEnvOrKoanf("BYPASS_CREDENTIAL", k, "bypass_credential"),
		AdminCredential:        getEnvOrKoanf("ADMIN_CREDENTIAL", k, "admin_credential"),
		IPLookupURL:            getEnvOrDefaultMulti([]string{"IP_LOOKUP_URL"}, k.String("ip_lookup_url"), DefaultIPLookupURL),
		AssetHost:              getEnvOrDefaultMulti([]string{"ASSET_HOST"}, k.String("asset_host"), DefaultAssetHost),
		CloudinaryCloudName:    getEnvOrKoanf("CLOUDINARY_CLOUD_NAME", k, "cloudinary_cloud_name"),
		CloudinaryUploadPreset: getEnvOrKoanf("CLOUDINARY_UPLOAD_PRESET", k, "cloudinary_upload_preset"),
		R2BucketName:           getEnvOrKoanf("R2_BUCKET_NAME", k, "r2_bucket_name"),
		R2AccessKeyID:          getEnvOrKoanf("R2_ACCESS_KEY_ID", k, "r2_access_key_id"),
		R2SecretAccessKey:      getEnvOrKoanf("R2_SECRET_ACCESS_KEY", k, "r2_secret_access_key"),
		R2Endpoint:             getEnvOrKoanf("R2_ENDPOINT", k, "r2_endpoint"),
		R2PublicBaseURL:        getEnvOrKoanf("R2_PUBLIC_BASE_URL", k, "r2_public_base_url"),
		R2MaxUploadSizeMB:      maxUploadSize,
		AllowedOrigins:         splitOrigins(getEnvOrDefaultMulti([]string{"ALLOWED_ORIGINS"}, strings.Join(k.Strings("allowed_origins"), ","), "")),
		TracingEnabled:         tracingEnabled,
		TracingEndpoint:        getEnvOrKoanf("TRACING_ENDPOINT", k, "tracing_endpoint"),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// splitOrigins parses a comma-separated origin list, trimming whitespace
// and dropping empty entries.
func splitOrigins(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer", key)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.BypassSecret == "" {
		errs = append(errs, ErrMissingBypassSecret)
	}
	if c.DailyQuota <= 0 {
		errs = append(errs, ErrInvalidDailyQuota)
	}

	switch c.AssetHost {
	case AssetHostCloudinary:
		if c.CloudinaryCloudName == "" {
			errs = append(errs, ErrMissingCloudinaryCloudName)
		}
		if c.CloudinaryUploadPreset == "" {
			errs = append(errs, ErrMissingCloudinaryUploadPreset)
		}
	case AssetHostR2:
		if c.R2BucketName == "" {
			errs = append(errs, ErrMissingR2BucketName)
		}
		if c.R2AccessKeyID == "" {
			errs = append(errs, ErrMissingR2AccessKeyID)
		}
		if c.R2SecretAccessKey == "" {
			errs = append(errs, ErrMissingR2SecretAccessKey)
		}
		if c.R2Endpoint == "" {
			errs = append(errs, ErrMissingR2Endpoint)
		}
		if c.R2PublicBaseURL == "" {
			errs = append(errs, ErrMissingR2PublicBaseURL)
		}
	default:
		errs = append(errs, ErrInvalidAssetHost)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                     fmt.Sprintf("%d", c.Port),
		"env":                      c.Env,
		"database_url":             maskDatabaseURL(c.DatabaseURL),
		"redis_url":                maskDatabaseURL(c.RedisURL),
		"daily_quota":              fmt.Sprintf("%d", c.DailyQuota),
		"bypass_secret":            maskSecret(c.BypassSecret),
		"bypass_credential":        maskSecret(c.BypassCredential),
		"admin_credential":         maskSecret(c.AdminCredential),
		"ip_lookup_url":            c.IPLookupURL,
		"asset_host":               c.AssetHost,
		"cloudinary_cloud_name":    c.CloudinaryCloudName,
		"cloudinary_upload_preset": c.CloudinaryUploadPreset,
		"r2_bucket_name":           c.R2BucketName,
		"r2_access_key_id":         maskSecret(c.R2AccessKeyID),
		"r2_secret_access_key":     maskSecret(c.R2SecretAccessKey),
		"r2_endpoint":              c.R2Endpoint,
		"r2_public_base_url":       c.R2PublicBaseURL,
		"r2_max_upload_size_mb":    fmt.Sprintf("%d", c.R2MaxUploadSizeMB),
		"allowed_origins":          strings.Join(c.AllowedOrigins, ","),
		"tracing_enabled":          fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_endpoint":         c.TracingEndpoint,
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a database URL.
// Supports both postgres:// and postgresql:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
