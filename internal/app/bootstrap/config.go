// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "STRATASORT"

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: STRATASORT_MONGO_URI, STRATASORT_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "stratasort", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "stratasort-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie max age (e.g., 24h, 720h, 30m)"},

	{Name: "csrf_key", Default: "dev-only-csrf-key-please-change-0123456789", Desc: "CSRF token signing key (32+ chars in production)"},

	// File storage configuration for uploaded and organized archives
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads", Desc: "Local storage path for archives"},
	{Name: "storage_local_url", Default: "/files", Desc: "URL prefix for serving local files"},

	// S3/CloudFront configuration
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "uploads/", Desc: "S3 key prefix"},
	{Name: "storage_cf_url", Default: "", Desc: "CloudFront distribution URL"},
	{Name: "storage_cf_keypair_id", Default: "", Desc: "CloudFront key pair ID"},
	{Name: "storage_cf_key_path", Default: "", Desc: "Path to CloudFront private key file"},

	// Base URL for OAuth redirects
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Externally visible base URL"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	// Completion endpoint configuration
	{Name: "openrouter_api_key", Default: "", Desc: "Server-wide OpenRouter API key (users may bring their own)"},
	{Name: "openrouter_base_url", Default: "", Desc: "Chat-completions endpoint (blank uses the OpenRouter default)"},
	{Name: "default_model", Default: "", Desc: "Default completion model identifier"},

	// Secrets for key-at-rest encryption and download token signing
	{Name: "key_secret", Default: "dev-only-key-secret-please-change-0123456789", Desc: "Secret for encrypting stored API keys and signing download tokens"},

	// Download link and session retention configuration
	{Name: "download_ttl", Default: "15m", Desc: "How long a signed download link stays valid"},
	{Name: "session_retention", Default: "72h", Desc: "Age after which sessions and their archives are swept"},
	{Name: "sweep_interval", Default: "1h", Desc: "How often the retention sweep runs"},

	// Upload and usage caps
	{Name: "anon_max_files", Default: 50, Desc: "Max files per zip for anonymous visitors"},
	{Name: "anon_max_mb", Default: 100, Desc: "Max zip size in MB for anonymous visitors"},
	{Name: "anon_sessions_per_day", Default: 3, Desc: "Max sessions per day for anonymous visitors"},
	{Name: "auth_max_files", Default: 200, Desc: "Max files per zip for signed-in users"},
	{Name: "auth_max_mb", Default: 500, Desc: "Max zip size in MB for signed-in users"},
	{Name: "auth_sessions_per_day", Default: 20, Desc: "Max sessions per day for signed-in users"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, STRATASORT_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 720*time.Hour),

		CSRFKey: appValues.String("csrf_key"),

		// File storage
		StorageType:      appValues.String("storage_type"),
		StorageLocalPath: appValues.String("storage_local_path"),
		StorageLocalURL:  appValues.String("storage_local_url"),

		// S3/CloudFront
		StorageS3Region:    appValues.String("storage_s3_region"),
		StorageS3Bucket:    appValues.String("storage_s3_bucket"),
		StorageS3Prefix:    appValues.String("storage_s3_prefix"),
		StorageCFURL:       appValues.String("storage_cf_url"),
		StorageCFKeyPairID: appValues.String("storage_cf_keypair_id"),
		StorageCFKeyPath:   appValues.String("storage_cf_key_path"),

		// Base URL
		BaseURL: appValues.String("base_url"),

		// Google OAuth
		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		// Completion endpoint
		OpenRouterAPIKey:  appValues.String("openrouter_api_key"),
		OpenRouterBaseURL: appValues.String("openrouter_base_url"),
		DefaultModel:      appValues.String("default_model"),

		KeySecret: appValues.String("key_secret"),

		// Downloads and retention
		DownloadTTL:   appValues.Duration("download_ttl", 15*time.Minute),
		Retention:     appValues.Duration("session_retention", 72*time.Hour),
		SweepInterval: appValues.Duration("sweep_interval", time.Hour),

		// Usage caps
		AnonMaxFiles:       appValues.Int("anon_max_files"),
		AnonMaxMB:          appValues.Int("anon_max_mb"),
		AnonSessionsPerDay: appValues.Int("anon_sessions_per_day"),
		AuthMaxFiles:       appValues.Int("auth_max_files"),
		AuthMaxMB:          appValues.Int("auth_max_mb"),
		AuthSessionsPerDay: appValues.Int("auth_sessions_per_day"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	switch appCfg.StorageType {
	case "local", "s3", "":
	default:
		return fmt.Errorf("unknown storage type: %s", appCfg.StorageType)
	}

	if appCfg.Retention <= 0 {
		return fmt.Errorf("session_retention must be positive, got %s", appCfg.Retention)
	}
	if appCfg.DownloadTTL <= 0 {
		return fmt.Errorf("download_ttl must be positive, got %s", appCfg.DownloadTTL)
	}

	return nil
}
