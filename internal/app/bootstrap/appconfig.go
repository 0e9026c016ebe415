// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like HTTP/HTTPS
// ports, TLS, logging level and format, CORS, and request body limits.
// Everything specific to this application lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: stratasort-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Maximum session cookie lifetime (default: 720h)

	// CSRF protection configuration
	CSRFKey string // Secret key for CSRF token signing (32 bytes, must be strong in production)

	// File storage configuration for uploaded and organized archives
	StorageType      string // Storage backend: "local" or "s3"
	StorageLocalPath string // Local storage path (e.g., "./uploads")
	StorageLocalURL  string // URL prefix for serving local files (e.g., "/files")

	// S3/CloudFront configuration (only used if StorageType is "s3")
	StorageS3Region    string // AWS region
	StorageS3Bucket    string // S3 bucket name
	StorageS3Prefix    string // Key prefix (e.g., "uploads/")
	StorageCFURL       string // CloudFront distribution URL
	StorageCFKeyPairID string // CloudFront key pair ID
	StorageCFKeyPath   string // Path to CloudFront private key file

	// Base URL for OAuth redirects and download links
	BaseURL string // e.g., "https://example.com" or "http://localhost:8080"

	// Google OAuth configuration
	GoogleClientID     string // Google OAuth2 client ID
	GoogleClientSecret string // Google OAuth2 client secret

	// Completion endpoint defaults, used when a signed-in user has not
	// brought their own key
	OpenRouterAPIKey  string // server-wide completion API key
	OpenRouterBaseURL string // chat-completions endpoint (blank uses the OpenRouter default)
	DefaultModel      string // model identifier used when the user picks none

	// KeySecret encrypts stored user API keys at rest and signs
	// download tokens. Must be strong in production.
	KeySecret string

	// DownloadTTL is how long a signed download link stays valid.
	DownloadTTL time.Duration

	// Session retention: completed and abandoned sessions older than
	// Retention are swept, along with their archives.
	Retention     time.Duration
	SweepInterval time.Duration

	// Upload and usage caps. Anonymous visitors and signed-in users get
	// separate limits.
	AnonMaxFiles       int
	AnonMaxMB          int
	AnonSessionsPerDay int
	AuthMaxFiles       int
	AuthMaxMB          int
	AuthSessionsPerDay int
}
