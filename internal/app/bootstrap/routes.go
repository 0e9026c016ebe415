// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"strings"
	"time"

	accountapifeature "github.com/dalemusser/stratasort/internal/app/features/accountapi"
	authgooglefeature "github.com/dalemusser/stratasort/internal/app/features/authgoogle"
	healthfeature "github.com/dalemusser/stratasort/internal/app/features/health"
	organizeapifeature "github.com/dalemusser/stratasort/internal/app/features/organizeapi"
	"github.com/dalemusser/stratasort/internal/app/store/oauthstate"
	"github.com/dalemusser/stratasort/internal/app/store/session"
	userstore "github.com/dalemusser/stratasort/internal/app/store/users"
	"github.com/dalemusser/stratasort/internal/app/system/apicors"
	"github.com/dalemusser/stratasort/internal/app/system/auth"
	"github.com/dalemusser/stratasort/internal/app/system/downloads"
	"github.com/dalemusser/stratasort/internal/app/system/metrics"
	"github.com/dalemusser/stratasort/internal/app/system/pipeline"
	"github.com/dalemusser/stratasort/internal/organize/planner"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed.
//
// Route groups:
//   - /api: the organize session API, JSON only, cookie session optional
//   - /api/account: profile and BYOK key management, sign-in required
//   - /auth/google: OAuth flow (only when configured)
//   - /health, /metrics: operational endpoints
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// LoadSessionUser fetches fresh user data on each request so disabled
	// accounts take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase, logger))

	sessionStore := session.New(deps.MongoDatabase)
	users := userstore.New(deps.MongoDatabase)

	signer := downloads.NewSigner(appCfg.KeySecret, appCfg.DownloadTTL)

	worker := pipeline.NewWorker(pipeline.Config{
		Sessions: sessionStore,
		Users:    users,
		Blobs:    deps.FileStorage,
		Logger:   logger,
		Planner: planner.Config{
			BaseURL: appCfg.OpenRouterBaseURL,
			APIKey:  appCfg.OpenRouterAPIKey,
			Model:   appCfg.DefaultModel,
		},
		KeySecret: appCfg.KeySecret,
	})

	limits := limitsFromConfig(appCfg)

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	// Request timeout middleware: uploads of large archives need headroom.
	r.Use(chimw.Timeout(2 * time.Minute))

	// CORS middleware: must be early in the chain to handle preflight requests.
	r.Use(middleware.CORSFromConfig(coreCfg))

	// Security headers middleware: adds X-Frame-Options, X-Content-Type-Options, etc.
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// Request metrics for /metrics scraping.
	r.Use(metrics.Middleware())

	// Session middleware: loads SessionUser into context if signed in.
	// Anonymous requests simply have no user, which is fine.
	r.Use(sessionMgr.LoadSessionUser)

	// CSRF protection middleware with path-based exemption for the JSON
	// API. Cookie name is "stratasort_csrf" to avoid collisions with other
	// services on the same domain.
	csrfOpts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("stratasort_csrf"),
		csrf.FieldName("csrf_token"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("reason", csrf.FailureReason(req).Error()),
			)
			http.Error(w, "CSRF token invalid or missing", http.StatusForbidden)
		})),
	}
	// In dev mode, trust localhost origins for CSRF validation.
	if !secure {
		csrfOpts = append(csrfOpts, csrf.TrustedOrigins([]string{
			"localhost:8080",
			"localhost:3000",
			"127.0.0.1:8080",
			"127.0.0.1:3000",
		}))
	}
	if appCfg.SessionDomain != "" {
		csrfOpts = append(csrfOpts, csrf.Domain(appCfg.SessionDomain))
	}
	csrfProtect := csrf.Protect([]byte(appCfg.CSRFKey), csrfOpts...)

	// The JSON API is exempt: it is consumed with fetch() and guarded by
	// SameSite cookies, and download links must work without a token.
	csrfMiddleware := func(next http.Handler) http.Handler {
		csrfHandler := csrfProtect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.HasPrefix(req.URL.Path, "/api/") {
				next.ServeHTTP(w, req)
				return
			}
			csrfHandler.ServeHTTP(w, req)
		})
	}
	r.Use(csrfMiddleware)

	// ─────────────────────────────────────────────────────────────────────────────
	// Routes
	// ─────────────────────────────────────────────────────────────────────────────

	// Health check endpoints for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// Organize session API
	organizeHandler := organizeapifeature.NewHandler(
		sessionStore,
		users,
		deps.FileStorage,
		worker,
		signer,
		limits,
		appCfg.DownloadTTL,
		logger,
	)

	// Account API (sign-in required inside the feature routes)
	accountHandler := accountapifeature.NewHandler(users, sessionMgr, appCfg.KeySecret, logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(apicors.Middleware())
		r.Mount("/account", accountapifeature.Routes(accountHandler, sessionMgr))
		r.Mount("/", organizeapifeature.Routes(organizeHandler, sessionMgr))
	})

	// Google OAuth (only mount if configured)
	if appCfg.GoogleClientID != "" && appCfg.GoogleClientSecret != "" {
		oauthStateStore := oauthstate.New(deps.MongoDatabase)
		googleHandler := authgooglefeature.NewHandler(
			users,
			sessionMgr,
			oauthStateStore,
			appCfg.GoogleClientID,
			appCfg.GoogleClientSecret,
			appCfg.BaseURL,
			logger,
		)
		r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))
		logger.Info("Google OAuth enabled", zap.String("redirect_url", appCfg.BaseURL+"/auth/google/callback"))
	}

	return r, nil
}

// limitsFromConfig maps configured caps onto the API limits, falling
// back to the defaults for any cap left at zero.
func limitsFromConfig(appCfg AppConfig) organizeapifeature.Limits {
	limits := organizeapifeature.DefaultLimits()
	if appCfg.AnonMaxFiles > 0 {
		limits.AnonMaxFiles = appCfg.AnonMaxFiles
	}
	if appCfg.AnonMaxMB > 0 {
		limits.AnonMaxBytes = int64(appCfg.AnonMaxMB) << 20
	}
	if appCfg.AnonSessionsPerDay > 0 {
		limits.AnonSessionsPerDay = appCfg.AnonSessionsPerDay
	}
	if appCfg.AuthMaxFiles > 0 {
		limits.AuthMaxFiles = appCfg.AuthMaxFiles
	}
	if appCfg.AuthMaxMB > 0 {
		limits.AuthMaxBytes = int64(appCfg.AuthMaxMB) << 20
	}
	if appCfg.AuthSessionsPerDay > 0 {
		limits.AuthSessionsPerDay = appCfg.AuthSessionsPerDay
	}
	if days := int(appCfg.Retention.Hours() / 24); days > 0 {
		limits.RetentionDays = days
	}
	return limits
}
