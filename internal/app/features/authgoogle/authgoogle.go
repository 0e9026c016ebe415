// internal/app/features/authgoogle/authgoogle.go

// Package authgoogle implements the Google OAuth sign-in flow. Accounts
// are created on first login; a returning user's email and name are
// refreshed from Google.
package authgoogle

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dalemusser/stratasort/internal/app/store/oauthstate"
	userstore "github.com/dalemusser/stratasort/internal/app/store/users"
	"github.com/dalemusser/stratasort/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Handler provides Google OAuth handlers.
type Handler struct {
	userStore   *userstore.Store
	sessionMgr  *auth.SessionManager
	stateStore  *oauthstate.Store
	oauthConfig *oauth2.Config
	logger      *zap.Logger
}

// NewHandler creates a Google OAuth Handler. baseURL is the externally
// visible origin used to build the redirect URL.
func NewHandler(
	userStore *userstore.Store,
	sessionMgr *auth.SessionManager,
	stateStore *oauthstate.Store,
	clientID string,
	clientSecret string,
	baseURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		userStore:  userStore,
		sessionMgr: sessionMgr,
		stateStore: stateStore,
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  baseURL + "/auth/google/callback",
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		logger: logger,
	}
}

// Routes returns a chi.Router with Google OAuth routes mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.startAuth)
	r.Get("/callback", h.handleCallback)
	return r
}

// startAuth initiates the Google OAuth flow.
func (h *Handler) startAuth(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		h.logger.Error("failed to generate oauth state", zap.Error(err))
		http.Redirect(w, r, "/?error=oauth_error", http.StatusSeeOther)
		return
	}

	if err := h.stateStore.Create(r.Context(), state); err != nil {
		h.logger.Error("failed to store oauth state", zap.Error(err))
		http.Redirect(w, r, "/?error=oauth_error", http.StatusSeeOther)
		return
	}

	url := h.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// handleCallback processes the Google OAuth callback.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	// The state token is single-use; Verify consumes it.
	state := r.URL.Query().Get("state")
	if !h.stateStore.Verify(r.Context(), state) {
		h.logger.Warn("invalid oauth state")
		http.Redirect(w, r, "/?error=invalid_state", http.StatusSeeOther)
		return
	}

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		h.logger.Warn("oauth error from google", zap.String("error", errMsg))
		http.Redirect(w, r, "/?error="+errMsg, http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	token, err := h.oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("failed to exchange oauth code", zap.Error(err))
		http.Redirect(w, r, "/?error=token_exchange_failed", http.StatusSeeOther)
		return
	}

	userInfo, err := h.getUserInfo(r.Context(), token)
	if err != nil {
		h.logger.Error("failed to get google user info", zap.Error(err))
		http.Redirect(w, r, "/?error=userinfo_failed", http.StatusSeeOther)
		return
	}
	if userInfo.ID == "" || userInfo.Email == "" {
		h.logger.Warn("google user info incomplete")
		http.Redirect(w, r, "/?error=userinfo_failed", http.StatusSeeOther)
		return
	}

	user, err := h.userStore.UpsertByGoogle(r.Context(), userInfo.ID, userInfo.Email, userInfo.Name)
	if err != nil {
		h.logger.Error("failed to upsert user", zap.Error(err))
		http.Redirect(w, r, "/?error=database_error", http.StatusSeeOther)
		return
	}

	if user.Status != "active" {
		h.logger.Warn("login rejected: user disabled", zap.String("user_id", user.ID.Hex()))
		http.Redirect(w, r, "/?error=account_disabled", http.StatusSeeOther)
		return
	}

	if err := h.sessionMgr.SignIn(w, r, user.ID); err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		http.Redirect(w, r, "/?error=session_error", http.StatusSeeOther)
		return
	}

	h.logger.Info("user signed in",
		zap.String("user_id", user.ID.Hex()),
		zap.String("email", user.Email))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GoogleUserInfo represents user info from Google.
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// getUserInfo fetches user info from Google.
func (h *Handler) getUserInfo(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	client := h.oauthConfig.Client(ctx, token)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", "https://www.googleapis.com/oauth2/v2/userinfo", nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var userInfo GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, err
	}
	return &userInfo, nil
}

// generateState generates a random state token.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
