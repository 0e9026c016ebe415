// internal/app/features/accountapi/accountapi.go

// Package accountapi exposes the signed-in user's profile and their
// bring-your-own-key completion credential. The raw key is returned to
// no one; only the masked form ever leaves the server.
package accountapi

import (
	"errors"
	"net/http"
	"strings"

	userstore "github.com/dalemusser/stratasort/internal/app/store/users"
	"github.com/dalemusser/stratasort/internal/app/system/auth"
	"github.com/dalemusser/stratasort/internal/app/system/jsonutil"
	"github.com/dalemusser/stratasort/internal/app/system/keycrypt"
	"github.com/dalemusser/stratasort/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// keyPrefix is the expected shape of an OpenRouter credential.
const keyPrefix = "sk-or-"

// Handler provides account endpoints.
type Handler struct {
	users      *userstore.Store
	sessionMgr *auth.SessionManager
	keySecret  string
	logger     *zap.Logger
}

// NewHandler creates an account Handler. keySecret encrypts stored keys.
func NewHandler(users *userstore.Store, sessionMgr *auth.SessionManager, keySecret string, logger *zap.Logger) *Handler {
	return &Handler{
		users:      users,
		sessionMgr: sessionMgr,
		keySecret:  keySecret,
		logger:     logger,
	}
}

// Routes returns the account routes, mounted under /api/account.
// All routes require a signed-in user.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireSignedIn)

	r.Get("/", h.getAccount)
	r.Put("/api-key", h.saveAPIKey)
	r.Delete("/api-key", h.removeAPIKey)
	r.Post("/signout", h.signOut)
	return r
}

// getAccount returns the profile with the masked credential.
func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	user, err := h.users.GetByID(r.Context(), u.UserID())
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			jsonutil.NotFound(w, "account not found")
			return
		}
		h.logger.Error("failed to load account", zap.Error(err))
		jsonutil.InternalError(w, "could not load account")
		return
	}

	jsonutil.OK(w, map[string]any{
		"email":               user.Email,
		"fullName":            user.FullName,
		"hasApiKey":           user.HasAPIKey(),
		"apiKeyMasked":        user.APIKeyMasked,
		"model":               user.Model,
		"fileLimit":           user.FileLimit,
		"totalFilesProcessed": user.TotalFilesProcessed,
		"filesRemaining":      user.FilesRemaining(),
	})
}

type saveAPIKeyInput struct {
	APIKey string `json:"apiKey"`
	Model  string `json:"model"`
}

// saveAPIKey stores a new completion credential and model choice.
func (h *Handler) saveAPIKey(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)

	var input saveAPIKeyInput
	if err := jsonutil.Decode(r, &input); err != nil {
		jsonutil.BadRequest(w, "invalid JSON body")
		return
	}

	key := strings.TrimSpace(input.APIKey)
	if !strings.HasPrefix(key, keyPrefix) || len(key) < 20 {
		jsonutil.BadRequest(w, "apiKey must be an OpenRouter key starting with sk-or-")
		return
	}
	model := strings.TrimSpace(input.Model)
	if model == "" {
		model = models.DefaultModel
	}

	encrypted, err := keycrypt.Encrypt(h.keySecret, key)
	if err != nil {
		h.logger.Error("failed to encrypt api key", zap.Error(err))
		jsonutil.InternalError(w, "could not save key")
		return
	}

	if err := h.users.SaveAPIKey(r.Context(), u.UserID(), encrypted, keycrypt.Mask(key), model); err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			jsonutil.NotFound(w, "account not found")
			return
		}
		h.logger.Error("failed to save api key", zap.Error(err))
		jsonutil.InternalError(w, "could not save key")
		return
	}

	jsonutil.OK(w, map[string]any{
		"apiKeyMasked": keycrypt.Mask(key),
		"model":        model,
	})
}

// removeAPIKey deletes the stored credential.
func (h *Handler) removeAPIKey(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)

	if err := h.users.RemoveAPIKey(r.Context(), u.UserID()); err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			jsonutil.NotFound(w, "account not found")
			return
		}
		h.logger.Error("failed to remove api key", zap.Error(err))
		jsonutil.InternalError(w, "could not remove key")
		return
	}
	jsonutil.NoContent(w)
}

// signOut ends the cookie session.
func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	h.sessionMgr.SignOut(w, r)
	jsonutil.NoContent(w)
}
