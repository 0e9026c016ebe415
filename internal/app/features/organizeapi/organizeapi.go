// internal/app/features/organizeapi/organizeapi.go

// Package organizeapi is the JSON API for organize sessions: create,
// upload, analyze, confirm, retry, list, delete, plus downloads, the
// shell-script artifact, and usage events.
package organizeapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dalemusser/stratasort/internal/app/store/session"
	userstore "github.com/dalemusser/stratasort/internal/app/store/users"
	"github.com/dalemusser/stratasort/internal/app/system/auth"
	"github.com/dalemusser/stratasort/internal/app/system/downloads"
	"github.com/dalemusser/stratasort/internal/app/system/jsonutil"
	"github.com/dalemusser/stratasort/internal/domain/models"
	"github.com/dalemusser/stratasort/internal/organize/manifest"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// BlobStore is the slice of object storage the API needs.
type BlobStore interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Put(ctx context.Context, path string, r io.Reader, opts *storage.PutOptions) error
	Delete(ctx context.Context, path string) error
}

// Pipeline triggers background stages after a successful transition.
type Pipeline interface {
	Analyze(id primitive.ObjectID)
	Process(id primitive.ObjectID)
}

// Limits are the per-principal usage caps.
type Limits struct {
	AnonMaxFiles       int
	AnonMaxBytes       int64
	AnonSessionsPerDay int

	AuthMaxFiles       int
	AuthMaxBytes       int64
	AuthSessionsPerDay int

	RetentionDays int
}

// DefaultLimits returns the caps used when configuration supplies none.
func DefaultLimits() Limits {
	return Limits{
		AnonMaxFiles:       50,
		AnonMaxBytes:       100 << 20,
		AnonSessionsPerDay: 3,
		AuthMaxFiles:       200,
		AuthMaxBytes:       500 << 20,
		AuthSessionsPerDay: 20,
		RetentionDays:      3,
	}
}

// Handler provides the organize session API.
type Handler struct {
	sessions    *session.Store
	users       *userstore.Store
	blobs       BlobStore
	pipeline    Pipeline
	signer      *downloads.Signer
	limits      Limits
	downloadTTL time.Duration
	logger      *zap.Logger
}

// NewHandler creates an organize API Handler.
func NewHandler(
	sessions *session.Store,
	users *userstore.Store,
	blobs BlobStore,
	pipeline Pipeline,
	signer *downloads.Signer,
	limits Limits,
	downloadTTL time.Duration,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		sessions:    sessions,
		users:       users,
		blobs:       blobs,
		pipeline:    pipeline,
		signer:      signer,
		limits:      limits,
		downloadTTL: downloadTTL,
		logger:      logger,
	}
}

// Routes returns the session routes, mounted under /api.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()

	r.Get("/limits", h.getLimits)
	r.Get("/download/{token}", h.download)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.createSession)
		r.With(sessionMgr.RequireSignedIn).Get("/", h.listSessions)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.getSession)
			r.Delete("/", h.deleteSession)
			r.Post("/upload", h.upload)
			r.Post("/analyze", h.analyze)
			r.Post("/confirm", h.confirm)
			r.Post("/retry", h.retry)
			r.Post("/download-url", h.downloadURL)
			r.Get("/script", h.script)
			r.Post("/events", h.logEvent)
			r.Get("/events", h.listEvents)
		})
	})

	return r
}

// principalLimits resolves the caps for the current request.
func (h *Handler) principalLimits(r *http.Request) (maxFiles int, maxBytes int64, sessionsPerDay int, signedIn bool) {
	if _, ok := auth.CurrentUser(r); ok {
		return h.limits.AuthMaxFiles, h.limits.AuthMaxBytes, h.limits.AuthSessionsPerDay, true
	}
	return h.limits.AnonMaxFiles, h.limits.AnonMaxBytes, h.limits.AnonSessionsPerDay, false
}

// getLimits reports the caps that apply to the caller.
func (h *Handler) getLimits(w http.ResponseWriter, r *http.Request) {
	maxFiles, maxBytes, perDay, signedIn := h.principalLimits(r)
	jsonutil.OK(w, map[string]any{
		"maxFiles":          maxFiles,
		"maxTotalBytes":     maxBytes,
		"maxSessionsPerDay": perDay,
		"retentionDays":     h.limits.RetentionDays,
		"signedIn":          signedIn,
	})
}

type createSessionInput struct {
	FileName      string                       `json:"fileName"`
	Settings      *models.OrganizationSettings `json:"settings"`
	IsPreviewOnly bool                         `json:"isPreviewOnly"`
}

// createSession starts a new session in pending_upload.
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var input createSessionInput
	if err := jsonutil.Decode(r, &input); err != nil {
		jsonutil.BadRequest(w, "invalid JSON body")
		return
	}
	if input.FileName == "" {
		jsonutil.BadRequest(w, "fileName is required")
		return
	}
	if input.Settings != nil {
		if !models.ValidNamingStyle(input.Settings.NamingStyle) {
			jsonutil.BadRequest(w, "unknown naming style")
			return
		}
		if input.Settings.MaxDepth < 1 || input.Settings.MaxDepth > 10 {
			jsonutil.BadRequest(w, "maxDepth must be between 1 and 10")
			return
		}
	}

	var userID *primitive.ObjectID
	if u, ok := auth.CurrentUser(r); ok {
		id := u.UserID()
		userID = &id

		// Daily session quota. Anonymous sessions carry no durable
		// identity, so the cap is enforced for accounts only.
		_, _, perDay, _ := h.principalLimits(r)
		since := time.Now().UTC().Add(-24 * time.Hour)
		count, err := h.sessions.CountCreatedSince(r.Context(), id, since)
		if err != nil {
			h.logger.Error("failed to count sessions", zap.Error(err))
			jsonutil.InternalError(w, "could not create session")
			return
		}
		if count >= int64(perDay) {
			jsonutil.Error(w, http.StatusTooManyRequests, "daily session limit reached")
			return
		}
	}

	sess, err := h.sessions.Create(r.Context(), session.CreateInput{
		UserID:        userID,
		FileName:      input.FileName,
		Settings:      input.Settings,
		IsPreviewOnly: input.IsPreviewOnly,
	})
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		jsonutil.InternalError(w, "could not create session")
		return
	}

	_ = h.sessions.LogEvent(r.Context(), sess.ID, models.EventStart)
	jsonutil.Created(w, sess)
}

// upload accepts the zip as multipart form field "file", validates it
// against the caller's caps, stores it, and marks the session uploaded.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	maxFiles, maxBytes, _, _ := h.principalLimits(r)

	// Slack over the cap covers multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonutil.ContentTooLarge(w, fmt.Sprintf("upload exceeds the %d MB limit", maxBytes>>20))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		jsonutil.BadRequest(w, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		jsonutil.BadRequest(w, "could not read upload")
		return
	}
	if int64(len(data)) > maxBytes {
		jsonutil.ContentTooLarge(w, fmt.Sprintf("upload exceeds the %d MB limit", maxBytes>>20))
		return
	}

	entries, err := manifest.Build(data)
	if err != nil {
		if errors.Is(err, manifest.ErrNoFiles) {
			jsonutil.BadRequest(w, "no files found in zip")
			return
		}
		jsonutil.BadRequest(w, "file is not a valid zip archive")
		return
	}
	if len(entries) > maxFiles {
		jsonutil.ContentTooLarge(w, fmt.Sprintf("archive has %d files; the limit is %d", len(entries), maxFiles))
		return
	}

	storagePath := fmt.Sprintf("uploads/%s.zip", uuid.New().String())
	opts := &storage.PutOptions{ContentType: "application/zip"}
	if err := h.blobs.Put(r.Context(), storagePath, bytes.NewReader(data), opts); err != nil {
		h.logger.Error("failed to store upload", zap.Error(err))
		jsonutil.InternalError(w, "could not store upload")
		return
	}

	if err := h.sessions.MarkUploaded(r.Context(), sess.ID, storagePath, len(entries), manifest.TotalBytes(entries)); err != nil {
		// Lost the race or wrong state. The stored blob is orphaned;
		// remove it so the retention sweep has nothing to chase.
		_ = h.blobs.Delete(r.Context(), storagePath)
		if errors.Is(err, session.ErrInvalidTransition) {
			jsonutil.Conflict(w, "session is not awaiting an upload")
			return
		}
		h.logger.Error("failed to mark uploaded", zap.Error(err))
		jsonutil.InternalError(w, "could not record upload")
		return
	}

	updated, err := h.sessions.GetByID(r.Context(), sess.ID)
	if err != nil {
		jsonutil.InternalError(w, "could not load session")
		return
	}
	jsonutil.OK(w, updated)
}

// analyze transitions uploaded → analyzing and starts the background
// stage. The CAS makes a duplicate trigger a 409, not a second task.
func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	if err := h.sessions.StartAnalysis(r.Context(), sess.ID); err != nil {
		if errors.Is(err, session.ErrInvalidTransition) {
			jsonutil.Conflict(w, "session is not ready for analysis")
			return
		}
		h.logger.Error("failed to start analysis", zap.Error(err))
		jsonutil.InternalError(w, "could not start analysis")
		return
	}

	h.pipeline.Analyze(sess.ID)
	jsonutil.JSON(w, http.StatusAccepted, map[string]string{"status": models.StatusAnalyzing})
}

// confirm transitions proposed → processing and starts the rewrite.
func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	if sess.IsPreviewOnly {
		jsonutil.BadRequest(w, "preview-only sessions cannot be processed; download the script instead")
		return
	}

	if err := h.sessions.StartProcessing(r.Context(), sess.ID); err != nil {
		if errors.Is(err, session.ErrInvalidTransition) {
			jsonutil.Conflict(w, "session has no plan awaiting confirmation")
			return
		}
		h.logger.Error("failed to start processing", zap.Error(err))
		jsonutil.InternalError(w, "could not start processing")
		return
	}

	h.pipeline.Process(sess.ID)
	jsonutil.JSON(w, http.StatusAccepted, map[string]string{"status": models.StatusProcessing})
}

// retry re-runs analysis for a failed session.
func (h *Handler) retry(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	if err := h.sessions.Retry(r.Context(), sess.ID); err != nil {
		if errors.Is(err, session.ErrInvalidTransition) {
			jsonutil.Conflict(w, "only failed sessions can be retried")
			return
		}
		h.logger.Error("failed to retry session", zap.Error(err))
		jsonutil.InternalError(w, "could not retry session")
		return
	}

	h.pipeline.Analyze(sess.ID)
	jsonutil.JSON(w, http.StatusAccepted, map[string]string{"status": models.StatusAnalyzing})
}

// getSession returns the session, including its plan once proposed.
func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	jsonutil.OK(w, sess)
}

// listSessions returns the signed-in user's sessions, most recent first.
func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)

	limit := int64(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > 200 {
			jsonutil.BadRequest(w, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	sessions, err := h.sessions.ListByUser(r.Context(), u.UserID(), limit)
	if err != nil {
		h.logger.Error("failed to list sessions", zap.Error(err))
		jsonutil.InternalError(w, "could not list sessions")
		return
	}
	if sessions == nil {
		sessions = []models.Session{}
	}
	jsonutil.OK(w, map[string]any{"sessions": sessions})
}

// deleteSession removes the session, its events, and both archives.
func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	for _, path := range []string{sess.OriginalFilePath, sess.OrganizedFilePath} {
		if path == "" {
			continue
		}
		if err := h.blobs.Delete(r.Context(), path); err != nil {
			h.logger.Warn("could not delete archive",
				zap.String("session_id", sess.ID.Hex()),
				zap.String("path", path),
				zap.Error(err))
		}
	}

	if err := h.sessions.Delete(r.Context(), sess.ID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			jsonutil.NotFound(w, "session not found")
			return
		}
		h.logger.Error("failed to delete session", zap.Error(err))
		jsonutil.InternalError(w, "could not delete session")
		return
	}
	jsonutil.NoContent(w)
}

// loadOwned parses the session id, loads the session, and enforces
// ownership. Anonymous sessions are addressable by anyone holding the
// id; owned sessions require the owner.
func (h *Handler) loadOwned(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "sessionID"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid session id")
		return nil, false
	}

	sess, err := h.sessions.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			jsonutil.NotFound(w, "session not found")
			return nil, false
		}
		h.logger.Error("failed to load session", zap.Error(err))
		jsonutil.InternalError(w, "could not load session")
		return nil, false
	}

	if sess.UserID != nil {
		u, ok := auth.CurrentUser(r)
		if !ok {
			jsonutil.Unauthorized(w, "sign in required")
			return nil, false
		}
		if u.UserID() != *sess.UserID {
			jsonutil.Forbidden(w, "session belongs to another user")
			return nil, false
		}
	}
	return sess, true
}
