// internal/app/features/organizeapi/download.go
package organizeapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dalemusser/stratasort/internal/app/store/session"
	"github.com/dalemusser/stratasort/internal/app/system/downloads"
	"github.com/dalemusser/stratasort/internal/app/system/jsonutil"
	"github.com/dalemusser/stratasort/internal/domain/models"
	"github.com/dalemusser/stratasort/internal/organize/script"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type downloadURLInput struct {
	Kind string `json:"kind"`
}

// downloadURL issues a short-lived signed URL for one of the session's
// archives. The organized archive exists only once the session is
// complete; the original is available from upload onward.
func (h *Handler) downloadURL(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	input := downloadURLInput{Kind: downloads.KindOrganized}
	if r.Body != nil && r.ContentLength != 0 {
		if err := jsonutil.Decode(r, &input); err != nil {
			jsonutil.BadRequest(w, "invalid JSON body")
			return
		}
	}

	var path string
	switch input.Kind {
	case downloads.KindOrganized:
		if sess.Status != models.StatusComplete {
			jsonutil.Conflict(w, "session has no organized archive yet")
			return
		}
		path = sess.OrganizedFilePath
	case downloads.KindOriginal:
		path = sess.OriginalFilePath
	default:
		jsonutil.BadRequest(w, "kind must be 'organized' or 'original'")
		return
	}
	if path == "" {
		jsonutil.NotFound(w, "archive not found")
		return
	}

	token, err := h.signer.Sign(downloads.Claim{SessionID: sess.ID.Hex(), Kind: input.Kind})
	if err != nil {
		h.logger.Error("failed to sign download token", zap.Error(err))
		jsonutil.InternalError(w, "could not create download link")
		return
	}

	_ = h.sessions.LogEvent(r.Context(), sess.ID, models.EventDownload)
	jsonutil.OK(w, map[string]any{
		"url":       "/api/download/" + token,
		"expiresIn": int(h.downloadTTL.Seconds()),
	})
}

// download streams an archive for a valid token. The token itself is the
// authorization; no cookie is needed, so links work from any client.
func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	claim, err := h.signer.Verify(chi.URLParam(r, "token"))
	if err != nil {
		jsonutil.Unauthorized(w, "invalid or expired download token")
		return
	}

	id, err := primitive.ObjectIDFromHex(claim.SessionID)
	if err != nil {
		jsonutil.Unauthorized(w, "invalid or expired download token")
		return
	}

	sess, err := h.sessions.GetByID(r.Context(), id)
	if err != nil {
		jsonutil.NotFound(w, "session not found")
		return
	}

	var path, name string
	switch claim.Kind {
	case downloads.KindOrganized:
		path = sess.OrganizedFilePath
		name = organizedName(sess.OriginalFileName)
	case downloads.KindOriginal:
		path = sess.OriginalFilePath
		name = sess.OriginalFileName
	}
	if path == "" {
		jsonutil.NotFound(w, "archive not found")
		return
	}

	rc, err := h.blobs.Get(r.Context(), path)
	if err != nil {
		h.logger.Error("failed to read archive",
			zap.String("session_id", sess.ID.Hex()),
			zap.String("path", path),
			zap.Error(err))
		jsonutil.NotFound(w, "archive not found")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+sanitizeFileName(name)+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("download interrupted",
			zap.String("session_id", sess.ID.Hex()),
			zap.Error(err))
	}
}

// script renders the plan as a shell script. Available from the moment a
// plan is proposed, so preview-only sessions can use it without ever
// producing an organized archive.
func (h *Handler) script(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	if sess.Plan == nil {
		jsonutil.Conflict(w, "session has no plan yet")
		return
	}

	body := script.Render(sess.OriginalFileName, sess.Plan.Items)

	_ = h.sessions.LogEvent(r.Context(), sess.ID, models.EventDownload)
	w.Header().Set("Content-Type", "text/x-shellscript")
	w.Header().Set("Content-Disposition", `attachment; filename="`+script.FileName+`"`)
	_, _ = w.Write(body)
}

type logEventInput struct {
	Type string `json:"type"`
}

// logEvent records a client-side usage event.
func (h *Handler) logEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	var input logEventInput
	if err := jsonutil.Decode(r, &input); err != nil {
		jsonutil.BadRequest(w, "invalid JSON body")
		return
	}
	if !models.ValidEventType(input.Type) {
		jsonutil.BadRequest(w, "unknown event type")
		return
	}

	if err := h.sessions.LogEvent(r.Context(), sess.ID, input.Type); err != nil {
		h.logger.Error("failed to log event", zap.Error(err))
		jsonutil.InternalError(w, "could not record event")
		return
	}
	jsonutil.Created(w, map[string]string{"type": input.Type})
}

// listEvents returns the session's events in insertion order.
func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadOwned(w, r)
	if !ok {
		return
	}

	events, err := h.sessions.ListEvents(r.Context(), sess.ID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			jsonutil.NotFound(w, "session not found")
			return
		}
		h.logger.Error("failed to list events", zap.Error(err))
		jsonutil.InternalError(w, "could not list events")
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	jsonutil.OK(w, map[string]any{"events": events})
}

// organizedName derives the download name for the rewritten archive.
// photos.zip becomes photos_organized.zip.
func organizedName(original string) string {
	base := strings.TrimSuffix(original, ".zip")
	return base + "_organized.zip"
}

// sanitizeFileName strips characters that would break the
// Content-Disposition header.
func sanitizeFileName(name string) string {
	replacer := strings.NewReplacer(`"`, "", "\\", "", "\r", "", "\n", "")
	return replacer.Replace(name)
}
