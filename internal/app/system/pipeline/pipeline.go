// internal/app/system/pipeline/pipeline.go

// Package pipeline runs the background stages of an organize session:
// analysis (manifest + plan generation) and processing (archive rewrite).
// Handlers perform the status compare-and-swap, then hand the session id
// to a Worker; the work itself runs detached from the request context.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dalemusser/stratasort/internal/app/store/session"
	"github.com/dalemusser/stratasort/internal/app/store/users"
	"github.com/dalemusser/stratasort/internal/app/system/keycrypt"
	"github.com/dalemusser/stratasort/internal/app/system/metrics"
	"github.com/dalemusser/stratasort/internal/domain/models"
	"github.com/dalemusser/stratasort/internal/organize/manifest"
	"github.com/dalemusser/stratasort/internal/organize/planner"
	"github.com/dalemusser/stratasort/internal/organize/rewrite"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// stageTimeout bounds one background stage, including the model call.
const stageTimeout = 5 * time.Minute

// BlobStore is the slice of object storage the pipeline needs.
type BlobStore interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Put(ctx context.Context, path string, r io.Reader, opts *storage.PutOptions) error
}

// GenerateFunc produces a plan from a manifest. It exists so tests can
// substitute the model call.
type GenerateFunc func(ctx context.Context, entries []manifest.FileEntry, settings models.OrganizationSettings, cfg planner.Config) (*models.OrganizationPlan, error)

// Config wires a Worker.
type Config struct {
	Sessions *session.Store
	Users    *users.Store
	Blobs    BlobStore
	Logger   *zap.Logger

	// Planner holds the server-wide completion defaults. A signed-in
	// user's own key and model, when present, override it per session.
	Planner planner.Config

	// KeySecret decrypts stored user API keys.
	KeySecret string

	// Generate defaults to planner.GeneratePlan.
	Generate GenerateFunc
}

// Worker executes analysis and processing stages. An in-flight guard per
// session and stage backstops the store's status CAS, so even a racing
// duplicate trigger cannot run the same stage twice concurrently.
type Worker struct {
	cfg      Config
	inflight sync.Map
}

// NewWorker creates a Worker.
func NewWorker(cfg Config) *Worker {
	if cfg.Generate == nil {
		cfg.Generate = planner.GeneratePlan
	}
	return &Worker{cfg: cfg}
}

// Analyze runs the analysis stage in the background. The caller must
// already have transitioned the session into analyzing.
func (w *Worker) Analyze(id primitive.ObjectID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), stageTimeout)
		defer cancel()
		if err := w.RunAnalysis(ctx, id); err != nil {
			w.cfg.Logger.Error("analysis stage failed",
				zap.String("session_id", id.Hex()),
				zap.Error(err))
		}
	}()
}

// Process runs the processing stage in the background. The caller must
// already have transitioned the session into processing.
func (w *Worker) Process(id primitive.ObjectID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), stageTimeout)
		defer cancel()
		if err := w.RunProcessing(ctx, id); err != nil {
			w.cfg.Logger.Error("processing stage failed",
				zap.String("session_id", id.Hex()),
				zap.Error(err))
		}
	}()
}

// RunAnalysis reads the uploaded archive, builds its manifest, asks the
// model for a plan, repairs the plan to cover the manifest exactly, and
// saves it. Failures are recorded on the session.
func (w *Worker) RunAnalysis(ctx context.Context, id primitive.ObjectID) error {
	release, ok := w.acquire("analyze", id)
	if !ok {
		return nil
	}
	defer release()

	sess, err := w.cfg.Sessions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sess.Status != models.StatusAnalyzing {
		return fmt.Errorf("session %s is %s, not analyzing", id.Hex(), sess.Status)
	}

	data, err := w.readBlob(ctx, sess.OriginalFilePath)
	if err != nil {
		return w.fail(ctx, "analyze", id, "could not read the uploaded archive", err)
	}

	entries, err := manifest.Build(data)
	if err != nil {
		return w.fail(ctx, "analyze", id, "could not read the uploaded archive: "+err.Error(), err)
	}

	cfg, err := w.plannerConfig(ctx, sess)
	if err != nil {
		return w.fail(ctx, "analyze", id, err.Error(), err)
	}

	plan, err := w.cfg.Generate(ctx, entries, sess.Settings, cfg)
	if err != nil {
		return w.fail(ctx, "analyze", id, "analysis failed: "+err.Error(), err)
	}
	planner.Repair(plan, entries)

	if err := w.cfg.Sessions.SavePlan(ctx, id, plan, len(entries)); err != nil {
		if err == session.ErrNotFound {
			// Session was deleted mid-analysis. Nothing to record.
			return nil
		}
		return err
	}

	metrics.StagesTotal.WithLabelValues("analyze", "ok").Inc()
	w.cfg.Logger.Info("plan generated",
		zap.String("session_id", id.Hex()),
		zap.Int("file_count", len(entries)),
		zap.Int("duplicates", plan.DuplicatesFound))
	return nil
}

// RunProcessing rewrites the archive per the saved plan, stores the
// result, and completes the session, crediting the owner's counter.
func (w *Worker) RunProcessing(ctx context.Context, id primitive.ObjectID) error {
	release, ok := w.acquire("process", id)
	if !ok {
		return nil
	}
	defer release()

	sess, err := w.cfg.Sessions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sess.Status != models.StatusProcessing {
		return fmt.Errorf("session %s is %s, not processing", id.Hex(), sess.Status)
	}
	if sess.Plan == nil {
		return w.fail(ctx, "process", id, "no plan to apply", nil)
	}

	data, err := w.readBlob(ctx, sess.OriginalFilePath)
	if err != nil {
		return w.fail(ctx, "process", id, "could not read the uploaded archive", err)
	}

	organized, err := rewrite.Build(sess.Plan, data)
	if err != nil {
		return w.fail(ctx, "process", id, "could not rewrite the archive", err)
	}

	organizedPath := fmt.Sprintf("organized/%s.zip", uuid.New().String())
	opts := &storage.PutOptions{ContentType: "application/zip"}
	if err := w.cfg.Blobs.Put(ctx, organizedPath, bytes.NewReader(organized), opts); err != nil {
		return w.fail(ctx, "process", id, "could not store the organized archive", err)
	}

	updated, err := w.cfg.Sessions.MarkComplete(ctx, id, organizedPath)
	if err != nil {
		return err
	}

	if updated.UserID != nil {
		if err := w.cfg.Users.IncrementFilesProcessed(ctx, *updated.UserID, updated.FileCount); err != nil {
			w.cfg.Logger.Warn("could not credit processed files",
				zap.String("user_id", updated.UserID.Hex()),
				zap.Error(err))
		}
	}

	metrics.StagesTotal.WithLabelValues("process", "ok").Inc()
	metrics.FilesOrganized.Add(float64(updated.FileCount))
	w.cfg.Logger.Info("session complete",
		zap.String("session_id", id.Hex()),
		zap.Int("file_count", updated.FileCount),
		zap.Int64("organized_bytes", int64(len(organized))))
	return nil
}

// plannerConfig resolves which credentials drive the model call: the
// session owner's stored key and model when present, otherwise the
// server defaults. Anonymous sessions always use the server defaults.
func (w *Worker) plannerConfig(ctx context.Context, sess *models.Session) (planner.Config, error) {
	cfg := w.cfg.Planner
	if sess.UserID == nil {
		return cfg, nil
	}
	user, err := w.cfg.Users.GetByID(ctx, *sess.UserID)
	if err != nil {
		if err == users.ErrNotFound {
			return cfg, nil
		}
		return cfg, err
	}
	if !user.HasAPIKey() {
		return cfg, nil
	}
	key, err := keycrypt.Decrypt(w.cfg.KeySecret, user.APIKeyEncrypted)
	if err != nil {
		return cfg, fmt.Errorf("stored API key could not be decrypted: %w", err)
	}
	cfg.APIKey = key
	if user.Model != "" {
		cfg.Model = user.Model
	}
	return cfg, nil
}

func (w *Worker) acquire(stage string, id primitive.ObjectID) (func(), bool) {
	key := stage + ":" + id.Hex()
	if _, busy := w.inflight.LoadOrStore(key, struct{}{}); busy {
		return nil, false
	}
	return func() { w.inflight.Delete(key) }, true
}

func (w *Worker) readBlob(ctx context.Context, path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("session has no stored archive")
	}
	rc, err := w.cfg.Blobs.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// fail marks the session failed with a user-facing message. The original
// error is returned for logging; a failed SetFailed takes precedence.
func (w *Worker) fail(ctx context.Context, stage string, id primitive.ObjectID, message string, cause error) error {
	metrics.StagesTotal.WithLabelValues(stage, "error").Inc()
	if err := w.cfg.Sessions.SetFailed(ctx, id, message); err != nil {
		return err
	}
	return cause
}
