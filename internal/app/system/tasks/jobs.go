// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/stratasort/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// retentionStore is the slice of the session store the sweep needs.
type retentionStore interface {
	ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Session, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// blobDeleter removes a stored archive by its storage path.
type blobDeleter interface {
	Delete(ctx context.Context, path string) error
}

// SessionRetentionJob creates a job that removes sessions older than the
// retention window, along with their stored archives. Blob deletion is
// best effort: a missing or unreachable archive is logged and the session
// record is still removed, so the sweep converges instead of wedging on
// one bad object.
func SessionRetentionJob(store retentionStore, blobs blobDeleter, logger *zap.Logger, retention, interval time.Duration) Job {
	return Job{
		Name:     "session-retention",
		Interval: interval,
		Run: func(ctx context.Context) error {
			cutoff := time.Now().UTC().Add(-retention)
			expired, err := store.ListCreatedBefore(ctx, cutoff)
			if err != nil {
				return err
			}

			var deleted int
			for _, sess := range expired {
				for _, path := range []string{sess.OriginalFilePath, sess.OrganizedFilePath} {
					if path == "" {
						continue
					}
					if err := blobs.Delete(ctx, path); err != nil {
						logger.Warn("retention sweep could not delete archive",
							zap.String("session_id", sess.ID.Hex()),
							zap.String("path", path),
							zap.Error(err))
					}
				}
				if err := store.Delete(ctx, sess.ID); err != nil {
					logger.Warn("retention sweep could not delete session",
						zap.String("session_id", sess.ID.Hex()),
						zap.Error(err))
					continue
				}
				deleted++
			}

			if deleted > 0 {
				logger.Info("retention sweep removed expired sessions",
					zap.Int("deleted", deleted),
					zap.Time("cutoff", cutoff))
			}
			return nil
		},
	}
}
