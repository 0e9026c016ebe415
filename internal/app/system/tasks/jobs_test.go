package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/stratasort/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeRetentionStore struct {
	sessions []models.Session
	deleted  []primitive.ObjectID
}

func (f *fakeRetentionStore) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Session, error) {
	var out []models.Session
	for _, s := range f.sessions {
		if s.CreatedAt.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRetentionStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeBlobDeleter struct {
	deleted []string
	failOn  string
}

func (f *fakeBlobDeleter) Delete(ctx context.Context, path string) error {
	if path == f.failOn {
		return errors.New("object not found")
	}
	f.deleted = append(f.deleted, path)
	return nil
}

func TestSessionRetentionJob(t *testing.T) {
	now := time.Now().UTC()
	old := models.Session{
		ID:                primitive.NewObjectID(),
		Status:            models.StatusComplete,
		OriginalFilePath:  "uploads/old.zip",
		OrganizedFilePath: "organized/old.zip",
		CreatedAt:         now.Add(-4 * 24 * time.Hour),
	}
	fresh := models.Session{
		ID:               primitive.NewObjectID(),
		Status:           models.StatusUploaded,
		OriginalFilePath: "uploads/fresh.zip",
		CreatedAt:        now.Add(-time.Hour),
	}

	store := &fakeRetentionStore{sessions: []models.Session{old, fresh}}
	blobs := &fakeBlobDeleter{}

	job := SessionRetentionJob(store, blobs, zap.NewNop(), 3*24*time.Hour, time.Hour)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.deleted) != 1 || store.deleted[0] != old.ID {
		t.Errorf("deleted sessions = %v, want only %v", store.deleted, old.ID)
	}
	if len(blobs.deleted) != 2 {
		t.Errorf("deleted blobs = %v, want both archives of the old session", blobs.deleted)
	}
}

func TestSessionRetentionJob_BlobFailureStillDeletesSession(t *testing.T) {
	old := models.Session{
		ID:               primitive.NewObjectID(),
		Status:           models.StatusFailed,
		OriginalFilePath: "uploads/gone.zip",
		CreatedAt:        time.Now().UTC().Add(-10 * 24 * time.Hour),
	}

	store := &fakeRetentionStore{sessions: []models.Session{old}}
	blobs := &fakeBlobDeleter{failOn: "uploads/gone.zip"}

	job := SessionRetentionJob(store, blobs, zap.NewNop(), 3*24*time.Hour, time.Hour)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(store.deleted) != 1 {
		t.Errorf("session should be deleted even when its archive cannot be removed")
	}
}
