// internal/app/store/session/store.go

// Package session persists organize sessions and their events in MongoDB.
// Every mutation is a single atomic patch against one document; the
// transitions into analyzing and processing are status-guarded so a
// duplicate trigger cannot start a second background task.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/stratasort/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName holds organize sessions; EventsCollectionName their events.
const (
	CollectionName       = "sessions"
	EventsCollectionName = "events"
)

// ErrNotFound is returned when no session matches the given id.
var ErrNotFound = errors.New("session not found")

// ErrInvalidTransition is returned when a status-guarded update matches no
// document: either the session is gone or it is not in a state the
// transition allows.
var ErrInvalidTransition = errors.New("session is not in a state that allows this transition")

// Store manages session records in MongoDB.
type Store struct {
	c      *mongo.Collection
	events *mongo.Collection
}

// New creates a session Store.
func New(db *mongo.Database) *Store {
	return &Store{
		c:      db.Collection(CollectionName),
		events: db.Collection(EventsCollectionName),
	}
}

// EnsureIndexes creates indexes for user listings, the retention sweep,
// and event cascades.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	sessionIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_session_user_created"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_session_created"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_session_status"),
		},
	}
	if _, err := s.c.Indexes().CreateMany(ctx, sessionIndexes); err != nil {
		return err
	}
	_, err := s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetName("idx_event_session"),
		},
	})
	return err
}

// CreateInput holds the fields supplied at session creation.
type CreateInput struct {
	UserID        *primitive.ObjectID
	FileName      string
	TotalBytes    int64
	Settings      *models.OrganizationSettings
	IsPreviewOnly bool
}

// Create inserts a new session in pending_upload.
func (s *Store) Create(ctx context.Context, input CreateInput) (*models.Session, error) {
	settings := models.DefaultSettings()
	if input.Settings != nil {
		settings = *input.Settings
	}

	now := time.Now().UTC()
	session := models.Session{
		ID:               primitive.NewObjectID(),
		UserID:           input.UserID,
		Status:           models.StatusPendingUpload,
		OriginalFileName: input.FileName,
		TotalBytes:       input.TotalBytes,
		Settings:         settings,
		IsPreviewOnly:    input.IsPreviewOnly,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if _, err := s.c.InsertOne(ctx, session); err != nil {
		return nil, err
	}
	return &session, nil
}

// GetByID retrieves a session by id.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Session, error) {
	var session models.Session
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// MarkUploaded records upload completion: the original archive reference,
// the qualifying file count, and the measured byte total.
func (s *Store) MarkUploaded(ctx context.Context, id primitive.ObjectID, storagePath string, fileCount int, totalBytes int64) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.StatusPendingUpload},
		bson.M{"$set": bson.M{
			"status":             models.StatusUploaded,
			"original_file_path": storagePath,
			"file_count":         fileCount,
			"total_bytes":        totalBytes,
			"updated_at":         time.Now().UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// StartAnalysis transitions uploaded → analyzing. The compare-and-swap on
// status guarantees at most one analysis task is started per trigger.
func (s *Store) StartAnalysis(ctx context.Context, id primitive.ObjectID) error {
	return s.transition(ctx, id, []string{models.StatusUploaded}, models.StatusAnalyzing)
}

// Retry transitions failed → analyzing for an explicit user retry.
func (s *Store) Retry(ctx context.Context, id primitive.ObjectID) error {
	return s.transition(ctx, id, []string{models.StatusFailed}, models.StatusAnalyzing)
}

// StartProcessing transitions proposed → processing after user confirmation.
func (s *Store) StartProcessing(ctx context.Context, id primitive.ObjectID) error {
	return s.transition(ctx, id, []string{models.StatusProposed}, models.StatusProcessing)
}

func (s *Store) transition(ctx context.Context, id primitive.ObjectID, from []string, to string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": bson.M{
			"status":     to,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// SavePlan stores a validated plan, transitions to proposed, clears any
// previous failure message, and appends a plan_generated event. Writing
// into a deleted session is a no-op error, not a crash.
func (s *Store) SavePlan(ctx context.Context, id primitive.ObjectID, plan *models.OrganizationPlan, fileCount int) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set": bson.M{
				"status":     models.StatusProposed,
				"plan":       plan,
				"file_count": fileCount,
				"updated_at": time.Now().UTC(),
			},
			"$unset": bson.M{"error_message": ""},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return s.LogEvent(ctx, id, models.EventPlanGenerated)
}

// MarkComplete records the organized archive reference and transitions to
// complete, returning the updated session so the caller can credit the
// owner's processed-file counter.
func (s *Store) MarkComplete(ctx context.Context, id primitive.ObjectID, organizedPath string) (*models.Session, error) {
	var session models.Session
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"status":              models.StatusComplete,
			"organized_file_path": organizedPath,
			"updated_at":          time.Now().UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SetFailed records a terminal failure with a human-readable message.
// Safe to call for a session that no longer exists.
func (s *Store) SetFailed(ctx context.Context, id primitive.ObjectID, message string) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"status":        models.StatusFailed,
			"error_message": message,
			"updated_at":    time.Now().UTC(),
		}},
	)
	return err
}

// ListByUser retrieves a user's sessions, most recent first.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := s.c.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []models.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListCreatedBefore returns every session created before the cutoff,
// regardless of status. Used by the retention sweep.
func (s *Store) ListCreatedBefore(ctx context.Context, cutoff time.Time) ([]models.Session, error) {
	cursor, err := s.c.Find(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []models.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CountCreatedSince counts sessions a user created after the given time.
// Used for the per-day session quota.
func (s *Store) CountCreatedSince(ctx context.Context, userID primitive.ObjectID, since time.Time) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"user_id":    userID,
		"created_at": bson.M{"$gte": since},
	})
}

// Delete removes a session record and its events. Stored archives are the
// caller's responsibility; they live in external object storage.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := s.events.DeleteMany(ctx, bson.M{"session_id": id}); err != nil {
		return err
	}
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// LogEvent appends a usage event for the session.
func (s *Store) LogEvent(ctx context.Context, sessionID primitive.ObjectID, eventType string) error {
	_, err := s.events.InsertOne(ctx, models.Event{
		ID:        primitive.NewObjectID(),
		SessionID: sessionID,
		Type:      eventType,
		CreatedAt: time.Now().UTC(),
	})
	return err
}

// ListEvents returns a session's events in insertion order.
func (s *Store) ListEvents(ctx context.Context, sessionID primitive.ObjectID) ([]models.Event, error) {
	cursor, err := s.events.Find(ctx, bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []models.Event
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}
