// internal/app/store/users/userstore.go

// Package users manages user accounts and their BYOK completion
// credentials in MongoDB.
package users

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

// CollectionName is the MongoDB collection for user accounts.
const CollectionName = "users"

// ErrNotFound is returned when no user matches the query.
var ErrNotFound = errors.New("user not found")

// Store manages user records in MongoDB.
type Store struct {
	c *mongo.Collection
}

// New creates a user Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection(CollectionName)}
}

// EnsureIndexes creates the lookup indexes for OAuth subject and email.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "google_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("idx_user_google_id"),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_user_email"),
		},
	})
	return err
}

// GetByID retrieves a user by id.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.c.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpsertByGoogle finds the user for an OAuth sign-in, creating the account
// on first login.
func (s *Store) UpsertByGoogle(ctx context.Context, googleID, email, fullName string) (*models.User, error) {
	now := time.Now().UTC()
	var user models.User
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"google_id": googleID},
		bson.M{
			"$set": bson.M{
				"email":      email,
				"full_name":  fullName,
				"updated_at": now,
			},
			"$setOnInsert": bson.M{
				"google_id":             googleID,
				"status":                "active",
				"file_limit":            models.DefaultFileLimit,
				"total_files_processed": int64(0),
				"created_at":            now,
			},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveAPIKey stores the encrypted BYOK credential, its masked display
// form, and the chosen completion model.
func (s *Store) SaveAPIKey(ctx context.Context, userID primitive.ObjectID, encrypted []byte, masked, model string) error {
	res, err := s.c.UpdateByID(ctx, userID, bson.M{"$set": bson.M{
		"api_key_encrypted": encrypted,
		"api_key_masked":    masked,
		"model":             model,
		"updated_at":        time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RemoveAPIKey deletes the stored credential and model choice.
func (s *Store) RemoveAPIKey(ctx context.Context, userID primitive.ObjectID) error {
	res, err := s.c.UpdateByID(ctx, userID, bson.M{
		"$unset": bson.M{
			"api_key_encrypted": "",
			"api_key_masked":    "",
			"model":             "",
		},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementFilesProcessed atomically adds n to the user's lifetime
// processed-file counter.
func (s *Store) IncrementFilesProcessed(ctx context.Context, userID primitive.ObjectID, n int) error {
	_, err := s.c.UpdateByID(ctx, userID, bson.M{
		"$inc": bson.M{"total_files_processed": int64(n)},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	return err
}
