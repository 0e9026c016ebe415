// internal/app/store/users/fetcher.go
package users

import (
	"context"

	"github.com/dalemusser/stratasort/internal/app/system/auth"
	"github.com/dalemusser/stratasort/internal/app/system/timeouts"
	"github.com/dalemusser/stratasort/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Fetcher implements auth.UserFetcher to load fresh user data on each
// request, so disabled accounts take effect immediately.
type Fetcher struct {
	users  *mongo.Collection
	logger *zap.Logger
}

// NewFetcher creates a UserFetcher that queries the given database.
func NewFetcher(db *mongo.Database, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		users:  db.Collection(CollectionName),
		logger: logger,
	}
}

// FetchUser retrieves a user by ID and returns nil if the user is not
// found, disabled, or if any error occurs.
func (f *Fetcher) FetchUser(ctx context.Context, userID string) *auth.SessionUser {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Short)
	defer cancel()

	var u models.User
	proj := options.FindOne().SetProjection(bson.M{
		"_id":       1,
		"full_name": 1,
		"email":     1,
		"status":    1,
	})
	if err := f.users.FindOne(ctx, bson.M{"_id": oid}, proj).Decode(&u); err != nil {
		return nil
	}

	if u.Status != "active" {
		return nil
	}

	return &auth.SessionUser{
		ID:    u.ID.Hex(),
		Email: u.Email,
		Name:  u.FullName,
	}
}
