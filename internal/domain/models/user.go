// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultModel is used when a user has not picked a completion model.
const DefaultModel = "openai/gpt-4o-mini"

// DefaultFileLimit is the lifetime processed-file allowance for new users.
const DefaultFileLimit = 50

// User is an authenticated account. The model-access credential is BYOK
// (bring your own key): stored encrypted at rest, only ever shown masked.
type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	GoogleID string             `bson:"google_id,omitempty"`
	Email    string             `bson:"email"`
	FullName string             `bson:"full_name,omitempty"`
	Status   string             `bson:"status"`

	// BYOK completion-endpoint credential.
	APIKeyEncrypted []byte `bson:"api_key_encrypted,omitempty"`
	APIKeyMasked    string `bson:"api_key_masked,omitempty"`
	Model           string `bson:"model,omitempty"`

	// Lifetime usage accounting.
	FileLimit           int   `bson:"file_limit"`
	TotalFilesProcessed int64 `bson:"total_files_processed"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// HasAPIKey reports whether the user has a stored credential.
func (u *User) HasAPIKey() bool {
	return len(u.APIKeyEncrypted) > 0
}

// FilesRemaining returns the unused portion of the lifetime file limit.
func (u *User) FilesRemaining() int64 {
	remaining := int64(u.FileLimit) - u.TotalFilesProcessed
	if remaining < 0 {
		return 0
	}
	return remaining
}
