// internal/domain/models/session.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session statuses. A session moves pending_upload → uploaded → analyzing →
// proposed → processing → complete. failed is reachable from uploaded,
// analyzing, and processing; retry re-enters analyzing.
const (
	StatusPendingUpload = "pending_upload"
	StatusUploaded      = "uploaded"
	StatusAnalyzing     = "analyzing"
	StatusProposed      = "proposed"
	StatusProcessing    = "processing"
	StatusComplete      = "complete"
	StatusFailed        = "failed"
)

// Naming styles a user can request for the proposed layout.
const (
	NamingDescriptive = "descriptive"
	NamingTimestamped = "timestamped"
	NamingKebabCase   = "kebab-case"
)

// OrganizationSettings are chosen at session creation and immutable after.
// MaxDepth and GroupBy are advisory: they shape the prompt, they are not
// enforced against the returned plan.
type OrganizationSettings struct {
	MaxDepth    int      `bson:"max_depth"    json:"maxDepth"`
	NamingStyle string   `bson:"naming_style" json:"namingStyle"`
	GroupBy     []string `bson:"group_by"     json:"groupBy"`
}

// DefaultSettings returns the settings used when the client supplies none.
func DefaultSettings() OrganizationSettings {
	return OrganizationSettings{
		MaxDepth:    3,
		NamingStyle: NamingDescriptive,
		GroupBy:     []string{"type", "date"},
	}
}

// PlanItem maps one archive entry to its proposed location.
type PlanItem struct {
	OriginalPath string `bson:"original_path" json:"originalPath"`
	NewPath      string `bson:"new_path"      json:"newPath"`
}

// OrganizationPlan is the model-proposed restructuring of an archive.
// After the planner's repair pass, Items contains exactly one entry per
// manifest path, and FoldersBefore/FoldersAfter are recomputed from the
// actual paths rather than trusted from the model.
type OrganizationPlan struct {
	Summary         string     `bson:"summary"          json:"summary"`
	Rules           []string   `bson:"rules"            json:"rules"`
	Items           []PlanItem `bson:"items"            json:"items"`
	FoldersBefore   int        `bson:"folders_before"   json:"foldersBefore"`
	FoldersAfter    int        `bson:"folders_after"    json:"foldersAfter"`
	DuplicatesFound int        `bson:"duplicates_found" json:"duplicatesFound"`
}

// Session is the aggregate root for one upload-to-download workflow.
// It owns its plan and events and references (but does not own) two blobs
// in external object storage.
type Session struct {
	ID     primitive.ObjectID  `bson:"_id,omitempty"     json:"id"`
	UserID *primitive.ObjectID `bson:"user_id,omitempty" json:"userId,omitempty"`
	Status string              `bson:"status"            json:"status"`

	OriginalFileName  string `bson:"original_file_name"            json:"originalFileName"`
	OriginalFilePath  string `bson:"original_file_path,omitempty"  json:"-"`
	OrganizedFilePath string `bson:"organized_file_path,omitempty" json:"-"`

	FileCount  int   `bson:"file_count"  json:"fileCount"`
	TotalBytes int64 `bson:"total_bytes" json:"totalBytes"`

	Settings OrganizationSettings `bson:"settings"       json:"settings"`
	Plan     *OrganizationPlan    `bson:"plan,omitempty" json:"plan,omitempty"`

	ErrorMessage  string `bson:"error_message,omitempty" json:"errorMessage,omitempty"`
	IsPreviewOnly bool   `bson:"is_preview_only"         json:"isPreviewOnly"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Event types recorded against a session for usage analytics.
const (
	EventView          = "view"
	EventStart         = "start"
	EventPlanGenerated = "plan_generated"
	EventDownload      = "download"
)

// Event is an append-only usage record owned by a session. Events are
// deleted when their session is deleted.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID primitive.ObjectID `bson:"session_id"    json:"sessionId"`
	Type      string             `bson:"type"          json:"type"`
	CreatedAt time.Time          `bson:"created_at"    json:"createdAt"`
}

// ValidEventType reports whether t is one of the recordable event types.
func ValidEventType(t string) bool {
	switch t {
	case EventView, EventStart, EventPlanGenerated, EventDownload:
		return true
	}
	return false
}

// ValidNamingStyle reports whether s is a supported naming style.
func ValidNamingStyle(s string) bool {
	switch s {
	case NamingDescriptive, NamingTimestamped, NamingKebabCase:
		return true
	}
	return false
}
