package session

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/stratasort/internal/domain/models"
	"github.com/dalemusser/stratasort/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(testutil.SetupTestDB(t))
}

func createSession(t *testing.T, store *Store, input CreateInput) *models.Session {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if input.FileName == "" {
		input.FileName = "photos.zip"
	}
	sess, err := store.Create(ctx, input)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return sess
}

func TestCreate_Defaults(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sess := createSession(t, store, CreateInput{})

	if sess.Status != models.StatusPendingUpload {
		t.Errorf("new session status = %q, want pending_upload", sess.Status)
	}
	if sess.Settings.MaxDepth != 3 || sess.Settings.NamingStyle != models.NamingDescriptive {
		t.Errorf("default settings not applied: %+v", sess.Settings)
	}

	got, err := store.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.OriginalFileName != "photos.zip" {
		t.Errorf("OriginalFileName = %q", got.OriginalFileName)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	_, err := store.GetByID(ctx, primitive.NewObjectID())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestMarkUploaded(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	sess := createSession(t, store, CreateInput{})

	if err := store.MarkUploaded(ctx, sess.ID, "uploads/abc.zip", 12, 2048); err != nil {
		t.Fatalf("MarkUploaded() error = %v", err)
	}

	got, err := store.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusUploaded {
		t.Errorf("status = %q, want uploaded", got.Status)
	}
	if got.OriginalFilePath != "uploads/abc.zip" || got.FileCount != 12 || got.TotalBytes != 2048 {
		t.Errorf("upload fields not recorded: %+v", got)
	}

	// A second upload against the same session must be rejected.
	err = store.MarkUploaded(ctx, sess.ID, "uploads/other.zip", 1, 1)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("duplicate MarkUploaded() error = %v, want ErrInvalidTransition", err)
	}
}

func TestStartAnalysis_GuardsStatus(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	sess := createSession(t, store, CreateInput{})

	// Not uploaded yet.
	if err := store.StartAnalysis(ctx, sess.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("StartAnalysis() before upload error = %v, want ErrInvalidTransition", err)
	}

	if err := store.MarkUploaded(ctx, sess.ID, "uploads/abc.zip", 3, 100); err != nil {
		t.Fatal(err)
	}
	if err := store.StartAnalysis(ctx, sess.ID); err != nil {
		t.Fatalf("StartAnalysis() error = %v", err)
	}

	// The guard closes the duplicate-trigger window: a concurrent second
	// trigger sees analyzing, not uploaded.
	if err := store.StartAnalysis(ctx, sess.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("duplicate StartAnalysis() error = %v, want ErrInvalidTransition", err)
	}
}

func TestSavePlan(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	sess := createSession(t, store, CreateInput{})

	// Simulate a prior failure so we can check the message is cleared.
	if err := store.SetFailed(ctx, sess.ID, "model timeout"); err != nil {
		t.Fatal(err)
	}

	plan := &models.OrganizationPlan{
		Summary: "grouped by type",
		Items:   []models.PlanItem{{OriginalPath: "a.txt", NewPath: "Docs/a.txt"}},
	}
	if err := store.SavePlan(ctx, sess.ID, plan, 1); err != nil {
		t.Fatalf("SavePlan() error = %v", err)
	}

	got, err := store.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusProposed {
		t.Errorf("status = %q, want proposed", got.Status)
	}
	if got.Plan == nil || got.Plan.Summary != "grouped by type" {
		t.Errorf("plan not stored: %+v", got.Plan)
	}
	if got.ErrorMessage != "" {
		t.Errorf("error message not cleared: %q", got.ErrorMessage)
	}

	events, err := store.ListEvents(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Type != models.EventPlanGenerated {
		t.Errorf("events = %+v, want one plan_generated", events)
	}
}

func TestSavePlan_DeletedSession(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	err := store.SavePlan(ctx, primitive.NewObjectID(), &models.OrganizationPlan{}, 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("SavePlan() for missing session error = %v, want ErrNotFound", err)
	}
}

func TestConfirmAndComplete(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	userID := primitive.NewObjectID()
	sess := createSession(t, store, CreateInput{UserID: &userID})

	if err := store.MarkUploaded(ctx, sess.ID, "uploads/abc.zip", 2, 64); err != nil {
		t.Fatal(err)
	}
	if err := store.StartAnalysis(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}
	if err := store.SavePlan(ctx, sess.ID, &models.OrganizationPlan{}, 2); err != nil {
		t.Fatal(err)
	}

	if err := store.StartProcessing(ctx, sess.ID); err != nil {
		t.Fatalf("StartProcessing() error = %v", err)
	}
	// Confirming twice must not start a second processing run.
	if err := store.StartProcessing(ctx, sess.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("duplicate StartProcessing() error = %v, want ErrInvalidTransition", err)
	}

	done, err := store.MarkComplete(ctx, sess.ID, "organized/xyz.zip")
	if err != nil {
		t.Fatalf("MarkComplete() error = %v", err)
	}
	if done.Status != models.StatusComplete {
		t.Errorf("status = %q, want complete", done.Status)
	}
	if done.OrganizedFilePath != "organized/xyz.zip" {
		t.Errorf("OrganizedFilePath = %q", done.OrganizedFilePath)
	}
	if done.UserID == nil || *done.UserID != userID {
		t.Errorf("UserID = %v, want %v", done.UserID, userID)
	}
}

func TestRetry(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	sess := createSession(t, store, CreateInput{})

	// Retry is only legal from failed.
	if err := store.Retry(ctx, sess.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Retry() from pending_upload error = %v, want ErrInvalidTransition", err)
	}

	if err := store.SetFailed(ctx, sess.ID, "model returned an unparseable plan"); err != nil {
		t.Fatal(err)
	}
	if err := store.Retry(ctx, sess.ID); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}

	got, err := store.GetByID(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusAnalyzing {
		t.Errorf("status after retry = %q, want analyzing", got.Status)
	}
}

func TestListByUser(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	userID := primitive.NewObjectID()
	otherID := primitive.NewObjectID()

	for i := 0; i < 3; i++ {
		createSession(t, store, CreateInput{UserID: &userID})
	}
	createSession(t, store, CreateInput{UserID: &otherID})
	createSession(t, store, CreateInput{}) // anonymous

	sessions, err := store.ListByUser(ctx, userID, 2)
	if err != nil {
		t.Fatalf("ListByUser() error = %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("ListByUser() returned %d sessions, want limit 2", len(sessions))
	}
	for _, s := range sessions {
		if s.UserID == nil || *s.UserID != userID {
			t.Errorf("session %s belongs to %v, want %v", s.ID.Hex(), s.UserID, userID)
		}
	}
}

func TestCountCreatedSince(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	userID := primitive.NewObjectID()

	createSession(t, store, CreateInput{UserID: &userID})
	createSession(t, store, CreateInput{UserID: &userID})

	count, err := store.CountCreatedSince(ctx, userID, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountCreatedSince() error = %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	count, err = store.CountCreatedSince(ctx, userID, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("future cutoff count = %d, want 0", count)
	}
}

func TestListCreatedBefore(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	sess := createSession(t, store, CreateInput{})

	old, err := store.ListCreatedBefore(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ListCreatedBefore() error = %v", err)
	}
	if len(old) != 0 {
		t.Errorf("fresh session listed as expired: %+v", old)
	}

	all, err := store.ListCreatedBefore(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].ID != sess.ID {
		t.Errorf("ListCreatedBefore() = %+v, want the one session", all)
	}
}

func TestDelete_CascadesEvents(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	sess := createSession(t, store, CreateInput{})

	if err := store.LogEvent(ctx, sess.ID, models.EventView); err != nil {
		t.Fatal(err)
	}
	if err := store.LogEvent(ctx, sess.ID, models.EventDownload); err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := store.GetByID(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() after delete error = %v, want ErrNotFound", err)
	}
	events, err := store.ListEvents(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("events survived session delete: %+v", events)
	}

	if err := store.Delete(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestListEvents_Order(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	sess := createSession(t, store, CreateInput{})

	// Spaced out so created_at ordering is unambiguous.
	for _, typ := range []string{models.EventStart, models.EventPlanGenerated, models.EventDownload} {
		if err := store.LogEvent(ctx, sess.ID, typ); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	events, err := store.ListEvents(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Type != models.EventStart || events[2].Type != models.EventDownload {
		t.Errorf("events out of insertion order: %+v", events)
	}
}
