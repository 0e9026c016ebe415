package accountapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	userstore "github.com/dalemusser/stratasort/internal/app/store/users"
	"github.com/dalemusser/stratasort/internal/app/system/auth"
	"github.com/dalemusser/stratasort/internal/app/system/keycrypt"
	"github.com/dalemusser/stratasort/internal/domain/models"
	"github.com/dalemusser/stratasort/internal/testutil"
	"go.uber.org/zap"
)

const testKeySecret = "account-api-test-key-secret"

type testEnv struct {
	users  *userstore.Store
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)

	sessionMgr, err := auth.NewSessionManager(
		"account-api-test-session-key-0123456789", "", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	users := userstore.New(db)
	h := NewHandler(users, sessionMgr, testKeySecret, zap.NewNop())
	return &testEnv{users: users, router: Routes(h, sessionMgr)}
}

// registeredUser creates a user record and a matching TestUser for requests.
func (e *testEnv) registeredUser(t *testing.T) (testutil.TestUser, *models.User) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	user, err := e.users.UpsertByGoogle(ctx, "google-777", "dana@example.com", "Dana Smith")
	if err != nil {
		t.Fatal(err)
	}
	return testutil.TestUser{ID: user.ID.Hex(), Name: user.FullName, Email: user.Email}, user
}

func (e *testEnv) do(r *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	e.router.ServeHTTP(rec, r)
	return rec
}

func jsonRequest(t *testing.T, method, target string, body any, user testutil.TestUser) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(method, target, bytes.NewReader(data))
	r.Header.Set("Content-Type", "application/json")
	return testutil.WithUser(r, user)
}

func TestRequiresSignIn(t *testing.T) {
	env := newTestEnv(t)

	for _, req := range []*http.Request{
		testutil.NewRequest(http.MethodGet, "/"),
		testutil.NewRequest(http.MethodPut, "/api-key"),
		testutil.NewRequest(http.MethodDelete, "/api-key"),
		testutil.NewRequest(http.MethodPost, "/signout"),
	} {
		rec := env.do(req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without user: status = %d, want 401", req.Method, req.URL.Path, rec.Code)
		}
	}
}

func TestGetAccount(t *testing.T) {
	env := newTestEnv(t)
	tu, _ := env.registeredUser(t)

	rec := env.do(testutil.NewAuthenticatedRequest(http.MethodGet, "/", tu))
	rec.AssertStatus(t, http.StatusOK)

	var out struct {
		Email          string `json:"email"`
		FullName       string `json:"fullName"`
		HasAPIKey      bool   `json:"hasApiKey"`
		FileLimit      int    `json:"fileLimit"`
		FilesRemaining int64  `json:"filesRemaining"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Email != "dana@example.com" || out.FullName != "Dana Smith" {
		t.Errorf("profile = %+v", out)
	}
	if out.HasAPIKey {
		t.Error("hasApiKey = true before any key was saved")
	}
	if out.FileLimit != models.DefaultFileLimit || out.FilesRemaining != models.DefaultFileLimit {
		t.Errorf("limits = %+v", out)
	}
}

func TestGetAccount_MissingRecord(t *testing.T) {
	env := newTestEnv(t)
	// Valid session user with no backing account row.
	rec := env.do(testutil.NewAuthenticatedRequest(http.MethodGet, "/", testutil.SignedInUser()))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestSaveAPIKey(t *testing.T) {
	env := newTestEnv(t)
	tu, user := env.registeredUser(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	const rawKey = "sk-or-v1-0123456789abcdef"
	rec := env.do(jsonRequest(t, http.MethodPut, "/api-key", map[string]string{
		"apiKey": rawKey,
		"model":  "anthropic/claude-sonnet",
	}, tu))
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, keycrypt.Mask(rawKey))

	got, err := env.users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Model != "anthropic/claude-sonnet" {
		t.Errorf("Model = %q", got.Model)
	}
	if got.APIKeyMasked != keycrypt.Mask(rawKey) {
		t.Errorf("APIKeyMasked = %q", got.APIKeyMasked)
	}

	// The stored ciphertext round-trips with the server secret and never
	// contains the raw key.
	if bytes.Contains(got.APIKeyEncrypted, []byte(rawKey)) {
		t.Error("raw key stored in the clear")
	}
	decrypted, err := keycrypt.Decrypt(testKeySecret, got.APIKeyEncrypted)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if decrypted != rawKey {
		t.Errorf("Decrypt() = %q, want %q", decrypted, rawKey)
	}
}

func TestSaveAPIKey_DefaultsModel(t *testing.T) {
	env := newTestEnv(t)
	tu, user := env.registeredUser(t)

	rec := env.do(jsonRequest(t, http.MethodPut, "/api-key", map[string]string{
		"apiKey": "sk-or-v1-0123456789abcdef",
	}, tu))
	rec.AssertStatus(t, http.StatusOK)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	got, err := env.users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Model != models.DefaultModel {
		t.Errorf("Model = %q, want default %q", got.Model, models.DefaultModel)
	}
}

func TestSaveAPIKey_Validation(t *testing.T) {
	env := newTestEnv(t)
	tu, _ := env.registeredUser(t)

	tests := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"wrong prefix", "sk-proj-0123456789abcdef"},
		{"too short", "sk-or-v1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(jsonRequest(t, http.MethodPut, "/api-key", map[string]string{"apiKey": tt.key}, tu))
			rec.AssertStatus(t, http.StatusBadRequest)
			rec.AssertContains(t, "sk-or-")
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPut, "/api-key", bytes.NewReader([]byte("{not json")))
		r.Header.Set("Content-Type", "application/json")
		rec := env.do(testutil.WithUser(r, tu))
		rec.AssertStatus(t, http.StatusBadRequest)
	})
}

func TestRemoveAPIKey(t *testing.T) {
	env := newTestEnv(t)
	tu, user := env.registeredUser(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rec := env.do(jsonRequest(t, http.MethodPut, "/api-key", map[string]string{
		"apiKey": "sk-or-v1-0123456789abcdef",
	}, tu))
	rec.AssertStatus(t, http.StatusOK)

	rec = env.do(testutil.NewAuthenticatedRequest(http.MethodDelete, "/api-key", tu))
	rec.AssertStatus(t, http.StatusNoContent)

	got, err := env.users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.HasAPIKey() || got.APIKeyMasked != "" || got.Model != "" {
		t.Errorf("credential fields survived removal: %+v", got)
	}
}

func TestRemoveAPIKey_MissingRecord(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(testutil.NewAuthenticatedRequest(http.MethodDelete, "/api-key", testutil.SignedInUser()))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestSignOut(t *testing.T) {
	env := newTestEnv(t)
	tu, _ := env.registeredUser(t)

	rec := env.do(testutil.NewAuthenticatedRequest(http.MethodPost, "/signout", tu))
	rec.AssertStatus(t, http.StatusNoContent)
}
