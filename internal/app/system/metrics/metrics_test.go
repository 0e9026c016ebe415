package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/sessions", "/api/sessions"},
		{"/api/sessions/64f1a2b3c4d5e6f7a8b9c0d1", "/api/sessions/{id}"},
		{"/api/sessions/64f1a2b3c4d5e6f7a8b9c0d1/analyze", "/api/sessions/{id}/analyze"},
		{"/api/download/MTY5MzQ1Njc4OXxhYmNkZWZnaGlqa2xtbm9w", "/api/download/{token}"},
		{"/healthz", "/healthz"},
		// 24 chars but not hex
		{"/api/sessions/zzzzzzzzzzzzzzzzzzzzzzzz", "/api/sessions/zzzzzzzzzzzzzzzzzzzzzzzz"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	handler := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/limits", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
}
