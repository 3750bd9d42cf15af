package pageview

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/touristlog/touristlog-api/internal/middleware"
)

func withSession(s middleware.Session) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithSession(r.Context(), s)))
		})
	}
}

func newTestRouter(s middleware.Session) http.Handler {
	svc, _ := newTestService(time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC))
	r := chi.NewRouter()
	r.Mount("/topics/{topicID}/pageviews", NewHandler(svc).Routes(withSession(s)))
	return r
}

func TestHandlerRecord(t *testing.T) {
	tests := []struct {
		name    string
		session middleware.Session
		topic   string
		body    string
		status  int
	}{
		{"ok", middleware.Session{UserID: "adv"}, "t1", `{"year":2026,"month":3,"pageViews":1200,"isConfirmed":true}`, http.StatusOK},
		{"invalid json", middleware.Session{UserID: "adv"}, "t1", `{`, http.StatusBadRequest},
		{"bad month", middleware.Session{UserID: "adv"}, "t1", `{"year":2026,"month":13,"pageViews":1}`, http.StatusUnprocessableEntity},
		{"negative views", middleware.Session{UserID: "adv"}, "t1", `{"year":2026,"month":3,"pageViews":-1}`, http.StatusUnprocessableEntity},
		{"wrong period", middleware.Session{UserID: "adv"}, "t1", `{"year":2026,"month":1,"pageViews":1}`, http.StatusUnprocessableEntity},
		{"not owner", middleware.Session{UserID: "someone"}, "t1", `{"year":2026,"month":3,"pageViews":1}`, http.StatusForbidden},
		{"unknown topic", middleware.Session{UserID: "adv"}, "nope", `{"year":2026,"month":3,"pageViews":1}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/topics/"+tt.topic+"/pageviews/", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			newTestRouter(tt.session).ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandlerList(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(middleware.Session{UserID: "root", IsAdmin: true}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/topics/t1/pageviews/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}
