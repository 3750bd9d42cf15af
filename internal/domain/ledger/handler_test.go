package ledger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/touristlog/touristlog-api/internal/middleware"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return env
}

func TestHandlerHistory(t *testing.T) {
	h := NewHandler(NewService(newHistoryStore(), nil))

	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	req = req.WithContext(middleware.WithSession(req.Context(), middleware.Session{UserID: "author"}))
	rec := httptest.NewRecorder()
	h.History(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var s Summary
	if err := json.Unmarshal(decode(t, rec).Data, &s); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if s.CurrentBalance != 130 || len(s.Transactions) != 4 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestHandlerHistoryRequiresSession(t *testing.T) {
	h := NewHandler(NewService(newHistoryStore(), nil))
	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest(http.MethodGet, "/transactions", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandlerHistoryUnknownUser(t *testing.T) {
	h := NewHandler(NewService(newHistoryStore(), nil))
	req := httptest.NewRequest(http.MethodGet, "/transactions", nil)
	req = req.WithContext(middleware.WithSession(req.Context(), middleware.Session{UserID: "ghost"}))
	rec := httptest.NewRecorder()
	h.History(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandlerListAll(t *testing.T) {
	h := NewHandler(NewService(newHistoryStore(), nil))

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"default page", "", http.StatusOK},
		{"filtered by type", "?type=ad_revenue&limit=10", http.StatusOK},
		{"unknown type", "?type=refund", http.StatusUnprocessableEntity},
		{"limit too large", "?limit=1000", http.StatusUnprocessableEntity},
		{"limit not a number", "?limit=ten", http.StatusBadRequest},
		{"bad date", "?from=yesterday", http.StatusBadRequest},
		{"inverted range", "?from=2026-03-02&to=2026-03-01", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ListAll(rec, httptest.NewRequest(http.MethodGet, "/admin/transactions"+tt.query, nil))
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	h := NewHandler(NewService(newHistoryStore(), nil))
	asUser := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithSession(r.Context(), middleware.Session{UserID: "author"})))
		})
	}

	rec := httptest.NewRecorder()
	h.AdminRoutes(asUser).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
