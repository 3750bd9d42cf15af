package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/touristlog/touristlog-api/internal/config"
	"github.com/touristlog/touristlog-api/internal/domain/ledger"
	"github.com/touristlog/touristlog-api/internal/domain/pageview"
	"github.com/touristlog/touristlog-api/internal/domain/settlement"
	"github.com/touristlog/touristlog-api/internal/pkg/response"
)

func TestNewRouterMountsRoutes(t *testing.T) {
	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			response.Unauthorized(w, "denied")
		})
	}
	h := handlers{
		ledger:     ledger.NewHandler(nil),
		pageview:   pageview.NewHandler(nil),
		settlement: settlement.NewHandler(nil),
	}
	router := newRouter(&config.Config{AllowedOrigins: []string{"http://localhost:3000"}}, h, deny, prometheus.NewRegistry())

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"health", http.MethodGet, "/health", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK},
		{"history", http.MethodGet, "/api/v1/transactions", http.StatusUnauthorized},
		{"admin listing", http.MethodGet, "/api/admin/transactions", http.StatusUnauthorized},
		{"record page views", http.MethodPost, "/api/v1/topics/t1/pageviews", http.StatusUnauthorized},
		{"list page views", http.MethodGet, "/api/v1/topics/t1/pageviews", http.StatusUnauthorized},
		{"settle", http.MethodPost, "/api/v1/pageviews/pv1/settle", http.StatusUnauthorized},
		{"unknown", http.MethodGet, "/api/v1/nothing", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			if rr.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rr.Code)
			}
		})
	}
}
