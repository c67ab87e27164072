package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewRouter_HealthEndpoint(t *testing.T) {
	healthHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"version": "0.1.0",
		})
	})

	router := NewRouter(RouterConfig{
		AllowedOrigins: []string{"*"},
		HealthHandler:  healthHandler,
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d; body: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Fatalf("expected healthy, got %s", resp["status"])
	}
}

func TestNewRouter_StubEndpointsAreRegistered(t *testing.T) {
	router := NewRouter(RouterConfig{AllowedOrigins: []string{"*"}})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/health"},
		{http.MethodPost, "/api/v1/queries"},
		{http.MethodPost, "/api/v1/percolate"},
		{http.MethodGet, "/api/v1/stats"},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			// Stub returns 501, real handler returns 200/201/400.
			// We just verify we do not get a 404 (route not found) or 405 (method not allowed).
			if w.Code == http.StatusNotFound || w.Code == http.StatusMethodNotAllowed {
				t.Fatalf("route %s %s returned %d -- expected it to be registered", tc.method, tc.path, w.Code)
			}
		})
	}
}

func TestNewRouter_UnregisteredRouteIs404(t *testing.T) {
	router := NewRouter(RouterConfig{AllowedOrigins: []string{"*"}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestNewRouter_CORS_Preflight(t *testing.T) {
	router := NewRouter(RouterConfig{AllowedOrigins: []string{"https://percolator.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://percolator.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", w.Code)
	}
	if acao := w.Header().Get("Access-Control-Allow-Origin"); acao != "https://percolator.example.com" {
		t.Fatalf("expected ACAO header, got %q", acao)
	}
}
