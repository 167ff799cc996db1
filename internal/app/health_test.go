package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"capnote/api/internal/store"
)

type failingPingStore struct {
	*store.SQLStore
	err error
}

func (f failingPingStore) Ping(context.Context) error {
	return f.err
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.token = ""
	status, payload := env.do(t, http.MethodGet, "/api/health", nil)
	if status != http.StatusOK || payload["ok"] != true {
		t.Fatalf("expected ok, got %d %v", status, payload)
	}
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantReady  bool
	}{
		{"healthy", nil, http.StatusOK, true},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.token = ""
			env.svc.store = failingPingStore{SQLStore: env.store, err: tt.pingErr}

			status, payload := env.do(t, http.MethodGet, "/api/ready", nil)
			if status != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, status)
			}
			if payload["ok"] != tt.wantReady {
				t.Fatalf("expected ok=%v, got %v", tt.wantReady, payload["ok"])
			}
			checks, _ := payload["checks"].(map[string]any)
			ai, _ := checks["ai"].(map[string]any)
			if ai["configured"] != false {
				t.Fatalf("expected ai unconfigured, got %v", checks)
			}
		})
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/notes", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected preflight 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("expected request id to be echoed, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("unexpected CORS origin %q", got)
	}
}
