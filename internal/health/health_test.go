package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/git-commit/this-building-rocks-assistant/internal/health"
)

func get(t *testing.T, h *health.Handler, path string) (int, map[string]any) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s body: %v", path, err)
	}
	return rec.Code, body
}

func TestHealthz_AlwaysOK(t *testing.T) {
	h := health.New()
	h.Add("engine", func(context.Context) error { return errors.New("down") })

	code, body := get(t, h, "/healthz")
	if code != http.StatusOK {
		t.Errorf("status: got %d, want %d", code, http.StatusOK)
	}
	if body["status"] != "ok" {
		t.Errorf("body status: got %v, want ok", body["status"])
	}
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name     string
		engine   error
		wantCode int
		wantBody string
	}{
		{"all pass", nil, http.StatusOK, "ok"},
		{"one fails", errors.New("session not ready"), http.StatusServiceUnavailable, "fail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := health.New()
			h.Add("snapshot", func(context.Context) error { return nil })
			h.Add("engine", func(context.Context) error { return tt.engine })

			code, body := get(t, h, "/readyz")
			if code != tt.wantCode {
				t.Errorf("status: got %d, want %d", code, tt.wantCode)
			}
			if body["status"] != tt.wantBody {
				t.Errorf("body status: got %v, want %s", body["status"], tt.wantBody)
			}
			checks, _ := body["checks"].(map[string]any)
			if checks["snapshot"] != "ok" {
				t.Errorf("snapshot check: got %v, want ok", checks["snapshot"])
			}
		})
	}
}

func TestAdd_ReplacesCheck(t *testing.T) {
	h := health.New()
	h.Add("engine", func(context.Context) error { return errors.New("down") })
	h.Add("engine", func(context.Context) error { return nil })

	code, body := get(t, h, "/readyz")
	if code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", code, http.StatusOK)
	}
	checks, _ := body["checks"].(map[string]any)
	if len(checks) != 1 {
		t.Errorf("checks: got %d entries, want 1", len(checks))
	}
}
