package oltd_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/git-commit/this-building-rocks-assistant/internal/domain"
	"github.com/git-commit/this-building-rocks-assistant/internal/infra"
	"github.com/git-commit/this-building-rocks-assistant/internal/infra/oltd"
)

const indoorState = `{"data":{"attributes":{"FTKPlus":{"properties":{"Humidity":55.04,"Temperature":21.5}}}}}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_GetDevice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method: got %s, want GET", r.Method)
		}
		if r.URL.Path != "/v1/devices/indoor-1/state" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization: got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(indoorState))
	}))
	defer server.Close()

	client := oltd.NewClient(server.URL+"/v1/", "secret")
	raw, err := client.GetDevice(context.Background(), "indoor-1")
	if err != nil {
		t.Fatalf("GetDevice error: %v", err)
	}
	if string(raw) != indoorState {
		t.Errorf("body: got %s", raw)
	}
}

func TestClient_PatchDevice(t *testing.T) {
	var got map[string]map[string]bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method: got %s, want PATCH", r.Method)
		}
		if r.URL.Path != "/devices/window-1" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type: got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := oltd.NewClient(server.URL, "secret")
	if err := client.PatchDevice(context.Background(), domain.OpenWindowRequest("window-1")); err != nil {
		t.Fatalf("PatchDevice error: %v", err)
	}
	if !got["custom"]["open"] {
		t.Errorf("body: got %v, want custom.open=true", got)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{}`, domain.ErrAuthFailed},
		{"forbidden", http.StatusForbidden, `{}`, domain.ErrAuthFailed},
		{"not found", http.StatusNotFound, `{}`, domain.ErrDeviceNotFound},
		{"not json", http.StatusOK, `<html>`, domain.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := oltd.NewClient(server.URL, "secret").GetDevice(context.Background(), "indoor-1")
			if !errors.Is(err, tt.want) {
				t.Errorf("error: got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestClient_ServerErrorIsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := oltd.NewClient(server.URL, "secret").PatchDevice(context.Background(), domain.OpenWindowRequest("w"))
	var se *oltd.StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("error: got %v, want StatusError 503", err)
	}
	if !oltd.Retryable(err) {
		t.Error("503 should be retryable")
	}
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := oltd.NewClient(url, "secret").GetDevice(context.Background(), "indoor-1")
	if !errors.Is(err, domain.ErrNetwork) {
		t.Errorf("error: got %v, want ErrNetwork", err)
	}
	if !oltd.Retryable(err) {
		t.Error("network errors should be retryable")
	}
}

func TestClient_PatchIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_ = oltd.NewClient(server.URL, "secret").PatchDevice(context.Background(), domain.OpenWindowRequest("w"))
	if got := calls.Load(); got != 1 {
		t.Errorf("calls: got %d, want 1", got)
	}
}

func fastRetry() infra.RetryConfig {
	return infra.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestFetchSnapshot(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(indoorState))
	}))
	defer server.Close()

	client := oltd.NewClient(server.URL, "secret")
	snap, err := oltd.FetchSnapshot(context.Background(), client, "indoor-1", "", fastRetry(), discardLogger())
	if err != nil {
		t.Fatalf("FetchSnapshot error: %v", err)
	}
	if snap.Value != 55.0 {
		t.Errorf("value: got %v, want 55.0", snap.Value)
	}
	if snap.Attribute != "Humidity" || snap.DeviceID != "indoor-1" {
		t.Errorf("snapshot: got %+v", snap)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls: got %d, want 2", got)
	}
}

func TestFetchSnapshot_AuthFailsFast(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := oltd.FetchSnapshot(context.Background(), oltd.NewClient(server.URL, "bad"), "indoor-1", "", fastRetry(), discardLogger())
	if !errors.Is(err, domain.ErrAuthFailed) {
		t.Fatalf("error: got %v, want ErrAuthFailed", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls: got %d, want 1", got)
	}
}

func TestExtractNumber(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		path    string
		want    float64
		wantErr bool
	}{
		{"humidity", indoorState, oltd.DefaultHumidityPath, 55.04, false},
		{"custom path", indoorState, "data.attributes.FTKPlus.properties.Temperature", 21.5, false},
		{"missing", `{"data":{}}`, oltd.DefaultHumidityPath, 0, true},
		{"string value", `{"h":"wet"}`, "h", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := oltd.ExtractNumber([]byte(tt.doc), tt.path)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrMalformedResponse) {
					t.Errorf("error: got %v, want ErrMalformedResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractNumber error: %v", err)
			}
			if got != tt.want {
				t.Errorf("value: got %v, want %v", got, tt.want)
			}
		})
	}
}
