package pushover_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/git-commit/this-building-rocks-assistant/internal/infra/pushover"
)

func TestClient_Notify(t *testing.T) {
	var form map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing form: %v", err)
			return
		}
		form = map[string]string{
			"token":   r.PostFormValue("token"),
			"user":    r.PostFormValue("user"),
			"message": r.PostFormValue("message"),
			"title":   r.PostFormValue("title"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := pushover.NewClient("app", "user", pushover.WithEndpoint(server.URL), pushover.WithTitle("Flat 3"))
	if err := client.Notify(context.Background(), "window stuck"); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	want := map[string]string{"token": "app", "user": "user", "message": "window stuck", "title": "Flat 3"}
	for k, v := range want {
		if form[k] != v {
			t.Errorf("%s: got %q, want %q", k, form[k], v)
		}
	}
}

func TestClient_NotifyErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := pushover.NewClient("app", "user", pushover.WithEndpoint(server.URL))
	if err := client.Notify(context.Background(), "x"); err == nil {
		t.Error("expected error for 400 response")
	}
}

func TestClient_NotifyWithoutCredentials(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer server.Close()

	client := pushover.NewClient("", "", pushover.WithEndpoint(server.URL))
	if err := client.Notify(context.Background(), "x"); err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if called {
		t.Error("no request expected without credentials")
	}
}
