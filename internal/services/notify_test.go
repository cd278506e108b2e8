package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMailNotifierSendPostsTemplatedRequest(t *testing.T) {
	var gotPath, gotAPIKey, gotIdempotencyKey string
	var gotPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("api-key")
		gotIdempotencyKey = r.Header.Get("Idempotency-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	notifier := NewMailNotifier(server.URL, "key-123", "noreply@tutoring.example.com")
	err := notifier.Send(context.Background(), "student@example.com", TemplateReminder, map[string]any{
		"hours_ahead": 24,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotPath != "/v3/smtp/email" {
		t.Fatalf("expected /v3/smtp/email, got %q", gotPath)
	}
	if gotAPIKey != "key-123" {
		t.Fatalf("expected api key header, got %q", gotAPIKey)
	}
	if gotIdempotencyKey == "" {
		t.Fatalf("expected an idempotency key header")
	}
	if gotPayload["to"] != "student@example.com" || gotPayload["template"] != "reminder" {
		t.Fatalf("unexpected payload %v", gotPayload)
	}
	if gotPayload["from"] != "noreply@tutoring.example.com" {
		t.Fatalf("expected configured sender, got %v", gotPayload["from"])
	}
}

func TestMailNotifierSendSurfacesErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message": "unknown template"}`))
	}))
	defer server.Close()

	notifier := NewMailNotifier(server.URL, "key", "noreply@example.com")
	err := notifier.Send(context.Background(), "x@example.com", TemplateReminder, nil)
	if err == nil {
		t.Fatalf("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "status 400") || !strings.Contains(err.Error(), "unknown template") {
		t.Fatalf("expected status and body in error, got %v", err)
	}
}

func TestMailNotifierTrimsTrailingSlash(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewMailNotifier(server.URL+"/", "key", "noreply@example.com")
	if err := notifier.Send(context.Background(), "x@example.com", TemplateCompletion, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotPath != "/v3/smtp/email" {
		t.Fatalf("expected normalized path, got %q", gotPath)
	}
}
