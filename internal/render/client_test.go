package render_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"emblem/internal/badges"
	"emblem/internal/logging"
	"emblem/internal/render"
	"emblem/internal/runner"
	"emblem/internal/services"
)

var testItem = runner.WorkItem{
	ID:        "m1",
	Name:      "Arrival",
	Path:      "/media/movies/Arrival",
	MediaType: "movie",
}

func TestProcessSubmitsRenderRequest(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/render" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	t.Cleanup(server.Close)

	client := render.NewHTTPClient(server.URL, server.Client(), logging.NewNop())
	opts := badges.Options{
		Audio:        badges.Audio{Enabled: true, ShowCodec: true},
		ForceRefresh: true,
	}
	if err := client.Process(context.Background(), testItem, opts); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if got["item_id"] != "m1" || got["name"] != "Arrival" || got["media_type"] != "movie" {
		t.Fatalf("unexpected payload %v", got)
	}
	if got["force_refresh"] != true {
		t.Fatalf("force_refresh not carried: %v", got)
	}
	if _, ok := got["badges"].(map[string]any); !ok {
		t.Fatalf("badge options missing from payload: %v", got)
	}
}

func TestProcessTagsServerErrorsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	client := render.NewHTTPClient(server.URL, server.Client(), logging.NewNop())
	err := client.Process(context.Background(), testItem, badges.Options{})
	if !services.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestProcessRejectionIsPerItemFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no artwork for item", http.StatusUnprocessableEntity)
	}))
	t.Cleanup(server.Close)

	client := render.NewHTTPClient(server.URL, server.Client(), logging.NewNop())
	err := client.Process(context.Background(), testItem, badges.Options{})
	if err == nil {
		t.Fatal("expected rejection error")
	}
	if services.IsUnavailable(err) {
		t.Fatalf("a 4xx rejection must not read as an outage: %v", err)
	}
	if !strings.Contains(err.Error(), "no artwork") {
		t.Fatalf("rejection detail lost: %v", err)
	}
}

func TestProcessSurfacesReportedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "failed", "detail": "poster corrupt"})
	}))
	t.Cleanup(server.Close)

	client := render.NewHTTPClient(server.URL, server.Client(), logging.NewNop())
	err := client.Process(context.Background(), testItem, badges.Options{})
	if err == nil || !strings.Contains(err.Error(), "poster corrupt") {
		t.Fatalf("expected reported failure, got %v", err)
	}
}
