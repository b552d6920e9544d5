package jellyfin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"emblem/internal/jellyfin"
	"emblem/internal/logging"
	"emblem/internal/services"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/Library/VirtualFolders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Emby-Token") != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]map[string]string{
			{"Name": "Movies", "ItemId": "lib-movies"},
			{"Name": "Shows", "ItemId": "lib-shows"},
		})
	})
	mux.HandleFunc("/Items", func(w http.ResponseWriter, r *http.Request) {
		var items []map[string]string
		switch r.URL.Query().Get("ParentId") {
		case "lib-movies":
			items = []map[string]string{
				{"Id": "m1", "Name": "Arrival", "Path": "/media/movies/Arrival", "Type": "Movie"},
				{"Id": "m2", "Name": "Dune", "Path": "/media/movies/Dune", "Type": "Movie"},
			}
		case "lib-shows":
			items = []map[string]string{
				{"Id": "s1", "Name": "Severance", "Path": "/media/shows/Severance", "Type": "Series"},
			}
		}
		json.NewEncoder(w).Encode(map[string]any{
			"Items":            items,
			"TotalRecordCount": len(items),
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestResolveExpandsNamedLibraries(t *testing.T) {
	server := newServer(t)
	client := jellyfin.NewHTTPClient(server.URL, "token", server.Client(), logging.NewNop())

	items, err := client.Resolve(context.Background(), []string{"Movies"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %v", items)
	}
	if items[0].Name != "Arrival" || items[0].MediaType != "movie" {
		t.Fatalf("unexpected first item %+v", items[0])
	}
	if items[1].Path != "/media/movies/Dune" {
		t.Fatalf("unexpected second item %+v", items[1])
	}
}

func TestResolveAllLibrariesWhenUnspecified(t *testing.T) {
	server := newServer(t)
	client := jellyfin.NewHTTPClient(server.URL, "token", server.Client(), logging.NewNop())

	items, err := client.Resolve(context.Background(), nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected all libraries expanded, got %v", items)
	}
}

func TestResolveUnknownLibraryRejected(t *testing.T) {
	server := newServer(t)
	client := jellyfin.NewHTTPClient(server.URL, "token", server.Client(), logging.NewNop())

	_, err := client.Resolve(context.Background(), []string{"Anime"})
	if err == nil {
		t.Fatal("expected error for unknown library")
	}
	if !services.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if services.IsUnavailable(err) {
		t.Fatalf("unknown library must not read as source outage: %v", err)
	}
}

func TestResolveTagsOutagesUnavailable(t *testing.T) {
	server := newServer(t)
	server.Close()
	client := jellyfin.NewHTTPClient(server.URL, "token", http.DefaultClient, logging.NewNop())

	_, err := client.Resolve(context.Background(), nil)
	if !services.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestResolveTagsServerErrorsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	client := jellyfin.NewHTTPClient(server.URL, "token", server.Client(), logging.NewNop())

	_, err := client.Resolve(context.Background(), nil)
	if !services.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestResolveRejectsBadCredentials(t *testing.T) {
	server := newServer(t)
	client := jellyfin.NewHTTPClient(server.URL, "wrong", server.Client(), logging.NewNop())

	_, err := client.Resolve(context.Background(), nil)
	if !services.IsUnavailable(err) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestPing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/System/Info/Public", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"ServerName": "test", "Version": "10.9"})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := jellyfin.NewHTTPClient(server.URL, "token", server.Client(), logging.NewNop())
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
