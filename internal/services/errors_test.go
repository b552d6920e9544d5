package services_test

import (
	"errors"
	"testing"

	"emblem/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	inner := errors.New("connection refused")
	err := services.Wrap(services.ErrUnavailable, "jellyfin", "resolve", "listing libraries", inner)

	if !services.IsUnavailable(err) {
		t.Fatalf("expected unavailable classification for %v", err)
	}
	if !errors.Is(err, inner) {
		t.Fatal("expected wrapped error to retain the cause")
	}
	want := "source unavailable: jellyfin: resolve: listing libraries: connection refused"
	if err.Error() != want {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "render", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if err.Error() != "transient failure: render" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestClassifierHelpers(t *testing.T) {
	if services.IsValidation(services.Wrap(services.ErrUnavailable, "x", "", "", nil)) {
		t.Fatal("unavailable should not classify as validation")
	}
	if !services.IsNotFound(services.Wrap(services.ErrNotFound, "store", "get job", "", nil)) {
		t.Fatal("expected not-found classification")
	}
}
