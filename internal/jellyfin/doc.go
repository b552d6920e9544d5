// Package jellyfin resolves library names against a Jellyfin server.
//
// The client maps a schedule's target libraries to Jellyfin virtual folders
// and expands each folder into movie and series work items. Transport and
// server-side failures are tagged as unavailable so callers can tell "the
// source is down" apart from "the source has nothing to process".
package jellyfin
