// Package api exposes the orchestrator over transport-friendly DTOs.
//
// Three surfaces live here: the schedule manager (authoritative validation
// for schedule writes), the status query service (read-only views for polling
// UIs, always re-read from the store), and the HTTP client the CLI uses to
// talk to a running daemon.
package api
