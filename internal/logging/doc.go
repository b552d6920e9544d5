// Package logging assembles the structured slog loggers used across emblem
// services.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes attribute helpers so orchestrator code tags log lines
// with job and schedule IDs consistently. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
