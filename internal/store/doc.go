// Package store owns the durable representation of schedules, jobs, and job
// items backed by SQLite.
//
// It is the single source of truth for execution state: every other component
// holds only ids and re-reads rows before trusting them. All status-changing
// writes are atomic per row, and terminal job or item rows are never moved
// back into a live status.
package store
