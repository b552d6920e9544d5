// Package daemon ties the orchestrator together: single-instance locking,
// restart reconciliation, the cron scheduler, the job runner, and the HTTP
// API the CLI talks to.
package daemon
