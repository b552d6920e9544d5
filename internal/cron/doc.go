// Package cron decides when enabled schedules are due and emits fire events.
//
// A single tick goroutine compares each enabled schedule's computed next_run
// against wall-clock time. Firing is delegated to a callback so slow jobs can
// never stall the tick loop. Missed fire times are skipped rather than
// backfilled: after downtime the next run is always computed strictly after
// the current time.
package cron
