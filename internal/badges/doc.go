// Package badges defines the processing options attached to schedules and
// snapshotted onto jobs.
//
// Each badge category is an explicit struct rather than an open map so the
// snapshot stored with a job is type-checked and schema changes are visible
// migrations instead of silent key renames.
package badges
