// Package services defines the shared error taxonomy for external
// collaborators (library source, badge renderer) and internal subsystems.
//
// Callers wrap failures with a sentinel marker so upper layers can classify
// them (validation vs. unavailable vs. timeout) without string matching.
package services
