// ABOUTME: Package documentation for the store package
// ABOUTME: Explains what is persisted and what deliberately is not

// Package store persists the kill audit trail.
//
// The execution registries are intentionally memory-only: surviving a
// restart is a non-goal, because every tracked execution dies with the
// process anyway. What should survive is the record of administrative
// force: who killed what, when, and with what effect. That record lands
// in a small SQLite database, one row per kill attempt, denials and
// misses included.
package store
