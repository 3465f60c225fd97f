// ABOUTME: Package documentation for the tasks package
// ABOUTME: Explains the background shell task table consumed by the kill path

// Package tasks tracks background shell processes so the kill orchestrator
// can locate and terminate them by task id.
//
// Each task records its pid, command line, owning project, and output file.
// Killing sends a single SIGTERM; a process that already exited is reported
// as success, since the operator wanted the task dead either way.
// Escalation and exit polling belong to the shell runner that owns the
// process group, not to this table.
package tasks
