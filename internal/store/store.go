// ABOUTME: Audit entity and store types for kill-operation persistence
// ABOUTME: Defines the KillAudit record and filtering options

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// KillAudit records one kill attempt: who asked, what they named, and what
// happened. The live registries are memory-only by design; the audit trail
// is the one thing worth keeping across restarts.
type KillAudit struct {
	ID                string // UUID v4
	Actor             string // who performed the kill
	Target            string // the identifier as the caller wrote it
	TargetType        string // "agent" or "shell"
	Reason            string
	Success           bool
	Message           string
	CascadeAbortCount int
	CreatedAt         time.Time
}

// KillAuditFilter specifies filtering options for listing audit entries.
type KillAuditFilter struct {
	Since       *time.Time // entries after this time
	Actor       *string    // filter by actor
	SuccessOnly bool
	Limit       int // max results (default 100, max 1000)
}
