// ABOUTME: Request and result types for the kill orchestrator
// ABOUTME: Every outcome is a structured result; failures are never panics

package kill

import (
	"time"

	"github.com/2389/coven-execd/internal/lifecycle"
)

// Request is one kill invocation.
type Request struct {
	// Target is the external identifier in any accepted encoding: 64-hex
	// conversation id, 12-hex prefix, 7-char shell task id, NIP-19
	// note1/nevent1, or legacy UUID.
	Target string `json:"target"`
	// Reason is free-form operator context recorded on aborted executions.
	Reason string `json:"reason,omitempty"`
	// Actor identifies who asked, for the audit trail.
	Actor string `json:"-"`
	// CallerProjectID is the caller's tenant scope. Empty means the
	// caller has no project context and every kill is denied.
	CallerProjectID string `json:"-"`
}

// TargetType values reported in results.
const (
	TargetTypeAgent = "agent"
	TargetTypeShell = "shell"
)

// Result is the structured outcome of a kill. Success false carries a
// reasoned message; callers always get a result, never an error.
type Result struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Target     string `json:"target"`
	TargetType string `json:"target_type"`

	// Agent-target fields.
	CascadeAbortCount int               `json:"cascade_abort_count,omitempty"`
	AbortedTuples     []lifecycle.Tuple `json:"aborted_tuples,omitempty"`
	PreemptedTuples   []lifecycle.Tuple `json:"preempted_tuples,omitempty"`

	// Shell-target fields.
	PID      int          `json:"pid,omitempty"`
	TaskInfo *TaskDetails `json:"task_info,omitempty"`
}

// TaskDetails describes the terminated background task.
type TaskDetails struct {
	Command     string    `json:"command"`
	Description string    `json:"description,omitempty"`
	OutputFile  string    `json:"output_file,omitempty"`
	StartTime   time.Time `json:"start_time"`
}

// AuditEntry records one kill attempt for the audit log.
type AuditEntry struct {
	Actor             string
	Target            string
	TargetType        string
	Reason            string
	Success           bool
	Message           string
	CascadeAbortCount int
}
