// ABOUTME: RAL and pending-delegation data types for the lifecycle registry
// ABOUTME: Defines execution states and the tuple type reported by kill cascades

package lifecycle

import "time"

// State is the lifecycle state of a single agent execution.
type State int

const (
	// StatePending is a requested execution that has not started yet.
	StatePending State = iota
	// StateActive is a currently running execution.
	StateActive
	// StateAborted is an execution that was force-terminated (or created
	// under a killed marker and never allowed to run).
	StateAborted
	// StateCompleted is an execution that finished normally.
	StateCompleted
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateAborted:
		return "aborted"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// terminal reports whether the state can never transition again.
func (s State) terminal() bool {
	return s == StateAborted || s == StateCompleted
}

// RAL (Running Agent Lifecycle) is one execution attempt of one agent
// inside one conversation. The same agent can re-enter a conversation;
// each attempt gets the next RALNumber for the (agent, conversation) pair.
type RAL struct {
	AgentPubkey    string
	ConversationID string
	ProjectID      string
	RALNumber      int
	State          State
	StartedAt      time.Time
	EndedAt        time.Time
	AbortReason    string

	// pending holds the fan-out requests this execution has issued,
	// in merge order. Guarded by the registry mutex.
	pending []PendingDelegation
}

// PendingDelegation is a fan-out request issued by a parent execution that
// has not materialized as its own RAL yet. The delegation producer supplies
// these records before the recipient starts.
type PendingDelegation struct {
	DelegationConversationID string
	RecipientPubkey          string
	SenderPubkey             string
	Prompt                   string
	RALNumber                int
}

// Tuple identifies one (conversation, agent) pair touched by a kill.
type Tuple struct {
	ConversationID string `json:"conversation_id"`
	AgentPubkey    string `json:"agent_pubkey"`
}

// ExecutionInfo is a read-only snapshot of one RAL for listing surfaces.
type ExecutionInfo struct {
	AgentPubkey    string    `json:"agent_pubkey"`
	ConversationID string    `json:"conversation_id"`
	ProjectID      string    `json:"project_id"`
	RALNumber      int       `json:"ral_number"`
	State          string    `json:"state"`
	StartedAt      time.Time `json:"started_at"`
	EndedAt        time.Time `json:"ended_at,omitzero"`
	AbortReason    string    `json:"abort_reason,omitempty"`
	PendingCount   int       `json:"pending_count"`
}
