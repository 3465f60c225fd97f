// ABOUTME: In-memory registry of running and requested agent executions
// ABOUTME: Tracks RALs, pending delegations, and permanent killed markers per pair

package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNoSuchRAL indicates the referenced execution does not exist.
var ErrNoSuchRAL = errors.New("no such execution")

// pairKey identifies one (agent, conversation) pair.
type pairKey struct {
	agent        string
	conversation string
}

// Registry is the shared registry of agent executions. It holds the
// canonical delegation adjacency: RALs carry the pending delegations they
// issued, and the cascade walks that adjacency depth-first. All state is
// guarded by a single mutex; a cascade holds it for the full traversal so
// callers observe every realized descendant as Aborted by the time
// AbortWithCascade returns.
type Registry struct {
	mu             sync.Mutex
	rals           map[pairKey][]*RAL // ordered by RALNumber ascending
	byConversation map[string][]*RAL  // every RAL executing in a conversation
	killed         map[pairKey]struct{}
	lastNumber     map[pairKey]int // survives sweeps so numbers stay monotonic
	logger         *slog.Logger
}

// NewRegistry creates an empty lifecycle registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		rals:           make(map[pairKey][]*RAL),
		byConversation: make(map[string][]*RAL),
		killed:         make(map[pairKey]struct{}),
		lastNumber:     make(map[pairKey]int),
		logger:         logger.With("component", "lifecycle"),
	}
}

// Create allocates the next execution for the (agent, conversation) pair.
// The returned killed flag is true when a killed marker already exists for
// the pair: the RAL is then recorded directly as Aborted and the caller
// must not run the execution. This is how pre-emptive kills take effect.
func (r *Registry) Create(agentPubkey, conversationID, projectID string) (ralNumber int, killed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{agent: agentPubkey, conversation: conversationID}
	ralNumber = r.nextNumberLocked(key)

	ral := &RAL{
		AgentPubkey:    agentPubkey,
		ConversationID: conversationID,
		ProjectID:      projectID,
		RALNumber:      ralNumber,
		State:          StateActive,
		StartedAt:      time.Now(),
	}

	if _, dead := r.killed[key]; dead {
		ral.State = StateAborted
		ral.EndedAt = ral.StartedAt
		ral.AbortReason = "killed before start"
		killed = true
	}

	r.rals[key] = append(r.rals[key], ral)
	r.byConversation[conversationID] = append(r.byConversation[conversationID], ral)

	r.logger.Debug("execution created",
		"agent", agentPubkey,
		"conversation", conversationID,
		"ral_number", ralNumber,
		"killed", killed,
	)
	return ralNumber, killed
}

// nextNumberLocked returns the next RALNumber for a pair. Numbers are
// strictly increasing per pair even after a sweep removed old entries.
func (r *Registry) nextNumberLocked(key pairKey) int {
	r.lastNumber[key]++
	return r.lastNumber[key]
}

// MergePendingDelegations appends fan-out targets to the identified RAL.
// Records already present (same delegation conversation and recipient) are
// skipped, so repeated identical merges are idempotent.
func (r *Registry) MergePendingDelegations(agentPubkey, conversationID string, ralNumber int, delegations []PendingDelegation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ral := r.findLocked(pairKey{agent: agentPubkey, conversation: conversationID}, ralNumber)
	if ral == nil {
		return fmt.Errorf("%w: agent %s conversation %s ral %d", ErrNoSuchRAL, agentPubkey, conversationID, ralNumber)
	}

	for _, d := range delegations {
		if hasDelegation(ral.pending, d) {
			continue
		}
		d.RALNumber = ralNumber
		ral.pending = append(ral.pending, d)
	}
	return nil
}

// hasDelegation reports whether an identical fan-out record already exists.
func hasDelegation(pending []PendingDelegation, d PendingDelegation) bool {
	for _, p := range pending {
		if p.DelegationConversationID == d.DelegationConversationID && p.RecipientPubkey == d.RecipientPubkey {
			return true
		}
	}
	return false
}

// findLocked returns the RAL with the given number for a pair, or nil.
func (r *Registry) findLocked(key pairKey, ralNumber int) *RAL {
	for _, ral := range r.rals[key] {
		if ral.RALNumber == ralNumber {
			return ral
		}
	}
	return nil
}

// firstActiveLocked returns the lowest-numbered Active RAL for a pair.
// When several are active (re-entrant executions) the kill path operates
// on the first one.
func (r *Registry) firstActiveLocked(key pairKey) *RAL {
	for _, ral := range r.rals[key] {
		if ral.State == StateActive {
			return ral
		}
	}
	return nil
}

// HasActive reports whether the pair has a currently running execution.
func (r *Registry) HasActive(agentPubkey, conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firstActiveLocked(pairKey{agent: agentPubkey, conversation: conversationID}) != nil
}

// ActiveAgents returns the distinct agents with a running execution in the
// conversation, ordered by when each agent first started executing there.
// This is the authoritative liveness view: kill target selection uses it
// rather than any mirror that may lag behind aborts.
func (r *Registry) ActiveAgents(conversationID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var agents []string
	seen := make(map[string]struct{})
	for _, ral := range r.byConversation[conversationID] {
		if ral.State != StateActive {
			continue
		}
		if _, dup := seen[ral.AgentPubkey]; dup {
			continue
		}
		seen[ral.AgentPubkey] = struct{}{}
		agents = append(agents, ral.AgentPubkey)
	}
	return agents
}

// IsAgentConversationKilled reports whether a permanent killed marker
// exists for the pair.
func (r *Registry) IsAgentConversationKilled(agentPubkey, conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.killed[pairKey{agent: agentPubkey, conversation: conversationID}]
	return ok
}

// ResolveDelegationPrefix resolves a short hex prefix against the
// delegation conversation ids the registry knows about. Returns the first
// match; prefix-collision arbitration beyond first-match is out of scope.
func (r *Registry) ResolveDelegationPrefix(prefix string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Deterministic scan order so repeated lookups agree.
	ids := make([]string, 0)
	seen := make(map[string]struct{})
	for _, rals := range r.rals {
		for _, ral := range rals {
			for _, d := range ral.pending {
				if _, dup := seen[d.DelegationConversationID]; dup {
					continue
				}
				seen[d.DelegationConversationID] = struct{}{}
				ids = append(ids, d.DelegationConversationID)
			}
		}
	}
	sort.Strings(ids)

	for _, id := range ids {
		if strings.HasPrefix(id, prefix) {
			return id, true
		}
	}
	return "", false
}

// PendingRecipients returns the (conversation, recipient) tuples of every
// pending delegation addressed to the given conversation that has not
// materialized as a running execution yet.
func (r *Registry) PendingRecipients(conversationID string) []Tuple {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pendingRecipientsLocked(conversationID)
}

// pendingRecipientsLocked is the lock-held implementation of PendingRecipients.
func (r *Registry) pendingRecipientsLocked(conversationID string) []Tuple {
	var tuples []Tuple
	seen := make(map[pairKey]struct{})
	for _, rals := range r.rals {
		for _, ral := range rals {
			for _, d := range ral.pending {
				if d.DelegationConversationID != conversationID {
					continue
				}
				key := pairKey{agent: d.RecipientPubkey, conversation: conversationID}
				if _, dup := seen[key]; dup {
					continue
				}
				if r.firstActiveLocked(key) != nil {
					continue
				}
				seen[key] = struct{}{}
				tuples = append(tuples, Tuple{ConversationID: conversationID, AgentPubkey: d.RecipientPubkey})
			}
		}
	}
	sort.Slice(tuples, func(i, j int) bool { return tuples[i].AgentPubkey < tuples[j].AgentPubkey })
	return tuples
}

// Complete marks a running execution as finished normally.
func (r *Registry) Complete(agentPubkey, conversationID string, ralNumber int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ral := r.findLocked(pairKey{agent: agentPubkey, conversation: conversationID}, ralNumber)
	if ral == nil {
		return fmt.Errorf("%w: agent %s conversation %s ral %d", ErrNoSuchRAL, agentPubkey, conversationID, ralNumber)
	}
	if ral.State.terminal() {
		return nil
	}
	ral.State = StateCompleted
	ral.EndedAt = time.Now()
	return nil
}

// ActiveCount returns the number of currently running executions.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, rals := range r.rals {
		for _, ral := range rals {
			if ral.State == StateActive {
				count++
			}
		}
	}
	return count
}

// Snapshot returns a stable-ordered copy of every tracked execution.
func (r *Registry) Snapshot() []ExecutionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]ExecutionInfo, 0)
	for _, rals := range r.rals {
		for _, ral := range rals {
			infos = append(infos, ExecutionInfo{
				AgentPubkey:    ral.AgentPubkey,
				ConversationID: ral.ConversationID,
				ProjectID:      ral.ProjectID,
				RALNumber:      ral.RALNumber,
				State:          ral.State.String(),
				StartedAt:      ral.StartedAt,
				EndedAt:        ral.EndedAt,
				AbortReason:    ral.AbortReason,
				PendingCount:   len(ral.pending),
			})
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ConversationID != infos[j].ConversationID {
			return infos[i].ConversationID < infos[j].ConversationID
		}
		if infos[i].AgentPubkey != infos[j].AgentPubkey {
			return infos[i].AgentPubkey < infos[j].AgentPubkey
		}
		return infos[i].RALNumber < infos[j].RALNumber
	})
	return infos
}

// Sweep evicts terminal executions that ended more than maxAge ago and
// returns how many were removed. Killed markers are permanent and survive
// sweeps. Bounds memory growth during steady-state operation.
func (r *Registry) Sweep(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for key, rals := range r.rals {
		kept := rals[:0]
		for _, ral := range rals {
			if ral.State.terminal() && !ral.EndedAt.IsZero() && ral.EndedAt.Before(cutoff) {
				removed++
				r.dropFromConversationLocked(ral)
				continue
			}
			kept = append(kept, ral)
		}
		if len(kept) == 0 {
			delete(r.rals, key)
		} else {
			r.rals[key] = kept
		}
	}

	if removed > 0 {
		r.logger.Debug("swept terminal executions", "removed", removed)
	}
	return removed
}

// dropFromConversationLocked removes one RAL from the conversation index.
func (r *Registry) dropFromConversationLocked(ral *RAL) {
	rals := r.byConversation[ral.ConversationID]
	for i, candidate := range rals {
		if candidate == ral {
			r.byConversation[ral.ConversationID] = append(rals[:i], rals[i+1:]...)
			break
		}
	}
	if len(r.byConversation[ral.ConversationID]) == 0 {
		delete(r.byConversation, ral.ConversationID)
	}
}
