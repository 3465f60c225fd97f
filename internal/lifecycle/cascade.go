// ABOUTME: Cascading abort over the delegation tree rooted at one execution
// ABOUTME: Aborts realized descendants and pre-emptively marks un-started ones

package lifecycle

import "time"

// CooldownWriter receives a suppression entry for every aborted pair.
// Entries are written before AbortWithCascade returns, so re-delegation
// logic that checks cooldowns after a kill confirmation always sees them.
type CooldownWriter interface {
	Add(conversationID, agentPubkey string)
}

// CascadeResult summarizes one cascading abort.
type CascadeResult struct {
	// AbortedCount is the direct target plus every realized descendant
	// that was aborted. Pre-emptively killed delegations are not counted:
	// an un-started delegation was never running.
	AbortedCount int
	// DescendantConversations lists the realized descendants aborted,
	// excluding the direct target.
	DescendantConversations []Tuple
	// Preempted lists the un-started delegations marked killed.
	Preempted []Tuple
}

// AbortWithCascade aborts the first active execution of the pair and walks
// its delegation tree depth-first. Realized descendants (delegations whose
// recipient is already running) are aborted recursively; un-started
// delegations get a permanent killed marker so their eventual execution is
// treated as aborted the moment it is created. Already-aborted nodes are
// no-ops, so overlapping cascades neither double-count nor deadlock.
//
// The registry lock is held for the whole traversal: when this returns,
// registry state is Aborted for every realized descendant. A cooldown entry
// is written for each aborted pair.
//
// Calling this for a pair with no active execution is a no-op returning a
// zero result; the orchestrator confirms existence before calling.
func (r *Registry) AbortWithCascade(agentPubkey, conversationID, projectID, reason string, cooldowns CooldownWriter) CascadeResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res CascadeResult
	key := pairKey{agent: agentPubkey, conversation: conversationID}
	if r.firstActiveLocked(key) == nil {
		r.logger.Warn("cascade abort requested for pair with no active execution",
			"agent", agentPubkey,
			"conversation", conversationID,
		)
		return res
	}

	r.abortLocked(key, reason, cooldowns, &res, true)

	r.logger.Info("cascade abort completed",
		"agent", agentPubkey,
		"conversation", conversationID,
		"project", projectID,
		"reason", reason,
		"aborted", res.AbortedCount,
		"preempted", len(res.Preempted),
	)
	return res
}

// PreemptiveKill marks every un-started delegation addressed to the
// conversation as killed, without running a cascade. Used when a kill
// targets a conversation that has pending delegations but no running
// executions yet. Returns the would-be (conversation, agent) tuples.
func (r *Registry) PreemptiveKill(conversationID string) []Tuple {
	r.mu.Lock()
	defer r.mu.Unlock()

	recipients := r.pendingRecipientsLocked(conversationID)

	var res CascadeResult
	for _, t := range recipients {
		r.markKilledLocked(pairKey{agent: t.AgentPubkey, conversation: t.ConversationID}, &res, nil)
	}

	r.logger.Info("pre-emptive kill",
		"conversation", conversationID,
		"marked", len(res.Preempted),
	)
	return res.Preempted
}

// abortLocked aborts the first active execution of the pair and recurses
// over its pending delegations. direct marks the root of the cascade; it
// only affects which tuples land in DescendantConversations.
func (r *Registry) abortLocked(key pairKey, reason string, cooldowns CooldownWriter, res *CascadeResult, direct bool) {
	ral := r.firstActiveLocked(key)
	if ral == nil {
		// Already aborted (or completed) by an overlapping cascade.
		return
	}

	ral.State = StateAborted
	ral.EndedAt = time.Now()
	ral.AbortReason = reason
	res.AbortedCount++
	if !direct {
		res.DescendantConversations = append(res.DescendantConversations, Tuple{
			ConversationID: key.conversation,
			AgentPubkey:    key.agent,
		})
	}
	if cooldowns != nil {
		cooldowns.Add(key.conversation, key.agent)
	}

	for _, d := range ral.pending {
		childKey := pairKey{agent: d.RecipientPubkey, conversation: d.DelegationConversationID}
		if r.firstActiveLocked(childKey) != nil {
			r.abortLocked(childKey, reason, cooldowns, res, false)
		} else {
			r.markKilledLocked(childKey, res, cooldowns)
		}
	}
}

// markKilledLocked sets a permanent killed marker for an un-started
// delegation and recurses into any delegations already recorded under the
// pair, so a whole requested-but-unstarted subtree dies with its root.
func (r *Registry) markKilledLocked(key pairKey, res *CascadeResult, cooldowns CooldownWriter) {
	if _, already := r.killed[key]; already {
		return
	}
	r.killed[key] = struct{}{}
	res.Preempted = append(res.Preempted, Tuple{
		ConversationID: key.conversation,
		AgentPubkey:    key.agent,
	})

	// A non-active execution for the pair may still hold delegation
	// records (merged before it was aborted). Propagate to those too.
	for _, ral := range r.rals[key] {
		for _, d := range ral.pending {
			childKey := pairKey{agent: d.RecipientPubkey, conversation: d.DelegationConversationID}
			if r.firstActiveLocked(childKey) != nil {
				r.abortLocked(childKey, "parent killed before start", cooldowns, res, false)
			} else {
				r.markKilledLocked(childKey, res, cooldowns)
			}
		}
	}
}
