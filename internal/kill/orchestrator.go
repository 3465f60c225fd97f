// ABOUTME: Top-level controller executing a kill request end to end
// ABOUTME: Resolves the target, enforces project scope, and dispatches the kill

package kill

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/coven-execd/internal/authz"
	"github.com/2389/coven-execd/internal/convo"
	"github.com/2389/coven-execd/internal/cooldown"
	"github.com/2389/coven-execd/internal/ident"
	"github.com/2389/coven-execd/internal/lifecycle"
	"github.com/2389/coven-execd/internal/tasks"
)

// ConversationStore defines what the orchestrator needs from the
// conversation registry.
type ConversationStore interface {
	Has(id string) bool
	Get(id string) (*convo.Conversation, bool)
	All() []*convo.Conversation
	ClearAgent(conversationID, agentPubkey string)
}

// TaskTable defines what the orchestrator needs from the background task
// registry.
type TaskTable interface {
	Info(id string) (*tasks.Info, bool)
	All() []*tasks.Info
	Kill(id string) tasks.KillOutcome
}

// Auditor records kill attempts. Recording is best-effort; a failing audit
// sink never fails the kill.
type Auditor interface {
	RecordKill(ctx context.Context, entry AuditEntry) error
}

// Orchestrator executes kill requests against the live registries.
type Orchestrator struct {
	resolver      *ident.Resolver
	registry      *lifecycle.Registry
	cooldowns     *cooldown.Registry
	conversations ConversationStore
	taskTable     TaskTable
	auditor       Auditor // optional
	logger        *slog.Logger
}

// Params collects the orchestrator's collaborators.
type Params struct {
	Resolver      *ident.Resolver
	Registry      *lifecycle.Registry
	Cooldowns     *cooldown.Registry
	Conversations ConversationStore
	TaskTable     TaskTable
	Auditor       Auditor
	Logger        *slog.Logger
}

// NewOrchestrator creates a kill orchestrator.
func NewOrchestrator(p Params) *Orchestrator {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		resolver:      p.Resolver,
		registry:      p.Registry,
		cooldowns:     p.Cooldowns,
		conversations: p.Conversations,
		taskTable:     p.TaskTable,
		auditor:       p.Auditor,
		logger:        logger.With("component", "kill"),
	}
}

// Kill executes one kill request end to end and always returns a result.
// No retries happen here; cooldown entries and killed markers written by
// the cascade are visible before this returns.
func (o *Orchestrator) Kill(ctx context.Context, req Request) *Result {
	target := o.resolveTarget(req.Target)

	var res *Result
	switch target.Kind {
	case ident.KindShell:
		res = o.killShellTask(target.ID, req)
	case ident.KindConversation:
		res = o.killConversation(target.ID, req)
	default:
		res = o.notFound(req)
	}

	o.audit(ctx, req, res)
	o.logger.Info("kill request handled",
		"target", req.Target,
		"target_type", res.TargetType,
		"success", res.Success,
		"cascade_abort_count", res.CascadeAbortCount,
	)
	return res
}

// resolveTarget classifies the raw target, retrying unresolved inputs
// against legacy conversation-store lookups (direct id, then id prefix)
// before giving up.
func (o *Orchestrator) resolveTarget(raw string) ident.Target {
	target := o.resolver.Resolve(raw)
	if target.Kind != ident.KindUnresolved {
		return target
	}

	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return target
	}

	if o.conversations.Has(s) {
		return ident.Target{Kind: ident.KindConversation, ID: s}
	}
	for _, c := range o.conversations.All() {
		if strings.HasPrefix(c.ID(), s) {
			return ident.Target{Kind: ident.KindConversation, ID: c.ID()}
		}
	}
	return target
}

// killShellTask terminates a background shell task.
func (o *Orchestrator) killShellTask(id string, req Request) *Result {
	info, ok := o.taskTable.Info(id)
	if !ok {
		return o.notFound(req)
	}

	if decision := authz.Check(req.CallerProjectID, info.ProjectID); decision != authz.Allowed {
		return &Result{
			Success:    false,
			Message:    authz.DenialMessage(decision),
			Target:     req.Target,
			TargetType: TargetTypeShell,
		}
	}

	outcome := o.taskTable.Kill(id)
	return &Result{
		Success:    outcome.Success,
		Message:    outcome.Message,
		Target:     req.Target,
		TargetType: TargetTypeShell,
		PID:        outcome.PID,
		TaskInfo: &TaskDetails{
			Command:     info.Command,
			Description: info.Description,
			OutputFile:  info.OutputFile,
			StartTime:   info.StartTime,
		},
	}
}

// killConversation aborts agent work in a conversation: a cascading abort
// when executions are running, a pre-emptive kill when only pending
// delegations address it.
func (o *Orchestrator) killConversation(id string, req Request) *Result {
	conv, ok := o.conversations.Get(id)
	if !ok {
		return o.notFound(req)
	}

	projectID := conv.ProjectID()
	if projectID == "" {
		return &Result{
			Success:    false,
			Message:    "conversation has no project; cannot verify scope",
			Target:     req.Target,
			TargetType: TargetTypeAgent,
		}
	}
	if decision := authz.Check(req.CallerProjectID, projectID); decision != authz.Allowed {
		return &Result{
			Success:    false,
			Message:    authz.DenialMessage(decision),
			Target:     req.Target,
			TargetType: TargetTypeAgent,
		}
	}

	// The registry is the authoritative liveness view. The conversation's
	// own active list is a mirror that lags behind aborts, so trusting it
	// here would leave later agents unkillable after the first cascade.
	active := o.registry.ActiveAgents(id)
	if len(active) == 0 {
		return o.killPendingOnly(id, req)
	}

	// Several agents active: operate on the first.
	agent := active[0]
	cascade := o.registry.AbortWithCascade(agent, id, projectID, req.Reason, o.cooldowns)
	if cascade.AbortedCount == 0 {
		// The execution completed between the liveness check and the
		// cascade. Idempotent outcome.
		return &Result{
			Success:    false,
			Message:    "no active agents found in conversation",
			Target:     req.Target,
			TargetType: TargetTypeAgent,
		}
	}

	o.syncMirror(id, agent)
	for _, d := range cascade.DescendantConversations {
		o.syncMirror(d.ConversationID, d.AgentPubkey)
	}

	tuples := append([]lifecycle.Tuple{{ConversationID: id, AgentPubkey: agent}}, cascade.DescendantConversations...)
	return &Result{
		Success:           true,
		Message:           fmt.Sprintf("aborted %d execution(s)", cascade.AbortedCount),
		Target:            req.Target,
		TargetType:        TargetTypeAgent,
		CascadeAbortCount: 1 + len(cascade.DescendantConversations),
		AbortedTuples:     tuples,
		PreemptedTuples:   cascade.Preempted,
	}
}

// syncMirror drops the pair from the conversation store's active list once
// the registry reports nothing running for it.
func (o *Orchestrator) syncMirror(conversationID, agentPubkey string) {
	if !o.registry.HasActive(agentPubkey, conversationID) {
		o.conversations.ClearAgent(conversationID, agentPubkey)
	}
}

// killPendingOnly handles a conversation with no running executions. If
// pending delegations address it, they are killed pre-emptively; otherwise
// there is nothing to kill.
func (o *Orchestrator) killPendingOnly(id string, req Request) *Result {
	pending := o.registry.PendingRecipients(id)
	if len(pending) == 0 {
		return &Result{
			Success:    false,
			Message:    "no active agents found in conversation",
			Target:     req.Target,
			TargetType: TargetTypeAgent,
		}
	}

	tuples := o.registry.PreemptiveKill(id)
	return &Result{
		Success:         true,
		Message:         fmt.Sprintf("pre-emptively killed %d pending delegation(s); nothing was running yet", len(tuples)),
		Target:          req.Target,
		TargetType:      TargetTypeAgent,
		PreemptedTuples: tuples,
	}
}

// notFound builds the failure result for targets that resolve to nothing.
// TargetType reports "agent" here regardless of the input's shape; clients
// depend on that default. The hint lists only resources in the caller's
// own project; without caller context it enumerates nothing.
func (o *Orchestrator) notFound(req Request) *Result {
	return &Result{
		Success:    false,
		Message:    o.notFoundMessage(req.CallerProjectID),
		Target:     req.Target,
		TargetType: TargetTypeAgent,
	}
}

// notFoundMessage builds the scoped hint for a not-found failure.
func (o *Orchestrator) notFoundMessage(callerProjectID string) string {
	if callerProjectID == "" {
		return "target not found"
	}

	var convIDs, taskIDs []string
	for _, c := range o.conversations.All() {
		if c.ProjectID() != callerProjectID {
			continue
		}
		// Registered ids are canonical 64-hex, but never trust that when
		// slicing for display.
		short := c.ID()
		if len(short) > 12 {
			short = short[:12]
		}
		convIDs = append(convIDs, short)
	}
	for _, t := range o.taskTable.All() {
		if t.ProjectID == callerProjectID {
			taskIDs = append(taskIDs, t.ID)
		}
	}

	msg := "target not found"
	if len(convIDs) > 0 {
		msg += "; known conversations: " + strings.Join(convIDs, ", ")
	}
	if len(taskIDs) > 0 {
		msg += "; background tasks: " + strings.Join(taskIDs, ", ")
	}
	return msg
}

// audit records the outcome, logging instead of failing when the sink errors.
func (o *Orchestrator) audit(ctx context.Context, req Request, res *Result) {
	if o.auditor == nil {
		return
	}
	entry := AuditEntry{
		Actor:             req.Actor,
		Target:            req.Target,
		TargetType:        res.TargetType,
		Reason:            req.Reason,
		Success:           res.Success,
		Message:           res.Message,
		CascadeAbortCount: res.CascadeAbortCount,
	}
	if err := o.auditor.RecordKill(ctx, entry); err != nil {
		o.logger.Error("failed to record kill audit entry", "error", err, "target", req.Target)
	}
}
