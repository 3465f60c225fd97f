// ABOUTME: Package documentation for the kill package
// ABOUTME: Explains the end-to-end kill flow and its guarantees

// Package kill is the control plane's forced-termination path.
//
// A kill names a target in any accepted encoding. The orchestrator
// classifies it, locates it in the conversation store or the background
// task table, verifies the caller's project matches the target's, and then
// dispatches:
//
//   - Shell targets get a SIGTERM; an already-dead process is success.
//   - Conversations with running executions get a cascading abort: the
//     first active agent's execution and every realized descendant in its
//     delegation tree are aborted before the call returns, and un-started
//     delegations are marked killed so they can never run.
//   - Conversations that exist only as pending delegations are killed
//     pre-emptively by marking every would-be execution.
//
// Every outcome, including denials and not-found, comes back as a
// structured Result. Kills are idempotent: repeating one finds nothing
// active and reports so cleanly. A kill cannot itself be cancelled.
package kill
