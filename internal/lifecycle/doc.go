// ABOUTME: Package documentation for the lifecycle package
// ABOUTME: Explains RAL tracking, delegation adjacency, and cascade semantics

// Package lifecycle tracks every agent execution the control plane knows
// about: running, finished, aborted, and merely requested.
//
// The unit of tracking is the RAL (Running Agent Lifecycle): one execution
// attempt of one agent inside one conversation. Agents delegate sub-tasks
// to other agents in child conversations; until a recipient actually starts,
// the delegation exists only as a PendingDelegation record held by the
// parent RAL. Those records form the delegation adjacency that cascading
// kills traverse.
//
// Two mechanisms make kills stick:
//
//   - Cascading abort: realized descendants (recipients already running)
//     are aborted depth-first, under one lock, before the call returns.
//   - Killed markers: un-started delegations get a permanent
//     (agent, conversation) marker. When the recipient later calls Create,
//     the execution is born Aborted and must not run.
//
// The registry is deliberately memory-only. Nothing here survives a process
// restart; a periodic Sweep bounds growth by evicting old terminal RALs.
package lifecycle
