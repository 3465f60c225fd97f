// ABOUTME: Package documentation for the api package
// ABOUTME: Describes the HTTP surface and its project scoping

// Package api exposes the execution-control plane over HTTP.
//
// POST /api/kill takes {"target": ..., "reason": ...} and returns the
// full kill result. The actor and project scope come from the verified
// bearer token, never from the body. GET /api/executions and
// GET /api/tasks list live state scoped to the caller's project; a
// caller with no project context sees an empty list rather than an
// error. GET /api/kills reads back the persisted audit log.
//
// Agent runtimes feed the live registries through the ingest endpoints:
// POST /api/conversations registers a conversation under a project,
// POST /api/executions records an execution start (reporting whether a
// pre-emptive kill already landed on the pair), POST
// /api/executions/complete retires it, POST /api/delegations merges
// fan-out targets onto a running execution, and POST /api/tasks
// registers a background shell task.
//
// GET /healthz is unauthenticated.
package api
