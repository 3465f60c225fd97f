// ABOUTME: Package documentation for the convo package
// ABOUTME: Explains conversation registration and the short-prefix index

// Package convo is the in-process registry of conversations the control
// plane can act on.
//
// A conversation is a thread of agent work identified by a 64-hex event id
// and owned by exactly one project. Only canonical ids are accepted at
// registration. The store mirrors which agents currently have running
// executions in each conversation and maintains the 12-hex prefix index
// that lets operators name conversations by short id. The lifecycle
// registry stays authoritative for liveness; the kill path reconciles this
// mirror after every cascade.
package convo
