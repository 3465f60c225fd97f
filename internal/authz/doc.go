// ABOUTME: Package documentation for the authz package
// ABOUTME: Explains the project-scope boundary enforced on kill operations

// Package authz enforces the multi-tenant boundary for kill operations.
//
// Every kill target, whether an agent conversation or a background shell
// task, is owned by exactly one project. A kill is only permitted when the
// caller's project matches the target's. The check is a pure predicate:
// callers pass both project IDs in and get a closed Decision back, so the
// same rule applies identically on every code path that locates a target.
//
// Two distinct denials exist so operators can tell configuration problems
// (no caller context at all) apart from genuine cross-tenant attempts.
// Denial messages are written to never reveal what exists in other projects.
package authz
