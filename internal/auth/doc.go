// ABOUTME: Package documentation for the auth package
// ABOUTME: Explains caller identity and how project scope reaches the kill path

// Package auth verifies who is asking.
//
// Callers present an HS256-signed JWT whose "sub" claim names the
// principal and whose "project" claim carries their tenant scope. The
// HTTP middleware verifies the token and threads the resulting Identity
// through the request context; the kill path reads the project id from it
// and feeds the authorization guard. A token without a project claim is
// valid but scopeless: every project-gated operation it attempts is
// denied with a "no caller context" result rather than an auth error.
package auth
