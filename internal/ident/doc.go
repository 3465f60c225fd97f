// ABOUTME: Package documentation for the ident package
// ABOUTME: Explains the layered identifier classification scheme

// Package ident classifies the identifier strings operators and agents use
// to name a kill target.
//
// Targets arrive in several encodings that grew up alongside each other:
// full 64-hex conversation ids, 12-hex prefixes, 7-char shell task ids,
// NIP-19 bech32 strings (note1/nevent1), and legacy UUID task ids. Rather
// than scattering prefix sniffing across the codebase, Resolve maps an
// input to a closed Target variant that callers switch over exhaustively.
//
// Classification is pure. The only collaborators are read-only prefix
// lookups; unresolved inputs are the orchestrator's problem, which retries
// them against legacy store lookups before giving up.
package ident
