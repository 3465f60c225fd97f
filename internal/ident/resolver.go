// ABOUTME: Classifies external kill-target identifiers into a closed tagged variant
// ABOUTME: Accepts hex ids, hex prefixes, shell task ids, NIP-19 strings, and legacy UUIDs

package ident

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// Kind is the classification of a kill target.
type Kind int

const (
	// KindUnresolved means no encoding matched; the caller may retry
	// against legacy lookup paths before failing.
	KindUnresolved Kind = iota
	// KindConversation is a 64-hex conversation (event) id.
	KindConversation
	// KindShell is a background shell task id.
	KindShell
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindConversation:
		return "conversation"
	case KindShell:
		return "shell"
	default:
		return "unresolved"
	}
}

// Target is the result of classifying one identifier.
type Target struct {
	Kind Kind
	ID   string // canonical id; empty when unresolved
}

// PrefixIndex resolves short conversation-id prefixes in O(1).
type PrefixIndex interface {
	Initialized() bool
	Lookup(prefix string) (string, bool)
}

// DelegationResolver is the registry-backed fallback for prefixes the
// index does not know: delegation conversations that were requested but
// never indexed.
type DelegationResolver interface {
	ResolveDelegationPrefix(prefix string) (string, bool)
}

var (
	hex64Re = regexp.MustCompile(`^[0-9a-f]{64}$`)
	hex12Re = regexp.MustCompile(`^[0-9a-f]{12}$`)
	// Shell task ids are 7 alphanumeric chars, a space disjoint from both
	// hex lengths by construction.
	shellIDRe = regexp.MustCompile(`^[a-z0-9]{7}$`)
	// Legacy background tasks used canonical UUIDs.
	uuidRe = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

// Resolver classifies raw identifier strings. It never mutates anything;
// collaborators are only consulted for prefix resolution.
type Resolver struct {
	prefixes    PrefixIndex
	delegations DelegationResolver
}

// NewResolver creates a resolver backed by the given prefix index and
// delegation fallback. Either may be nil, disabling that path.
func NewResolver(prefixes PrefixIndex, delegations DelegationResolver) *Resolver {
	return &Resolver{prefixes: prefixes, delegations: delegations}
}

// Resolve classifies the input into exactly one target kind. The checks
// run in a fixed order; the first match wins.
func (r *Resolver) Resolve(raw string) Target {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return Target{Kind: KindUnresolved}
	}

	// Already-canonical conversation id.
	if hex64Re.MatchString(s) {
		return Target{Kind: KindConversation, ID: s}
	}

	// 12-hex prefix: index first, then registry fallback. A prefix that
	// resolves nowhere stays unresolved; it is never reinterpreted as a
	// shell id even though it is also 12 alphanumeric chars.
	if hex12Re.MatchString(s) {
		if r.prefixes != nil && r.prefixes.Initialized() {
			if id, ok := r.prefixes.Lookup(s); ok {
				return Target{Kind: KindConversation, ID: id}
			}
		}
		if r.delegations != nil {
			if id, ok := r.delegations.ResolveDelegationPrefix(s); ok {
				return Target{Kind: KindConversation, ID: id}
			}
		}
		return Target{Kind: KindUnresolved}
	}

	if shellIDRe.MatchString(s) {
		return Target{Kind: KindShell, ID: s}
	}

	if strings.HasPrefix(s, "note1") || strings.HasPrefix(s, "nevent1") {
		if id, ok := decodeNIP19(s); ok {
			return Target{Kind: KindConversation, ID: id}
		}
		return Target{Kind: KindUnresolved}
	}

	if uuidRe.MatchString(s) {
		return Target{Kind: KindShell, ID: s}
	}

	return Target{Kind: KindUnresolved}
}

// decodeNIP19 extracts the embedded 32-byte event id from a note1/nevent1
// string, returning it as 64-char lowercase hex.
func decodeNIP19(s string) (string, bool) {
	prefix, value, err := nip19.Decode(s)
	if err != nil {
		return "", false
	}

	var id string
	switch prefix {
	case "note":
		id, _ = value.(string)
	case "nevent":
		if ptr, ok := value.(nostr.EventPointer); ok {
			id = ptr.ID
		}
	default:
		return "", false
	}

	id = strings.ToLower(id)
	if raw, err := hex.DecodeString(id); err != nil || len(raw) != 32 {
		return "", false
	}
	return id, true
}
