// ABOUTME: In-memory conversation store with an O(1) short-prefix index
// ABOUTME: Registry of known conversations keyed by canonical 64-hex id

package convo

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

// ErrDuplicateConversation is returned when creating a conversation whose
// id is already registered.
var ErrDuplicateConversation = errors.New("conversation already exists")

// ErrInvalidConversationID is returned when creating a conversation whose
// id is not a canonical 64-hex event id.
var ErrInvalidConversationID = errors.New("conversation id must be 64 lowercase hex characters")

// prefixLen is the short-id length accepted by lookup surfaces.
const prefixLen = 12

// Store is the in-process conversation registry. It owns the prefix index:
// every registered conversation is indexed by its first 12 hex chars, first
// registration winning (collision arbitration beyond that is out of scope).
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	index         *PrefixIndex
	logger        *slog.Logger
}

// NewStore creates an empty conversation store with a warm prefix index.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		conversations: make(map[string]*Conversation),
		index:         newPrefixIndex(),
		logger:        logger.With("component", "convo"),
	}
	return s
}

// Create registers a conversation owned by the given project. Only
// canonical 64-hex ids are accepted; lookup surfaces slice ids to the
// prefix length and rely on this invariant.
func (s *Store) Create(id, projectID string) (*Conversation, error) {
	if !validConversationID(id) {
		return nil, ErrInvalidConversationID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.conversations[id]; exists {
		return nil, ErrDuplicateConversation
	}

	c := newConversation(id, projectID)
	s.conversations[id] = c
	s.index.add(id)

	s.logger.Debug("conversation registered", "conversation", id, "project", projectID)
	return c, nil
}

// Has reports whether the id is registered.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.conversations[id]
	return ok
}

// Get returns the conversation with the given canonical id.
func (s *Store) Get(id string) (*Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	return c, ok
}

// All returns every registered conversation, sorted by id.
func (s *Store) All() []*Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// MarkActive records a running execution on the conversation.
func (s *Store) MarkActive(conversationID, agentPubkey string, ralNumber int) {
	if c, ok := s.Get(conversationID); ok {
		c.markActive(agentPubkey, ralNumber)
	}
}

// MarkInactive removes a no-longer-running execution from the conversation.
func (s *Store) MarkInactive(conversationID, agentPubkey string, ralNumber int) {
	if c, ok := s.Get(conversationID); ok {
		c.markInactive(agentPubkey, ralNumber)
	}
}

// ClearAgent removes every active execution of the agent from the
// conversation, regardless of ral numbers. The kill path calls this after
// a cascade so the active list converges with the lifecycle registry.
func (s *Store) ClearAgent(conversationID, agentPubkey string) {
	if c, ok := s.Get(conversationID); ok {
		c.clearAgent(agentPubkey)
	}
}

// validConversationID reports whether the id is 64 lowercase hex chars.
func validConversationID(id string) bool {
	if len(id) != 64 {
		return false
	}
	for _, ch := range id {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return false
		}
	}
	return true
}

// Index returns the prefix index maintained by this store.
func (s *Store) Index() *PrefixIndex { return s.index }

// PrefixIndex maps 12-hex conversation-id prefixes to full ids. It is
// maintained synchronously by the owning Store, so it is initialized from
// construction; the flag exists because external callers must fail over to
// slower scans whenever an index is not ready.
type PrefixIndex struct {
	mu      sync.RWMutex
	entries map[string]string
	ready   atomic.Bool
}

func newPrefixIndex() *PrefixIndex {
	idx := &PrefixIndex{entries: make(map[string]string)}
	idx.ready.Store(true)
	return idx
}

// Initialized reports whether the index can be trusted for lookups.
func (i *PrefixIndex) Initialized() bool { return i.ready.Load() }

// Lookup resolves a 12-hex prefix to a full conversation id.
func (i *PrefixIndex) Lookup(prefix string) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	id, ok := i.entries[prefix]
	return id, ok
}

// add indexes one conversation id. First registration wins on collision.
func (i *PrefixIndex) add(id string) {
	if len(id) < prefixLen {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	prefix := id[:prefixLen]
	if _, taken := i.entries[prefix]; taken {
		return
	}
	i.entries[prefix] = id
}
