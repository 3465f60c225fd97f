// ABOUTME: Tests for the conversation store and prefix index
// ABOUTME: Validates registration, active-agent tracking, and prefix collisions

package convo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	convID      = "1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"
	otherConvID = "fedcba0987654321fedcba0987654321fedcba0987654321fedcba0987654321"
	// Shares the first 12 chars with convID.
	collidingID = "1234567890abffffffffffffffffffffffffffffffffffffffffffffffffffff"
)

func TestCreateAndGet(t *testing.T) {
	s := NewStore(nil)

	c, err := s.Create(convID, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, convID, c.ID())
	assert.Equal(t, "proj-1", c.ProjectID())

	assert.True(t, s.Has(convID))
	got, ok := s.Get(convID)
	require.True(t, ok)
	assert.Same(t, c, got)

	_, ok = s.Get(otherConvID)
	assert.False(t, ok)
}

func TestCreate_InvalidID(t *testing.T) {
	s := NewStore(nil)

	for _, id := range []string{
		"",
		"abc",
		convID[:63],
		convID + "ff",
		strings.ToUpper(convID),
		strings.Repeat("z", 64),
	} {
		_, err := s.Create(id, "proj-1")
		assert.ErrorIs(t, err, ErrInvalidConversationID, "id %q", id)
	}
	assert.Empty(t, s.All())
}

func TestCreate_Duplicate(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Create(convID, "proj-1")
	require.NoError(t, err)

	_, err = s.Create(convID, "proj-2")
	assert.ErrorIs(t, err, ErrDuplicateConversation)
}

func TestAll_SortedByID(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Create(otherConvID, "proj-1")
	require.NoError(t, err)
	_, err = s.Create(convID, "proj-1")
	require.NoError(t, err)

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, convID, all[0].ID())
	assert.Equal(t, otherConvID, all[1].ID())
}

func TestActiveAgentTracking(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Create(convID, "proj-1")
	require.NoError(t, err)

	s.MarkActive(convID, "agent-a", 1)
	s.MarkActive(convID, "agent-b", 1)
	s.MarkActive(convID, "agent-a", 2)

	c, _ := s.Get(convID)
	assert.Equal(t, []string{"agent-a", "agent-b"}, c.ActiveAgents())
	assert.Equal(t, []int{1, 2}, c.ActiveRALs("agent-a"))

	// One of agent-a's executions ends; the agent stays active.
	s.MarkInactive(convID, "agent-a", 1)
	assert.Equal(t, []string{"agent-a", "agent-b"}, c.ActiveAgents())

	// The last one ends; agent-a drops out.
	s.MarkInactive(convID, "agent-a", 2)
	assert.Equal(t, []string{"agent-b"}, c.ActiveAgents())

	// Marks against unknown conversations are ignored.
	s.MarkActive(otherConvID, "agent-x", 1)
	s.MarkInactive(otherConvID, "agent-x", 1)
}

func TestClearAgent(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Create(convID, "proj-1")
	require.NoError(t, err)

	s.MarkActive(convID, "agent-a", 1)
	s.MarkActive(convID, "agent-a", 2)
	s.MarkActive(convID, "agent-b", 1)

	// Drops every execution of the agent, not one ral at a time.
	s.ClearAgent(convID, "agent-a")

	c, _ := s.Get(convID)
	assert.Equal(t, []string{"agent-b"}, c.ActiveAgents())
	assert.Empty(t, c.ActiveRALs("agent-a"))

	// Unknown agents and conversations are ignored.
	s.ClearAgent(convID, "agent-x")
	s.ClearAgent(otherConvID, "agent-b")
	assert.Equal(t, []string{"agent-b"}, c.ActiveAgents())
}

func TestPrefixIndex(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Create(convID, "proj-1")
	require.NoError(t, err)

	idx := s.Index()
	assert.True(t, idx.Initialized())

	id, ok := idx.Lookup(convID[:12])
	require.True(t, ok)
	assert.Equal(t, convID, id)

	_, ok = idx.Lookup("abcdef123456")
	assert.False(t, ok)
}

func TestPrefixIndex_FirstRegistrationWins(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Create(convID, "proj-1")
	require.NoError(t, err)
	_, err = s.Create(collidingID, "proj-1")
	require.NoError(t, err)

	id, ok := s.Index().Lookup(convID[:12])
	require.True(t, ok)
	assert.Equal(t, convID, id)
}
