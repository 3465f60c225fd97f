// ABOUTME: Conversation entity tracking project ownership and active executions
// ABOUTME: Conversations are 64-hex identified threads scoped to one project

package convo

import "sync"

// Conversation is one thread of agent work. Conversations form a tree via
// delegation, but each one is owned by exactly one project; authorization
// always re-derives the project from the conversation rather than trusting
// whatever execution record pointed at it.
type Conversation struct {
	id        string
	projectID string

	mu         sync.RWMutex
	active     map[string][]int // agent pubkey -> active ral numbers
	agentOrder []string         // agents in first-activation order
}

// newConversation creates a conversation owned by the given project.
func newConversation(id, projectID string) *Conversation {
	return &Conversation{
		id:        id,
		projectID: projectID,
		active:    make(map[string][]int),
	}
}

// ID returns the canonical 64-hex conversation id.
func (c *Conversation) ID() string { return c.id }

// ProjectID returns the owning project.
func (c *Conversation) ProjectID() string { return c.projectID }

// markActive records that an execution of the agent is running here.
func (c *Conversation) markActive(agentPubkey string, ralNumber int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, known := c.active[agentPubkey]; !known {
		c.agentOrder = append(c.agentOrder, agentPubkey)
	}
	c.active[agentPubkey] = append(c.active[agentPubkey], ralNumber)
}

// markInactive removes one execution of the agent. Agents with no active
// executions left disappear from ActiveAgents.
func (c *Conversation) markInactive(agentPubkey string, ralNumber int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rals := c.active[agentPubkey]
	for i, n := range rals {
		if n == ralNumber {
			rals = append(rals[:i], rals[i+1:]...)
			break
		}
	}
	if len(rals) == 0 {
		delete(c.active, agentPubkey)
		for i, a := range c.agentOrder {
			if a == agentPubkey {
				c.agentOrder = append(c.agentOrder[:i], c.agentOrder[i+1:]...)
				break
			}
		}
		return
	}
	c.active[agentPubkey] = rals
}

// clearAgent drops every active execution of the agent at once. Used when
// a cascade aborted the agent's executions and the individual ral numbers
// are no longer relevant.
func (c *Conversation) clearAgent(agentPubkey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, known := c.active[agentPubkey]; !known {
		return
	}
	delete(c.active, agentPubkey)
	for i, a := range c.agentOrder {
		if a == agentPubkey {
			c.agentOrder = append(c.agentOrder[:i], c.agentOrder[i+1:]...)
			break
		}
	}
}

// ActiveAgents returns the pubkeys with at least one running execution, in
// first-activation order. This mirrors the lifecycle registry's view; the
// kill path derives its target from the registry and reconciles this list
// after aborts.
func (c *Conversation) ActiveAgents() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, len(c.agentOrder))
	copy(out, c.agentOrder)
	return out
}

// ActiveRALs returns the running ral numbers for one agent.
func (c *Conversation) ActiveRALs(agentPubkey string) []int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]int, len(c.active[agentPubkey]))
	copy(out, c.active[agentPubkey])
	return out
}
