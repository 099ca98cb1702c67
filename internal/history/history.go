package history

import (
	"context"
	"log"
	"sync"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in an agent conversation. Immutable once appended.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// History holds the per-agent conversation transcripts used to prime
// subsequent task submissions. Turns are only ever appended in strict
// (user, assistant) pairs and only removed by an explicit clear.
type History struct {
	mu    sync.RWMutex
	turns map[string][]Turn
	store Store
}

func New() *History {
	return &History{turns: make(map[string][]Turn)}
}

// SetStore attaches an optional snapshot store. Persistence is best-effort:
// a store failure never blocks the in-memory transcript.
func (h *History) SetStore(store Store) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.store = store
}

// Restore seeds the in-memory transcripts from the store. Existing in-memory
// turns for an agent are replaced, not merged.
func (h *History) Restore(ctx context.Context) error {
	h.mu.Lock()
	store := h.store
	h.mu.Unlock()
	if store == nil {
		return nil
	}

	loaded, err := store.LoadAll(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for agentType, turns := range loaded {
		h.turns[agentType] = turns
	}
	return nil
}

// AppendExchange appends one user turn and one assistant turn for the agent.
func (h *History) AppendExchange(agentType, userText, assistantText string) {
	now := time.Now().UTC()
	pair := []Turn{
		{Role: RoleUser, Content: userText, Timestamp: now},
		{Role: RoleAssistant, Content: assistantText, Timestamp: now},
	}

	h.mu.Lock()
	h.turns[agentType] = append(h.turns[agentType], pair...)
	store := h.store
	h.mu.Unlock()

	if store != nil {
		if err := store.SaveTurns(context.Background(), agentType, pair); err != nil {
			log.Printf("history: persist exchange for %q failed: %v", agentType, err)
		}
	}
}

// Snapshot returns a copy of the agent's transcript, oldest first.
func (h *History) Snapshot(agentType string) []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	turns := h.turns[agentType]
	if len(turns) == 0 {
		return nil
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// SnapshotAll returns a copy of every agent's transcript.
func (h *History) SnapshotAll() map[string][]Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string][]Turn, len(h.turns))
	for agentType, turns := range h.turns {
		cp := make([]Turn, len(turns))
		copy(cp, turns)
		out[agentType] = cp
	}
	return out
}

// Clear removes only the named agent's transcript.
func (h *History) Clear(agentType string) {
	h.mu.Lock()
	delete(h.turns, agentType)
	store := h.store
	h.mu.Unlock()

	if store != nil {
		if err := store.DeleteAgent(context.Background(), agentType); err != nil {
			log.Printf("history: clear %q in store failed: %v", agentType, err)
		}
	}
}

// ClearAll empties every transcript.
func (h *History) ClearAll() {
	h.mu.Lock()
	h.turns = make(map[string][]Turn)
	store := h.store
	h.mu.Unlock()

	if store != nil {
		if err := store.DeleteAll(context.Background()); err != nil {
			log.Printf("history: clear all in store failed: %v", err)
		}
	}
}

// Len reports the number of turns recorded for the agent.
func (h *History) Len(agentType string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns[agentType])
}
