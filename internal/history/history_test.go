package history

import (
	"context"
	"testing"
)

func TestAppendExchangeKeepsPairOrder(t *testing.T) {
	h := New()
	h.AppendExchange("scout", "run tests", "All tests passed")
	h.AppendExchange("scout", "deploy", "Deployed")

	turns := h.Snapshot("scout")
	if len(turns) != 4 {
		t.Fatalf("Snapshot() len = %d, want 4", len(turns))
	}
	wantRoles := []Role{RoleUser, RoleAssistant, RoleUser, RoleAssistant}
	for i, want := range wantRoles {
		if turns[i].Role != want {
			t.Fatalf("turns[%d].Role = %q, want %q", i, turns[i].Role, want)
		}
	}
	if turns[2].Content != "deploy" || turns[3].Content != "Deployed" {
		t.Fatalf("second exchange = %q/%q, want deploy/Deployed", turns[2].Content, turns[3].Content)
	}
}

func TestClearRemovesOnlyNamedAgent(t *testing.T) {
	h := New()
	h.AppendExchange("explorer", "a", "b")
	h.AppendExchange("scout", "c", "d")

	h.Clear("explorer")
	if got := h.Len("explorer"); got != 0 {
		t.Fatalf("explorer Len() = %d, want 0", got)
	}
	if got := h.Len("scout"); got != 2 {
		t.Fatalf("scout Len() = %d, want 2", got)
	}

	h.ClearAll()
	if got := h.Len("scout"); got != 0 {
		t.Fatalf("scout Len() after ClearAll = %d, want 0", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	h := New()
	h.AppendExchange("scout", "a", "b")

	snap := h.Snapshot("scout")
	snap[0].Content = "mutated"

	if got := h.Snapshot("scout")[0].Content; got != "a" {
		t.Fatalf("Snapshot()[0].Content = %q, want %q", got, "a")
	}
}

func TestRestoreFromStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	first := New()
	first.SetStore(store)
	first.AppendExchange("scout", "run tests", "All tests passed")

	second := New()
	second.SetStore(store)
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	turns := second.Snapshot("scout")
	if len(turns) != 2 {
		t.Fatalf("restored Len = %d, want 2", len(turns))
	}
	if turns[0].Content != "run tests" || turns[1].Content != "All tests passed" {
		t.Fatalf("restored turns = %q/%q, want run tests/All tests passed", turns[0].Content, turns[1].Content)
	}
}

func TestClearPropagatesToStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	h := New()
	h.SetStore(store)
	h.AppendExchange("scout", "a", "b")
	h.Clear("scout")

	loaded, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(loaded["scout"]) != 0 {
		t.Fatalf("store scout turns = %d, want 0", len(loaded["scout"]))
	}
}
