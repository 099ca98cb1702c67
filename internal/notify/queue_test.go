package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ppastore/dayflow/internal/protocol"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestQueue(dedupWindow time.Duration) (*Queue, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)}
	q := NewQueue(dedupWindow, nil)
	q.now = clock.now
	return q, clock
}

func TestReceiveMapsPushPayloads(t *testing.T) {
	q, clock := newTestQueue(0)

	stress, ok := q.Receive(protocol.NotifyStress{Message: "take a break"})
	if !ok {
		t.Fatalf("Receive(stress) ok = false, want true")
	}
	if stress.Type != TypeStress || stress.Priority != PriorityHigh {
		t.Fatalf("stress = %+v, want high priority stress", stress)
	}

	clock.advance(time.Second)
	standup, ok := q.Receive(protocol.NotifyStandup{SessionID: "s1", Message: "morning standup"})
	if !ok {
		t.Fatalf("Receive(standup) ok = false, want true")
	}
	if standup.Priority != PriorityNormal || standup.SessionID != "s1" {
		t.Fatalf("standup = %+v, want normal priority with session id", standup)
	}

	// Non-notification events are not enqueued.
	if _, ok := q.Receive(protocol.TaskChunk{TaskID: "t1"}); ok {
		t.Fatalf("Receive(task event) ok = true, want false")
	}

	// Newest-first: the standup arrived last and is the head.
	head, ok := q.Peek()
	if !ok {
		t.Fatalf("Peek() ok = false, want true")
	}
	if head.ID != standup.ID {
		t.Fatalf("head = %q, want newest %q", head.ID, standup.ID)
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
}

func TestDismissRemovesByIDAnywhere(t *testing.T) {
	q, clock := newTestQueue(0)

	older, _ := q.Receive(protocol.NotifyStress{Message: "one"})
	clock.advance(time.Second)
	newer, _ := q.Receive(protocol.NotifyStress{Message: "two"})

	// Dismiss the non-head element.
	if !q.Dismiss(older.ID) {
		t.Fatalf("Dismiss(older) = false, want true")
	}
	head, _ := q.Peek()
	if head.ID != newer.ID {
		t.Fatalf("head after dismiss = %q, want %q", head.ID, newer.ID)
	}

	// Dismissing an unknown id is a no-op.
	if q.Dismiss("missing") {
		t.Fatalf("Dismiss(missing) = true, want false")
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}
}

func TestIdenticalPushesAreNotDeduplicatedByDefault(t *testing.T) {
	q, clock := newTestQueue(0)

	q.Receive(protocol.NotifyStress{Message: "take a break"})
	clock.advance(500 * time.Millisecond)
	q.Receive(protocol.NotifyStress{Message: "take a break"})

	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 entries for identical pushes", q.Len())
	}
}

func TestDedupWindowSuppressesRepeats(t *testing.T) {
	q, clock := newTestQueue(time.Minute)

	if _, ok := q.Receive(protocol.NotifyStress{Message: "take a break"}); !ok {
		t.Fatalf("first push suppressed, want admitted")
	}
	clock.advance(30 * time.Second)
	if _, ok := q.Receive(protocol.NotifyStress{Message: "take a break"}); ok {
		t.Fatalf("repeat inside window admitted, want suppressed")
	}
	clock.advance(time.Minute)
	if _, ok := q.Receive(protocol.NotifyStress{Message: "take a break"}); !ok {
		t.Fatalf("repeat outside window suppressed, want admitted")
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
}

type fakeOpener struct {
	calls []string
	err   error
}

func (f *fakeOpener) Open(_ context.Context, sessionID, date string) error {
	f.calls = append(f.calls, sessionID+"@"+date)
	return f.err
}

func TestOpenCouplesSessionLoadWithDismissal(t *testing.T) {
	q, _ := newTestQueue(0)
	opener := &fakeOpener{}

	n, _ := q.Receive(protocol.NotifyStandup{SessionID: "s1", Message: "standup"})
	if err := q.Open(context.Background(), n.ID, opener, "2026-03-09"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(opener.calls) != 1 || opener.calls[0] != "s1@2026-03-09" {
		t.Fatalf("opener calls = %v, want [s1@2026-03-09]", opener.calls)
	}
	if q.Len() != 0 {
		t.Fatalf("Len() after open = %d, want 0", q.Len())
	}
}

func TestOpenFailureLeavesQueueUntouched(t *testing.T) {
	q, _ := newTestQueue(0)
	opener := &fakeOpener{err: errors.New("backend down")}

	n, _ := q.Receive(protocol.NotifyRetro{SessionID: "s2", Message: "retro"})
	if err := q.Open(context.Background(), n.ID, opener, "2026-03-09"); err == nil {
		t.Fatalf("Open() = nil, want error")
	}
	if q.Len() != 1 {
		t.Fatalf("Len() after failed open = %d, want 1", q.Len())
	}

	if err := q.Open(context.Background(), "missing", opener, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Open(missing) error = %v, want ErrNotFound", err)
	}
}

func TestOpenWithoutSessionJustDismisses(t *testing.T) {
	q, _ := newTestQueue(0)
	opener := &fakeOpener{}

	n, _ := q.Receive(protocol.NotifyStress{Message: "breathe"})
	if err := q.Open(context.Background(), n.ID, opener, ""); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(opener.calls) != 0 {
		t.Fatalf("opener calls = %v, want none for a session-less push", opener.calls)
	}
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", q.Len())
	}
}
