package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ppastore/dayflow/internal/observability"
	"github.com/ppastore/dayflow/internal/protocol"
)

// Type classifies a wellness push.
type Type string

const (
	TypeStress  Type = "stress"
	TypeStandup Type = "standup"
	TypeRetro   Type = "retro"
)

// Priority orders how urgently a notification should be surfaced.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

var ErrNotFound = errors.New("notification not found")

// Notification is an unsolicited hub push awaiting user attention.
// Immutable once created.
type Notification struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Priority  Priority        `json:"priority"`
	Message   string          `json:"message"`
	SessionID string          `json:"session_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// SessionOpener loads a wellness session by id. Implemented by the wellness
// coordinator; opening and dismissal are coupled so a session is never
// orphaned from its triggering notification.
type SessionOpener interface {
	Open(ctx context.Context, sessionID, date string) error
}

// Queue is the ordered, newest-first notification queue. The UI only ever
// surfaces the head element; dismissal removes by id wherever the element sits.
type Queue struct {
	mu          sync.Mutex
	items       []Notification
	dedupWindow time.Duration
	metrics     *observability.Metrics
	now         func() time.Time
}

// NewQueue builds a queue. dedupWindow of zero disables suppression of
// identical repeated pushes, matching the reference behavior.
func NewQueue(dedupWindow time.Duration, metrics *observability.Metrics) *Queue {
	return &Queue{
		dedupWindow: dedupWindow,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Receive maps a hub push event to a Notification and prepends it. Returns
// false for non-notification events and for pushes suppressed by the dedup
// window.
func (q *Queue) Receive(evt any) (Notification, bool) {
	var n Notification
	switch e := evt.(type) {
	case protocol.NotifyStress:
		n = Notification{Type: TypeStress, Priority: PriorityHigh, Message: e.Message, Data: e.Data}
	case protocol.NotifyStandup:
		n = Notification{Type: TypeStandup, Priority: PriorityNormal, Message: e.Message, SessionID: e.SessionID, Data: e.Data}
	case protocol.NotifyRetro:
		n = Notification{Type: TypeRetro, Priority: PriorityNormal, Message: e.Message, SessionID: e.SessionID, Data: e.Data}
	default:
		return Notification{}, false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	n.Timestamp = q.now().UTC()
	n.ID = fmt.Sprintf("%s-%d", n.Type, n.Timestamp.UnixMilli())

	if q.dedupWindow > 0 {
		for _, existing := range q.items {
			if existing.Type == n.Type && existing.Message == n.Message &&
				n.Timestamp.Sub(existing.Timestamp) < q.dedupWindow {
				q.metrics.ObserveNotification(string(n.Type), "deduped")
				return Notification{}, false
			}
		}
	}

	q.items = append([]Notification{n}, q.items...)
	q.metrics.ObserveNotification(string(n.Type), "received")
	return n, true
}

// Peek returns the head element without mutating the queue.
func (q *Queue) Peek() (Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Notification{}, false
	}
	return q.items[0], true
}

// Get returns the element with the given id.
func (q *Queue) Get(id string) (Notification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, n := range q.items {
		if n.ID == id {
			return n, true
		}
	}
	return Notification{}, false
}

// Dismiss removes the element with the given id wherever it sits.
// No-op when absent.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			q.metrics.ObserveNotification(string(n.Type), "dismissed")
			return true
		}
	}
	return false
}

// Open loads the linked wellness session and then dismisses the
// notification. On load failure neither effect happens: the queue item stays
// and no session state changes. Notifications without a session id are simply
// dismissed.
func (q *Queue) Open(ctx context.Context, id string, opener SessionOpener, date string) error {
	n, ok := q.Get(id)
	if !ok {
		return ErrNotFound
	}
	if n.SessionID != "" {
		if opener == nil {
			return errors.New("no session opener configured")
		}
		if err := opener.Open(ctx, n.SessionID, date); err != nil {
			return err
		}
	}
	q.Dismiss(id)
	q.metrics.ObserveNotification(string(n.Type), "opened")
	return nil
}

// List returns a snapshot of the queue, newest first.
func (q *Queue) List() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notification, len(q.items))
	copy(out, q.items)
	return out
}

// Len reports the queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
