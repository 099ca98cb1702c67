package wellness

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ppastore/dayflow/internal/history"
	"github.com/ppastore/dayflow/internal/observability"
)

// Phase is the session coordinator state machine.
type Phase string

const (
	PhaseClosed     Phase = "closed"
	PhaseLoading    Phase = "loading"
	PhaseOpen       Phase = "open"
	PhaseCompleting Phase = "completing"
)

var (
	ErrNoOpenSession   = errors.New("no session is open")
	ErrMessageInFlight = errors.New("a message is already in flight")
	ErrEmptyMessage    = errors.New("message text is required")
	ErrPlanRequired    = errors.New("a standup needs a non-empty plan")
	ErrSummaryRequired = errors.New("a retro needs accomplishments or notes")
	ErrSessionBusy     = errors.New("session is busy")
)

// API is the narrow backend surface the coordinator drives.
type API interface {
	FetchSession(ctx context.Context, sessionID, date string) (Session, error)
	SendMessage(ctx context.Context, date, sessionID, message string, conversation []history.Turn) (string, error)
	CompleteSession(ctx context.Context, date, sessionID string, summary Summary) error
}

// Snapshot is the read-only view exposed to the presentation layer.
type Snapshot struct {
	Phase   Phase   `json:"phase"`
	Session Session `json:"session"`
	Error   string  `json:"error,omitempty"`
}

// Coordinator manages the single active wellness session. Transcript turns
// are appended only as atomic (user, assistant) pairs after the server
// replies, so a failed send never desynchronizes the transcript.
type Coordinator struct {
	api     API
	metrics *observability.Metrics

	mu         sync.Mutex
	phase      Phase
	session    Session
	inFlight   bool
	lastErr    string
	generation int
}

func NewCoordinator(api API, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		api:     api,
		metrics: metrics,
		phase:   PhaseClosed,
	}
}

// Open fetches the session by id and date. Opening a second session
// implicitly discards the first. On fetch failure the coordinator stays
// closed and the error is surfaced via the snapshot.
func (c *Coordinator) Open(ctx context.Context, sessionID, date string) error {
	sessionID = strings.TrimSpace(sessionID)
	date = strings.TrimSpace(date)
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.phase = PhaseLoading
	c.session = Session{}
	c.inFlight = false
	c.lastErr = ""
	c.mu.Unlock()

	sess, err := c.api.FetchSession(ctx, sessionID, date)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		// A newer Open superseded this fetch.
		return nil
	}
	if err != nil {
		c.phase = PhaseClosed
		c.lastErr = err.Error()
		c.metrics.ObserveSessionOp("open", "error")
		return err
	}
	sess.Date = date
	c.session = sess
	c.phase = PhaseOpen
	c.metrics.ObserveSessionOp("open", "ok")
	return nil
}

// SendMessage exchanges one message with the backend. The user turn and the
// assistant reply are appended together only after the server responds; on
// failure neither is appended and the caller keeps the text for resubmission.
// Calls are serialized per session.
func (c *Coordinator) SendMessage(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}

	c.mu.Lock()
	if c.phase != PhaseOpen {
		c.mu.Unlock()
		return "", ErrNoOpenSession
	}
	if c.inFlight {
		c.mu.Unlock()
		return "", ErrMessageInFlight
	}
	c.inFlight = true
	gen := c.generation
	sessionID := c.session.ID
	date := c.session.Date
	conversation := make([]history.Turn, len(c.session.Conversation))
	copy(conversation, c.session.Conversation)
	c.mu.Unlock()

	reply, err := c.api.SendMessage(ctx, date, sessionID, text, conversation)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		// Session was closed or replaced while the call was in flight.
		return "", ErrNoOpenSession
	}
	c.inFlight = false
	if err != nil {
		c.lastErr = err.Error()
		c.metrics.ObserveSessionOp("message", "error")
		return "", err
	}

	now := time.Now().UTC()
	c.session.Conversation = append(c.session.Conversation,
		history.Turn{Role: history.RoleUser, Content: text, Timestamp: now},
		history.Turn{Role: history.RoleAssistant, Content: reply, Timestamp: now},
	)
	c.lastErr = ""
	c.metrics.ObserveSessionOp("message", "ok")
	return reply, nil
}

// Complete validates the type-specific summary client-side, then finalizes
// the session with the backend and drops it from active state.
func (c *Coordinator) Complete(ctx context.Context, summary Summary) error {
	c.mu.Lock()
	if c.phase != PhaseOpen {
		c.mu.Unlock()
		return ErrNoOpenSession
	}
	if c.inFlight {
		c.mu.Unlock()
		return ErrSessionBusy
	}
	if err := validateSummary(c.session.Type, summary); err != nil {
		c.lastErr = err.Error()
		c.mu.Unlock()
		return err
	}
	c.phase = PhaseCompleting
	gen := c.generation
	sessionID := c.session.ID
	date := c.session.Date
	c.mu.Unlock()

	err := c.api.CompleteSession(ctx, date, sessionID, summary)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return nil
	}
	if err != nil {
		c.phase = PhaseOpen
		c.lastErr = err.Error()
		c.metrics.ObserveSessionOp("complete", "error")
		return err
	}
	c.phase = PhaseClosed
	c.session = Session{}
	c.lastErr = ""
	c.metrics.ObserveSessionOp("complete", "ok")
	return nil
}

// Close abandons the session without completing it. No backend call is made:
// the server keeps the conversation, so re-opening re-fetches it.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseClosed {
		return
	}
	c.generation++
	c.phase = PhaseClosed
	c.session = Session{}
	c.inFlight = false
	c.lastErr = ""
	c.metrics.ObserveSessionOp("close", "ok")
}

// Snapshot returns a copy of the coordinator state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{Phase: c.phase, Session: c.session, Error: c.lastErr}
	if len(c.session.Conversation) > 0 {
		conv := make([]history.Turn, len(c.session.Conversation))
		copy(conv, c.session.Conversation)
		snap.Session.Conversation = conv
	}
	return snap
}

func validateSummary(sessionType SessionType, summary Summary) error {
	switch sessionType {
	case SessionStandup:
		if strings.TrimSpace(summary.Plan) == "" {
			return ErrPlanRequired
		}
	case SessionRetro:
		if strings.TrimSpace(summary.Accomplishments) == "" && strings.TrimSpace(summary.Notes) == "" {
			return ErrSummaryRequired
		}
	}
	return nil
}
