package task

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ppastore/dayflow/internal/agents"
	"github.com/ppastore/dayflow/internal/history"
	"github.com/ppastore/dayflow/internal/observability"
	"github.com/ppastore/dayflow/internal/protocol"
)

// Status is the lifecycle of the single in-flight task run.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSubmitted Status = "submitted"
	StatusStreaming Status = "streaming"
	StatusCompleted Status = "completed"
	StatusErrored   Status = "errored"
)

var (
	ErrTaskInFlight = errors.New("a task is already in flight")
	ErrUnknownAgent = errors.New("unknown agent type")
	ErrEmptyTask    = errors.New("task text is required")
)

const defaultTaskType = "chat"

// Run is the single in-flight task. At most one non-terminal Run exists.
type Run struct {
	TaskID          string `json:"task_id,omitempty"`
	AgentType       string `json:"agent_type,omitempty"`
	Task            string `json:"task,omitempty"`
	Status          Status `json:"status"`
	AccumulatedText string `json:"accumulated_text,omitempty"`
	Error           string `json:"error,omitempty"`
}

func (r Run) terminal() bool {
	switch r.Status {
	case StatusIdle, StatusCompleted, StatusErrored:
		return true
	default:
		return false
	}
}

// Emitter sends frames to the hub push channel.
type Emitter interface {
	Emit(evt any) error
}

// Coordinator drives the single-task state machine, accumulates streamed
// output, and appends completed exchanges to the per-agent conversation
// history used to prime subsequent tasks.
type Coordinator struct {
	emitter Emitter
	catalog *agents.Catalog
	history *history.History
	metrics *observability.Metrics

	mu  sync.Mutex
	run Run
}

func NewCoordinator(emitter Emitter, catalog *agents.Catalog, hist *history.History, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		emitter: emitter,
		catalog: catalog,
		history: hist,
		metrics: metrics,
		run:     Run{Status: StatusIdle},
	}
}

// Submit snapshots the agent's history and emits a task:submit frame. It is
// rejected while a prior run is non-terminal so a second submission can never
// overwrite in-flight state.
func (c *Coordinator) Submit(agentType, taskType, taskText string) error {
	agentType = strings.TrimSpace(agentType)
	taskType = strings.TrimSpace(taskType)
	taskText = strings.TrimSpace(taskText)
	if taskText == "" {
		return ErrEmptyTask
	}
	if c.catalog == nil || !c.catalog.Has(agentType) {
		return ErrUnknownAgent
	}
	if taskType == "" {
		taskType = defaultTaskType
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.run.terminal() {
		return ErrTaskInFlight
	}

	snapshot := c.history.Snapshot(agentType)
	prev := c.run
	c.run = Run{
		AgentType: agentType,
		Task:      taskText,
		Status:    StatusSubmitted,
	}

	frame := protocol.NewTaskSubmit(uuid.NewString(), agentType, taskType, taskText, snapshot)
	if err := c.emitter.Emit(frame); err != nil {
		c.run = prev
		return err
	}
	c.metrics.ObserveTaskEvent("submitted")
	return nil
}

// HandleEvent applies a hub task event. Events for other task ids are
// silently ignored so stale frames from a superseded task cannot corrupt
// the current run.
func (c *Coordinator) HandleEvent(evt any) {
	switch e := evt.(type) {
	case protocol.TaskStarted:
		c.handleStarted(e)
	case protocol.TaskChunk:
		c.handleChunk(e)
	case protocol.TaskResponse:
		c.handleResponse(e)
	case protocol.TaskCompleted:
		c.handleCompleted(e)
	case protocol.TaskError:
		c.handleError(e)
	}
}

func (c *Coordinator) handleStarted(e protocol.TaskStarted) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run.Status != StatusSubmitted {
		return
	}
	c.run.TaskID = e.TaskID
	c.run.Status = StatusStreaming
	c.metrics.ObserveTaskEvent("started")
}

func (c *Coordinator) handleChunk(e protocol.TaskChunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run.Status != StatusStreaming || e.TaskID != c.run.TaskID {
		return
	}
	c.run.AccumulatedText += e.Chunk
	c.metrics.ObserveChunkBytes(len(e.Chunk))
}

func (c *Coordinator) handleResponse(e protocol.TaskResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run.Status != StatusStreaming || e.TaskID != c.run.TaskID {
		return
	}
	// Full-text delivery replaces accumulated chunks wholesale.
	c.run.AccumulatedText = e.Response
}

func (c *Coordinator) handleCompleted(e protocol.TaskCompleted) {
	c.mu.Lock()
	if c.run.terminal() || e.TaskID != c.run.TaskID {
		c.mu.Unlock()
		return
	}
	c.run.Status = StatusCompleted
	// The completed payload is authoritative over locally accumulated chunks.
	c.run.AccumulatedText = e.Response
	agentType := c.run.AgentType
	userText := strings.TrimSpace(e.Task)
	if userText == "" {
		userText = c.run.Task
	}
	c.mu.Unlock()

	c.history.AppendExchange(agentType, userText, e.Response)
	c.metrics.ObserveTaskEvent("completed")
}

func (c *Coordinator) handleError(e protocol.TaskError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run.terminal() {
		return
	}
	// An error may arrive before started binds a task id; only a bound,
	// mismatched id is treated as stale.
	if c.run.TaskID != "" && e.TaskID != c.run.TaskID {
		return
	}
	c.run.Status = StatusErrored
	c.run.Error = e.Error
	c.metrics.ObserveTaskEvent("errored")
}

// HandleDisconnect fails the in-flight run when the channel drops. Without
// this the run would stay streaming forever: the hub never replays events
// across reconnects.
func (c *Coordinator) HandleDisconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run.terminal() {
		return
	}
	c.run.Status = StatusErrored
	c.run.Error = "connection to agent hub lost"
	c.metrics.ObserveTaskEvent("disconnect_errored")
}

// ClearHistory removes one agent's transcript, or every transcript when
// agentType is empty. The in-flight run is unaffected.
func (c *Coordinator) ClearHistory(agentType string) {
	agentType = strings.TrimSpace(agentType)
	if agentType == "" {
		c.history.ClearAll()
		return
	}
	c.history.Clear(agentType)
}

// Snapshot returns a copy of the current run for the presentation layer.
func (c *Coordinator) Snapshot() Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run
}
