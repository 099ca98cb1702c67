package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ppastore/dayflow/internal/history"
)

// EventType identifies hub push payload variants.
type EventType string

const (
	TypeTaskStarted   EventType = "task:started"
	TypeTaskChunk     EventType = "task:chunk"
	TypeTaskResponse  EventType = "task:response"
	TypeTaskCompleted EventType = "task:completed"
	TypeTaskError     EventType = "task:error"
	TypeNotifyStandup EventType = "notify:standup"
	TypeNotifyRetro   EventType = "notify:retro"
	TypeNotifyStress  EventType = "notify:stress"

	// TypeTaskSubmit is the only client-emitted frame.
	TypeTaskSubmit EventType = "task:submit"
)

var ErrUnsupportedType = errors.New("unsupported event type")

type Envelope struct {
	Type EventType `json:"type"`
}

// TaskStarted binds the authoritative task id for a submitted task.
type TaskStarted struct {
	Type      EventType `json:"type"`
	TaskID    string    `json:"taskId"`
	AgentType string    `json:"agentType"`
}

type TaskChunk struct {
	Type      EventType `json:"type"`
	TaskID    string    `json:"taskId"`
	AgentType string    `json:"agentType"`
	Chunk     string    `json:"chunk"`
}

// TaskResponse carries a full non-incremental response body. It replaces any
// accumulated chunk text rather than appending to it.
type TaskResponse struct {
	Type      EventType `json:"type"`
	TaskID    string    `json:"taskId"`
	AgentType string    `json:"agentType"`
	Response  string    `json:"response"`
}

type TaskCompleted struct {
	Type      EventType `json:"type"`
	TaskID    string    `json:"taskId"`
	AgentType string    `json:"agentType"`
	Task      string    `json:"task"`
	Response  string    `json:"response"`
}

type TaskError struct {
	Type   EventType `json:"type"`
	TaskID string    `json:"taskId"`
	Error  string    `json:"error"`
}

// NotifyStandup and NotifyRetro carry a wellness session id; NotifyStress does not.
type NotifyStandup struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"sessionId"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type NotifyRetro struct {
	Type      EventType       `json:"type"`
	SessionID string          `json:"sessionId"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type NotifyStress struct {
	Type    EventType       `json:"type"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// TaskSubmit is emitted over the channel to start a task. The requestId is a
// client-side correlation id; legacy hubs ignore it.
type TaskSubmit struct {
	Type      EventType      `json:"type"`
	RequestID string         `json:"requestId,omitempty"`
	AgentType string         `json:"agentType"`
	TaskType  string         `json:"taskType"`
	Task      string         `json:"task"`
	History   []history.Turn `json:"history"`
}

// ParseHubEvent decodes a raw hub frame into its typed event. Receivers can
// switch exhaustively on the returned value without shape-guessing.
func ParseHubEvent(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeTaskStarted:
		var evt TaskStarted
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		if evt.TaskID == "" {
			return nil, errors.New("invalid task:started")
		}
		return evt, nil
	case TypeTaskChunk:
		var evt TaskChunk
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		if evt.TaskID == "" {
			return nil, errors.New("invalid task:chunk")
		}
		return evt, nil
	case TypeTaskResponse:
		var evt TaskResponse
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		if evt.TaskID == "" {
			return nil, errors.New("invalid task:response")
		}
		return evt, nil
	case TypeTaskCompleted:
		var evt TaskCompleted
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		if evt.TaskID == "" {
			return nil, errors.New("invalid task:completed")
		}
		return evt, nil
	case TypeTaskError:
		var evt TaskError
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	case TypeNotifyStandup:
		var evt NotifyStandup
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		if evt.SessionID == "" {
			return nil, errors.New("invalid notify:standup")
		}
		return evt, nil
	case TypeNotifyRetro:
		var evt NotifyRetro
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		if evt.SessionID == "" {
			return nil, errors.New("invalid notify:retro")
		}
		return evt, nil
	case TypeNotifyStress:
		var evt NotifyStress
		if err := json.Unmarshal(raw, &evt); err != nil {
			return nil, err
		}
		return evt, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// NewTaskSubmit builds the outbound submit frame.
func NewTaskSubmit(requestID, agentType, taskType, task string, hist []history.Turn) TaskSubmit {
	if hist == nil {
		hist = []history.Turn{}
	}
	return TaskSubmit{
		Type:      TypeTaskSubmit,
		RequestID: requestID,
		AgentType: agentType,
		TaskType:  taskType,
		Task:      task,
		History:   hist,
	}
}
