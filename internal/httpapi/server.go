package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ppastore/dayflow/internal/agents"
	"github.com/ppastore/dayflow/internal/channel"
	"github.com/ppastore/dayflow/internal/history"
	"github.com/ppastore/dayflow/internal/notify"
	"github.com/ppastore/dayflow/internal/observability"
	"github.com/ppastore/dayflow/internal/task"
	"github.com/ppastore/dayflow/internal/wellness"
)

// Server exposes the coordinators' state snapshots and action endpoints to
// the dashboard UI. It carries no business logic of its own.
type Server struct {
	channel       *channel.Manager
	tasks         *task.Coordinator
	hist          *history.History
	notifications *notify.Queue
	sessions      *wellness.Coordinator
	catalog       *agents.Catalog
}

func New(
	ch *channel.Manager,
	tasks *task.Coordinator,
	hist *history.History,
	notifications *notify.Queue,
	sessions *wellness.Coordinator,
	catalog *agents.Catalog,
) *Server {
	return &Server{
		channel:       ch,
		tasks:         tasks,
		hist:          hist,
		notifications: notifications,
		sessions:      sessions,
		catalog:       catalog,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Get("/api/state", s.handleState)
	r.Get("/api/agents", s.handleListAgents)
	r.Post("/api/channel/retry", s.handleChannelRetry)

	r.Post("/api/tasks", s.handleSubmitTask)
	r.Get("/api/history", s.handleHistory)
	r.Post("/api/history/clear", s.handleClearHistory)

	r.Get("/api/notifications", s.handleListNotifications)
	r.Post("/api/notifications/{id}/dismiss", s.handleDismissNotification)
	r.Post("/api/notifications/{id}/open", s.handleOpenNotification)

	r.Post("/api/session/message", s.handleSessionMessage)
	r.Post("/api/session/complete", s.handleSessionComplete)
	r.Post("/api/session/close", s.handleSessionClose)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"channel": s.channel.State(),
	})
}

type stateResponse struct {
	Success      bool                 `json:"success"`
	Channel      channelState         `json:"channel"`
	Task         task.Run             `json:"task"`
	Notification *notify.Notification `json:"notification,omitempty"`
	QueueLength  int                  `json:"queue_length"`
	Session      wellness.Snapshot    `json:"session"`
}

type channelState struct {
	State     channel.State `json:"state"`
	Connected bool          `json:"connected"`
}

// handleState is the single read surface the UI polls or long-polls: the
// head notification, the current run, and the session snapshot.
func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	resp := stateResponse{
		Success: true,
		Channel: channelState{
			State:     s.channel.State(),
			Connected: s.channel.Connected(),
		},
		Task:        s.tasks.Snapshot(),
		QueueLength: s.notifications.Len(),
		Session:     s.sessions.Snapshot(),
	}
	if head, ok := s.notifications.Peek(); ok {
		resp.Notification = &head
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"agents":  s.catalog.List(),
	})
}

func (s *Server) handleChannelRetry(w http.ResponseWriter, _ *http.Request) {
	if s.channel.State() != channel.StateDisconnected {
		respondError(w, http.StatusConflict, "channel_active", "channel is not disconnected")
		return
	}
	s.channel.Retry()
	respondJSON(w, http.StatusAccepted, map[string]any{"success": true})
}

type submitTaskRequest struct {
	AgentType string `json:"agent_type"`
	TaskType  string `json:"task_type"`
	Task      string `json:"task"`
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	err := s.tasks.Submit(req.AgentType, req.TaskType, req.Task)
	switch {
	case err == nil:
		respondJSON(w, http.StatusAccepted, map[string]any{
			"success": true,
			"task":    s.tasks.Snapshot(),
		})
	case errors.Is(err, task.ErrTaskInFlight):
		respondError(w, http.StatusConflict, "task_in_flight", err.Error())
	case errors.Is(err, task.ErrUnknownAgent), errors.Is(err, task.ErrEmptyTask):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, channel.ErrNotConnected):
		respondError(w, http.StatusServiceUnavailable, "channel_disconnected", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "submit_failed", err.Error())
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	agentType := strings.TrimSpace(r.URL.Query().Get("agent_type"))
	if agentType != "" {
		respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"history": map[string][]history.Turn{agentType: s.hist.Snapshot(agentType)},
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"history": s.hist.SnapshotAll(),
	})
}

type clearHistoryRequest struct {
	AgentType string `json:"agent_type"`
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	var req clearHistoryRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.tasks.ClearHistory(req.AgentType)
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"notifications": s.notifications.List(),
	})
}

func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.notifications.Dismiss(id)
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

type openNotificationRequest struct {
	Date string `json:"date"`
}

// handleOpenNotification couples session load with dismissal: on load
// failure the queue item stays and the session stays closed.
func (s *Server) handleOpenNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req openNotificationRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	err := s.notifications.Open(r.Context(), id, s.sessions, strings.TrimSpace(req.Date))
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"session": s.sessions.Snapshot(),
		})
	case errors.Is(err, notify.ErrNotFound):
		respondError(w, http.StatusNotFound, "notification_not_found", err.Error())
	default:
		respondError(w, http.StatusBadGateway, "session_load_failed", err.Error())
	}
}

type sessionMessageRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleSessionMessage(w http.ResponseWriter, r *http.Request) {
	var req sessionMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	reply, err := s.sessions.SendMessage(r.Context(), req.Message)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"response": reply,
			"session":  s.sessions.Snapshot(),
		})
	case errors.Is(err, wellness.ErrNoOpenSession), errors.Is(err, wellness.ErrEmptyMessage):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, wellness.ErrMessageInFlight):
		respondError(w, http.StatusConflict, "message_in_flight", err.Error())
	default:
		// Send failure: the transcript is untouched; echo the text back so
		// the UI can repopulate the input box.
		respondJSON(w, http.StatusBadGateway, map[string]any{
			"success": false,
			"error":   err.Error(),
			"code":    "message_send_failed",
			"message": req.Message,
		})
	}
}

type sessionCompleteRequest struct {
	Summary wellness.Summary `json:"summary"`
}

func (s *Server) handleSessionComplete(w http.ResponseWriter, r *http.Request) {
	var req sessionCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	err := s.sessions.Complete(r.Context(), req.Summary)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]any{"success": true})
	case errors.Is(err, wellness.ErrNoOpenSession),
		errors.Is(err, wellness.ErrPlanRequired),
		errors.Is(err, wellness.ErrSummaryRequired):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, wellness.ErrSessionBusy):
		respondError(w, http.StatusConflict, "session_busy", err.Error())
	default:
		respondError(w, http.StatusBadGateway, "complete_failed", err.Error())
	}
}

func (s *Server) handleSessionClose(w http.ResponseWriter, _ *http.Request) {
	s.sessions.Close()
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
