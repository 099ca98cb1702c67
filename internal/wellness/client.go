package wellness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppastore/dayflow/internal/history"
)

// SessionType distinguishes the two structured conversation kinds.
type SessionType string

const (
	SessionStandup SessionType = "standup"
	SessionRetro   SessionType = "retro"
)

// Session is a date-scoped structured conversation loaded from the backend.
// The backend, not this process, is the durable store.
type Session struct {
	ID           string          `json:"id"`
	Type         SessionType     `json:"type"`
	Date         string          `json:"date"`
	Conversation []history.Turn  `json:"conversation"`
	MorningPlan  string          `json:"morningPlan,omitempty"`
	JiraStats    json.RawMessage `json:"jiraStats,omitempty"`
}

// Summary is the type-specific completion payload. A standup requires a plan;
// a retro requires accomplishments or notes.
type Summary struct {
	Plan            string `json:"plan,omitempty"`
	Accomplishments string `json:"accomplishments,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// Client performs the point-to-point session calls. Session state is
// deliberately decoupled from the push channel's reconnect semantics.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type fetchResponse struct {
	Success bool    `json:"success"`
	Session Session `json:"session"`
	Error   string  `json:"error"`
}

type messageRequest struct {
	Date                string         `json:"date"`
	SessionID           string         `json:"sessionId"`
	Message             string         `json:"message"`
	ConversationHistory []history.Turn `json:"conversationHistory"`
}

type messageResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
	Error    string `json:"error"`
}

type completeRequest struct {
	Date      string  `json:"date"`
	SessionID string  `json:"sessionId"`
	Summary   Summary `json:"summary"`
}

type completeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// FetchSession loads the session by id for the given calendar date.
func (c *Client) FetchSession(ctx context.Context, sessionID, date string) (Session, error) {
	url := fmt.Sprintf("%s/api/session/%s?date=%s", c.baseURL, sessionID, date)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Session{}, fmt.Errorf("create session request: %w", err)
	}

	var decoded fetchResponse
	if err := c.do(req, &decoded); err != nil {
		return Session{}, err
	}
	if !decoded.Success {
		return Session{}, backendError(decoded.Error, "session load rejected")
	}
	if decoded.Session.Date == "" {
		decoded.Session.Date = date
	}
	return decoded.Session, nil
}

// SendMessage exchanges one user message for the assistant reply.
func (c *Client) SendMessage(ctx context.Context, date, sessionID, message string, conversation []history.Turn) (string, error) {
	if conversation == nil {
		conversation = []history.Turn{}
	}
	payload := messageRequest{
		Date:                date,
		SessionID:           sessionID,
		Message:             message,
		ConversationHistory: conversation,
	}
	req, err := c.post(ctx, "/api/session/message", payload)
	if err != nil {
		return "", err
	}

	var decoded messageResponse
	if err := c.do(req, &decoded); err != nil {
		return "", err
	}
	if !decoded.Success {
		return "", backendError(decoded.Error, "session message rejected")
	}
	return decoded.Response, nil
}

// CompleteSession finalizes the session with its type-specific summary.
func (c *Client) CompleteSession(ctx context.Context, date, sessionID string, summary Summary) error {
	payload := completeRequest{Date: date, SessionID: sessionID, Summary: summary}
	req, err := c.post(ctx, "/api/session/complete", payload)
	if err != nil {
		return err
	}

	var decoded completeResponse
	if err := c.do(req, &decoded); err != nil {
		return err
	}
	if !decoded.Success {
		return backendError(decoded.Error, "session complete rejected")
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return fmt.Errorf("session backend status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func backendError(msg, fallback string) error {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = fallback
	}
	return errors.New(msg)
}
