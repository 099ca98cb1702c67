package wellness

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ppastore/dayflow/internal/history"
)

func TestFetchSessionSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/session/s1" {
			t.Errorf("path = %q, want /api/session/s1", r.URL.Path)
		}
		if got := r.URL.Query().Get("date"); got != "2026-03-09" {
			t.Errorf("date = %q, want 2026-03-09", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"session": map[string]any{
				"id":   "s1",
				"type": "standup",
				"conversation": []map[string]any{
					{"role": "assistant", "content": "What's the plan?"},
				},
				"morningPlan": "write code",
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	sess, err := c.FetchSession(context.Background(), "s1", "2026-03-09")
	if err != nil {
		t.Fatalf("FetchSession() error = %v", err)
	}
	if sess.Type != SessionStandup {
		t.Fatalf("session type = %q, want standup", sess.Type)
	}
	if len(sess.Conversation) != 1 || sess.Conversation[0].Content != "What's the plan?" {
		t.Fatalf("conversation = %+v, want seeded assistant turn", sess.Conversation)
	}
	if sess.MorningPlan != "write code" {
		t.Fatalf("morning plan = %q, want write code", sess.MorningPlan)
	}
}

func TestFetchSessionBackendRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "session not found"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	if _, err := c.FetchSession(context.Background(), "nope", "2026-03-09"); err == nil || err.Error() != "session not found" {
		t.Fatalf("FetchSession() error = %v, want backend message", err)
	}
}

func TestSendMessagePostsConversation(t *testing.T) {
	var received messageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/session/message" {
			t.Errorf("path = %q, want /api/session/message", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "response": "Sounds good."})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	conv := []history.Turn{{Role: history.RoleAssistant, Content: "What's the plan?"}}
	reply, err := c.SendMessage(context.Background(), "2026-03-09", "s1", "ship it", conv)
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if reply != "Sounds good." {
		t.Fatalf("reply = %q, want Sounds good.", reply)
	}
	if received.SessionID != "s1" || received.Message != "ship it" {
		t.Fatalf("request = %+v, want session s1 message ship it", received)
	}
	if len(received.ConversationHistory) != 1 {
		t.Fatalf("posted conversation = %d turns, want 1", len(received.ConversationHistory))
	}
}

func TestCompleteSessionHandlesFailureStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req completeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Summary.Plan == "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	if err := c.CompleteSession(context.Background(), "2026-03-09", "s1", Summary{Plan: "ship"}); err != nil {
		t.Fatalf("CompleteSession() error = %v", err)
	}
	if err := c.CompleteSession(context.Background(), "2026-03-09", "s1", Summary{}); err == nil {
		t.Fatalf("CompleteSession() on 500 = nil, want error")
	}
}
