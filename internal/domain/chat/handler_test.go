package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/GYB356/healthcare-origin-sub000/internal/platform/auth"
)

type recordingEmitter struct {
	sent []*Message
}

func (e *recordingEmitter) MessageSent(m *Message) {
	e.sent = append(e.sent, m)
}

func performRequest(t *testing.T, h echo.HandlerFunc, method, target, identity, body string, params ...string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req = req.WithContext(context.WithValue(req.Context(), auth.UserIDKey, identity))

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) == 2 {
		c.SetParamNames(params[0])
		c.SetParamValues(params[1])
	}

	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestCreateConversation(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := NewHandler(svc, nil)

	rec := performRequest(t, h.CreateConversation, http.MethodPost, "/api/conversations",
		"doc1", `{"participant_id":"pat1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var conv Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if conv.ParticipantA != "doc1" || conv.ParticipantB != "pat1" {
		t.Errorf("unexpected participants %q, %q", conv.ParticipantA, conv.ParticipantB)
	}

	// Reversed ordering resolves to the same conversation.
	rec = performRequest(t, h.CreateConversation, http.MethodPost, "/api/conversations",
		"pat1", `{"participant_id":"doc1"}`)
	var again Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &again); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if again.ID != conv.ID {
		t.Error("expected both orderings to return the same conversation")
	}
}

func TestCreateConversation_SelfRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := NewHandler(svc, nil)

	rec := performRequest(t, h.CreateConversation, http.MethodPost, "/api/conversations",
		"doc1", `{"participant_id":"doc1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestSendMessageEndpoint(t *testing.T) {
	svc, _, _ := newTestService(t)
	emitter := &recordingEmitter{}
	h := NewHandler(svc, emitter)

	rec := performRequest(t, h.SendMessage, http.MethodPost, "/api/messages",
		"doc1", `{"receiver_id":"pat1","text":"Hello"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var msg Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Text != "Hello" {
		t.Errorf("expected decrypted text in response, got %q", msg.Text)
	}
	if strings.Contains(rec.Body.String(), "ciphertext") {
		t.Error("ciphertext must not appear in the REST response")
	}
	if len(emitter.sent) != 1 {
		t.Fatalf("expected one emitted message, got %d", len(emitter.sent))
	}
	if emitter.sent[0].ID != msg.ID {
		t.Error("emitted message does not match the stored one")
	}
}

func TestSendMessageEndpoint_Validation(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := NewHandler(svc, nil)

	rec := performRequest(t, h.SendMessage, http.MethodPost, "/api/messages",
		"doc1", `{"receiver_id":"pat1","text":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty body, got %d", rec.Code)
	}

	rec = performRequest(t, h.SendMessage, http.MethodPost, "/api/messages",
		"doc1", `{"conversation_id":"not-a-uuid","receiver_id":"pat1","text":"hi"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad conversation id, got %d", rec.Code)
	}
}

func TestListMessagesEndpoint(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := NewHandler(svc, nil)
	ctx := context.Background()

	msg, err := svc.Send(ctx, uuid.Nil, "doc1", "pat1", "Hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	rec := performRequest(t, h.ListMessages, http.MethodGet,
		"/api/conversations/"+msg.ConversationID.String()+"/messages",
		"pat1", "", "id", msg.ConversationID.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var items []Message
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 1 || items[0].Text != "Hello" {
		t.Errorf("unexpected history %+v", items)
	}
}

func TestListMessagesEndpoint_NonParticipant(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := NewHandler(svc, nil)

	msg, err := svc.Send(context.Background(), uuid.Nil, "doc1", "pat1", "Hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	rec := performRequest(t, h.ListMessages, http.MethodGet,
		"/api/conversations/"+msg.ConversationID.String()+"/messages",
		"nurse1", "", "id", msg.ConversationID.String())
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestMarkMessageReadEndpoint(t *testing.T) {
	svc, messages, _ := newTestService(t)
	h := NewHandler(svc, nil)

	msg, err := svc.Send(context.Background(), uuid.Nil, "doc1", "pat1", "Hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	for i := 0; i < 2; i++ {
		rec := performRequest(t, h.MarkMessageRead, http.MethodPut,
			"/api/messages/"+msg.ID.String()+"/read",
			"pat1", "", "id", msg.ID.String())
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	}

	stored, _ := messages.GetByID(context.Background(), msg.ID)
	if !stored.Read {
		t.Error("expected read=true")
	}
}

func TestMarkMessageReadEndpoint_NotReceiver(t *testing.T) {
	svc, messages, _ := newTestService(t)
	h := NewHandler(svc, nil)

	msg, err := svc.Send(context.Background(), uuid.Nil, "doc1", "pat1", "Hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	rec := performRequest(t, h.MarkMessageRead, http.MethodPut,
		"/api/messages/"+msg.ID.String()+"/read",
		"doc1", "", "id", msg.ID.String())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	stored, _ := messages.GetByID(context.Background(), msg.ID)
	if stored.Read {
		t.Error("expected read=false")
	}
}

func TestMarkMessageReadEndpoint_Missing(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := NewHandler(svc, nil)

	rec := performRequest(t, h.MarkMessageRead, http.MethodPut,
		"/api/messages/"+uuid.NewString()+"/read",
		"pat1", "", "id", uuid.NewString())
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestListConversationsEndpoint(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := NewHandler(svc, nil)
	ctx := context.Background()

	if _, err := svc.Send(ctx, uuid.Nil, "doc1", "pat1", "one"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Send(ctx, uuid.Nil, "doc1", "pat1", "two"); err != nil {
		t.Fatal(err)
	}

	rec := performRequest(t, h.ListConversations, http.MethodGet, "/api/conversations", "pat1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var items []Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(items))
	}
	if items[0].UnreadCount != 2 {
		t.Errorf("expected unread_count 2, got %d", items[0].UnreadCount)
	}
}
