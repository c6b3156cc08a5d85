package voice_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	voicehandler "github.com/articulotor/backend/internal/handler/voice"
	personamodel "github.com/articulotor/backend/internal/model/persona"
	scenariomodel "github.com/articulotor/backend/internal/model/scenario"
	sessionmodel "github.com/articulotor/backend/internal/model/session"
	"github.com/articulotor/backend/internal/service/ai"
	sessionservice "github.com/articulotor/backend/internal/service/session"
)

type stubResponder struct {
	result ai.Result
}

func (s *stubResponder) Generate(_ context.Context, _ *scenariomodel.Scenario, _ []sessionmodel.Message, _ string, _ *personamodel.Persona) ai.Result {
	return s.result
}

type event struct {
	Type     string                  `json:"type"`
	Message  string                  `json:"message"`
	Text     string                  `json:"text"`
	Scenario *scenariomodel.Scenario `json:"scenario"`
	Analysis *sessionmodel.Analysis  `json:"analysis"`
}

func newVoiceServer(t *testing.T, responder voicehandler.Responder) (*httptest.Server, *sessionservice.Store) {
	t.Helper()

	store, err := sessionservice.NewStore(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewStore err: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	r := chi.NewRouter()
	voicehandler.New(
		store,
		scenariomodel.NewMemoryStore(scenariomodel.Seed()),
		personamodel.NewMemoryStore(personamodel.Seed()),
		responder,
	).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func dialVoice(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/voice/" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) event {
	t.Helper()
	var ev event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestVoiceConversation(t *testing.T) {
	responder := &stubResponder{result: ai.Result{
		Reply:    "That's a fair point.",
		Analysis: &sessionmodel.Analysis{ClarityScore: 60},
	}}
	srv, store := newVoiceServer(t, responder)

	ctx := context.Background()
	id, err := store.Create(ctx, "pitch-investor", sessionmodel.ModeVoice, "")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	conn := dialVoice(t, srv, id)

	welcome := readEvent(t, conn)
	if welcome.Type != "welcome" {
		t.Fatalf("welcome type: %q", welcome.Type)
	}
	if welcome.Scenario == nil || welcome.Scenario.ID != "pitch-investor" {
		t.Fatalf("welcome scenario: %+v", welcome.Scenario)
	}
	if welcome.Message != welcome.Scenario.Opening {
		t.Fatalf("welcome message: %q", welcome.Message)
	}

	if err := conn.WriteJSON(map[string]string{
		"type": "user_audio_transcript",
		"text": "We grow 20% month over month.",
	}); err != nil {
		t.Fatalf("write transcript: %v", err)
	}

	reply := readEvent(t, conn)
	if reply.Type != "ai_response" || reply.Text != "That's a fair point." {
		t.Fatalf("reply: %+v", reply)
	}
	if reply.Analysis == nil || reply.Analysis.ClarityScore != 60 {
		t.Fatalf("reply analysis: %+v", reply.Analysis)
	}

	if err := conn.WriteJSON(map[string]string{"type": "end_session"}); err != nil {
		t.Fatalf("write end: %v", err)
	}
	ended := readEvent(t, conn)
	if ended.Type != "session_ended" {
		t.Fatalf("ended: %+v", ended)
	}

	sess, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if sess.Active() {
		t.Fatal("session should be ended")
	}
	if len(sess.Messages) != 2 || len(sess.Analyses) != 1 {
		t.Fatalf("history: %d messages, %d analyses", len(sess.Messages), len(sess.Analyses))
	}
}

func TestVoiceRejectsUnknownSession(t *testing.T) {
	srv, _ := newVoiceServer(t, &stubResponder{})

	conn := dialVoice(t, srv, "missing")
	ev := readEvent(t, conn)
	if ev.Type != "error" {
		t.Fatalf("expected error event, got %+v", ev)
	}
}

func TestVoiceRejectsEndedSession(t *testing.T) {
	srv, store := newVoiceServer(t, &stubResponder{})

	ctx := context.Background()
	id, err := store.Create(ctx, "pitch-investor", sessionmodel.ModeVoice, "")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	if _, err := store.End(ctx, id); err != nil {
		t.Fatalf("End err: %v", err)
	}

	conn := dialVoice(t, srv, id)
	ev := readEvent(t, conn)
	if ev.Type != "error" {
		t.Fatalf("expected error event, got %+v", ev)
	}
}

func TestVoiceFailedResponderKeepsConnection(t *testing.T) {
	srv, store := newVoiceServer(t, &stubResponder{result: ai.Result{
		Reply:     "Rate limited.",
		Failed:    true,
		ErrorType: "rate_limit",
	}})

	ctx := context.Background()
	id, err := store.Create(ctx, "pitch-investor", sessionmodel.ModeVoice, "")
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	conn := dialVoice(t, srv, id)
	readEvent(t, conn) // welcome

	if err := conn.WriteJSON(map[string]string{
		"type": "user_audio_transcript",
		"text": "Hello?",
	}); err != nil {
		t.Fatalf("write transcript: %v", err)
	}

	ev := readEvent(t, conn)
	if ev.Type != "error" {
		t.Fatalf("expected error event, got %+v", ev)
	}

	// The user turn is durably recorded and the session stays usable.
	sess, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if len(sess.Messages) != 1 || !sess.Active() {
		t.Fatalf("session state: %d messages, active=%t", len(sess.Messages), sess.Active())
	}

	if err := conn.WriteJSON(map[string]string{"type": "end_session"}); err != nil {
		t.Fatalf("write end: %v", err)
	}
	if ev := readEvent(t, conn); ev.Type != "session_ended" {
		t.Fatalf("ended: %+v", ev)
	}
}
