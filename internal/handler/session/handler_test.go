package session_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	sessionhandler "github.com/articulotor/backend/internal/handler/session"
	personamodel "github.com/articulotor/backend/internal/model/persona"
	scenariomodel "github.com/articulotor/backend/internal/model/scenario"
	sessionmodel "github.com/articulotor/backend/internal/model/session"
	"github.com/articulotor/backend/internal/service/ai"
	"github.com/articulotor/backend/internal/service/report"
	sessionservice "github.com/articulotor/backend/internal/service/session"
)

type stubResponder struct {
	result ai.Result
}

func (s *stubResponder) Generate(_ context.Context, _ *scenariomodel.Scenario, _ []sessionmodel.Message, _ string, _ *personamodel.Persona) ai.Result {
	return s.result
}

func okResult() ai.Result {
	return ai.Result{
		Reply: "Interesting, go on.",
		Analysis: &sessionmodel.Analysis{
			ClarityScore:        70,
			StructureScore:      60,
			PersuasivenessScore: 65,
			VocabularyScore:     75,
			FillerWords:         []string{"um"},
		},
	}
}

func newTestServer(t *testing.T, responder sessionhandler.Responder) (*httptest.Server, *sessionservice.Store) {
	t.Helper()

	store, err := sessionservice.NewStore(context.Background(), filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewStore err: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	handler := sessionhandler.New(
		store,
		scenariomodel.NewMemoryStore(scenariomodel.Seed()),
		personamodel.NewMemoryStore(personamodel.Seed()),
		responder,
		report.NewService(nil),
	)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, srv.URL+"/sessions", map[string]string{"scenario_id": "drill-explain"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status %d", resp.StatusCode)
	}
	var created struct {
		SessionID string `json:"session_id"`
	}
	decodeBody(t, resp, &created)
	if created.SessionID == "" {
		t.Fatal("empty session_id")
	}
	return created.SessionID
}

func TestCreateSession(t *testing.T) {
	srv, _ := newTestServer(t, &stubResponder{result: okResult()})

	resp := postJSON(t, srv.URL+"/sessions", map[string]string{
		"scenario_id": "interview-tell-about",
		"mode":        "chat",
		"persona":     "naval",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var created struct {
		SessionID string                 `json:"session_id"`
		Scenario  scenariomodel.Scenario `json:"scenario"`
		Session   sessionmodel.Session   `json:"session"`
	}
	decodeBody(t, resp, &created)

	if created.Scenario.ID != "interview-tell-about" {
		t.Fatalf("scenario: %+v", created.Scenario)
	}
	if created.Session.Persona != "naval" || created.Session.Status != sessionmodel.StatusActive {
		t.Fatalf("session: %+v", created.Session)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/sessions", map[string]string{"scenario_id": "missing"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown scenario: status %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/sessions", map[string]string{
		"scenario_id": "drill-explain",
		"persona":     "nobody",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown persona: status %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/sessions", map[string]string{
		"scenario_id": "drill-explain",
		"mode":        "hologram",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid mode: status %d", resp.StatusCode)
	}
}

func TestChatTurn(t *testing.T) {
	srv, store := newTestServer(t, &stubResponder{result: okResult()})
	id := createSession(t, srv)

	resp := postJSON(t, srv.URL+"/chat", map[string]string{
		"session_id": id,
		"message":    "Blockchain is a shared ledger.",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var turn struct {
		Response string                 `json:"response"`
		Analysis *sessionmodel.Analysis `json:"analysis"`
	}
	decodeBody(t, resp, &turn)
	if turn.Response != "Interesting, go on." {
		t.Fatalf("response: %q", turn.Response)
	}
	if turn.Analysis == nil || turn.Analysis.ClarityScore != 70 {
		t.Fatalf("analysis: %+v", turn.Analysis)
	}

	sess, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("messages: got %d want 2", len(sess.Messages))
	}
	if sess.Messages[0].Role != sessionmodel.RoleUser || sess.Messages[1].Role != sessionmodel.RoleAssistant {
		t.Fatalf("roles: %+v", sess.Messages)
	}
	if len(sess.Analyses) != 1 || sess.Analyses[0].TurnNumber != 1 {
		t.Fatalf("analyses: %+v", sess.Analyses)
	}
}

func TestChatFailedResponderStillRecordsUserTurn(t *testing.T) {
	srv, store := newTestServer(t, &stubResponder{result: ai.Result{
		Reply:     "",
		Failed:    true,
		ErrorType: "rate_limit",
	}})
	id := createSession(t, srv)

	resp := postJSON(t, srv.URL+"/chat", map[string]string{
		"session_id": id,
		"message":    "Hello?",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	sess, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if len(sess.Messages) != 1 || sess.Messages[0].Role != sessionmodel.RoleUser {
		t.Fatalf("user turn should persist alone: %+v", sess.Messages)
	}
}

func TestChatValidation(t *testing.T) {
	srv, _ := newTestServer(t, &stubResponder{result: okResult()})
	id := createSession(t, srv)

	resp := postJSON(t, srv.URL+"/chat", map[string]string{"session_id": id, "message": "   "})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("whitespace message: status %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/chat", map[string]string{"session_id": "missing", "message": "hi"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown session: status %d", resp.StatusCode)
	}
}

func TestChatRejectedWhenEnded(t *testing.T) {
	srv, _ := newTestServer(t, &stubResponder{result: okResult()})
	id := createSession(t, srv)

	resp := postJSON(t, srv.URL+"/sessions/"+id+"/end", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end: status %d", resp.StatusCode)
	}

	resp = postJSON(t, srv.URL+"/chat", map[string]string{"session_id": id, "message": "hi"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("chat after end: status %d", resp.StatusCode)
	}
}

func TestChatWithoutResponder(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	id := createSession(t, srv)

	resp := postJSON(t, srv.URL+"/chat", map[string]string{"session_id": id, "message": "hi"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestEndIsIdempotentOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	id := createSession(t, srv)

	for i := 0; i < 2; i++ {
		resp := postJSON(t, srv.URL+"/sessions/"+id+"/end", nil)
		var body map[string]string
		decodeBody(t, resp, &body)
		if resp.StatusCode != http.StatusOK || body["status"] != "ended" {
			t.Fatalf("end #%d: status %d body %v", i+1, resp.StatusCode, body)
		}
	}
}

func TestFeedbackFlow(t *testing.T) {
	srv, _ := newTestServer(t, &stubResponder{result: okResult()})
	id := createSession(t, srv)

	// Feedback on an active session is rejected.
	resp, err := http.Get(srv.URL + "/sessions/" + id + "/feedback")
	if err != nil {
		t.Fatalf("GET feedback: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("active feedback: status %d", resp.StatusCode)
	}

	postJSON(t, srv.URL+"/chat", map[string]string{"session_id": id, "message": "A ledger everyone shares."}).Body.Close()
	postJSON(t, srv.URL+"/sessions/"+id+"/end", nil).Body.Close()

	resp, err = http.Get(srv.URL + "/sessions/" + id + "/feedback")
	if err != nil {
		t.Fatalf("GET feedback: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("feedback: status %d", resp.StatusCode)
	}

	var feedback report.Feedback
	decodeBody(t, resp, &feedback)
	if feedback.TurnCount != 1 {
		t.Fatalf("turn count: %d", feedback.TurnCount)
	}
	if feedback.SubScores.Clarity != 70 {
		t.Fatalf("sub scores: %+v", feedback.SubScores)
	}
	if feedback.ClosingMessage == "" {
		t.Fatal("expected closing message")
	}
}

func TestFeedbackWithoutTurns(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	id := createSession(t, srv)

	postJSON(t, srv.URL+"/sessions/"+id+"/end", nil).Body.Close()

	resp, err := http.Get(srv.URL + "/sessions/" + id + "/feedback")
	if err != nil {
		t.Fatalf("GET feedback: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestGetSession(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	id := createSession(t, srv)

	resp, err := http.Get(srv.URL + "/sessions/" + id)
	if err != nil {
		t.Fatalf("GET session: %v", err)
	}
	var sess sessionmodel.Session
	decodeBody(t, resp, &sess)
	if sess.ID != id || sess.ScenarioID != "drill-explain" {
		t.Fatalf("session: %+v", sess)
	}

	resp, err = http.Get(srv.URL + "/sessions/missing")
	if err != nil {
		t.Fatalf("GET session: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing session: status %d", resp.StatusCode)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubResponder{result: okResult()})
	id := createSession(t, srv)

	postJSON(t, srv.URL+"/chat", map[string]string{"session_id": id, "message": "First attempt."}).Body.Close()
	postJSON(t, srv.URL+"/sessions/"+id+"/end", nil).Body.Close()

	resp, err := http.Get(srv.URL + "/dashboard")
	if err != nil {
		t.Fatalf("GET dashboard: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var dashboard report.Dashboard
	decodeBody(t, resp, &dashboard)
	if dashboard.TotalSessions != 1 {
		t.Fatalf("total sessions: %d", dashboard.TotalSessions)
	}
	if dashboard.CurrentStreak != 1 {
		t.Fatalf("streak: %d", dashboard.CurrentStreak)
	}
	if dashboard.CrutchWords["um"] != 1 {
		t.Fatalf("crutch words: %v", dashboard.CrutchWords)
	}
}
