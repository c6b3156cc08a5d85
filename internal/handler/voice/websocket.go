package voice

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	personamodel "github.com/articulotor/backend/internal/model/persona"
	scenariomodel "github.com/articulotor/backend/internal/model/scenario"
	sessionmodel "github.com/articulotor/backend/internal/model/session"
	"github.com/articulotor/backend/internal/service/ai"
	sessionservice "github.com/articulotor/backend/internal/service/session"
)

// Responder generates an AI reply with hidden analysis for a
// transcribed voice turn.
type Responder interface {
	Generate(ctx context.Context, scn *scenariomodel.Scenario, history []sessionmodel.Message, userText string, p *personamodel.Persona) ai.Result
}

// Handler runs realtime voice-mode conversations. The client performs
// speech capture and transcription; the server receives transcripts and
// replies over the socket.
type Handler struct {
	store     *sessionservice.Store
	scenarios scenariomodel.Store
	personas  personamodel.Store
	responder Responder
	upgrader  websocket.Upgrader
}

// New creates a voice handler.
func New(store *sessionservice.Store, scenarios scenariomodel.Store, personas personamodel.Store, responder Responder) *Handler {
	return &Handler{
		store:     store,
		scenarios: scenarios,
		personas:  personas,
		responder: responder,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the voice WebSocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/voice/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type     string                  `json:"type"`
	Message  string                  `json:"message,omitempty"`
	Text     string                  `json:"text,omitempty"`
	Scenario *scenariomodel.Scenario `json:"scenario,omitempty"`
	Analysis *sessionmodel.Analysis  `json:"analysis,omitempty"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[voice] upgrade failed for session %s: %v", sessionID, err)
		return
	}
	defer conn.Close()

	ctx := r.Context()

	sess, err := h.store.Get(ctx, sessionID)
	if err != nil {
		h.sendError(conn, "Session not found")
		log.Printf("[voice] connection rejected - session not found: %s", sessionID)
		return
	}
	if !sess.Active() {
		h.sendError(conn, "Session is not active")
		log.Printf("[voice] connection rejected - session not active: %s", sessionID)
		return
	}

	scn := h.scenarioFor(sess)
	persona := h.personaFor(sess)

	log.Printf("[voice] connected - session: %s", sessionID)

	welcome := outgoingMessage{Type: "welcome", Scenario: scn, Message: "Hello. Let's begin."}
	if scn != nil && scn.Opening != "" {
		welcome.Message = scn.Opening
	}
	if err := conn.WriteJSON(welcome); err != nil {
		log.Printf("[voice] failed to send welcome: %v", err)
		return
	}

	h.runLoop(ctx, conn, sessionID, scn, persona)
}

// runLoop processes messages until the client disconnects or ends the
// session. A disconnect never ends the session; it stays active so a
// later connection can resume it.
func (h *Handler) runLoop(ctx context.Context, conn *websocket.Conn, sessionID string, scn *scenariomodel.Scenario, persona *personamodel.Persona) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[voice] disconnected - session: %s (kept active for reconnect)", sessionID)
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("[voice] invalid JSON for session %s: %v", sessionID, err)
			h.sendError(conn, "Invalid JSON message")
			return
		}

		switch msg.Type {
		case "user_audio_transcript":
			if !h.handleTranscript(ctx, conn, sessionID, scn, persona, msg.Text) {
				return
			}
		case "end_session":
			if _, err := h.store.End(ctx, sessionID); err != nil {
				log.Printf("[voice] end failed for session %s: %v", sessionID, err)
			}
			h.send(conn, outgoingMessage{Type: "session_ended"})
			log.Printf("[voice] session ended via websocket: %s", sessionID)
			return
		default:
			// Unknown message types are ignored rather than fatal.
			log.Printf("[voice] unknown message type: %s", msg.Type)
		}
	}
}

func (h *Handler) handleTranscript(ctx context.Context, conn *websocket.Conn, sessionID string, scn *scenariomodel.Scenario, persona *personamodel.Persona, text string) bool {
	// Re-read for fresh history; the active-only check is advisory here,
	// the commit below enforces it atomically.
	sess, err := h.store.Get(ctx, sessionID)
	if err != nil || !sess.Active() {
		h.sendError(conn, "Session has ended")
		return false
	}

	result := h.responder.Generate(ctx, scn, sess.Messages, text, persona)

	committed, err := h.store.AppendTurn(ctx, sessionID, text, result.Analysis)
	if err != nil {
		log.Printf("[voice] turn commit failed for session %s: %v", sessionID, err)
		h.sendError(conn, "Something went wrong. Please try again.")
		return false
	}
	if !committed {
		h.sendError(conn, "Session ended during processing")
		return false
	}

	if result.Failed || result.Reply == "" {
		h.sendError(conn, result.Reply)
		return true
	}

	if _, err := h.store.AppendReply(ctx, sessionID, result.Reply); err != nil {
		log.Printf("[voice] reply commit failed for session %s: %v", sessionID, err)
	}

	h.send(conn, outgoingMessage{
		Type:     "ai_response",
		Text:     result.Reply,
		Analysis: result.Analysis,
	})
	return true
}

func (h *Handler) send(conn *websocket.Conn, msg outgoingMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[voice] failed to write message: %v", err)
	}
}

func (h *Handler) sendError(conn *websocket.Conn, message string) {
	h.send(conn, outgoingMessage{Type: "error", Message: message})
}

func (h *Handler) scenarioFor(sess *sessionmodel.Session) *scenariomodel.Scenario {
	if scn, ok := h.scenarios.FindByID(sess.ScenarioID); ok {
		return &scn
	}
	return nil
}

func (h *Handler) personaFor(sess *sessionmodel.Session) *personamodel.Persona {
	if sess.Persona == "" {
		return nil
	}
	if p, ok := h.personas.FindByKey(sess.Persona); ok {
		return &p
	}
	return nil
}
