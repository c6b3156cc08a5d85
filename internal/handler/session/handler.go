package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	personamodel "github.com/articulotor/backend/internal/model/persona"
	scenariomodel "github.com/articulotor/backend/internal/model/scenario"
	sessionmodel "github.com/articulotor/backend/internal/model/session"
	"github.com/articulotor/backend/internal/service/ai"
	"github.com/articulotor/backend/internal/service/report"
	sessionservice "github.com/articulotor/backend/internal/service/session"
	"github.com/articulotor/backend/pkg/utils"
)

// Responder generates an AI reply with hidden analysis. It runs before
// any store commit so that no row lock is held across the model call.
type Responder interface {
	Generate(ctx context.Context, scn *scenariomodel.Scenario, history []sessionmodel.Message, userText string, p *personamodel.Persona) ai.Result
}

// Handler serves session lifecycle, chat turns and reporting.
type Handler struct {
	store     *sessionservice.Store
	scenarios scenariomodel.Store
	personas  personamodel.Store
	responder Responder
	reports   *report.Service
}

// New creates a session handler. responder may be nil when the AI
// backend is not configured; chat turns are then rejected.
func New(store *sessionservice.Store, scenarios scenariomodel.Store, personas personamodel.Store, responder Responder, reports *report.Service) *Handler {
	return &Handler{
		store:     store,
		scenarios: scenarios,
		personas:  personas,
		responder: responder,
		reports:   reports,
	}
}

// RegisterRoutes registers session, chat and dashboard routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreate)
	r.Get("/sessions/{sessionID}", h.handleGet)
	r.Post("/sessions/{sessionID}/end", h.handleEnd)
	r.Get("/sessions/{sessionID}/feedback", h.handleFeedback)
	r.Post("/chat", h.handleChat)
	r.Get("/dashboard", h.handleDashboard)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ScenarioID string `json:"scenario_id"`
		Mode       string `json:"mode"`
		Persona    string `json:"persona"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	scn, ok := h.scenarios.FindByID(payload.ScenarioID)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "scenario not found")
		return
	}

	if payload.Persona != "" {
		if _, ok := h.personas.FindByKey(payload.Persona); !ok {
			utils.RespondError(w, http.StatusNotFound, "persona not found")
			return
		}
	}

	mode, err := sessionmodel.ParseMode(payload.Mode)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.store.Create(r.Context(), scn.ID, mode, payload.Persona)
	if err != nil {
		log.Printf("[session] create failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	sess, err := h.store.Get(r.Context(), id)
	if err != nil {
		log.Printf("[session] read-back failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"session_id": id,
		"scenario":   scn,
		"session":    sess,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, sess)
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	endedNow, err := h.store.End(r.Context(), sess.ID)
	if err != nil {
		log.Printf("[session] end failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to end session")
		return
	}
	if !endedNow {
		log.Printf("[session] session %s was already ended", sess.ID)
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status":     "ended",
		"session_id": sess.ID,
	})
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	if sess.Active() {
		utils.RespondError(w, http.StatusBadRequest, "session must be ended first")
		return
	}

	feedback, err := h.reports.Feedback(r.Context(), sess)
	if errors.Is(err, report.ErrNoAnalyses) {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Printf("[session] feedback failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to build feedback")
		return
	}

	utils.RespondJSON(w, http.StatusOK, feedback)
}

// handleChat runs one practice turn: generate the reply and hidden
// analysis first, then durably commit the user turn, then the reply.
// The user turn is preserved even when the responder fails.
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message := strings.TrimSpace(payload.Message)
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message cannot be empty or whitespace")
		return
	}

	sess, err := h.store.Get(r.Context(), payload.SessionID)
	if errors.Is(err, sessionservice.ErrNotFound) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		log.Printf("[session] load failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if !sess.Active() {
		utils.RespondError(w, http.StatusBadRequest, "session is not active")
		return
	}

	if h.responder == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "ai responder unavailable")
		return
	}

	result := h.responder.Generate(r.Context(), h.scenarioFor(sess), sess.Messages, message, h.personaFor(sess))

	committed, err := h.store.AppendTurn(r.Context(), sess.ID, message, result.Analysis)
	if err != nil {
		log.Printf("[session] turn commit failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to record message")
		return
	}
	if !committed {
		utils.RespondError(w, http.StatusBadRequest, "session ended during message processing")
		return
	}

	if !result.Failed && result.Reply != "" {
		if _, err := h.store.AppendReply(r.Context(), sess.ID, result.Reply); err != nil {
			log.Printf("[session] reply commit failed: %v", err)
		}
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"response": result.Reply,
		"analysis": result.Analysis,
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListAll(r.Context())
	if err != nil {
		log.Printf("[session] list failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load sessions")
		return
	}

	utils.RespondJSON(w, http.StatusOK, h.reports.Dashboard(sessions, time.Now().UTC()))
}

func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request) (*sessionmodel.Session, bool) {
	id := chi.URLParam(r, "sessionID")
	sess, err := h.store.Get(r.Context(), id)
	if errors.Is(err, sessionservice.ErrNotFound) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	if err != nil {
		log.Printf("[session] load failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to load session")
		return nil, false
	}
	return sess, true
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
