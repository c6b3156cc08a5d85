package scenario

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	scenariomodel "github.com/articulotor/backend/internal/model/scenario"
	"github.com/articulotor/backend/pkg/utils"
)

const minGeneratePromptLength = 10

// Generator produces custom scenarios from a free-text description.
type Generator interface {
	GenerateScenario(ctx context.Context, prompt string) (scenariomodel.Scenario, error)
}

// Handler serves the scenario catalog.
type Handler struct {
	store     scenariomodel.Store
	generator Generator
}

// New creates a scenario handler. generator may be nil when the AI
// backend is not configured.
func New(store scenariomodel.Store, generator Generator) *Handler {
	return &Handler{store: store, generator: generator}
}

// RegisterRoutes registers scenario routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/scenarios", h.handleList)
	r.Get("/scenarios/{scenarioID}", h.handleGet)
	r.Post("/scenarios/generate", h.handleGenerate)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	difficulty := r.URL.Query().Get("difficulty")
	utils.RespondJSON(w, http.StatusOK, h.store.List(category, difficulty))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "scenarioID")
	scn, ok := h.store.FindByID(id)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "scenario not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, scn)
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prompt := strings.TrimSpace(payload.Prompt)
	if len(prompt) < minGeneratePromptLength {
		utils.RespondError(w, http.StatusBadRequest, "prompt must be at least 10 characters")
		return
	}

	if h.generator == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "scenario generation unavailable")
		return
	}

	generated, err := h.generator.GenerateScenario(r.Context(), prompt)
	if err != nil {
		log.Printf("[scenario] generation failed: %v", err)
		utils.RespondError(w, http.StatusBadGateway, "failed to generate scenario")
		return
	}

	if err := h.store.AddCustom(generated); err != nil {
		log.Printf("[scenario] rejected generated scenario: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "generated scenario was invalid")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, generated)
}
