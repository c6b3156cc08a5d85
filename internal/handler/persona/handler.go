package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	personamodel "github.com/articulotor/backend/internal/model/persona"
	"github.com/articulotor/backend/pkg/utils"
)

// Handler serves the persona catalog.
type Handler struct {
	store personamodel.Store
}

// New creates a persona handler.
func New(store personamodel.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes registers persona routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleList)
	r.Get("/personas/{personaKey}", h.handleGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	personas := h.store.List()
	byKey := make(map[string]personamodel.Persona, len(personas))
	for _, p := range personas {
		byKey[p.Key] = p
	}
	utils.RespondJSON(w, http.StatusOK, byKey)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "personaKey")
	p, ok := h.store.FindByKey(key)
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}
