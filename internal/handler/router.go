package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/articulotor/backend/internal/handler/persona"
	"github.com/articulotor/backend/internal/handler/scenario"
	"github.com/articulotor/backend/internal/handler/session"
	"github.com/articulotor/backend/internal/handler/voice"
	"github.com/articulotor/backend/internal/middleware"
	personamodel "github.com/articulotor/backend/internal/model/persona"
	scenariomodel "github.com/articulotor/backend/internal/model/scenario"
	"github.com/articulotor/backend/internal/service/ai"
	"github.com/articulotor/backend/internal/service/report"
	sessionservice "github.com/articulotor/backend/internal/service/session"
	"github.com/articulotor/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. aiSvc may be nil when
// the model backend is not configured; AI-dependent routes then reject
// with 503 and voice mode is not mounted.
func NewRouter(scenarios scenariomodel.Store, personas personamodel.Store, store *sessionservice.Store, aiSvc *ai.Service, reports *report.Service, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins))

	var responder session.Responder
	var generator scenario.Generator
	if aiSvc != nil {
		responder = aiSvc
		generator = aiSvc
	}

	scenarioHandler := scenario.New(scenarios, generator)
	personaHandler := persona.New(personas)
	sessionHandler := session.New(store, scenarios, personas, responder, reports)

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		active, err := store.CountActive(req.Context())
		if err != nil {
			log.Printf("[router] failed to count active sessions: %v", err)
			active = 0
		}
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":          "online",
			"service":         "Articulotor Backend",
			"version":         "1.0.0",
			"active_sessions": active,
		})
	})

	r.Route("/api", func(api chi.Router) {
		scenarioHandler.RegisterRoutes(api)
		personaHandler.RegisterRoutes(api)
		sessionHandler.RegisterRoutes(api)
	})

	if aiSvc != nil {
		voiceHandler := voice.New(store, scenarios, personas, aiSvc)
		voiceHandler.RegisterRoutes(r)
	}

	return r
}
