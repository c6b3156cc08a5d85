package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/articulotor/backend/internal/config"
	"github.com/articulotor/backend/internal/handler"
	personamodel "github.com/articulotor/backend/internal/model/persona"
	scenariomodel "github.com/articulotor/backend/internal/model/scenario"
	"github.com/articulotor/backend/internal/service/ai"
	"github.com/articulotor/backend/internal/service/report"
	sessionservice "github.com/articulotor/backend/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	scenarioStore := scenariomodel.NewMemoryStore(scenariomodel.Seed())
	personaStore := personamodel.NewMemoryStore(personamodel.Seed())

	sessionStore, err := sessionservice.NewStore(ctx, cfg.Store.Path)
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}
	defer sessionStore.Close()
	log.Printf("session store initialized at %s", cfg.Store.Path)

	var aiService *ai.Service
	if cfg.AI.Enabled() {
		aiService, err = ai.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI functionality - check ARK_* environment variables")
		} else {
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("chat model credentials not configured, skipping AI initialization")
	}

	var closingWriter report.ClosingWriter
	if aiService != nil {
		closingWriter = aiService
	}
	reportService := report.NewService(closingWriter)

	router := handler.NewRouter(scenarioStore, personaStore, sessionStore, aiService, reportService, cfg.Server.AllowedOrigins)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Articulotor backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
