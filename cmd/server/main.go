// Avatar companion client: session controller and presentation bridge.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/vid-companion/internal/agent"
	"github.com/ashureev/vid-companion/internal/api"
	"github.com/ashureev/vid-companion/internal/avatar"
	"github.com/ashureev/vid-companion/internal/bridge"
	"github.com/ashureev/vid-companion/internal/config"
	"github.com/ashureev/vid-companion/internal/conversation"
	"github.com/ashureev/vid-companion/internal/middleware"
	"github.com/ashureev/vid-companion/internal/session"
	"github.com/ashureev/vid-companion/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "transport", cfg.Agent.Transport)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	journal, err := openJournal(ctx, cfg.Journal)
	if err != nil {
		slog.Error("Failed to initialize exchange journal", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := journal.Close(); closeErr != nil {
			slog.Error("Failed to close exchange journal", "error", closeErr)
		}
	}()

	client, err := agent.New(cfg.Agent, logger)
	if err != nil {
		slog.Error("Failed to initialize backend client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	// Core.
	conv := conversation.NewStore()
	ctrl := session.NewController(client, conv, session.Options{
		Greeting: cfg.Chat.GreetingText,
		Fallback: cfg.Chat.FallbackText,
		Recorder: journal,
		Logger:   logger,
	})

	hub := bridge.NewHub(logger)
	relay := bridge.NewClipRelay(hub)
	synchronizer := avatar.NewSynchronizer(relay, logger)

	ctrl.AddListener(hub.PublishState)
	ctrl.AddListener(func(st session.State) {
		synchronizer.Notify(st.Speaking)
	})

	// Handlers.
	baseHandler := api.NewHandler(ctx, ctrl, journal, hub, logger)
	chatHandler := api.NewChatHandler(baseHandler)
	wsHandler := bridge.NewWebSocketHandler(bridge.Config{
		Ctx:           ctx,
		Controller:    ctrl,
		Hub:           hub,
		Relay:         relay,
		Avatar:        synchronizer,
		AllowedOrigin: firstOrigin(cfg.AllowedOrigins()),
		IsDev:         cfg.IsDevelopment(),
		Logger:        logger,
	})

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins()))

	r.Get("/health", baseHandler.Health)
	chatHandler.RegisterRoutes(r)
	r.With(middleware.RendererID).Get("/ws", wsHandler.ServeHTTP)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return synchronizer.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		hub.CloseAll()
		return srv.Shutdown(shutdownCtx)
	})

	// A fresh session is started on launch, as the renderer expects a greeting.
	if err := ctrl.StartNewSessionAsync(ctx); err != nil {
		slog.Warn("Initial session start not admitted", "error", err)
	}

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		stop()
		ctrl.Wait()
		os.Exit(1)
	}

	// Outstanding exchanges see the cancelled context and settle with the fallback reply.
	ctrl.Wait()
	slog.Info("Server stopped successfully")
}

func openJournal(ctx context.Context, cfg config.JournalConfig) (store.Journal, error) {
	if !cfg.Enabled {
		slog.Info("Exchange journal disabled")
		return store.NoopJournal{}, nil
	}

	journal, err := store.NewSQLite(cfg.Path)
	if err != nil {
		return nil, err
	}
	if err := journal.Ping(ctx); err != nil {
		_ = journal.Close()
		return nil, err
	}
	slog.Info("Exchange journal connected", "path", cfg.Path, "retention", cfg.Retention)

	store.StartRetentionWorker(ctx, journal, cfg.Retention)
	return journal, nil
}

func firstOrigin(origins []string) string {
	if len(origins) == 0 {
		return "*"
	}
	return origins[0]
}
