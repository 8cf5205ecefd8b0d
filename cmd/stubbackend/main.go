// Echo backend for local development. Serves the session and ask contract
// over HTTP and gRPC.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/vid-companion/internal/config"
	"github.com/ashureev/vid-companion/internal/stubbackend"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
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

	backend := stubbackend.New(cfg.Stub.ReplyDelay, logger)

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Stub.HTTPPort,
		Handler:           chiMiddleware.Logger(backend.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv := grpc.NewServer()
	backend.RegisterGRPC(grpcSrv)

	lis, err := net.Listen("tcp", ":"+cfg.Stub.GRPCPort)
	if err != nil {
		slog.Error("Failed to listen for gRPC", "port", cfg.Stub.GRPCPort, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Stub backend HTTP listening", "addr", httpSrv.Addr, "reply_delay", cfg.Stub.ReplyDelay)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("Stub backend gRPC listening", "addr", lis.Addr().String())
		return grpcSrv.Serve(lis)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("Stub backend stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Stub backend stopped")
}
