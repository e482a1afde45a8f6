package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"webhookrelay/internal/config"
	"webhookrelay/internal/mirror"
	"webhookrelay/internal/relay"
	"webhookrelay/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load(config.Path())
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(ctx, cfg, logger)
	defer a.close()
	if err := a.run(ctx); err != nil {
		logger.Error("server failure", "error", err)
		os.Exit(1)
	}
}

type app struct {
	cfg     config.Config
	logger  *slog.Logger
	router  http.Handler
	startup *server.Startup
	rdb     *redis.Client
}

// newApp wires the relay. It never fails: a missing webhook means no-op
// mode and an unreachable Redis only disables publishing.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) *app {
	a := &app{cfg: cfg, logger: logger}

	opts := []relay.Option{relay.WithTimeout(cfg.Timeout), relay.WithLogger(logger)}
	if cfg.RedisURL != "" {
		if rdb, err := connectRedis(ctx, cfg.RedisURL); err != nil {
			logger.Warn("relay records will not be published", "error", err)
		} else {
			a.rdb = rdb
			opts = append(opts, relay.WithPublisher(mirror.NewPublisher(rdb, cfg.Channel)))
		}
	}

	if cfg.NoopMode() {
		logger.Warn("PD_WEBHOOK_URL is not set, relay runs in no-op mode")
	}
	dispatcher := relay.New(cfg.WebhookURL, cfg.WebhookSecret, opts...)

	a.router = server.NewRouter(server.NewHandler(dispatcher, cfg.Source, os.LookupEnv, logger))
	a.startup = server.NewStartup(dispatcher, cfg.Source, os.LookupEnv, logger)
	return a
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	rdb, err := mirror.Connect(url)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}

func (a *app) run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.HTTPPort))
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	var grpcLis net.Listener
	if a.cfg.GRPCPort > 0 {
		if grpcLis, err = net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.GRPCPort)); err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("listen grpc: %w", err)
		}
	}
	return a.serve(ctx, httpLis, grpcLis)
}

// serve runs until ctx is done. A nil grpcLis disables the gRPC health service.
func (a *app) serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	httpServer := &http.Server{
		Handler:           a.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("http server started", "addr", httpLis.Addr().String())
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcServer *grpc.Server
	if grpcLis != nil {
		grpcServer = grpc.NewServer()
		healthSrv := health.NewServer()
		healthpb.RegisterHealthServer(grpcServer, healthSrv)
		healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		go func() {
			a.logger.Info("grpc health server started", "addr", grpcLis.Addr().String())
			if err := grpcServer.Serve(grpcLis); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	// The listener is already accepting, so probes succeed while this runs.
	go a.startup.Fire(ctx)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown incomplete", "error", err)
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	return runErr
}

func (a *app) close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
