// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jason-s-yu/boom/internal/auth"
	"github.com/jason-s-yu/boom/internal/broadcast"
	"github.com/jason-s-yu/boom/internal/config"
	"github.com/jason-s-yu/boom/internal/game"
	"github.com/jason-s-yu/boom/internal/handlers"
	"github.com/jason-s-yu/boom/internal/lobby"
	"github.com/jason-s-yu/boom/internal/outbox"
	"github.com/jason-s-yu/boom/internal/registry"
	"github.com/jason-s-yu/boom/internal/session"
	"github.com/jason-s-yu/boom/internal/users"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	configureLogger(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the outbox outlives the signal context so records from the shutdown drain
	// still get flushed
	outboxCtx, stopOutbox := context.WithCancel(context.Background())
	defer stopOutbox()
	var outboxWG sync.WaitGroup

	var sink outbox.Sink = outbox.Discard{}
	if cfg.RedisAddr != "" {
		client, err := outbox.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer client.Close()
		ob := outbox.New(client, cfg.OutboxQueue, 0, logger)
		outboxWG.Add(1)
		go func() {
			defer outboxWG.Done()
			ob.Run(outboxCtx)
		}()
		sink = ob
		logger.Infof("Publishing game events to redis list %s", cfg.OutboxQueue)
	}

	var directory users.Directory
	if cfg.DatabaseURL != "" {
		pool, err := users.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("database: %v", err)
		}
		defer pool.Close()
		directory = users.NewPostgresDirectory(pool)
		logger.Info("Connected to user directory")
	}

	var verifier handlers.TokenVerifier
	if cfg.AuthPublicKey != "" {
		v, err := auth.LoadVerifier(cfg.AuthPublicKey)
		if err != nil {
			logger.Fatalf("auth: %v", err)
		}
		verifier = v
	}

	rules := game.HouseRules{
		HandSize:         cfg.HandSize,
		RoundLimit:       cfg.RoundLimit,
		ScoreLimit:       cfg.ScoreLimit,
		ChallengePenalty: cfg.ChallengePenalty,
	}
	reg := registry.New(cfg.OutboundQueue, cfg.OutboundStrikes, logger)
	lobbies := lobby.NewManager(lobby.Limits{
		MinPlayers:     cfg.MinPlayers,
		MaxPlayers:     cfg.MaxPlayers,
		DefaultPlayers: cfg.DefaultMaxPlayers,
	}, rules)
	coord := session.New(reg, broadcast.NewHub(reg, logger), lobbies, game.NewStore(), sink, logger, session.Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		TurnDuration:      cfg.TurnDuration,
		DisconnectGrace:   cfg.DisconnectGrace,
	})
	go coord.Run(ctx)

	srv := handlers.NewServer(coord, handlers.NewResolver(verifier, directory, logger), cfg.AllowedOrigins, cfg.HeartbeatInterval, logger)
	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: srv.Routes(),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		logger.Info("Shutdown signal received, draining")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := coord.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("session shutdown: %v", err)
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("HTTP server forced to shutdown: %v", err)
		}
		stopOutbox()
		outboxWG.Wait()
	}()

	logger.Infof("Running on %s", httpServer.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
	<-done
	logger.Info("Graceful shutdown complete")
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	logger.SetOutput(os.Stdout)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}
