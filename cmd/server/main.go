package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-gateway/internal/api"
	"chat-gateway/internal/auth"
	"chat-gateway/internal/chat"
	"chat-gateway/internal/config"
	"chat-gateway/internal/contract"
	"chat-gateway/internal/db"
	"chat-gateway/internal/logger"
	"chat-gateway/internal/repository"
	"chat-gateway/internal/tasks"

	"go.uber.org/zap"
)

type stores struct {
	users    contract.UserDirectory
	oracle   contract.ParticipationOracle
	messages contract.MessageStore
	closer   io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverBadger:
		s, err := repository.OpenBadger(cfg.BadgerPath, log)
		if err != nil {
			return nil, err
		}
		log.Info("using badger store", zap.String("path", cfg.BadgerPath))
		return &stores{users: s, oracle: s, messages: s, closer: s}, nil
	default:
		pool, err := db.Connect(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		log.Info("using postgres store", zap.String("dsn", cfg.MaskedDatabaseURL()))
		return &stores{
			users:    repository.NewUserRepo(pool),
			oracle:   repository.NewConversationRepo(pool),
			messages: repository.NewMessagesRepo(pool, log),
			closer:   closerFunc(func() error { pool.Close(); return nil }),
		}, nil
	}
}

func run() error {
	cfg, dotenv, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if !dotenv {
		log.Info("no .env file found, using process environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = st.closer.Close() }()

	verifier := auth.NewTokenVerifier(cfg.AuthKey, st.users, log)
	registry := chat.NewRegistry()
	gateway := chat.NewGateway(log, verifier, st.oracle, st.messages, registry, chat.Options{
		SendBufferSize:   cfg.SendBufferSize,
		HandshakeTimeout: cfg.HandshakeTimeout,
		PersistTimeout:   cfg.PersistTimeout,
		PingPeriod:       cfg.PingPeriod(),
		RateLimit:        cfg.RateLimit,
		RateBurst:        cfg.RateBurst,
	})

	router := api.NewRouter(api.Deps{
		Log:      log,
		Gateway:  gateway,
		Verifier: verifier,
		Oracle:   st.oracle,
		Store:    st.messages,
		Transport: chat.TransportOptions{
			MaxPayloadBytes: cfg.MaxPayloadBytes,
			WriteTimeout:    cfg.WriteTimeout,
			PongWait:        cfg.PongWait,
		},
		Production: cfg.IsProduction(),
	})

	reporter := tasks.NewStatsReporter(registry, cfg.StatsSchedule, log)
	if err := reporter.Start(); err != nil {
		return fmt.Errorf("stats reporter: %w", err)
	}
	defer reporter.Stop()

	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := gateway.Shutdown(shutdownCtx); err != nil {
		log.Warn("connection workers still running after timeout", zap.Error(err))
	}
	log.Info("graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
