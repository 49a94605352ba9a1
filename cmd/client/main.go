// Package main starts the turn client: it loads the board from the rules
// service and serves sessions to renderers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jason-s-yu/tycoon/internal/auth"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/config"
	"github.com/jason-s-yu/tycoon/internal/gateway"
	"github.com/jason-s-yu/tycoon/internal/logging"
	"github.com/jason-s-yu/tycoon/internal/session"
	"github.com/jason-s-yu/tycoon/internal/telemetry"
	"github.com/jason-s-yu/tycoon/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	dotenv := flag.String("env", "", "dotenv file to load (default .env)")
	flag.Parse()

	cfg, err := config.Load(*dotenv)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("init logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("client stopped")
	}
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTELEndpoint)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.WithError(err).Warn("tracing shutdown")
		}
	}()

	rules, err := gateway.New(cfg.RulesURL,
		gateway.WithTimeout(cfg.RequestTimeout),
		gateway.WithLogger(logger.WithField("component", "gateway")),
	)
	if err != nil {
		return err
	}

	data, err := rules.GameData(ctx)
	if err != nil {
		return fmt.Errorf("load game data: %w", err)
	}
	var boardOpts []board.Option
	if cfg.JailSpace != "" {
		boardOpts = append(boardOpts, board.WithJailSpace(cfg.JailSpace))
	}
	b, err := board.New(data, boardOpts...)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{"spaces": len(data.Track), "jail": b.JailSpace()}).Info("board loaded")

	sessions := session.NewManager(rules, session.Config{
		StepDelay:   cfg.StepDelay,
		SettleDelay: cfg.SettleDelay,
		Board:       b,
		Logger:      logger.WithField("component", "session"),
	})
	defer sessions.Close()

	tokens, err := auth.NewManager(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: ws.NewServer(sessions, tokens, b,
			ws.WithOriginPatterns(cfg.AllowedOrigins...),
			ws.WithLogger(logger.WithField("component", "ws")),
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", cfg.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}
