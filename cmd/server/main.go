package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xtrntr/matching-engine/internal/api"
	"github.com/xtrntr/matching-engine/internal/auth"
	"github.com/xtrntr/matching-engine/internal/config"
	"github.com/xtrntr/matching-engine/internal/db"
	"github.com/xtrntr/matching-engine/internal/exchange"
	"github.com/xtrntr/matching-engine/internal/logger"
	"github.com/xtrntr/matching-engine/internal/stream"
	"github.com/xtrntr/matching-engine/migrations"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

// Main entry point: loads config, builds the exchange and serves the API
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Trade sinks run under the symbol lock and never block
	trades := stream.NewTradeStream(log.Named("stream"), cfg.CORSOrigins...)
	sinks := exchange.MultiSink{trades}

	var archiver *db.Archiver
	if cfg.DatabaseURL != "" {
		database, err := db.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.Migrate(ctx, migrations.Init); err != nil {
			return err
		}

		archiver = db.NewArchiver(database, cfg.ArchiveBuffer, log.Named("archive"))
		sinks = append(sinks, archiver)
		g.Go(func() error { return archiver.Run(ctx) })
		log.Info("trade archive enabled")
	}

	ex := exchange.NewExchange(
		exchange.WithTradeHistoryLimit(cfg.TradeHistoryLimit),
		exchange.WithTradeSink(sinks),
		exchange.WithLogger(log.Named("engine")),
	)

	gw := auth.NewGateway(auth.NewKeyStore(cfg.APIKey, cfg.APISecret),
		auth.WithWindow(cfg.TimestampWindow),
		auth.WithMaxBodyBytes(cfg.MaxBodyBytes),
		auth.WithLogger(log.Named("auth")),
	)

	handler := api.NewHandler(ex, api.Limits{
		DefaultDepth:       cfg.DefaultBookDepth,
		DefaultTradesLimit: cfg.DefaultTradesLimit,
		MaxQuerySize:       cfg.MaxQuerySize,
	}, log.Named("api"))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.RequestLogger(log.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", auth.HeaderAPIKey, auth.HeaderTimestamp, auth.HeaderSignature},
		MaxAge:         300,
	}))

	// Streaming connections outlive the request timeout
	r.Get("/ws/trades", trades.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
		handler.Routes(r, gw)
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		log.Info("starting server", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	fields := []zap.Field{zap.Uint64("stream_dropped", trades.Dropped())}
	if archiver != nil {
		stats := archiver.Stats()
		fields = append(fields,
			zap.Uint64("archive_written", stats.Written),
			zap.Uint64("archive_failed", stats.Failed),
			zap.Uint64("archive_dropped", stats.Dropped),
		)
	}
	log.Info("server stopped", fields...)
	return err
}
