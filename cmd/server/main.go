// Package main runs the lending widget API: RPC endpoint resolution, token
// metadata lookup, market loading and account actions behind one HTTP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"solana-lend-widget/internal/action"
	"solana-lend-widget/internal/config"
	"solana-lend-widget/internal/endpoint"
	"solana-lend-widget/internal/lending/bridge"
	"solana-lend-widget/internal/market"
	"solana-lend-widget/internal/observability"
	"solana-lend-widget/internal/server"
	"solana-lend-widget/internal/session"
	"solana-lend-widget/internal/storage"
	chstore "solana-lend-widget/internal/storage/clickhouse"
	"solana-lend-widget/internal/storage/memory"
	"solana-lend-widget/internal/storage/migrations"
	pgstore "solana-lend-widget/internal/storage/postgres"
	"solana-lend-widget/internal/tokenlist"
)

// stores holds the persistence backends.
type stores struct {
	metadata storage.MetadataSnapshotStore
	rates    storage.MarketRateStore
}

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	// Flags override the environment.
	httpAddr := flag.String("http-addr", cfg.HTTPAddr, "HTTP listen address")
	rpcPrimary := flag.String("rpc-primary", cfg.RPCPrimary, "Primary Solana RPC endpoint")
	useMemory := flag.Bool("use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.HTTPAddr = *httpAddr
	cfg.RPCPrimary = *rpcPrimary
	cfg.UseMemory = *useMemory
	cfg.LogLevel = *logLevel

	logger, err := observability.NewLogger(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to create stores", zap.Error(err))
	}
	defer cleanup()

	resolver := endpoint.NewResolver(
		endpoint.WithProbeTimeout(cfg.RPCProbeTimeout),
		endpoint.WithLogger(logger.Named("endpoint")),
	)
	resolution, err := resolver.Resolve(ctx, endpoint.Candidates(cfg.RPCPrimary, cfg.RPCFallbacks))
	if err != nil {
		logger.Fatal("failed to resolve rpc endpoint", zap.Error(err))
	}

	metadata := tokenlist.NewCache(
		tokenlist.NewHTTPFetcher(cfg.TokenListURL),
		tokenlist.WithTTL(cfg.MetadataTTL),
		tokenlist.WithStore(st.metadata),
		tokenlist.WithLogger(logger.Named("tokenlist")),
	)
	if err := metadata.Warm(ctx); err != nil {
		logger.Warn("metadata warm start failed", zap.Error(err))
	}

	loader := market.NewLoader(
		bridge.NewFactory(cfg.LendingBridgeURL),
		cfg.LendingEnv,
		market.WithRateHistory(st.rates),
		market.WithLogger(logger.Named("market")),
	)

	router := server.NewRouter(cfg.AppEnv, logger, server.Dependencies{
		Resolution: resolution,
		Metadata:   metadata,
		Loader:     loader,
		Dispatcher: action.NewDispatcher(logger.Named("action")),
		Sessions:   session.NewRegistry(logger.Named("session")),

		AllowedOrigins: cfg.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("rpc", resolution.Endpoint),
			zap.Bool("rpc_verified", resolution.Verified),
			zap.String("lending_env", cfg.LendingEnv),
			zap.Bool("memory", cfg.UseMemory))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("http server error", zap.Error(err))
		}
	}

	// A second signal skips the graceful path.
	go func() {
		sig := <-sigCh
		logger.Warn("received second signal, forcing exit", zap.String("signal", sig.String()))
		os.Exit(1)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	cancel()

	logger.Info("shutdown complete")
}

// createStores opens the snapshot and rate history backends and applies migrations.
func createStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (*stores, func(), error) {
	if cfg.UseMemory {
		return &stores{
			metadata: memory.NewMetadataSnapshotStore(),
			rates:    memory.NewMarketRateStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool, logger.Named("migrations")); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN, logger.Named("migrations"))
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		_ = chConn.Close()
		pool.Close()
	}
	return &stores{
		metadata: pgstore.NewMetadataSnapshotStore(pool),
		rates:    chstore.NewMarketRateStore(chConn),
	}, cleanup, nil
}
