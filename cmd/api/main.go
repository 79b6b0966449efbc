package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sunset-protocol/sunset-indexer/internal/adapter"
	"github.com/sunset-protocol/sunset-indexer/internal/aggregator"
	"github.com/sunset-protocol/sunset-indexer/internal/api/middleware"
	"github.com/sunset-protocol/sunset-indexer/internal/api/server"
	"github.com/sunset-protocol/sunset-indexer/internal/api/shared/executor"
	"github.com/sunset-protocol/sunset-indexer/internal/cache"
	"github.com/sunset-protocol/sunset-indexer/internal/chain"
	"github.com/sunset-protocol/sunset-indexer/internal/config"
	"github.com/sunset-protocol/sunset-indexer/internal/indexer"
	"github.com/sunset-protocol/sunset-indexer/internal/logger"
	"github.com/sunset-protocol/sunset-indexer/internal/providers/ethereum"
	"github.com/sunset-protocol/sunset-indexer/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		Service:   "api",
		SentryDSN: cfg.SentryDSN,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting API server", zap.String("source", cfg.Source))

	if cfg.Ethereum.RegistryAddress == "" || cfg.Ethereum.VaultAddress == "" {
		logger.FatalCtx(ctx, "ethereum.registry_address and ethereum.vault_address are required")
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	if err := store.ConfigureConnectionPool(db,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
		cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}

	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()

	// Dial the chain RPC; holder-specific reads go through the vault contract
	// on either query backend
	ethDialer := adapter.NewEthClientDialer()
	adapterEthClient, err := ethDialer.Dial(ctx, cfg.Ethereum.RPCURL)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to dial Ethereum RPC", zap.Error(err), zap.String("rpc_url", cfg.Ethereum.RPCURL))
	}
	defer adapterEthClient.Close()

	registry, err := chain.NewRegistry(cfg.Ethereum.RegistryAddress, adapterEthClient)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create registry reader", zap.Error(err))
	}
	vault, err := chain.NewVault(cfg.Ethereum.VaultAddress, adapterEthClient)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create vault reader", zap.Error(err))
	}

	// Select the query backend
	var source executor.Source
	switch cfg.Source {
	case "chain":
		source = executor.NewChainSource(cfg.Ethereum.ChainID, registry, vault, cfg.Worker.WorkerPoolSize)
	default:
		source = executor.NewStoreSource(dataStore)
	}

	// The backfiller replays historical logs through the same aggregator the
	// indexer uses, so reindexing cannot diverge from live indexing
	ethereumClient, err := ethereum.NewClient(cfg.Ethereum.ChainID, cfg.Ethereum.RegistryAddress, cfg.Ethereum.VaultAddress, adapterEthClient)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create Ethereum client", zap.Error(err))
	}
	backfiller := indexer.NewBackfiller(ethereumClient, aggregator.New(dataStore, jsonAdapter),
		cfg.Ethereum.RegistryAddress, cfg.Ethereum.VaultAddress)

	// Create shared executor (business logic behind the REST handlers)
	readCache := cache.New(clockAdapter, cfg.Cache.TTL)
	exec := executor.NewExecutor(source, vault, readCache, clockAdapter, backfiller)

	// Create API server
	apiServer := server.New(server.Config{
		Debug:          cfg.Debug,
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    time.Duration(cfg.Server.IdleTimeout) * time.Second,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
	}, exec)

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel for server errors
	errCh := make(chan error, 1)

	// Start the server
	go func() {
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "api-server"))
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, zap.String("message", "Failed to shutdown API server gracefully"))
	}

	logger.Info("API server stopped")
}
