package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"syscall"
	"time"

	natsio "github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	natsclient "github.com/bitmercado/ms-orders/internal/client/nats"
	"github.com/bitmercado/ms-orders/internal/config"
	"github.com/bitmercado/ms-orders/internal/infra/closer"
	"github.com/bitmercado/ms-orders/internal/infra/db"
	redisinfra "github.com/bitmercado/ms-orders/internal/infra/redis"
	"github.com/bitmercado/ms-orders/internal/logger"
	"github.com/bitmercado/ms-orders/internal/metrics"
	"github.com/bitmercado/ms-orders/internal/repository/postgres"
	redisrepo "github.com/bitmercado/ms-orders/internal/repository/redis"
	"github.com/bitmercado/ms-orders/internal/services/catalog"
	"github.com/bitmercado/ms-orders/internal/services/execution"
	"github.com/bitmercado/ms-orders/internal/services/fees"
	"github.com/bitmercado/ms-orders/internal/services/order"
	transport "github.com/bitmercado/ms-orders/internal/transport/nats"
	"github.com/bitmercado/ms-orders/migrations"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envPath := flag.String("env", ".env", "path to env file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*envPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.LogJSON)
	defer logger.Sync() //nolint:errcheck

	minTotal, err := decimal.NewFromString(cfg.Engine.MinOrderTotal)
	if err != nil {
		logger.Fatal(ctx, "invalid ORDER_MIN_TOTAL", zap.Error(err))
	}

	shutdown := closer.New()

	pool, err := db.Setup(ctx, cfg.DBURI, migrations.FS)
	if err != nil {
		logger.Fatal(ctx, "failed to set up database", zap.Error(err))
	}
	shutdown.AddNamed("postgres", func(context.Context) error {
		pool.Close()
		return nil
	})

	redisPool := redisinfra.NewPool(redisinfra.PoolConfig{
		Address:     cfg.RedisAddress,
		Password:    cfg.RedisPassword,
		MaxIdle:     cfg.RedisMaxIdle,
		IdleTimeout: cfg.RedisIdleTimeout,
	})
	redisClient := redisinfra.NewClient(redisPool, cfg.RedisConnTimeout)
	shutdown.AddNamed("redis", func(context.Context) error {
		return redisClient.Close()
	})
	if err := redisClient.Ping(ctx); err != nil {
		logger.Fatal(ctx, "failed to reach redis", zap.Error(err))
	}

	natsOpts := []natsio.Option{natsio.Name("ms-orders")}
	if cfg.NATSUser != "" {
		natsOpts = append(natsOpts, natsio.UserInfo(cfg.NATSUser, cfg.NATSPassword))
	}
	conn, err := natsio.Connect(cfg.NATSURL, natsOpts...)
	if err != nil {
		logger.Fatal(ctx, "failed to connect to nats", zap.Error(err))
	}
	shutdown.AddNamed("nats connection", func(context.Context) error {
		conn.Close()
		return nil
	})

	orderStore := postgres.NewOrderStore(pool)
	settlementStore := postgres.NewSettlementStore(pool)
	ledgerStore := postgres.NewLedgerStore(pool)
	feeStore := postgres.NewFeeStore(pool)
	userStore := postgres.NewUserStore(pool)
	bridgeStore := postgres.NewBridgeOrderStore(pool)
	marketStore := postgres.NewMarketDataStore(pool)
	catalogStore := redisrepo.NewCatalogStore(redisClient)

	catalogService := catalog.NewService(catalogStore)
	accountClient := natsclient.NewAccountClient(conn, *cfg)
	notifier := natsclient.NewNotifier(conn, catalogService, cfg.NotifyTimeout)

	feeResolver := fees.NewResolver(feeStore, feeStore)
	priceSource := execution.NewBookPriceSource(orderStore)
	reconciler := execution.NewReconciler(marketStore, ledgerStore, cfg.Engine.QuotePriceDecimals)

	executionService := execution.NewService(
		orderStore,
		settlementStore,
		userStore,
		feeResolver,
		catalogService,
		accountClient,
		notifier,
		bridgeStore,
		priceSource,
		reconciler,
		execution.Config{
			QuoteDecimals:  cfg.Engine.QuotePriceDecimals,
			AmountDecimals: cfg.Engine.AmountDecimals,
		},
	)

	orderService := order.NewService(
		orderStore,
		userStore,
		catalogService,
		accountClient,
		reconciler,
		marketStore,
		order.Config{
			MinOrderTotal:       minTotal,
			QuoteDecimals:       cfg.Engine.QuotePriceDecimals,
			AmountDecimals:      cfg.Engine.AmountDecimals,
			StrictQuoteDecimals: cfg.Engine.StrictQuoteDecimals,
		},
	)

	server := transport.NewServer(conn, cfg.NATSQueue,
		transport.RequestID(),
		transport.Recovery(),
		transport.Logging(),
	)
	transport.RegisterHandlers(server, orderService, executionService, catalogService)

	if err := server.Start(); err != nil {
		logger.Fatal(ctx, "failed to start nats server", zap.Error(err))
	}
	shutdown.AddNamed("nats server", func(context.Context) error {
		return server.Close()
	})

	metricsServer := &http.Server{Addr: cfg.MetricsAddress, Handler: metrics.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "metrics server failed", zap.Error(err))
		}
	}()
	shutdown.AddNamed("metrics server", metricsServer.Shutdown)

	logger.Info(ctx, "ms-orders started",
		zap.String("queue", cfg.NATSQueue),
		zap.String("metrics", cfg.MetricsAddress),
	)

	shutdown.Wait(syscall.SIGINT, syscall.SIGTERM)

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown.CloseAll(closeCtx); err != nil {
		logger.Error(closeCtx, "shutdown finished with errors", zap.Error(err))
	}

	logger.Info(ctx, "ms-orders stopped")
}
