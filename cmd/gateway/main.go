package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"paymenthub/internal/auth"
	"paymenthub/internal/bus"
	"paymenthub/internal/cipher"
	"paymenthub/internal/config"
	"paymenthub/internal/domain/transactions"
	"paymenthub/internal/gateway"
	"paymenthub/internal/infra/dbx"
	"paymenthub/internal/logger"
	"paymenthub/internal/ratelimiter"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var version = "1.0.0"

func main() {
	// Set before the deferred closers run, read after them.
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	cfg := config.Load()
	logger := logger.New(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cipher.NewChannelFromBase64(cfg.Keys.Client)
	if err != nil {
		logger.Fatalw("CLIENT_AES_KEY", "err", err)
	}
	hopOut, err := cipher.NewChannelFromBase64(cfg.Keys.HopOut)
	if err != nil {
		logger.Fatalw("HOP_OUTBOUND_AES_KEY", "err", err)
	}
	hopIn, err := cipher.NewChannelFromBase64(cfg.Keys.HopReturn)
	if err != nil {
		logger.Fatalw("HOP_RETURN_AES_KEY", "err", err)
	}

	concurrency, err := bus.ParseConcurrency(cfg.Bus.Concurrency)
	if err != nil {
		logger.Fatalw("CONSUMER_CONCURRENCY", "err", err)
	}
	b, err := bus.Open(cfg.Bus.Driver, cfg.Bus.Brokers, concurrency, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer b.Close()

	store := openStore(ctx, cfg, logger)

	tokens, err := auth.NewJWTAuthenticator(cfg.Auth.TokenSecret, cfg.Auth.TokenIss)
	if err != nil {
		logger.Fatalw("AUTH_TOKEN_SECRET", "err", err)
	}
	creds := auth.NewCredentials(cfg.Auth.Credentials)
	if creds.Open() {
		logger.Warn("CLIENT_CREDENTIALS is empty, any client id and secret will be accepted")
	}
	sessions := auth.NewManager(creds, openSessions(ctx, cfg, logger), tokens, cfg.Auth.SessionTTL)

	registry := gateway.NewRegistry(logger)
	workers := gateway.Workers{
		Publish: bus.NewPool(sideEffectConcurrency(cfg.SideEffectWorkers)),
		Store:   bus.NewPool(sideEffectConcurrency(cfg.SideEffectWorkers)),
	}
	defer workers.Publish.Close()
	defer workers.Store.Close()

	svc := gateway.NewService(gateway.Config{
		Outbound: cfg.Addresses.GatewayOut,
		Timeout:  cfg.TransactionTimeout,
		Client:   client,
		HopOut:   hopOut,
	}, registry, b, store, workers, logger)
	intake := gateway.NewIntake(hopIn, registry, store, logger)

	app := &application{
		config:      cfg,
		logger:      logger,
		gateway:     svc,
		store:       store,
		sessions:    sessions,
		client:      client,
		rateLimiter: ratelimiter.NewFixedWindowLimiter(cfg.RateLimiter.RequestsPerTimeFrame, cfg.RateLimiter.TimeFrame),
	}

	consume := func(ctx context.Context) error {
		return bus.Run(ctx, b, cfg.Bus.GroupID+"-gateway", bus.Consumer{Address: cfg.Addresses.GatewayIn, Handler: intake.Handle})
	}
	if err := app.run(ctx, app.mount(), consume); err != nil {
		logger.Errorw("gateway stopped with error", "err", err)
		exitCode = 1
	}
}

// openStore falls back to an in-process store when DB_ADDR is unset.
func openStore(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) transactions.Store {
	if cfg.DB.Addr == "" {
		logger.Warn("DB_ADDR is empty, transaction records are kept in memory")
		return transactions.NewMemoryStore()
	}
	pool, err := dbx.New(cfg.DB.Addr, int32(cfg.DB.MaxConns), cfg.DB.MaxIdleTime)
	if err != nil {
		logger.Fatal(err)
	}
	repo := transactions.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Fatal(err)
	}
	logger.Info("database connection pool established")
	return repo
}

func openSessions(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) auth.Sessions {
	if cfg.Auth.RedisAddr == "" {
		logger.Warn("REDIS_ADDR is empty, sessions are kept in memory")
		return auth.NewMemorySessions()
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Auth.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatalw("redis unreachable", "addr", cfg.Auth.RedisAddr, "err", err)
	}
	return auth.NewRedisSessions(rdb)
}

func sideEffectConcurrency(n int) bus.Concurrency {
	if n < 2 {
		n = 2
	}
	return bus.Concurrency{Min: n / 2, Max: n}
}
