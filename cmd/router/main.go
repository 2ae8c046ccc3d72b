package main

import (
	"context"
	"os/signal"
	"syscall"

	"paymenthub/internal/bus"
	"paymenthub/internal/config"
	"paymenthub/internal/logger"
	"paymenthub/internal/router"
)

func main() {
	cfg := config.Load()
	logger := logger.New(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	concurrency, err := bus.ParseConcurrency(cfg.Bus.Concurrency)
	if err != nil {
		logger.Fatalw("CONSUMER_CONCURRENCY", "err", err)
	}
	b, err := bus.Open(cfg.Bus.Driver, cfg.Bus.Brokers, concurrency, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer b.Close()

	table := router.NewTable(cfg.Addresses.Domestic, cfg.Addresses.Cardnet)
	r := router.New(table, b, logger)

	logger.Infow("router started",
		"from", cfg.Addresses.GatewayOut,
		"domestic", cfg.Addresses.Domestic,
		"cardnet", cfg.Addresses.Cardnet,
	)
	if err := bus.Run(ctx, b, cfg.Bus.GroupID+"-router", bus.Consumer{Address: cfg.Addresses.GatewayOut, Handler: r.Handle}); err != nil {
		logger.Errorw("router stopped with error", "err", err)
		return
	}
	logger.Info("router stopped")
}
