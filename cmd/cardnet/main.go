package main

import (
	"context"
	"os/signal"
	"syscall"

	"paymenthub/internal/adapter"
	"paymenthub/internal/bus"
	"paymenthub/internal/cipher"
	"paymenthub/internal/config"
	"paymenthub/internal/logger"
	"paymenthub/internal/refcode"
	"paymenthub/internal/router"
)

// cardnet answers the card networks (VISA, MASTERCARD) locally.
func main() {
	cfg := config.Load()
	logger := logger.New(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inbound, err := cipher.NewChannelFromBase64(cfg.Keys.HopOut)
	if err != nil {
		logger.Fatalw("HOP_OUTBOUND_AES_KEY", "err", err)
	}
	reply, err := cipher.NewChannelFromBase64(cfg.Keys.HopReturn)
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

	codes, err := refcode.New("cardnet")
	if err != nil {
		logger.Fatal(err)
	}
	processor := adapter.NewCardnet(codes, logger)

	manager := adapter.NewManager()
	manager.RegisterProcessor(router.Visa, processor)
	manager.RegisterProcessor(router.Mastercard, processor)
	manager.SetDefault(processor)

	svc := adapter.NewService(adapter.Config{
		Name:    "CARDNET",
		ReplyTo: cfg.Addresses.GatewayIn,
		Inbound: inbound,
		Reply:   reply,
	}, manager, b, logger)

	logger.Infow("cardnet adapter started", "address", cfg.Addresses.Cardnet)
	if err := bus.Run(ctx, b, cfg.Bus.GroupID+"-cardnet", bus.Consumer{Address: cfg.Addresses.Cardnet, Handler: svc.Handle}); err != nil {
		logger.Errorw("cardnet adapter stopped with error", "err", err)
		return
	}
	logger.Info("cardnet adapter stopped")
}
