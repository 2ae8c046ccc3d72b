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
	"paymenthub/internal/router"
)

// sarvatra serves the domestic rails (NPCI, RUPAY) through the external
// switch.
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
	pub, err := cipher.ParsePublicKey(cfg.Keys.SwitchPub)
	if err != nil {
		logger.Fatalw("SWITCH_PUBLIC_KEY", "err", err)
	}
	sealer, err := cipher.NewSealer(pub, cfg.Switch.APIID)
	if err != nil {
		logger.Fatal(err)
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

	retry := adapter.Retry{
		MaxAttempts: cfg.Switch.RetryAttempts,
		BaseDelay:   cfg.Switch.RetryDelay,
		MaxDelay:    cfg.Switch.RetryMaxDelay,
	}
	client := adapter.NewSwitchClient(cfg.Switch.URL, cfg.Switch.Timeout, retry, logger)
	processor := adapter.NewSarvatra(sealer, client, logger)

	manager := adapter.NewManager()
	manager.RegisterProcessor(router.NPCI, processor)
	manager.RegisterProcessor(router.RuPay, processor)
	// Unknown tags are routed here by default.
	manager.SetDefault(processor)

	svc := adapter.NewService(adapter.Config{
		Name:    "SARVATRA",
		ReplyTo: cfg.Addresses.GatewayIn,
		Inbound: inbound,
		Reply:   reply,
	}, manager, b, logger)

	logger.Infow("sarvatra adapter started", "address", cfg.Addresses.Domestic, "switch", cfg.Switch.URL,
		"attempts", retry.MaxAttempts, "timeout", cfg.Switch.Timeout.String())
	if err := bus.Run(ctx, b, cfg.Bus.GroupID+"-sarvatra", bus.Consumer{Address: cfg.Addresses.Domestic, Handler: svc.Handle}); err != nil {
		logger.Errorw("sarvatra adapter stopped with error", "err", err)
		return
	}
	logger.Info("sarvatra adapter stopped")
}
