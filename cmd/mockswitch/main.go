package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"paymenthub/internal/cipher"
	"paymenthub/internal/config"
	"paymenthub/internal/logger"
	"paymenthub/internal/refcode"
	"paymenthub/internal/switchsim"
)

func main() {
	cfg := config.Load()
	logger := logger.New(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	priv, err := cipher.ParsePrivateKey(cfg.Keys.SwitchPriv)
	if err != nil {
		logger.Fatalw("SWITCH_PRIVATE_KEY", "err", err)
	}
	codes, err := refcode.New("mockswitch")
	if err != nil {
		logger.Fatal(err)
	}
	sw := switchsim.New(priv, codes, switchsim.Options{
		Delay:        cfg.MockSwitch.Delay,
		DeclineAbove: cfg.MockSwitch.DeclineAbove,
	}, logger)

	srv := &http.Server{
		Addr:         cfg.MockSwitch.Addr,
		Handler:      sw.Routes(),
		WriteTimeout: cfg.MockSwitch.Delay + 30*time.Second,
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  time.Minute,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			logger.Errorw("shutdown", "err", err)
		}
	}()

	logger.Infow("mock switch has started", "addr", cfg.MockSwitch.Addr, "delay", cfg.MockSwitch.Delay.String())
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}
	logger.Info("mock switch has stopped")
}
