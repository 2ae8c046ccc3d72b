package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"paymenthub/internal/auth"
	"paymenthub/internal/cipher"
	"paymenthub/internal/config"
	"paymenthub/internal/domain/transactions"
	"paymenthub/internal/gateway"
	"paymenthub/internal/ratelimiter"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// transactionService is the part of gateway.Service the handlers use.
type transactionService interface {
	Handle(ctx context.Context, encrypted string, route gateway.Route) (string, error)
}

type sessionManager interface {
	Login(ctx context.Context, clientID, secret string) (*auth.Session, error)
	Validate(ctx context.Context, token string) (string, error)
	Logout(ctx context.Context, token string) error
}

type application struct {
	config      config.Config
	logger      *zap.SugaredLogger
	gateway     transactionService
	store       transactions.Store
	sessions    sessionManager
	client      *cipher.Channel
	rateLimiter ratelimiter.Limiter
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Source", "X-Destination"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Longer than the transaction timeout so a timed-out transaction still
	// gets its TIMEOUT response.
	r.Use(middleware.Timeout(app.config.TransactionTimeout + 10*time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", app.healthCheckHandler)
		r.With(app.BasicAuthMiddleware()).Handle("/metrics", promhttp.Handler())

		r.Route("/auth", func(r chi.Router) {
			r.Use(app.RateLimiterMiddleware)
			r.Post("/token", app.createTokenHandler)
			r.Delete("/token", app.deleteTokenHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(app.AuthTokenMiddleware)
			r.Use(app.RateLimiterMiddleware)
			r.Post("/transaction", app.processTransactionHandler)
			r.Get("/transactions/{correlationID}", app.getTransactionHandler)
		})

		if app.config.IsDevelopment() {
			r.Post("/transaction/test-encrypt", app.testEncryptHandler)
			r.Post("/transaction/test-decrypt", app.testDecryptHandler)
		}
	})

	return r
}

// run serves mux on the configured address until ctx ends. consume runs the
// bus consumers that resolve waiting requests.
func (app *application) run(ctx context.Context, mux http.Handler, consume func(context.Context) error) error {
	ln, err := net.Listen("tcp", app.config.Addr)
	if err != nil {
		return err
	}
	return app.serve(ctx, ln, mux, consume)
}

// serve keeps the consumers running until the HTTP server has drained, so a
// request still waiting when ctx ends can be resolved by its response.
func (app *application) serve(ctx context.Context, ln net.Listener, mux http.Handler, consume func(context.Context) error) error {
	consumeCtx, stopConsuming := context.WithCancel(context.WithoutCancel(ctx))
	defer stopConsuming()

	consumed := make(chan error, 1)
	go func() {
		consumed <- consume(consumeCtx)
	}()

	err := app.serveHTTP(ctx, ln, mux)

	stopConsuming()
	if cerr := <-consumed; cerr != nil {
		err = errors.Join(err, fmt.Errorf("response consumer: %w", cerr))
	}
	return err
}

func (app *application) serveHTTP(ctx context.Context, ln net.Listener, mux http.Handler) error {
	srv := &http.Server{
		Handler:      mux,
		WriteTimeout: app.config.TransactionTimeout + 15*time.Second,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error, 1)
	go func() {
		<-ctx.Done()
		app.logger.Infow("signal caught, shutting down", "addr", ln.Addr().String())

		// In-flight transactions may need the full timeout to answer.
		sctx, cancel := context.WithTimeout(context.Background(), app.config.TransactionTimeout+5*time.Second)
		defer cancel()
		shutdown <- srv.Shutdown(sctx)
	}()

	app.logger.Infow("server has started", "addr", ln.Addr().String(), "env", app.config.Env, "version", version)

	err := srv.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if err := <-shutdown; err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", ln.Addr().String(), "env", app.config.Env)
	return nil
}
