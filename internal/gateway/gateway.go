// Package gateway is the terminal-facing end of the fabric. Service turns one
// encrypted terminal request into a published envelope and blocks until the
// matching response comes back through Intake or the deadline passes.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paymenthub/internal/bus"
	"paymenthub/internal/cipher"
	"paymenthub/internal/correlation"
	"paymenthub/internal/domain/transactions"
	"paymenthub/internal/envelope"
	"paymenthub/internal/metrics"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	ErrInvalidRequest = errors.New("invalid transaction request")
	ErrPublish        = errors.New("could not publish transaction")
)

const (
	DefaultSource      = "UNKNOWN"
	DefaultDestination = "NPCI"

	sideEffectTimeout = 10 * time.Second
	// publishWait caps how long a request waits for the broker to accept
	// its envelope.
	publishWait = 5 * time.Second
)

// Registry is the correlation registry shared by Service and Intake.
type Registry = correlation.Registry[*envelope.TransactionResponse]

func NewRegistry(logger *zap.SugaredLogger) *Registry {
	return correlation.NewRegistry[*envelope.TransactionResponse](logger)
}

// Route carries the caller identity and routing tags for one request.
type Route struct {
	ClientID    string
	Source      string
	Destination string
}

type Config struct {
	// Outbound is the bus address the router consumes.
	Outbound string
	Timeout  time.Duration
	// Client is the terminal channel; HopOut seals envelopes for adapters.
	Client *cipher.Channel
	HopOut *cipher.Channel
}

// Workers run the side effects of each request. Store writes get their own
// pool so a slow database never delays a publish.
type Workers struct {
	Publish *bus.Pool
	Store   *bus.Pool
}

type Service struct {
	cfg      Config
	registry *Registry
	pub      bus.Publisher
	store    transactions.Store
	workers  Workers
	validate *validator.Validate
	logger   *zap.SugaredLogger
}

func NewService(cfg Config, registry *Registry, pub bus.Publisher, store transactions.Store, workers Workers, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		cfg:      cfg,
		registry: registry,
		pub:      pub,
		store:    store,
		workers:  workers,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Handle decrypts a terminal payload, runs it and returns the encrypted
// response. Decrypt and validation failures are returned before anything is
// registered or published.
func (s *Service) Handle(ctx context.Context, encrypted string, route Route) (string, error) {
	plain, err := s.cfg.Client.Decrypt(encrypted)
	if err != nil {
		return "", err
	}

	var req envelope.TransactionRequest
	if err := json.Unmarshal(plain, &req); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := s.validate.Struct(&req); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	resp, err := s.Process(ctx, &req, route, encrypted)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("encode response: %w", err)
	}
	return s.cfg.Client.Encrypt(out)
}

// Process runs an already decrypted request. rawPayload is what the record
// stores as the request.
func (s *Service) Process(ctx context.Context, req *envelope.TransactionRequest, route Route, rawPayload string) (*envelope.TransactionResponse, error) {
	start := time.Now()
	route = withDefaults(route)

	id := correlation.DeriveID(req.CorrelationID)
	req.CorrelationID = id

	s.logger.Infow("transaction received",
		"correlationId", id,
		"terminalId", req.TerminalID,
		"txnType", req.TxnType,
		"amount", req.Amount,
		"destination", route.Destination,
	)

	msg, err := envelope.Seal(s.cfg.HopOut, id, route.Source, route.Destination, req)
	if err != nil {
		return nil, err
	}

	// Registered before anything leaves the process.
	pending, err := s.registry.Register(id)
	if err != nil {
		return nil, err
	}
	// The budget covers the publish as well as the wait for a response.
	deadline := time.Now().Add(s.cfg.Timeout)

	published, err := s.startPublish(ctx, bus.Message{
		Key:     id,
		Value:   msg,
		Headers: map[string]string{"destination": route.Destination, "source": route.Source},
	})
	if err == nil {
		// The publish is already on its way; the insert runs beside it.
		s.persist(ctx, id, func(ctx context.Context) error {
			return s.store.InsertPending(ctx, &transactions.Record{
				CorrelationID:  id,
				ClientID:       route.ClientID,
				TerminalID:     req.TerminalID,
				Source:         route.Source,
				Destination:    route.Destination,
				TxnType:        req.TxnType,
				Amount:         req.Amount,
				CardNumber:     transactions.MaskCard(req.CardNumber),
				Status:         transactions.StatusPending,
				RequestPayload: rawPayload,
			})
		})
		wait := time.NewTimer(min(publishWait, time.Until(deadline)))
		select {
		case err = <-published:
		case <-wait.C:
			err = errors.New("broker did not acknowledge in time")
		case <-ctx.Done():
			err = ctx.Err()
		}
		wait.Stop()
	}
	if err != nil {
		s.registry.Cancel(pending)
		s.logger.Errorw("publish failed", "correlationId", id, "err", err)
		return nil, fmt.Errorf("%w: %v", ErrPublish, err)
	}

	resp, err := s.registry.Await(ctx, pending, time.Until(deadline))
	switch {
	case errors.Is(err, correlation.ErrTimeout):
		s.logger.Warnw("transaction timed out", "correlationId", id, "after", time.Since(start).String())
		resp = envelope.TimeoutResponse(id)
		s.persist(ctx, id, func(ctx context.Context) error {
			_, err := s.store.MarkTimeout(ctx, id, "Transaction timed out")
			return err
		})
	case err != nil:
		return nil, err
	}

	metrics.GatewayLatency.WithLabelValues(string(resp.Status)).Observe(time.Since(start).Seconds())
	s.logger.Infow("transaction completed",
		"correlationId", id,
		"status", resp.Status,
		"responseCode", resp.ResponseCode,
		"took", time.Since(start).String(),
	)
	return resp, nil
}

// startPublish hands msg to the publish pool. The broker's answer arrives
// on the returned channel.
func (s *Service) startPublish(ctx context.Context, msg bus.Message) (<-chan error, error) {
	done := make(chan error, 1)
	err := s.workers.Publish.Submit(ctx, func() {
		done <- s.pub.Publish(ctx, s.cfg.Outbound, msg)
	})
	if err != nil {
		return nil, err
	}
	return done, nil
}

// persist is fire-and-forget: failures are logged and never reach the
// caller.
func (s *Service) persist(ctx context.Context, id string, write func(ctx context.Context) error) {
	writeCtx := context.WithoutCancel(ctx)
	err := s.workers.Store.Submit(ctx, func() {
		ctx, cancel := context.WithTimeout(writeCtx, sideEffectTimeout)
		defer cancel()
		if err := write(ctx); err != nil {
			s.logger.Errorw("transaction store write failed", "correlationId", id, "err", err)
		}
	})
	if err != nil {
		s.logger.Errorw("could not schedule store write", "correlationId", id, "err", err)
	}
}

func withDefaults(r Route) Route {
	if r.Source == "" {
		r.Source = DefaultSource
	}
	if r.Destination == "" {
		r.Destination = DefaultDestination
	}
	return r
}
