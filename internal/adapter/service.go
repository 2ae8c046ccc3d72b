package adapter

import (
	"context"
	"fmt"
	"time"

	"paymenthub/internal/bus"
	"paymenthub/internal/cipher"
	"paymenthub/internal/envelope"

	"go.uber.org/zap"
)

type Config struct {
	// Name is the source tag on published responses, e.g. "SARVATRA".
	Name string
	// ReplyTo is the gateway's return address.
	ReplyTo string
	// Inbound opens routed envelopes; Reply seals responses.
	Inbound *cipher.Channel
	Reply   *cipher.Channel
}

// Service is the bus handler shared by every adapter process.
type Service struct {
	cfg     Config
	manager *Manager
	pub     bus.Publisher
	logger  *zap.SugaredLogger
}

func NewService(cfg Config, manager *Manager, pub bus.Publisher, logger *zap.SugaredLogger) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{cfg: cfg, manager: manager, pub: pub, logger: logger}
}

// Handle answers every envelope it can attribute to a correlation ID, with a
// FAILED response when anything on the way goes wrong.
func (s *Service) Handle(ctx context.Context, msg bus.Message) error {
	start := time.Now()

	env, err := envelope.Decode(msg.Value)
	if err != nil {
		if msg.Key == "" {
			return err
		}
		s.logger.Errorw("malformed envelope", "correlationId", msg.Key, "err", err)
		return s.respond(ctx, msg.Key, "", envelope.FailedResponse(msg.Key, "", "malformed envelope"))
	}
	id := env.CorrelationID

	s.logger.Infow("request received", "correlationId", id, "source", env.Source, "destination", env.Destination)

	var req envelope.TransactionRequest
	if err := env.Open(s.cfg.Inbound, &req); err != nil {
		s.logger.Errorw("cannot open envelope", "correlationId", id, "err", err)
		return s.respond(ctx, id, env.Source, s.failed(id, err))
	}

	resp, err := s.manager.Process(ctx, env.Destination, id, &req)
	if err != nil {
		s.logger.Errorw("processing failed", "correlationId", id, "err", err)
		resp = s.failed(id, err)
	}
	resp.CorrelationID = id

	if err := s.respond(ctx, id, env.Source, resp); err != nil {
		return err
	}
	s.logger.Infow("response sent",
		"correlationId", id,
		"status", resp.Status,
		"responseCode", resp.ResponseCode,
		"took", time.Since(start).String(),
	)
	return nil
}

func (s *Service) failed(id string, err error) *envelope.TransactionResponse {
	return envelope.FailedResponse(id, envelope.CodeSystemError, fmt.Sprintf("%s processing error: %v", s.cfg.Name, err))
}

func (s *Service) respond(ctx context.Context, id, destination string, resp *envelope.TransactionResponse) error {
	b, err := envelope.Seal(s.cfg.Reply, id, s.cfg.Name, destination, resp)
	if err != nil {
		return fmt.Errorf("seal response %s: %w", id, err)
	}
	if err := s.pub.Publish(ctx, s.cfg.ReplyTo, bus.Message{Key: id, Value: b}); err != nil {
		return fmt.Errorf("publish response %s: %w", id, err)
	}
	return nil
}
