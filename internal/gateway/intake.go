package gateway

import (
	"context"
	"time"

	"paymenthub/internal/bus"
	"paymenthub/internal/cipher"
	"paymenthub/internal/domain/transactions"
	"paymenthub/internal/envelope"

	"go.uber.org/zap"
)

const (
	recordAttempts   = 3
	recordRetryDelay = 50 * time.Millisecond
)

// Intake consumes adapter responses from the return address. It is safe for
// any number of concurrent deliveries.
type Intake struct {
	hop      *cipher.Channel
	registry *Registry
	store    transactions.Store
	logger   *zap.SugaredLogger
}

func NewIntake(hop *cipher.Channel, registry *Registry, store transactions.Store, logger *zap.SugaredLogger) *Intake {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Intake{hop: hop, registry: registry, store: store, logger: logger}
}

// Handle resolves the waiting request first and records the outcome second,
// so a slow store never holds up a terminal.
func (in *Intake) Handle(ctx context.Context, msg bus.Message) error {
	id := msg.Key
	var resp envelope.TransactionResponse
	env, err := envelope.Decode(msg.Value)
	if err == nil {
		id = env.CorrelationID
		err = env.Open(in.hop, &resp)
	}
	if err != nil {
		if id == "" {
			return err
		}
		in.logger.Errorw("unreadable response", "correlationId", id, "err", err)
		resp = *envelope.FailedResponse(id, envelope.CodeSystemError, "Unreadable response from network")
	}
	resp.CorrelationID = id

	in.logger.Infow("response received", "correlationId", id, "status", resp.Status, "responseCode", resp.ResponseCode)

	// A late or duplicate response is dropped by the registry but still
	// recorded, so the store holds the network's real outcome.
	in.registry.Resolve(id, &resp)

	in.record(ctx, id, &resp)
	return nil
}

// record writes the outcome. The gateway's pending insert runs beside the
// publish, so a fast response can arrive first; a missing row is retried
// briefly before giving up.
func (in *Intake) record(ctx context.Context, id string, resp *envelope.TransactionResponse) {
	ctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		rows, err := in.store.UpdateByCorrelationID(ctx, id, resp.Status, resp.AuditString())
		switch {
		case err != nil:
			in.logger.Errorw("transaction store update failed", "correlationId", id, "err", err)
			return
		case rows > 0:
			return
		case attempt == recordAttempts:
			in.logger.Warnw("no transaction record to update", "correlationId", id)
			return
		}
		select {
		case <-time.After(recordRetryDelay):
		case <-ctx.Done():
			return
		}
	}
}
