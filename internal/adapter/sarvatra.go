package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paymenthub/internal/cipher"
	"paymenthub/internal/domain/transactions"
	"paymenthub/internal/envelope"

	"go.uber.org/zap"
)

// Sarvatra forwards requests to the domestic switch inside a hybrid
// envelope: fresh AES key and IV per request, each small secret wrapped
// under the switch's RSA key.
type Sarvatra struct {
	sealer *cipher.Sealer
	client *SwitchClient
	logger *zap.SugaredLogger
}

func NewSarvatra(sealer *cipher.Sealer, client *SwitchClient, logger *zap.SugaredLogger) *Sarvatra {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Sarvatra{sealer: sealer, client: client, logger: logger}
}

func (s *Sarvatra) Process(ctx context.Context, correlationID string, req *envelope.TransactionRequest) (*envelope.TransactionResponse, error) {
	plain, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	sealed, err := s.sealer.Seal(plain)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := s.client.Send(ctx, correlationID, sealed)
	if err != nil {
		if errors.Is(err, ErrSwitchTimeout) {
			s.logger.Warnw("switch timed out", "correlationId", correlationID, "err", err)
			resp := envelope.TimeoutResponse(correlationID)
			resp.ResponseMessage = "Request timeout"
			return resp, nil
		}
		return nil, fmt.Errorf("switch error: %w", err)
	}

	s.logger.Infow("switch responded",
		"correlationId", correlationID,
		"responseCode", res.ResponseCode,
		"took", time.Since(start).String(),
	)
	return fromSwitch(correlationID, res), nil
}

func fromSwitch(correlationID string, res *envelope.SwitchResponse) *envelope.TransactionResponse {
	status := MapStatus(res.ResponseCode)
	code := res.ResponseCode
	if code == "" && status == transactions.StatusFailed {
		code = envelope.CodeSystemError
	}
	return &envelope.TransactionResponse{
		CorrelationID:   correlationID,
		Status:          status,
		ResponseCode:    code,
		ResponseMessage: res.ResponseMessage,
		TransactionID:   res.TransactionID,
		RRN:             res.RRN,
		ApprovalCode:    res.ApprovalCode,
		Balance:         res.Balance,
		Timestamp:       time.Now().UnixMilli(),
	}
}
