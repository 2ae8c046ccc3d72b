package adapter

import (
	"context"
	"fmt"
	"time"

	"paymenthub/internal/domain/transactions"
	"paymenthub/internal/envelope"
	"paymenthub/internal/refcode"

	"go.uber.org/zap"
)

// Cardnet answers card-network traffic locally until the VISA and
// Mastercard links exist. Every request is approved.
type Cardnet struct {
	codes  *refcode.Generator
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewCardnet(codes *refcode.Generator, logger *zap.SugaredLogger) *Cardnet {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Cardnet{codes: codes, logger: logger, now: time.Now}
}

func (c *Cardnet) Process(ctx context.Context, correlationID string, req *envelope.TransactionRequest) (*envelope.TransactionResponse, error) {
	c.logger.Infow("card network request",
		"correlationId", correlationID,
		"terminalId", req.TerminalID,
		"txnType", req.TxnType,
		"amount", req.Amount,
		"card", transactions.MaskCard(req.CardNumber),
	)

	codes, err := c.codes.Next()
	if err != nil {
		return nil, err
	}
	now := c.now()
	return &envelope.TransactionResponse{
		CorrelationID:   correlationID,
		Status:          transactions.StatusSuccess,
		ResponseCode:    envelope.CodeApproved,
		ResponseMessage: "Approved",
		TransactionID:   fmt.Sprintf("CARD-%d", now.UnixMilli()),
		RRN:             codes.RRN,
		ApprovalCode:    codes.ApprovalCode,
		Balance:         "000000000000",
		Timestamp:       now.UnixMilli(),
	}, nil
}
