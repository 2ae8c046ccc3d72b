package transactions

import (
	"context"
	"slices"
	"time"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
	StatusTimeout    Status = "TIMEOUT"
	StatusReversed   Status = "REVERSED"
)

var terminalStatuses = []Status{StatusSuccess, StatusFailed, StatusTimeout, StatusReversed}

// Terminal reports whether the network has given a final answer.
func (s Status) Terminal() bool {
	return slices.Contains(terminalStatuses, s)
}

type Record struct {
	ID              int64     `json:"id"`
	CorrelationID   string    `json:"correlation_id"`
	ClientID        string    `json:"client_id"`
	TerminalID      string    `json:"terminal_id"`
	Source          string    `json:"source"`
	Destination     string    `json:"destination"`
	TxnType         string    `json:"txn_type"`
	Amount          float64   `json:"amount"`
	CardNumber      string    `json:"card_number"` // always masked
	Status          Status    `json:"status"`
	RequestPayload  string    `json:"-"` // encrypted, as received
	ResponsePayload *string   `json:"response_payload,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Store is the persistence collaborator. Callers treat every write as best
// effort: failures are logged, never allowed to block the response path.
type Store interface {
	InsertPending(ctx context.Context, r *Record) error
	UpdateByCorrelationID(ctx context.Context, correlationID string, status Status, responsePayload string) (int64, error)
	// MarkTimeout sets TIMEOUT unless the record already holds a terminal
	// status, so a response recorded first is never overwritten.
	MarkTimeout(ctx context.Context, correlationID string, responsePayload string) (int64, error)
	GetByCorrelationID(ctx context.Context, correlationID string) (*Record, error)
}

// MaskCard keeps the first and last four digits.
func MaskCard(card string) string {
	if len(card) < 8 {
		return card
	}
	return card[:4] + "****" + card[len(card)-4:]
}
