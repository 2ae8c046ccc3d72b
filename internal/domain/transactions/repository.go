package transactions

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"paymenthub/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

//go:embed schema.sql
var schema string

// Repository is the Postgres Store.
type Repository struct{ q dbx.Querier }

func NewRepository(q dbx.Querier) *Repository { return &Repository{q: q} }

// EnsureSchema creates the table and indexes when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure transactions schema: %w", err)
	}
	return nil
}

func (r *Repository) InsertPending(ctx context.Context, rec *Record) error {
	if err := r.q.QueryRow(ctx, `
		INSERT INTO client_transactions (
			correlation_id, client_id, terminal_id, source, destination,
			txn_type, amount, card_number, status, request_payload
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE(NULLIF($9, ''), 'PENDING'), $10)
		RETURNING id, created_at, updated_at
	`, rec.CorrelationID, rec.ClientID, rec.TerminalID, rec.Source, rec.Destination,
		rec.TxnType, rec.Amount, rec.CardNumber, string(rec.Status), rec.RequestPayload).
		Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *Repository) UpdateByCorrelationID(ctx context.Context, correlationID string, status Status, responsePayload string) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE client_transactions
		SET status = $2, response_payload = $3, updated_at = now()
		WHERE correlation_id = $1
	`, correlationID, string(status), responsePayload)
	if err != nil {
		return 0, fmt.Errorf("update transaction: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) MarkTimeout(ctx context.Context, correlationID string, responsePayload string) (int64, error) {
	terminal := make([]string, len(terminalStatuses))
	for i, s := range terminalStatuses {
		terminal[i] = string(s)
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE client_transactions
		SET status = $2, response_payload = $3, updated_at = now()
		WHERE correlation_id = $1 AND status <> ALL($4)
	`, correlationID, string(StatusTimeout), responsePayload, terminal)
	if err != nil {
		return 0, fmt.Errorf("mark transaction timeout: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetByCorrelationID returns nil, nil when there is no such record.
func (r *Repository) GetByCorrelationID(ctx context.Context, correlationID string) (*Record, error) {
	var rec Record
	var status string
	err := r.q.QueryRow(ctx, `
		SELECT id, correlation_id, client_id, terminal_id, source, destination,
		       txn_type, amount::float8, card_number, status, request_payload,
		       response_payload, created_at, updated_at
		FROM client_transactions WHERE correlation_id = $1
	`, correlationID).Scan(
		&rec.ID, &rec.CorrelationID, &rec.ClientID, &rec.TerminalID, &rec.Source, &rec.Destination,
		&rec.TxnType, &rec.Amount, &rec.CardNumber, &status, &rec.RequestPayload,
		&rec.ResponsePayload, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	rec.Status = Status(status)
	return &rec, nil
}
