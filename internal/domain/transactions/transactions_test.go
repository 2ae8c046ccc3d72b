package transactions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskCard(t *testing.T) {
	assert.Equal(t, "4111****1111", MaskCard("4111111111111111"))
	assert.Equal(t, "1234****5678", MaskCard("12345678"))
	assert.Equal(t, "1234567", MaskCard("1234567"))
	assert.Equal(t, "", MaskCard(""))
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	for _, s := range []Status{StatusSuccess, StatusFailed, StatusTimeout, StatusReversed} {
		assert.True(t, s.Terminal(), s)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	rec := &Record{CorrelationID: "TXN-1", TerminalID: "TERM001", TxnType: "WITHDRAWAL", Amount: 100}
	require.NoError(t, s.InsertPending(ctx, rec))
	assert.EqualValues(t, 1, rec.ID)
	assert.Error(t, s.InsertPending(ctx, &Record{CorrelationID: "TXN-1"}))

	got, err := s.GetByCorrelationID(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Nil(t, got.ResponsePayload)

	rows, err := s.UpdateByCorrelationID(ctx, "TXN-1", StatusSuccess, "Code:00")
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	got, err = s.GetByCorrelationID(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, got.Status)
	require.NotNil(t, got.ResponsePayload)
	assert.Equal(t, "Code:00", *got.ResponsePayload)

	rows, err = s.UpdateByCorrelationID(ctx, "missing", StatusFailed, "")
	require.NoError(t, err)
	assert.Zero(t, rows)

	got, err = s.GetByCorrelationID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMarkTimeoutKeepsTerminalOutcome(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.InsertPending(ctx, &Record{CorrelationID: "TXN-1"}))
	require.NoError(t, s.InsertPending(ctx, &Record{CorrelationID: "TXN-2"}))

	_, err := s.UpdateByCorrelationID(ctx, "TXN-1", StatusSuccess, "Code:00")
	require.NoError(t, err)

	rows, err := s.MarkTimeout(ctx, "TXN-1", "Transaction timed out")
	require.NoError(t, err)
	assert.Zero(t, rows)
	got, err := s.GetByCorrelationID(ctx, "TXN-1")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, got.Status)
	assert.Equal(t, "Code:00", *got.ResponsePayload)

	rows, err = s.MarkTimeout(ctx, "TXN-2", "Transaction timed out")
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)
	got, err = s.GetByCorrelationID(ctx, "TXN-2")
	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, got.Status)

	// A late network answer still replaces TIMEOUT.
	rows, err = s.UpdateByCorrelationID(ctx, "TXN-2", StatusFailed, "Code:51")
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	rows, err = s.MarkTimeout(ctx, "missing", "")
	require.NoError(t, err)
	assert.Zero(t, rows)
}
