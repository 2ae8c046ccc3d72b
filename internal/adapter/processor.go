// Package adapter hosts the downstream integrations. Each adapter process
// consumes routed envelopes, hands the request to the Processor registered
// for its destination network and publishes exactly one normalized response
// per correlation ID back toward the gateway.
package adapter

import (
	"context"
	"fmt"
	"strings"

	"paymenthub/internal/domain/transactions"
	"paymenthub/internal/envelope"
)

// Processor runs one request against a network. A returned error is turned
// into a FAILED response by the caller.
type Processor interface {
	Process(ctx context.Context, correlationID string, req *envelope.TransactionRequest) (*envelope.TransactionResponse, error)
}

// Manager picks a Processor by destination tag.
type Manager struct {
	processors map[string]Processor
	fallback   Processor
}

func NewManager() *Manager {
	return &Manager{processors: make(map[string]Processor)}
}

func (m *Manager) RegisterProcessor(destination string, p Processor) {
	m.processors[strings.ToUpper(destination)] = p
}

// SetDefault serves destinations with no registered processor. The router
// sends unknown tags to the domestic address, so the domestic adapter needs
// one.
func (m *Manager) SetDefault(p Processor) {
	m.fallback = p
}

func (m *Manager) Process(ctx context.Context, destination, correlationID string, req *envelope.TransactionRequest) (*envelope.TransactionResponse, error) {
	p, ok := m.processors[strings.ToUpper(destination)]
	if !ok {
		if m.fallback == nil {
			return nil, fmt.Errorf("processor not registered: %q", destination)
		}
		p = m.fallback
	}
	return p.Process(ctx, correlationID, req)
}

// MapStatus normalizes a switch response code.
func MapStatus(code string) transactions.Status {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case envelope.CodeApproved, "SUCCESS":
		return transactions.StatusSuccess
	case "TIMEOUT":
		return transactions.StatusTimeout
	default:
		return transactions.StatusFailed
	}
}
