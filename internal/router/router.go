// Package router forwards envelopes from the gateway to the adapter that
// serves their destination network. It reads the destination tag and
// nothing else, so routing changes never touch an adapter.
package router

import (
	"context"
	"fmt"
	"strings"

	"paymenthub/internal/bus"
	"paymenthub/internal/envelope"
	"paymenthub/internal/metrics"

	"go.uber.org/zap"
)

// Destination tags.
const (
	NPCI       = "NPCI"
	RuPay      = "RUPAY"
	Visa       = "VISA"
	Mastercard = "MASTERCARD"
)

// Table maps upper-cased destination tags to bus addresses. Unknown or empty
// tags go to Default.
type Table struct {
	Routes  map[string]string
	Default string
}

// NewTable sends the domestic rails to domestic and the card networks to
// cardnet, defaulting to domestic.
func NewTable(domestic, cardnet string) Table {
	return Table{
		Routes: map[string]string{
			NPCI:       domestic,
			RuPay:      domestic,
			Visa:       cardnet,
			Mastercard: cardnet,
		},
		Default: domestic,
	}
}

// Lookup reports the address for tag and whether the tag was recognised.
func (t Table) Lookup(tag string) (string, bool) {
	if addr, ok := t.Routes[normalize(tag)]; ok {
		return addr, true
	}
	return t.Default, false
}

func normalize(tag string) string {
	return strings.ToUpper(strings.TrimSpace(tag))
}

// defaultLabel is the metric label for every unrecognised tag.
const defaultLabel = "default"

type Router struct {
	table  Table
	pub    bus.Publisher
	logger *zap.SugaredLogger
}

func New(table Table, pub bus.Publisher, logger *zap.SugaredLogger) *Router {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Router{table: table, pub: pub, logger: logger}
}

// Handle republishes msg unchanged to the address for its destination. It
// holds no state, so redelivery of the same message is harmless.
func (r *Router) Handle(ctx context.Context, msg bus.Message) error {
	tag, err := envelope.PeekDestination(msg.Value)
	if err != nil {
		return fmt.Errorf("route %s: %w", msg.Key, err)
	}

	addr, known := r.table.Lookup(tag)
	label := normalize(tag)
	if !known {
		label = defaultLabel
		r.logger.Warnw("unknown destination, using default route", "correlationId", msg.Key, "destination", tag, "address", addr)
	}

	if err := r.pub.Publish(ctx, addr, msg); err != nil {
		return fmt.Errorf("route %s to %s: %w", msg.Key, addr, err)
	}
	metrics.Routed.WithLabelValues(label, addr).Inc()
	r.logger.Debugw("routed", "correlationId", msg.Key, "destination", tag, "address", addr)
	return nil
}
