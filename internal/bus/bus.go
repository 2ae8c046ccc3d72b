// Package bus is the publish/subscribe layer between services. An address is
// a Kafka topic in production and an in-process queue in tests; either way a
// message published to an address is handled by exactly one subscriber of a
// consumer group.
package bus

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Message is one delivery. Key carries the correlation ID.
type Message struct {
	Key     string
	Value   []byte
	Headers map[string]string
}

// Handler processes a single message. A returned error is logged by the
// subscriber; redelivery is left to the transport.
type Handler func(ctx context.Context, msg Message) error

type Publisher interface {
	Publish(ctx context.Context, address string, msg Message) error
}

type Subscriber interface {
	// Subscribe consumes address as part of group until ctx ends, dispatching
	// messages to h through a bounded worker pool. It returns once in-flight
	// handlers have finished.
	Subscribe(ctx context.Context, address, group string, h Handler) error
}

type Bus interface {
	Publisher
	Subscriber
	Close() error
}

const (
	DriverKafka  = "kafka"
	DriverMemory = "memory"
)

// Open builds the bus named by driver.
func Open(driver string, brokers []string, c Concurrency, logger *zap.SugaredLogger) (Bus, error) {
	switch strings.ToLower(driver) {
	case DriverKafka, "":
		if len(brokers) == 0 {
			return nil, fmt.Errorf("kafka bus: no brokers configured")
		}
		return NewKafka(brokers, c, logger), nil
	case DriverMemory:
		return NewMemory(c, logger), nil
	default:
		return nil, fmt.Errorf("unknown bus driver %q", driver)
	}
}
