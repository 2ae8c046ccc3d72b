package bus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Kafka maps addresses to topics. One writer serves every topic; each
// Subscribe call owns a reader in the given consumer group.
type Kafka struct {
	brokers     []string
	writer      *kafka.Writer
	concurrency Concurrency
	logger      *zap.SugaredLogger
}

func NewKafka(brokers []string, c Concurrency, logger *zap.SugaredLogger) *Kafka {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Kafka{
		brokers: brokers,
		writer: &kafka.Writer{
			Addr: kafka.TCP(brokers...),
			// Same correlation ID, same partition.
			Balancer:               &kafka.Hash{},
			BatchTimeout:           10 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		concurrency: c,
		logger:      logger,
	}
}

// Publish is synchronous so the caller learns about broker failures.
func (k *Kafka) Publish(ctx context.Context, address string, msg Message) error {
	err := k.writer.WriteMessages(ctx, kafka.Message{
		Topic:   address,
		Key:     []byte(msg.Key),
		Value:   msg.Value,
		Headers: toKafkaHeaders(msg.Headers),
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", address, err)
	}
	return nil
}

// Subscribe commits each offset after its handler returns. With more than
// one worker, a later offset can be committed while an earlier message is
// still being handled.
func (k *Kafka) Subscribe(ctx context.Context, address, group string, h Handler) error {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		GroupID:  group,
		Topic:    address,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer r.Close()

	pool := NewPool(k.concurrency)
	defer pool.Close()

	handlerCtx := context.WithoutCancel(ctx)
	k.logger.Infow("consumer started", "address", address, "group", group, "min", k.concurrency.Min, "max", k.concurrency.Max)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("consume %s: %w", address, err)
		}

		msg := Message{Key: string(m.Key), Value: m.Value, Headers: fromKafkaHeaders(m.Headers)}
		err = pool.Submit(ctx, func() {
			if err := h(handlerCtx, msg); err != nil {
				k.logger.Errorw("message handler failed", "address", address, "group", group, "key", msg.Key, "err", err)
			}
			if err := r.CommitMessages(handlerCtx, m); err != nil {
				k.logger.Errorw("commit failed", "address", address, "offset", m.Offset, "err", err)
			}
		})
		if err != nil {
			return nil
		}
	}
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

func toKafkaHeaders(h map[string]string) []kafka.Header {
	if len(h) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(h))
	for k, v := range h {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}

func fromKafkaHeaders(h []kafka.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for _, kh := range h {
		out[kh.Key] = string(kh.Value)
	}
	return out
}
