package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const memoryQueueSize = 1024

// Memory is an in-process bus. Every subscriber of an address competes for
// its messages regardless of group, which matches one consumer group per
// address in the Kafka deployment.
type Memory struct {
	mu          sync.Mutex
	queues      map[string]chan Message
	concurrency Concurrency
	logger      *zap.SugaredLogger
}

func NewMemory(c Concurrency, logger *zap.SugaredLogger) *Memory {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Memory{
		queues:      make(map[string]chan Message),
		concurrency: c,
		logger:      logger,
	}
}

func (m *Memory) queue(address string) chan Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[address]
	if !ok {
		q = make(chan Message, memoryQueueSize)
		m.queues[address] = q
	}
	return q
}

func (m *Memory) Publish(ctx context.Context, address string, msg Message) error {
	select {
	case m.queue(address) <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Subscribe(ctx context.Context, address, group string, h Handler) error {
	q := m.queue(address)
	pool := NewPool(m.concurrency)
	defer pool.Close()

	// In-flight handlers finish even when ctx ends.
	handlerCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-q:
			err := pool.Submit(ctx, func() {
				if err := h(handlerCtx, msg); err != nil {
					m.logger.Errorw("message handler failed", "address", address, "group", group, "key", msg.Key, "err", err)
				}
			})
			if err != nil {
				m.logger.Warnw("dropping message on shutdown", "address", address, "key", msg.Key)
				return nil
			}
		}
	}
}

func (m *Memory) Close() error { return nil }
