package bus

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Consumer binds a handler to an address.
type Consumer struct {
	Address string
	Handler Handler
}

// Run subscribes every consumer under group and blocks until ctx ends or one
// of them fails. A failing subscription stops the others.
func Run(ctx context.Context, sub Subscriber, group string, consumers ...Consumer) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range consumers {
		g.Go(func() error {
			return sub.Subscribe(ctx, c.Address, group, c.Handler)
		})
	}
	return g.Wait()
}
