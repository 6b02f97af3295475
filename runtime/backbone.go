package runtime

import (
	"context"
	"sync"

	"society-live/contract"
	"society-live/domain"
)

var _ contract.Backbone = (*LocalBackbone)(nil)

// LocalBackbone is the single-node backbone: Publish calls every handler
// synchronously, in publish order.
type LocalBackbone struct {
	mu       sync.RWMutex
	handlers []func(env domain.Envelope)
}

func NewLocalBackbone() *LocalBackbone {
	return &LocalBackbone{}
}

func (b *LocalBackbone) Publish(_ context.Context, env domain.Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.handlers {
		h(env)
	}
	return nil
}

func (b *LocalBackbone) Subscribe(handler func(env domain.Envelope)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
	return nil
}

func (b *LocalBackbone) Close() error { return nil }
