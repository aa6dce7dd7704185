// Package events implements named broadcast channels bridging sandbox emits
// to host subscribers: sandbox code calls an injected emit function, host
// code receives the payload on a channel.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/swimmadude66/tectonica/internal/log"
	"github.com/swimmadude66/tectonica/internal/model"
	"github.com/swimmadude66/tectonica/internal/vm"
)

// Event is one published payload on a named channel.
type Event struct {
	Channel string
	Payload any
}

// BusConfig is the configuration for the Bus.
type BusConfig struct {
	// SubscribeBuffer is the per subscriber channel capacity.
	SubscribeBuffer int
	// Logger for logging.
	Logger log.Logger
}

func (c *BusConfig) defaults() error {
	if c.SubscribeBuffer <= 0 {
		c.SubscribeBuffer = 16
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "events.Bus"})

	return nil
}

// Bus is a named broadcast bus. Payloads published on a channel reach every
// subscriber of that channel; slow subscribers drop events instead of
// stalling the publisher.
type Bus struct {
	buf    int
	logger log.Logger

	mu     sync.RWMutex
	subs   map[string]map[int]chan Event
	nextID int
	closed bool
}

// NewBus creates a new bus.
func NewBus(cfg BusConfig) (*Bus, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Bus{
		buf:    cfg.SubscribeBuffer,
		logger: cfg.Logger,
		subs:   map[string]map[int]chan Event{},
	}, nil
}

// Subscribe returns a channel delivering events published on channel, and a
// cancel func releasing the subscription.
func (b *Bus) Subscribe(channel string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buf)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	if b.subs[channel] == nil {
		b.subs[channel] = map[int]chan Event{}
	}
	b.subs[channel][id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[channel][id]; ok {
			delete(b.subs[channel], id)
			close(sub)
		}
	}
}

// Publish broadcasts payload to every subscriber of channel.
func (b *Bus) Publish(channel string, payload any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("bus is closed: %w", model.ErrNotInitialized)
	}

	for _, ch := range b.subs[channel] {
		select {
		case ch <- Event{Channel: channel, Payload: payload}:
		default:
			b.logger.Debugf("subscriber on %q is full, event dropped", channel)
		}
	}

	return nil
}

// BindVM registers an emit(channel, payload) function on the sandbox global
// object, backed by this bus. Sandbox emits cross the marshaller like any
// other function call.
func (b *Bus) BindVM(ctx context.Context, v *vm.VM, globalName string) error {
	if globalName == "" {
		globalName = "emit"
	}

	emit := func(channel string, payload any) error {
		return b.Publish(channel, payload)
	}

	if err := v.RegisterGlobal(ctx, globalName, emit); err != nil {
		return fmt.Errorf("could not register emit global: %w", err)
	}

	return nil
}

// Close releases every subscriber.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for channel, subs := range b.subs {
		for id, ch := range subs {
			delete(subs, id)
			close(ch)
		}
		delete(b.subs, channel)
	}
}
