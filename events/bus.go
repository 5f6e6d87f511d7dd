// Package events dispatches lifecycle events to their consumers after the
// mutation that produced them has committed.
package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"civicwatch-be/lifecycle"
)

var ErrDuplicateSubscription = errors.New("consumer already subscribed to this event kind")

// Handler consumes one event. It runs on its own goroutine with a context that
// is independent of the request that published the event.
type Handler func(ctx context.Context, ev lifecycle.Event)

type subscription struct {
	name    string
	handler Handler
}

// Bus allows at most one subscription per (kind, consumer name). Publish never
// blocks on handlers and never surfaces their failures.
type Bus struct {
	mu      sync.RWMutex
	subs    map[lifecycle.EventKind][]subscription
	wg      sync.WaitGroup
	timeout time.Duration
}

func NewBus(handlerTimeout time.Duration) *Bus {
	if handlerTimeout <= 0 {
		handlerTimeout = 30 * time.Second
	}
	return &Bus{
		subs:    make(map[lifecycle.EventKind][]subscription),
		timeout: handlerTimeout,
	}
}

func (b *Bus) Subscribe(kind lifecycle.EventKind, name string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs[kind] {
		if sub.name == name {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateSubscription, kind, name)
		}
	}
	b.subs[kind] = append(b.subs[kind], subscription{name: name, handler: handler})
	return nil
}

// Subscribers returns the consumer names registered for kind.
func (b *Bus) Subscribers(kind lifecycle.EventKind) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.subs[kind]))
	for _, sub := range b.subs[kind] {
		names = append(names, sub.name)
	}
	return names
}

func (b *Bus) Publish(ev lifecycle.Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[ev.Kind]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		b.wg.Add(1)
		go b.run(sub, ev)
	}
}

func (b *Bus) run(sub subscription, ev lifecycle.Event) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[EVENTS] %s handler for %s %s panicked: %v\n%s", sub.name, ev.Kind, ev.ID, r, debug.Stack())
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	sub.handler(ctx, ev)
}

// Wait blocks until every handler started so far has returned.
func (b *Bus) Wait() {
	b.wg.Wait()
}
