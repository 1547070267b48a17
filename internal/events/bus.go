// Package events fans change notifications out to subscribers.
//
// Publish never blocks: every subscriber owns a buffered queue drained by its
// own goroutine, and a full queue drops the event for that subscriber only.
// Handler errors and panics are logged and isolated to the subscriber.
package events

import (
	"fmt"
	"sync"
	"sync/atomic"

	"lagmon/internal/logger"
	"lagmon/internal/models"
)

// DefaultBuffer is the per-subscriber queue length
const DefaultBuffer = 256

// Handler consumes one event
type Handler func(e models.Event) error

// Bus is an asynchronous publish/subscribe hub
type Bus struct {
	log    logger.Logger
	buffer int

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// Subscription is a handle returned by Subscribe
type Subscription struct {
	id      uint64
	name    string
	bus     *Bus
	queue   chan models.Event
	handler Handler
	done    chan struct{}
	once    sync.Once

	dropped   atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// NewBus creates a bus. buffer <= 0 uses DefaultBuffer.
func NewBus(log logger.Logger, buffer int) *Bus {
	if log == nil {
		log = logger.Noop()
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{log: log, buffer: buffer, subs: make(map[uint64]*Subscription)}
}

// Subscribe registers handler under a descriptive name used in logs
func (b *Bus) Subscribe(name string, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := &Subscription{
		id:      b.nextID,
		name:    name,
		bus:     b,
		queue:   make(chan models.Event, b.buffer),
		handler: handler,
		done:    make(chan struct{}),
	}
	if b.closed {
		s.once.Do(func() { close(s.queue) })
		close(s.done)
		return s
	}
	b.subs[s.id] = s
	go s.run()
	return s
}

// Publish enqueues e for every subscriber without waiting on any of them
func (b *Bus) Publish(e models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	for _, s := range b.subs {
		select {
		case s.queue <- e:
		default:
			if s.dropped.Add(1) == 1 || s.dropped.Load()%100 == 0 {
				b.log.Warn("subscriber %s queue full, dropped %d events", s.name, s.dropped.Load())
			}
		}
	}
}

// Subscribers returns the number of live subscriptions
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close stops accepting events and waits for every subscriber to drain
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for id, s := range b.subs {
		subs = append(subs, s)
		delete(b.subs, id)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.once.Do(func() { close(s.queue) })
		<-s.done
	}
}

func (s *Subscription) run() {
	defer close(s.done)
	for e := range s.queue {
		if err := s.deliver(e); err != nil {
			s.failed.Add(1)
			s.bus.log.Error("subscriber %s failed on %s: %v", s.name, e.Type, err)
			continue
		}
		s.delivered.Add(1)
	}
}

func (s *Subscription) deliver(e models.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.handler(e)
}

// Close unsubscribes and waits until queued events have been handled
func (s *Subscription) Close() {
	b := s.bus
	b.mu.Lock()
	delete(b.subs, s.id)
	b.mu.Unlock()

	s.once.Do(func() { close(s.queue) })
	<-s.done
}

// Done is closed once the subscription has stopped
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Stats reports delivery counters for this subscription
func (s *Subscription) Stats() (delivered, dropped, failed uint64) {
	return s.delivered.Load(), s.dropped.Load(), s.failed.Load()
}
