package events

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lagmon/internal/logger"
	"lagmon/internal/models"
)

type collector struct {
	mu     sync.Mutex
	events []models.Event
}

func (c *collector) handle(e models.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus(logger.Noop(), 16)
	defer bus.Close()

	a, b := &collector{}, &collector{}
	bus.Subscribe("a", a.handle)
	bus.Subscribe("b", b.handle)

	bus.Publish(models.TargetAdded(models.Target{ID: "x", Address: "10.0.0.1"}))
	bus.Publish(models.TargetRemoved("x"))

	require.Eventually(t, func() bool { return a.len() == 2 && b.len() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.EventTargetAdded, a.events[0].Type)
	assert.Equal(t, models.EventTargetRemoved, a.events[1].Type)
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	log := logger.NewBufferLogger()
	bus := NewBus(log, 2)

	release := make(chan struct{})
	slow := bus.Subscribe("slow", func(models.Event) error {
		<-release
		return nil
	})
	fast := &collector{}
	bus.Subscribe("fast", fast.handle)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			bus.Publish(models.TargetRemoved("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	close(release)
	bus.Close()

	_, dropped, _ := slow.Stats()
	assert.Greater(t, dropped, uint64(0))
	assert.True(t, log.HasLevel("warn"))
}

func TestFailingSubscriberIsIsolated(t *testing.T) {
	log := logger.NewBufferLogger()
	bus := NewBus(log, 8)

	bad := bus.Subscribe("bad", func(e models.Event) error {
		if e.Type == models.EventTargetRemoved {
			panic("boom")
		}
		return errors.New("nope")
	})
	good := &collector{}
	bus.Subscribe("good", good.handle)

	bus.Publish(models.TargetUp("x"))
	bus.Publish(models.TargetRemoved("x"))
	bus.Close()

	delivered, _, failed := bad.Stats()
	assert.Zero(t, delivered)
	assert.Equal(t, uint64(2), failed)
	assert.Equal(t, 2, good.len())
	assert.True(t, log.HasLevel("error"))
}

func TestSubscriptionClose(t *testing.T) {
	bus := NewBus(nil, 8)
	defer bus.Close()

	c := &collector{}
	sub := bus.Subscribe("c", c.handle)
	assert.Equal(t, 1, bus.Subscribers())

	bus.Publish(models.TargetUp("x"))
	sub.Close()
	assert.Equal(t, 0, bus.Subscribers())
	assert.Equal(t, 1, c.len(), "queued events are drained before Close returns")

	bus.Publish(models.TargetDown("x"))
	assert.Equal(t, 1, c.len())

	select {
	case <-sub.Done():
	default:
		t.Fatal("Done not closed after Close")
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	bus := NewBus(nil, 8)
	bus.Close()

	sub := bus.Subscribe("late", func(models.Event) error { return nil })
	sub.Close()
	bus.Publish(models.TargetUp("x"))
	assert.Zero(t, bus.Subscribers())
}
