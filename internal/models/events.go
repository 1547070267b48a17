package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventSchemaVersion is the version of the event payload layout sent to subscribers
const EventSchemaVersion = 1

// EventType names a change notification
type EventType string

const (
	EventTargetAdded   EventType = "target.added"
	EventTargetRemoved EventType = "target.removed"
	EventTargetUpdated EventType = "target.updated"
	EventStatsUpdated  EventType = "stats.updated"
	EventTargetDown    EventType = "target.down"
	EventTargetUp      EventType = "target.up"
)

// TargetPayload is the wire shape of a target
type TargetPayload struct {
	ID      string `json:"id"`
	Address string `json:"address,omitempty"`
	Name    string `json:"name,omitempty"`
	Role    Role   `json:"role,omitempty"`
	Active  bool   `json:"active"`
}

// StatsPayload is the wire shape of a stats update
type StatsPayload struct {
	ID            string  `json:"id"`
	LatencyMillis float64 `json:"latencyMillis"`
	JitterMillis  float64 `json:"jitterMillis"`
	LossDetected  bool    `json:"lossDetected"`
}

// Event is a change notification published to subscribers
type Event struct {
	Version int            `json:"v"`
	Type    EventType      `json:"type"`
	Time    time.Time      `json:"time"`
	Target  *TargetPayload `json:"target,omitempty"`
	Stats   *StatsPayload  `json:"stats,omitempty"`
}

// TargetID returns the id the event refers to
func (e Event) TargetID() string {
	switch {
	case e.Target != nil:
		return e.Target.ID
	case e.Stats != nil:
		return e.Stats.ID
	}
	return ""
}

func newEvent(t EventType) Event {
	return Event{Version: EventSchemaVersion, Type: t, Time: time.Now().UTC()}
}

func targetPayload(t Target) *TargetPayload {
	return &TargetPayload{ID: t.ID, Address: t.Address, Name: t.Name, Role: t.Role, Active: t.Active}
}

// TargetAdded builds a target.added event
func TargetAdded(t Target) Event {
	e := newEvent(EventTargetAdded)
	e.Target = targetPayload(t)
	return e
}

// TargetRemoved builds a target.removed event
func TargetRemoved(id string) Event {
	e := newEvent(EventTargetRemoved)
	e.Target = &TargetPayload{ID: id}
	return e
}

// TargetUpdated builds a target.updated event
func TargetUpdated(t Target) Event {
	e := newEvent(EventTargetUpdated)
	e.Target = targetPayload(t)
	return e
}

// StatsUpdated builds a stats.updated event
func StatsUpdated(id string, s Stats) Event {
	e := newEvent(EventStatsUpdated)
	e.Stats = &StatsPayload{
		ID:            id,
		LatencyMillis: s.LatencyMillis,
		JitterMillis:  s.JitterMillis,
		LossDetected:  s.LossDetected,
	}
	return e
}

// TargetDown builds a target.down event
func TargetDown(id string) Event {
	e := newEvent(EventTargetDown)
	e.Target = &TargetPayload{ID: id}
	return e
}

// TargetUp builds a target.up event
func TargetUp(id string) Event {
	e := newEvent(EventTargetUp)
	e.Target = &TargetPayload{ID: id}
	return e
}

// Validate checks that the event carries the payload its type requires
func (e Event) Validate() error {
	if e.Version != EventSchemaVersion {
		return fmt.Errorf("unsupported event version %d", e.Version)
	}
	switch e.Type {
	case EventTargetAdded, EventTargetUpdated:
		if e.Target == nil || e.Target.ID == "" || e.Target.Address == "" {
			return fmt.Errorf("%s: target id and address are required", e.Type)
		}
	case EventTargetRemoved, EventTargetDown, EventTargetUp:
		if e.Target == nil || e.Target.ID == "" {
			return fmt.Errorf("%s: target id is required", e.Type)
		}
	case EventStatsUpdated:
		if e.Stats == nil || e.Stats.ID == "" {
			return fmt.Errorf("%s: stats id is required", e.Type)
		}
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// DecodeEvent parses and validates an event received over the wire
func DecodeEvent(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return e, nil
}
