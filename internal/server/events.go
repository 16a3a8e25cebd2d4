package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultEventCap = 1000

// Event records one tracked flag evaluation.
type Event struct {
	ID           string    `json:"id"`
	Key          string    `json:"key"`
	TargetingKey string    `json:"targetingKey,omitempty"`
	Variant      string    `json:"variant,omitempty"`
	Value        any       `json:"value"`
	CreatedAt    time.Time `json:"createdAt"`
}

// eventLog is a bounded in-memory buffer of evaluation events. When
// full, the oldest events are dropped.
type eventLog struct {
	mu     sync.Mutex
	events []Event
	cap    int
}

func newEventLog(capacity int) *eventLog {
	return &eventLog{cap: capacity}
}

func (l *eventLog) record(key, targetingKey, variant string, value any) Event {
	ev := Event{
		ID:           uuid.NewString(),
		Key:          key,
		TargetingKey: targetingKey,
		Variant:      variant,
		Value:        value,
		CreatedAt:    time.Now().UTC(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	if len(l.events) > l.cap {
		l.events = l.events[len(l.events)-l.cap:]
	}
	return ev
}

func (l *eventLog) list() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}
