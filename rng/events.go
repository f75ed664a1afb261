package rng

import (
	"sync"

	"github.com/gofrs/uuid"

	"github.com/cryptbase/cryptbase/errs"
)

// Event channels.
const (
	// EventProgress fires on entropy absorption while the generator is not
	// yet ready, with the readiness fraction as value.
	EventProgress = "progress"

	// EventSeeded fires once when absorbed entropy first crosses the
	// default paranoia threshold, with the entropy high-water mark in bits
	// as value.
	EventSeeded = "seeded"
)

// EventCallback receives an event's value.
type EventCallback func(value float64)

// eventRegistry holds the listeners of the two event channels. Delivery
// iterates over a point-in-time snapshot, so listeners may add or remove
// registrations (including their own) during delivery without corrupting
// an in-flight delivery.
type eventRegistry struct {
	lock      sync.Mutex
	listeners map[string]map[uuid.UUID]EventCallback
}

func (r *eventRegistry) init() {
	r.listeners = map[string]map[uuid.UUID]EventCallback{
		EventProgress: {},
		EventSeeded:   {},
	}
}

func (r *eventRegistry) add(event string, cb EventCallback) (uuid.UUID, error) {
	if cb == nil {
		return uuid.Nil, errs.Invalidf("rng: nil event callback")
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	channel, ok := r.listeners[event]
	if !ok {
		return uuid.Nil, errs.Invalidf("rng: unknown event channel %q", event)
	}
	handle, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, errs.Bugf("rng: failed to create listener handle: %s", err)
	}
	channel[handle] = cb
	return handle, nil
}

func (r *eventRegistry) remove(event string, handle uuid.UUID) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	channel, ok := r.listeners[event]
	if !ok {
		return errs.Invalidf("rng: unknown event channel %q", event)
	}
	delete(channel, handle)
	return nil
}

func (r *eventRegistry) fire(event string, value float64) {
	r.lock.Lock()
	snapshot := make([]EventCallback, 0, len(r.listeners[event]))
	for _, cb := range r.listeners[event] {
		snapshot = append(snapshot, cb)
	}
	r.lock.Unlock()

	for _, cb := range snapshot {
		cb(value)
	}
}

// AddEventListener registers a callback on the "progress" or "seeded"
// channel and returns an opaque handle for removal.
func (g *Generator) AddEventListener(event string, cb EventCallback) (uuid.UUID, error) {
	return g.events.add(event, cb)
}

// RemoveEventListener removes the registration identified by handle.
// Removing an already removed listener is a no-op.
func (g *Generator) RemoveEventListener(event string, handle uuid.UUID) error {
	return g.events.remove(event, handle)
}
