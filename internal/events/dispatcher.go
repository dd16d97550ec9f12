// Package events distributes analysis events to observers: the websocket hub,
// the NATS bridge and the debug logger.
package events

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
)

// Event is a domain event dispatched to observers.
type Event struct {
	// Type is the event type, e.g. "analysis:completed".
	Type string
	// Data is the typed payload, one of the structs in messages.go.
	Data any
	// Context carries request scoped values such as the session id.
	Context context.Context
}

// Observer receives events it has declared interest in.
type Observer interface {
	OnEvent(event Event) error
	// Name identifies the observer in logs.
	Name() string
	ShouldHandle(eventType string) bool
}

// Dispatcher fans events out to registered observers. It is safe for
// concurrent use.
type Dispatcher struct {
	mu        sync.RWMutex
	observers []Observer
	logger    *log.Logger
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger *log.Logger) *Dispatcher {
	return &Dispatcher{logger: logging.Or(logger).With("component", "events")}
}

// Register adds an observer for all future events.
func (d *Dispatcher) Register(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, o)
	d.logger.Debug("registered observer", "observer", o.Name())
}

// Unregister removes an observer.
func (d *Dispatcher) Unregister(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, obs := range d.observers {
		if obs == o {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			d.logger.Debug("unregistered observer", "observer", o.Name())
			return
		}
	}
}

func (d *Dispatcher) snapshot(eventType string) []Observer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Observer, 0, len(d.observers))
	for _, o := range d.observers {
		if o.ShouldHandle(eventType) {
			out = append(out, o)
		}
	}
	return out
}

// Dispatch notifies observers in registration order. An observer error is
// logged and does not stop delivery to the rest.
func (d *Dispatcher) Dispatch(event Event) {
	for _, o := range d.snapshot(event.Type) {
		if err := o.OnEvent(event); err != nil {
			d.logger.Warn("observer failed", "observer", o.Name(), "event", event.Type, "err", err)
		}
	}
}

// DispatchAsync notifies each observer on its own goroutine.
func (d *Dispatcher) DispatchAsync(event Event) {
	for _, o := range d.snapshot(event.Type) {
		go func(o Observer) {
			if err := o.OnEvent(event); err != nil {
				d.logger.Warn("observer failed", "observer", o.Name(), "event", event.Type, "err", err)
			}
		}(o)
	}
}

// ObserverCount returns the number of registered observers.
func (d *Dispatcher) ObserverCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.observers)
}

// New builds an event with a typed payload.
func New[T any](ctx context.Context, eventType string, data T) Event {
	if ctx == nil {
		ctx = context.Background()
	}
	return Event{Type: eventType, Data: data, Context: ctx}
}

// Payload extracts a typed payload. It returns false when the payload has a
// different type.
func Payload[T any](event Event) (T, bool) {
	v, ok := event.Data.(T)
	return v, ok
}
