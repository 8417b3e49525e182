// Package observe provides the event bus every other component publishes
// through. Subscribers are held weakly: a registry never keeps an observer
// alive, and observers that have been garbage collected are dropped the next
// time an event is dispatched.
package observe

import (
	"fmt"
	"log/slog"
	"sync"
	"weak"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Observer receives events of type E.
type Observer[E any] interface {
	Notify(event E)
}

// Func adapts a plain function to Observer. The registry holds it weakly like
// any other observer, so the caller must keep the *Func reachable.
type Func[E any] func(E)

// Notify calls f.
func (f Func[E]) Notify(event E) { f(event) }

// Registration identifies one subscription for Deregister.
type Registration[E any] struct {
	id uuid.UUID
}

// ID returns the identity token of the subscription.
func (r Registration[E]) ID() uuid.UUID { return r.id }

type entry[E any] struct {
	resolve func() Observer[E]
}

// Observers is a thread-safe registry of weakly held observers for one event type.
type Observers[E any] struct {
	mu         sync.RWMutex
	entries    map[uuid.UUID]entry[E]
	dispatcher *Dispatcher
	owned      bool
}

// New creates a registry with its own dispatcher.
func New[E any]() *Observers[E] {
	o := NewWithDispatcher[E](NewDispatcher(DefaultQueue))
	o.owned = true
	return o
}

// NewWithDispatcher creates a registry that queues its events on d.
func NewWithDispatcher[E any](d *Dispatcher) *Observers[E] {
	return &Observers[E]{
		entries:    make(map[uuid.UUID]entry[E]),
		dispatcher: d,
	}
}

// Register subscribes observer to o without taking ownership of it.
func Register[E any, T any, PT interface {
	*T
	Observer[E]
}](o *Observers[E], observer PT) Registration[E] {
	wp := weak.Make((*T)(observer))
	id := uuid.New()

	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries[id] = entry[E]{resolve: func() Observer[E] {
		p := wp.Value()
		if p == nil {
			return nil
		}
		return PT(p)
	}}
	return Registration[E]{id: id}
}

// Deregister removes a subscription. It reports whether it was still registered.
func (o *Observers[E]) Deregister(reg Registration[E]) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.entries[reg.id]; !ok {
		return false
	}
	delete(o.entries, reg.id)
	return true
}

// Len returns the number of registrations, including dead ones not yet swept.
func (o *Observers[E]) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.entries)
}

// NotifyAll queues event for delivery to every live observer.
func (o *Observers[E]) NotifyAll(event E) {
	o.dispatcher.enqueue(func() { o.deliver(event) })
}

// Sync waits until all events queued so far have been delivered.
func (o *Observers[E]) Sync() {
	o.dispatcher.Sync()
}

// Close stops the dispatcher if the registry owns it.
func (o *Observers[E]) Close() {
	if o.owned {
		o.dispatcher.Close()
	}
}

func (o *Observers[E]) deliver(event E) {
	o.mu.RLock()
	live := make([]Observer[E], 0, len(o.entries))
	var dead []uuid.UUID
	for id, e := range o.entries {
		if obs := e.resolve(); obs != nil {
			live = append(live, obs)
		} else {
			dead = append(dead, id)
		}
	}
	o.mu.RUnlock()

	if len(dead) > 0 {
		o.mu.Lock()
		for _, id := range dead {
			delete(o.entries, id)
		}
		o.mu.Unlock()
	}

	if len(live) == 1 {
		notify(live[0], event)
		return
	}
	var g errgroup.Group
	for _, obs := range live {
		g.Go(func() error {
			notify(obs, event)
			return nil
		})
	}
	g.Wait()
}

func notify[E any](obs Observer[E], event E) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("observer panicked", "event", fmt.Sprintf("%T", event), "panic", r)
		}
	}()
	obs.Notify(event)
}
