package observe

import "sync"

// DefaultQueue is the number of events a dispatcher buffers before
// NotifyAll starts blocking the emitter.
const DefaultQueue = 100

// Dispatcher delivers queued events one at a time, in the order they were
// queued. Several registries may share one dispatcher to get a total order
// across their events.
type Dispatcher struct {
	jobs chan func()
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a dispatcher goroutine with the given queue capacity.
func NewDispatcher(capacity int) *Dispatcher {
	if capacity < 1 {
		capacity = 1
	}
	d := &Dispatcher{
		jobs: make(chan func(), capacity),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	for {
		select {
		case job := <-d.jobs:
			job()
		case <-d.done:
			return
		}
	}
}

// enqueue returns false when the dispatcher has been closed.
// Calling it from inside a delivery with a full queue blocks forever.
func (d *Dispatcher) enqueue(job func()) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	d.jobs <- job
	return true
}

// Sync blocks until every event queued before the call has been delivered.
// It must not be called from an observer running on this dispatcher.
func (d *Dispatcher) Sync() {
	reached := make(chan struct{})
	if !d.enqueue(func() { close(reached) }) {
		return
	}
	select {
	case <-reached:
	case <-d.done:
	}
}

// Close stops the dispatcher. Events queued but not yet delivered are
// dropped, as are events notified afterwards.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	close(d.done)
}
