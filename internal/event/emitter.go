// Package event provides the emission boundary between the worker relay and
// its consumers.
package event

import "sync"

// Emitter fans events out to registered handlers.
// The zero value is ready to use.
type Emitter[E any] struct {
	// +checklocks:mu
	handlers map[uint64]func(E)
	// +checklocks:mu
	order []uint64
	// +checklocks:mu
	nextID uint64
	mu     sync.RWMutex
}

// OnEvent registers an event handler and returns a function that removes it.
// Handlers are called synchronously, in registration order, from the
// goroutine that calls Emit.
func (e *Emitter[E]) OnEvent(handler func(E)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handlers == nil {
		e.handlers = make(map[uint64]func(E))
	}
	id := e.nextID
	e.nextID++
	e.handlers[id] = handler
	e.order = append(e.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Emitter[E]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.handlers, id)
	for i, v := range e.order {
		if v == id {
			e.order = append(e.order[:i:i], e.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of registered handlers.
func (e *Emitter[E]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.order)
}

// Emit sends an event to all registered handlers.
// The handler list is snapshotted first, so handlers may register or
// unsubscribe during emission; such changes apply from the next Emit.
// Must not be called with lock held.
func (e *Emitter[E]) Emit(event E) {
	e.mu.RLock()
	handlers := make([]func(E), 0, len(e.order))
	for _, id := range e.order {
		handlers = append(handlers, e.handlers[id])
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
