package realtime

import (
	"log/slog"
	"sync"
)

// Handler receives the payload published under an event name. Payloads for
// wire events are the typed structs produced by DecodeServerFrame; payloads
// for local events are the *Payload types in events.go.
type Handler func(payload any)

type registration struct {
	id int64
	fn Handler
}

// Bus is the in-process publish/subscribe registry that decouples transport
// callbacks from application code. Handlers run synchronously on the
// emitting goroutine, in registration order.
type Bus struct {
	log    *slog.Logger
	mu     sync.Mutex
	nextID int64
	subs   map[string][]registration
}

func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		log:  log,
		subs: make(map[string][]registration),
	}
}

// On registers a handler and returns a closure that removes exactly this
// registration. Calling the closure more than once is a no-op.
func (b *Bus) On(event string, fn Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[event] = append(b.subs[event], registration{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[event]
		for i, reg := range subs {
			if reg.id == id {
				b.subs[event] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(b.subs[event]) == 0 {
			delete(b.subs, event)
		}
	}
}

// Emit invokes every handler currently registered for the event. A handler
// that panics is isolated: the panic is logged and the remaining handlers
// still run. Emitting with no listeners is a silent no-op.
//
// The handler list is snapshotted before dispatch, so a handler removed
// mid-emit may still receive the in-flight event.
func (b *Bus) Emit(event string, payload any) {
	b.mu.Lock()
	subs := b.subs[event]
	snapshot := make([]registration, len(subs))
	copy(snapshot, subs)
	b.mu.Unlock()

	for _, reg := range snapshot {
		b.dispatch(event, reg, payload)
	}
}

func (b *Bus) dispatch(event string, reg registration, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", "event", event, "panic", r)
		}
	}()
	reg.fn(payload)
}

// listenerCount reports how many handlers are registered for an event.
func (b *Bus) listenerCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[event])
}
