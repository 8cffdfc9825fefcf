package auth

import "sync"

// EventKind says what happened to the stored session.
type EventKind int

const (
	EventSaved EventKind = iota
	EventCleared
)

func (k EventKind) String() string {
	if k == EventCleared {
		return "cleared"
	}
	return "saved"
}

// Origin tells subscribers whether this process made the change.
type Origin int

const (
	OriginLocal Origin = iota
	// OriginExternal marks changes made by another process sharing the
	// session file.
	OriginExternal
)

// Event is published whenever the session changes.
type Event struct {
	Kind   EventKind
	Key    string
	Origin Origin
}

// Bus fans session events out to subscribers. Handlers run synchronously
// on the publishing goroutine and must not call back into the publisher
// while holding their own locks.
//
// A nil *Bus is valid and drops everything.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]func(Event)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function that removes it.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	if b == nil {
		return func() {}
	}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers e to every current subscriber.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	handlers := make([]func(Event), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
