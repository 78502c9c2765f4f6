package test

import (
	"sync"
)

// MemBus is an in-memory message bus delivering synchronously.
type MemBus struct {
	sync.Mutex

	nextID   int
	handlers map[string]map[int]func([]byte)
}

// NewMemBus returns an empty bus.
func NewMemBus() *MemBus {
	return &MemBus{
		handlers: make(map[string]map[int]func([]byte)),
	}
}

// Publish calls the handlers of the subject.
func (b *MemBus) Publish(subject string, data []byte) error {
	b.Lock()
	handlers := make([]func([]byte), 0, len(b.handlers[subject]))
	for _, h := range b.handlers[subject] {
		handlers = append(handlers, h)
	}
	b.Unlock()

	for _, h := range handlers {
		h(data)
	}

	return nil
}

// Subscribe registers a handler for the subject.
func (b *MemBus) Subscribe(subject string,
	handler func([]byte)) (func() error, error) {

	b.Lock()
	defer b.Unlock()

	id := b.nextID
	b.nextID++

	if b.handlers[subject] == nil {
		b.handlers[subject] = make(map[int]func([]byte))
	}
	b.handlers[subject][id] = handler

	return func() error {
		b.Lock()
		defer b.Unlock()

		delete(b.handlers[subject], id)
		return nil
	}, nil
}

// Subscribers returns the number of handlers of the subject.
func (b *MemBus) Subscribers(subject string) int {
	b.Lock()
	defer b.Unlock()

	return len(b.handlers[subject])
}
