package sse

import (
	"sync"

	"github.com/google/uuid"
)

// Stream is a bounded single-producer event queue. The producer calls
// Publish and finally Close; the HTTP layer drains Events and closes
// Done when the client goes away. Publish blocks when the buffer is
// full, which backpressures the producer onto the consumer's pace.
type Stream struct {
	ID uuid.UUID

	events chan Event
	done   chan struct{}

	closeOnce sync.Once
	doneOnce  sync.Once
}

const DefaultBuffer = 64

func NewStream(buffer int) *Stream {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Stream{
		ID:     uuid.New(),
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// Publish enqueues an event. It returns false once the consumer has
// cancelled, letting the producer abandon the turn early.
func (s *Stream) Publish(ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// Close marks the end of the stream. Producer side only.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.events) })
}

// Cancel signals the producer that the consumer is gone. Consumer side.
func (s *Stream) Cancel() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Stream) Events() <-chan Event { return s.events }

func (s *Stream) Done() <-chan struct{} { return s.done }
