package pipeline

import (
	"context"
	"sync"
)

// StreamBuffer is the capacity of a Stream's event channel.
const StreamBuffer = 64

// Stream is a sync run executing on its own goroutine. Its event channel is
// closed after the terminal KindDone or KindError event.
type Stream struct {
	events   chan Event
	detached chan struct{}
	detach   sync.Once
	done     chan struct{}

	summary Summary
	err     error
}

// Stream starts a run in the background. The run is not cancelled when ctx
// is; a consumer that stops reading calls Detach and the run still
// completes, dropping its remaining events.
func (o *Orchestrator) Stream(ctx context.Context, opts RunOptions) *Stream {
	s := &Stream{
		events:   make(chan Event, StreamBuffer),
		detached: make(chan struct{}),
		done:     make(chan struct{}),
	}

	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(s.done)
		defer close(s.events)
		s.summary, s.err = o.Run(runCtx, opts, ObserverFunc(s.send))
	}()
	return s
}

func (s *Stream) send(e Event) {
	select {
	case <-s.detached:
		return
	default:
	}
	select {
	case s.events <- e:
	case <-s.detached:
	}
}

// Events returns the event channel.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Detach stops delivery. Events not yet buffered are dropped.
func (s *Stream) Detach() {
	s.detach.Do(func() { close(s.detached) })
}

// Wait blocks until the run finishes and returns its result.
func (s *Stream) Wait() (Summary, error) {
	<-s.done
	return s.summary, s.err
}
