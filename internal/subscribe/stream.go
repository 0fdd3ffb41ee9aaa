package subscribe

import (
	"context"
	"sync"

	"teamboard/internal/docstore"
	"teamboard/internal/scope"
)

// Event is one delivery on a Stream: either a full snapshot or an error.
type Event struct {
	Key  scope.Key
	Docs []docstore.Doc
	Err  error
}

const streamBuffer = 16

// Stream is the channel form of a subscription. Snapshots are whole-state, so when the reader
// falls behind the oldest pending event is dropped rather than blocking the store.
type Stream struct {
	h      *Handle
	ch     chan Event
	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

// Stream attaches key and delivers its events on a channel until Close or ctx is done.
func (m *Manager) Stream(ctx context.Context, key scope.Key) (*Stream, error) {
	s := &Stream{ch: make(chan Event, streamBuffer), done: make(chan struct{})}
	h, err := m.Attach(key, func(docs []docstore.Doc) {
		s.send(Event{Key: key, Docs: docs})
	}, func(err error) {
		s.send(Event{Key: key, Err: err})
	})
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

func (s *Stream) send(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Events is closed after Close.
func (s *Stream) Events() <-chan Event { return s.ch }

func (s *Stream) Key() scope.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.h == nil {
		return scope.Key{}
	}
	return s.h.Key()
}

// Close detaches the subscription and closes Events. Safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	h := s.h
	s.mu.Unlock()
	if h != nil {
		h.Detach()
	}
	s.mu.Lock()
	close(s.ch)
	close(s.done)
	s.mu.Unlock()
}
