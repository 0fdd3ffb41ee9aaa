package docstore

import (
	"sync"
	"sync/atomic"
)

// dispatcher runs delivery callbacks one at a time in enqueue order. A callback that writes back
// into the store only enqueues more work; the goroutine already draining picks it up.
type dispatcher struct {
	mu       sync.Mutex
	queue    []func()
	draining bool
}

func (d *dispatcher) enqueue(fns ...func()) {
	d.mu.Lock()
	d.queue = append(d.queue, fns...)
	d.mu.Unlock()
}

func (d *dispatcher) drain() {
	d.mu.Lock()
	if d.draining {
		d.mu.Unlock()
		return
	}
	d.draining = true
	for len(d.queue) > 0 {
		fn := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()
		fn()
		d.mu.Lock()
	}
	d.draining = false
	d.mu.Unlock()
}

type subscription struct {
	id         int64
	query      Query
	onSnapshot SnapshotFunc
	onError    ErrorFunc
	closed     atomic.Bool
	// last is the signature of the last delivered snapshot (sqlite dedupe).
	last string
}

func (s *subscription) deliver(docs []Doc) {
	if s.closed.Load() || s.onSnapshot == nil {
		return
	}
	s.onSnapshot(docs)
}

func (s *subscription) fail(err error) {
	if s.closed.Load() || s.onError == nil {
		return
	}
	s.onError(err)
}
