package mutate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"teamboard/internal/model"
)

// RemoteWrite is one remote update produced by Mutate.
type RemoteWrite struct {
	Kind       model.Kind
	Collection string
	ID         string
	Patch      model.Patch
}

// WriteStrategy decides how a remote write runs relative to the caller. Mutate never waits on
// the strategy's outcome; a stricter strategy (write-ahead, rollback) can be substituted here
// without touching call sites.
type WriteStrategy interface {
	Submit(w RemoteWrite, run func(ctx context.Context) error)
}

const defaultWriteTimeout = 30 * time.Second

// FireAndForget runs each write on its own goroutine. Failures are logged and passed to
// OnError; the local optimistic value is left as is.
type FireAndForget struct {
	Log     *slog.Logger
	OnError func(*MutationError)
	Timeout time.Duration

	wg sync.WaitGroup
}

func (f *FireAndForget) Submit(w RemoteWrite, run func(ctx context.Context) error) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		report(f.Log, f.OnError, w, run(ctx))
	}()
}

// Flush waits for in-flight writes, or until ctx is done.
func (f *FireAndForget) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Inline runs the write on the caller's goroutine. Used by one-shot CLI commands (the process
// must not exit before the write lands) and by tests.
type Inline struct {
	Log     *slog.Logger
	OnError func(*MutationError)
}

func (s Inline) Submit(w RemoteWrite, run func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
	defer cancel()
	report(s.Log, s.OnError, w, run(ctx))
}

func report(log *slog.Logger, onError func(*MutationError), w RemoteWrite, err error) {
	if err == nil {
		return
	}
	merr := &MutationError{Kind: w.Kind, ID: w.ID, Patch: w.Patch, Err: err}
	if log == nil {
		log = slog.Default()
	}
	log.Warn("remote update failed", "kind", string(w.Kind), "id", w.ID, "collection", w.Collection, "fields", w.Patch.Keys(), "err", err)
	if onError != nil {
		onError(merr)
	}
}
