package scheduler

import (
	"sync"
	"sync/atomic"

	"tileshow/lib/frame"
	"tileshow/lib/project"
)

// Feed fans values out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the value.
type Feed[T any] struct {
	mu      sync.RWMutex
	subs    map[chan T]struct{}
	dropped atomic.Uint64
}

func (f *Feed[T]) Subscribe(buffer int) (<-chan T, func()) {
	ch := make(chan T, max(buffer, 1))
	f.mu.Lock()
	if f.subs == nil {
		f.subs = map[chan T]struct{}{}
	}
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, ch)
			f.mu.Unlock()
			close(ch)
		})
	}
}

func (f *Feed[T]) Publish(v T) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subs {
		select {
		case ch <- v:
		default:
			f.dropped.Add(1)
		}
	}
}

func (f *Feed[T]) Dropped() uint64 {
	return f.dropped.Load()
}

type FPS struct {
	Output project.OutputID
	// FPS is NaN when the loop has stopped.
	FPS float64
}

type Frame struct {
	Output  project.OutputID
	Counter uint64
	Data    frame.Output
}

type OutputError struct {
	Output project.OutputID
	Err    error
}

func (e OutputError) Error() string {
	return string(e.Output) + ": " + e.Err.Error()
}

func (e OutputError) Unwrap() error {
	return e.Err
}

type Telemetry struct {
	FPS    Feed[FPS]
	Frames Feed[Frame]
	Errors Feed[OutputError]
}
