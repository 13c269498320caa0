// Package scheduler runs one paced render-and-transmit loop per enabled
// output and reports fps, latency and errors.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"tileshow/lib/frame"
	"tileshow/lib/logging"
	"tileshow/lib/project"
	"tileshow/lib/transport"
)

const (
	DefaultInterval = 33 * time.Millisecond

	latencyWindow = 40
	fpsWindow     = 30
)

// Renderer produces the next frame for an output. It is called concurrently
// from every running loop.
type Renderer interface {
	RenderFrame(ctx context.Context, output project.OutputID, counter uint64) (frame.Output, error)
}

type LatencyRecorder interface {
	RecordLatency(output project.OutputID, ms float64)
}

type Stats struct {
	Output    project.OutputID `json:"output"`
	Running   bool             `json:"running"`
	FPS       float64          `json:"fps"`
	LatencyMs float64          `json:"latencyMs"`
	Frames    uint64           `json:"frames"`
	LastError string           `json:"lastError,omitempty"`
}

type LoopConfig struct {
	Output    project.OutputID
	Transport transport.Transport
	Renderer  Renderer
	Latency   LatencyRecorder
	Telemetry *Telemetry
	Interval  time.Duration
	Now       func() time.Time
}

type Loop struct {
	cfg LoopConfig

	running atomic.Bool
	stop    chan struct{}
	stopped sync.Once
	done    chan struct{}

	// owned by the run goroutine
	counter   uint64
	samples   []float64
	intervals [fpsWindow]float64
	nInterval int
	next      int

	mu    sync.Mutex
	stats Stats
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = &Telemetry{}
	}
	return &Loop{
		cfg:     cfg,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		samples: make([]float64, 0, latencyWindow),
		stats:   Stats{Output: cfg.Output, FPS: math.NaN()},
	}
}

// Start runs the loop in its own goroutine. A loop runs at most once.
func (l *Loop) Start(ctx context.Context) {
	l.running.Store(true)
	l.setStats(func(s *Stats) { s.Running = true })
	logging.Infof("output %s: loop started", l.cfg.Output)
	go l.run(ctx)
}

// Stop asks the loop to exit before its next iteration. A transmit already
// in flight completes.
func (l *Loop) Stop() {
	l.running.Store(false)
	l.stopped.Do(func() { close(l.stop) })
}

func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) Running() bool {
	return l.running.Load()
}

func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

func (l *Loop) setStats(fn func(*Stats)) {
	l.mu.Lock()
	fn(&l.stats)
	l.mu.Unlock()
}

func (l *Loop) run(ctx context.Context) {
	defer close(l.done)
	defer l.finish()

	var last time.Time
	for l.running.Load() && ctx.Err() == nil {
		start := l.cfg.Now()
		if !last.IsZero() {
			l.publishFPS(start.Sub(last))
		}
		last = start

		l.counter++
		out, err := l.cfg.Renderer.RenderFrame(ctx, l.cfg.Output, l.counter)
		if err != nil {
			l.fail(fmt.Errorf("scheduler: render frame %d: %w", l.counter, err))
			return
		}
		l.cfg.Telemetry.Frames.Publish(Frame{Output: l.cfg.Output, Counter: l.counter, Data: out})

		if err := l.cfg.Transport.Send(context.WithoutCancel(ctx), out); err != nil {
			l.fail(err)
			if errors.Is(err, transport.ErrLinkLost) {
				return
			}
		} else {
			logging.ForgetPrefix(l.warnPrefix())
			l.sample(l.cfg.Now().Sub(start))
		}
		l.setStats(func(s *Stats) { s.Frames = l.counter })

		if !l.pace(ctx, start) {
			return
		}
	}
}

func (l *Loop) finish() {
	l.running.Store(false)
	if err := l.cfg.Transport.Close(); err != nil {
		logging.Debugf("output %s: close: %v", l.cfg.Output, err)
	}
	l.setStats(func(s *Stats) {
		s.Running = false
		s.FPS = math.NaN()
	})
	l.cfg.Telemetry.FPS.Publish(FPS{Output: l.cfg.Output, FPS: math.NaN()})
	logging.Infof("output %s: loop stopped after %d frames", l.cfg.Output, l.counter)
}

// warnPrefix scopes repeated-error suppression to this output.
func (l *Loop) warnPrefix() string {
	return "output\x00" + string(l.cfg.Output) + "\x00"
}

func (l *Loop) fail(err error) {
	logging.WarnOncef(l.warnPrefix()+err.Error(), "output %s: %v", l.cfg.Output, err)
	l.setStats(func(s *Stats) { s.LastError = err.Error() })
	l.cfg.Telemetry.Errors.Publish(OutputError{Output: l.cfg.Output, Err: err})
}

func (l *Loop) sample(d time.Duration) {
	l.samples = append(l.samples, float64(d)/float64(time.Millisecond))
	if len(l.samples) < latencyWindow {
		return
	}
	sum := 0.0
	for _, s := range l.samples {
		sum += s
	}
	latency := sum / float64(len(l.samples)) / 2
	l.samples = l.samples[:0]

	logging.Debugf("output %s: latency %.2fms", l.cfg.Output, latency)
	l.setStats(func(s *Stats) { s.LatencyMs = latency })
	if l.cfg.Latency != nil {
		l.cfg.Latency.RecordLatency(l.cfg.Output, latency)
	}
}

func (l *Loop) publishFPS(interval time.Duration) {
	l.intervals[l.next] = float64(interval) / float64(time.Millisecond)
	l.next = (l.next + 1) % fpsWindow
	l.nInterval = min(l.nInterval+1, fpsWindow)

	sum := 0.0
	for _, v := range l.intervals[:l.nInterval] {
		sum += v
	}
	fps := math.Inf(1)
	if sum > 0 {
		fps = 1000 / (sum / float64(l.nInterval))
	}
	l.setStats(func(s *Stats) { s.FPS = fps })
	l.cfg.Telemetry.FPS.Publish(FPS{Output: l.cfg.Output, FPS: fps})
}

// pace sleeps out the rest of the interval. It reports false when woken by
// Stop or cancellation.
func (l *Loop) pace(ctx context.Context, start time.Time) bool {
	remaining := l.cfg.Interval - l.cfg.Now().Sub(start)
	if remaining <= 0 {
		select {
		case <-l.stop:
			return false
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-l.stop:
		return false
	case <-ctx.Done():
		return false
	}
}
