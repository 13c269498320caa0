package scheduler

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"tileshow/lib/project"
	"tileshow/lib/transport"
)

type Dialer func(project.Output) (transport.Transport, error)

type Config struct {
	Renderer  Renderer
	Dialer    Dialer
	Latency   LatencyRecorder
	Telemetry *Telemetry
	Interval  time.Duration
	Now       func() time.Time
}

// Scheduler owns the loops of the active patch's outputs. Start, Stop,
// StopAll and Reconfigure are serialized so each output has at most one loop.
type Scheduler struct {
	cfg Config

	ops   sync.Mutex
	mu    sync.Mutex
	loops map[project.OutputID]*Loop
}

func New(cfg Config) *Scheduler {
	if cfg.Dialer == nil {
		cfg.Dialer = transport.Open
	}
	if cfg.Telemetry == nil {
		cfg.Telemetry = &Telemetry{}
	}
	return &Scheduler{cfg: cfg, loops: map[project.OutputID]*Loop{}}
}

func (s *Scheduler) Telemetry() *Telemetry {
	return s.cfg.Telemetry
}

// Start connects to out and starts its loop, replacing any loop already
// running for the same output. Starting a running output reconnects it.
func (s *Scheduler) Start(ctx context.Context, out project.Output) error {
	s.ops.Lock()
	defer s.ops.Unlock()
	return s.start(ctx, out)
}

func (s *Scheduler) start(ctx context.Context, out project.Output) error {
	s.stop(out.ID)

	t, err := s.cfg.Dialer(out)
	if err != nil {
		err = fmt.Errorf("scheduler: output %s: %w", out.ID, err)
		s.cfg.Telemetry.Errors.Publish(OutputError{Output: out.ID, Err: err})
		return err
	}
	l := NewLoop(LoopConfig{
		Output:    out.ID,
		Transport: t,
		Renderer:  s.cfg.Renderer,
		Latency:   s.cfg.Latency,
		Telemetry: s.cfg.Telemetry,
		Interval:  s.cfg.Interval,
		Now:       s.cfg.Now,
	})

	s.mu.Lock()
	s.loops[out.ID] = l
	s.mu.Unlock()
	l.Start(ctx)
	return nil
}

// Stop halts one output's loop and waits for its in-flight frame.
func (s *Scheduler) Stop(id project.OutputID) {
	s.ops.Lock()
	defer s.ops.Unlock()
	s.stop(id)
}

func (s *Scheduler) stop(id project.OutputID) {
	s.mu.Lock()
	l, ok := s.loops[id]
	delete(s.loops, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	l.Stop()
	<-l.Done()
}

func (s *Scheduler) StopAll() {
	s.ops.Lock()
	defer s.ops.Unlock()
	s.stopAll()
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	loops := s.loops
	s.loops = map[project.OutputID]*Loop{}
	s.mu.Unlock()
	for _, l := range loops {
		l.Stop()
	}
	for _, l := range loops {
		<-l.Done()
	}
}

// Reconfigure stops every loop and starts one per enabled output. It is
// called with the active patch's outputs whenever the patch changes.
func (s *Scheduler) Reconfigure(ctx context.Context, outputs []project.Output) error {
	s.ops.Lock()
	defer s.ops.Unlock()
	s.stopAll()
	var errs []error
	for _, out := range outputs {
		if !out.Enabled {
			continue
		}
		if err := s.start(ctx, out); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Scheduler) Loop(id project.OutputID) *Loop {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loops[id]
}

// Snapshot returns the latest stats of every loop, including loops that
// stopped on their own, ordered by output id.
func (s *Scheduler) Snapshot() []Stats {
	s.mu.Lock()
	stats := make([]Stats, 0, len(s.loops))
	for _, l := range s.loops {
		stats = append(stats, l.Stats())
	}
	s.mu.Unlock()
	slices.SortFunc(stats, func(a, b Stats) int {
		return cmp.Compare(a.Output, b.Output)
	})
	return stats
}
