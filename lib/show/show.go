// Package show is the running show: the project under a lock, its beat
// clock, and the edit operations the controllers, web API and CLI share.
package show

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"tileshow/lib/beat"
	"tileshow/lib/logging"
	"tileshow/lib/project"
	"tileshow/lib/target"
	"tileshow/lib/tile"
)

var ErrNotApplicable = errors.New("target is not applicable to group")

type Show struct {
	mu      sync.RWMutex
	project *project.Project
	store   project.Store
	clock   *beat.Clock
	now     func() time.Time
	dirty   atomic.Bool
}

func New(store project.Store, p *project.Project) *Show {
	return &Show{
		project: p,
		store:   store,
		clock:   beat.NewClock(p.BeatBPM),
		now:     time.Now,
	}
}

func Load(store project.Store) (*Show, error) {
	p, err := store.Load()
	if err != nil {
		return nil, err
	}
	return New(store, p), nil
}

// SetClock replaces the wall clock. Call it before the show is shared.
func (s *Show) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Show) Now() time.Time {
	return s.now()
}

func (s *Show) Beat() *beat.Clock {
	return s.clock
}

// View runs fn with read access to the project. fn must not keep p.
func (s *Show) View(fn func(p *project.Project, b beat.Metadata, now time.Time) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.project, s.clock.Metadata(), s.now())
}

func (s *Show) update(fn func(p *project.Project) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(s.project); err != nil {
		return err
	}
	s.dirty.Store(true)
	return nil
}

func (s *Show) Dirty() bool {
	return s.dirty.Load()
}

func (s *Show) Toggle(id project.TileID) (modified, enabled bool, err error) {
	err = s.update(func(p *project.Project) error {
		t := p.Tile(id)
		if t == nil {
			return fmt.Errorf("show: tile %q: %w", id, project.ErrUnknownTile)
		}
		modified, enabled = tile.Toggle(t, s.clock.Metadata(), s.now())
		return nil
	})
	if err == nil {
		logging.Debugf("tile %s: toggled (modified=%v enabled=%v)", id, modified, enabled)
	}
	return modified, enabled, err
}

func (s *Show) SetStrength(id project.TileID, v float64) error {
	return s.update(func(p *project.Project) error {
		t := p.Tile(id)
		if t == nil {
			return fmt.Errorf("show: tile %q: %w", id, project.ErrUnknownTile)
		}
		tile.SetStrength(t, v)
		return nil
	})
}

type TileState struct {
	ID       project.TileID `json:"id"`
	Name     string         `json:"name"`
	OneShot  bool           `json:"oneShot"`
	State    string         `json:"state"`
	Amount   float64        `json:"amount"`
	Envelope float64        `json:"envelope"`
}

func stateName(tr project.Transition) string {
	switch tr.(type) {
	case project.FadeInStartedAt:
		return "fade-in"
	case project.FadeOutStartedAt:
		return "fade-out"
	case project.AbsoluteStrength:
		return "strength"
	}
	return "unset"
}

// Tiles snapshots every tile's live activation in scene order.
func (s *Show) Tiles() []TileState {
	var states []TileState
	s.View(func(p *project.Project, b beat.Metadata, now time.Time) error {
		for _, t := range p.Tiles() {
			states = append(states, TileState{
				ID:       t.ID,
				Name:     t.Name,
				OneShot:  t.OneShot,
				State:    stateName(t.Transition),
				Amount:   tile.Amount(t, b, now),
				Envelope: tile.Envelope(t, b, now),
			})
		}
		return nil
	})
	return states
}

func (s *Show) ApplicableMembers(id project.GroupID) ([]project.OutputTarget, error) {
	var out []project.OutputTarget
	err := s.View(func(p *project.Project, _ beat.Metadata, _ time.Time) error {
		if p.Group(id) == nil {
			return fmt.Errorf("show: group %q: %w", id, project.ErrUnknownGroup)
		}
		out = target.ApplicableMembers(p, id)
		return nil
	})
	return out, err
}

func applicable(candidates []project.OutputTarget, t project.OutputTarget) bool {
	switch t := t.(type) {
	case project.GroupTarget:
		for _, c := range candidates {
			if project.SameTarget(c, t) {
				return true
			}
		}
	case project.FixturesTarget:
		if len(t) == 0 {
			return false
		}
		for _, ref := range t {
			if !singleIn(candidates, ref) {
				return false
			}
		}
		return true
	}
	return false
}

func singleIn(candidates []project.OutputTarget, ref project.FixtureReference) bool {
	for _, c := range candidates {
		if f, ok := c.(project.FixturesTarget); ok && len(f) == 1 && f[0] == ref {
			return true
		}
	}
	return false
}

// AddToGroup adds t to a group. Only targets drawn from ApplicableMembers are
// accepted, which keeps the group graph acyclic.
func (s *Show) AddToGroup(id project.GroupID, t project.OutputTarget) error {
	return s.update(func(p *project.Project) error {
		if p.Group(id) == nil {
			return fmt.Errorf("show: group %q: %w", id, project.ErrUnknownGroup)
		}
		if !applicable(target.ApplicableMembers(p, id), t) {
			return fmt.Errorf("show: add %s to group %q: %w", project.TargetString(t), id, ErrNotApplicable)
		}
		return target.AddToGroup(p, id, t)
	})
}

func (s *Show) Resolve(t project.OutputTarget) []project.FixtureReference {
	var refs []project.FixtureReference
	s.View(func(p *project.Project, _ beat.Metadata, _ time.Time) error {
		refs = target.Resolve(p, t)
		return nil
	})
	return refs
}

func (s *Show) ResolveGroup(id project.GroupID) ([]project.FixtureReference, error) {
	var refs []project.FixtureReference
	err := s.View(func(p *project.Project, _ beat.Metadata, _ time.Time) error {
		if p.Group(id) == nil {
			return fmt.Errorf("show: group %q: %w", id, project.ErrUnknownGroup)
		}
		refs = target.ResolveGroup(p, id)
		return nil
	})
	return refs, err
}

func (s *Show) NewGroup(name string) project.GroupID {
	id := project.GroupID(project.NewID())
	s.update(func(p *project.Project) error {
		p.Groups = append(p.Groups, project.Group{ID: id, Name: name})
		return nil
	})
	return id
}

func (s *Show) DeleteGroup(id project.GroupID) error {
	return s.update(func(p *project.Project) error {
		return target.DeleteTargetGroup(p, id)
	})
}

func (s *Show) DeleteFixture(ref project.FixtureReference) error {
	return s.update(func(p *project.Project) error {
		return target.DeleteFixture(p, ref)
	})
}

// Outputs copies the active patch's outputs.
func (s *Show) Outputs() []project.Output {
	var outs []project.Output
	s.View(func(p *project.Project, _ beat.Metadata, _ time.Time) error {
		if patch := p.Patch(); patch != nil {
			outs = append(outs, patch.Outputs...)
		}
		return nil
	})
	return outs
}

func (s *Show) Output(id project.OutputID) (project.Output, error) {
	var out project.Output
	err := s.View(func(p *project.Project, _ beat.Metadata, _ time.Time) error {
		o := p.Output(id)
		if o == nil {
			return fmt.Errorf("show: output %q: %w", id, project.ErrUnknownOutput)
		}
		out = *o
		return nil
	})
	return out, err
}

// SetOutputEnabled marks an output of the active patch enabled or disabled
// and returns the updated record.
func (s *Show) SetOutputEnabled(id project.OutputID, enabled bool) (project.Output, error) {
	var out project.Output
	err := s.update(func(p *project.Project) error {
		o := p.Output(id)
		if o == nil {
			return fmt.Errorf("show: output %q: %w", id, project.ErrUnknownOutput)
		}
		o.Enabled = enabled
		out = *o
		return nil
	})
	if err == nil {
		logging.Infof("output %s: enabled=%v", id, enabled)
	}
	return out, err
}

// RecordLatency stores a measured output latency on the output record.
func (s *Show) RecordLatency(id project.OutputID, ms float64) {
	err := s.update(func(p *project.Project) error {
		out := p.Output(id)
		if out == nil {
			return fmt.Errorf("show: output %q: %w", id, project.ErrUnknownOutput)
		}
		out.LatencyMs = ms
		return nil
	})
	if err != nil {
		logging.Debugf("%v", err)
	}
}

func (s *Show) Tap() {
	s.clock.Tap(s.now())
	s.syncBPM()
}

func (s *Show) SetBPM(bpm float64) {
	s.clock.SetBPM(bpm)
	s.syncBPM()
}

func (s *Show) ClockTick() {
	s.clock.ClockTick(s.now())
}

func (s *Show) ClockStart() {
	s.clock.ClockStart(s.now())
	s.syncBPM()
}

func (s *Show) syncBPM() {
	bpm := s.clock.Metadata().BPM()
	s.update(func(p *project.Project) error {
		p.BeatBPM = bpm
		return nil
	})
}

// Save writes the project if it changed since the last save.
func (s *Show) Save() error {
	if !s.dirty.Swap(false) {
		return nil
	}
	s.mu.RLock()
	err := s.store.Save(s.project)
	s.mu.RUnlock()
	if err != nil {
		s.dirty.Store(true)
		return err
	}
	return nil
}

// Autosave saves every interval and once more when ctx ends.
func (s *Show) Autosave(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Save(); err != nil {
				logging.Errorf("autosave: %v", err)
			}
		case <-ctx.Done():
			if err := s.Save(); err != nil {
				logging.Errorf("autosave: %v", err)
			}
			return
		}
	}
}
