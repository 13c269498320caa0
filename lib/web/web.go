// Package web serves the show's JSON API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"tileshow/lib/beat"
	"tileshow/lib/logging"
	"tileshow/lib/project"
	"tileshow/lib/scheduler"
	"tileshow/lib/show"
)

// Loops is the part of the scheduler the API drives: per-output stats and
// the output loop lifecycle.
type Loops interface {
	Snapshot() []scheduler.Stats
	Start(ctx context.Context, out project.Output) error
	Stop(id project.OutputID)
	Reconfigure(ctx context.Context, outputs []project.Output) error
}

type Server struct {
	show  *show.Show
	loops Loops
	mux   *http.ServeMux

	// loops started from requests outlive the request
	base context.Context
}

func New(s *show.Show, loops Loops) *Server {
	srv := &Server{show: s, loops: loops, mux: http.NewServeMux(), base: context.Background()}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/project", s.handleProject)
	s.mux.HandleFunc("GET /api/telemetry", s.handleTelemetry)
	s.mux.HandleFunc("GET /api/tiles", s.handleTiles)
	s.mux.HandleFunc("POST /api/tiles/{id}/toggle", s.handleToggle)
	s.mux.HandleFunc("POST /api/tiles/{id}/strength", s.handleStrength)
	s.mux.HandleFunc("POST /api/groups", s.handleNewGroup)
	s.mux.HandleFunc("GET /api/groups/{id}/candidates", s.handleCandidates)
	s.mux.HandleFunc("GET /api/groups/{id}/fixtures", s.handleGroupFixtures)
	s.mux.HandleFunc("POST /api/groups/{id}/targets", s.handleAddTarget)
	s.mux.HandleFunc("DELETE /api/groups/{id}", s.handleDeleteGroup)
	s.mux.HandleFunc("DELETE /api/fixtures/{patch}/{output}/{fixture}", s.handleDeleteFixture)
	s.mux.HandleFunc("GET /api/outputs", s.handleOutputs)
	s.mux.HandleFunc("POST /api/outputs/{id}/enable", s.handleEnableOutput)
	s.mux.HandleFunc("POST /api/outputs/{id}/disable", s.handleDisableOutput)
	s.mux.HandleFunc("POST /api/outputs/{id}/reconnect", s.handleReconnectOutput)
	s.mux.HandleFunc("POST /api/beat/tap", s.handleTap)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx ends. Output loops started through
// the API run until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("web: listen %s: %w", addr, err)
	}
	s.base = ctx
	srv := &http.Server{Handler: s, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	logging.Infof("web: listening on %s", ln.Addr())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, project.ErrUnknownTile),
		errors.Is(err, project.ErrUnknownGroup),
		errors.Is(err, project.ErrUnknownFixture),
		errors.Is(err, project.ErrUnknownOutput):
		status = http.StatusNotFound
	case errors.Is(err, show.ErrNotApplicable),
		errors.Is(err, errOutputDisabled):
		status = http.StatusConflict
	}
	http.Error(w, err.Error(), status)
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	var body []byte
	err := s.show.View(func(p *project.Project, _ beat.Metadata, _ time.Time) error {
		var err error
		body, err = json.MarshalIndent(p, "", "  ")
		return err
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
	w.Write([]byte("\n"))
}

type outputStats struct {
	Output    project.OutputID `json:"output"`
	Running   bool             `json:"running"`
	FPS       *float64         `json:"fps"`
	LatencyMs float64          `json:"latencyMs"`
	Frames    uint64           `json:"frames"`
	LastError string           `json:"lastError,omitempty"`
}

func newOutputStats(st scheduler.Stats) outputStats {
	o := outputStats{
		Output:    st.Output,
		Running:   st.Running,
		LatencyMs: st.LatencyMs,
		Frames:    st.Frames,
		LastError: st.LastError,
	}
	if !math.IsNaN(st.FPS) && !math.IsInf(st.FPS, 0) {
		fps := st.FPS
		o.FPS = &fps
	}
	return o
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	stats := []outputStats{}
	if s.loops != nil {
		for _, st := range s.loops.Snapshot() {
			stats = append(stats, newOutputStats(st))
		}
	}
	writeJSON(w, map[string]any{
		"bpm":     s.show.Beat().Metadata().BPM(),
		"outputs": stats,
	})
}

func (s *Server) handleTiles(w http.ResponseWriter, r *http.Request) {
	tiles := s.show.Tiles()
	if tiles == nil {
		tiles = []show.TileState{}
	}
	writeJSON(w, tiles)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	modified, enabled, err := s.show.Toggle(project.TileID(r.PathValue("id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"modified": modified, "enabled": enabled})
}

func (s *Server) handleStrength(w http.ResponseWriter, r *http.Request) {
	v, err := strconv.ParseFloat(r.URL.Query().Get("value"), 64)
	if err != nil || math.IsNaN(v) {
		http.Error(w, "value must be a number in [0,1]", http.StatusBadRequest)
		return
	}
	if err := s.show.SetStrength(project.TileID(r.PathValue("id")), v); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNewGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}
	id := s.show.NewGroup(req.Name)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, map[string]project.GroupID{"id": id})
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	candidates, err := s.show.ApplicableMembers(project.GroupID(r.PathValue("id")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, project.Targets(candidates))
}

func (s *Server) handleGroupFixtures(w http.ResponseWriter, r *http.Request) {
	refs, err := s.show.ResolveGroup(project.GroupID(r.PathValue("id")))
	if err != nil {
		writeError(w, err)
		return
	}
	if refs == nil {
		refs = []project.FixtureReference{}
	}
	writeJSON(w, refs)
}

func (s *Server) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t, err := project.UnmarshalTarget(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := project.GroupID(r.PathValue("id"))
	if err := s.show.AddToGroup(id, t); err != nil {
		writeError(w, err)
		return
	}
	s.handleGroupFixtures(w, r)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := s.show.DeleteGroup(project.GroupID(r.PathValue("id"))); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteFixture(w http.ResponseWriter, r *http.Request) {
	ref := project.FixtureReference{
		PatchID:   project.PatchID(r.PathValue("patch")),
		OutputID:  project.OutputID(r.PathValue("output")),
		FixtureID: project.FixtureID(r.PathValue("fixture")),
	}
	if err := s.show.DeleteFixture(ref); err != nil {
		writeError(w, err)
		return
	}
	s.restartLoops()
	w.WriteHeader(http.StatusNoContent)
}

// restartLoops restarts every output loop after a patch edit. Dial failures
// are reported through telemetry and do not fail the edit.
func (s *Server) restartLoops() {
	if s.loops == nil {
		return
	}
	if err := s.loops.Reconfigure(s.base, s.show.Outputs()); err != nil {
		logging.Warnf("web: %v", err)
	}
}

var errOutputDisabled = errors.New("output is disabled")

type outputState struct {
	ID       project.OutputID   `json:"id"`
	Name     string             `json:"name"`
	Kind     project.OutputKind `json:"kind"`
	Address  string             `json:"address"`
	Enabled  bool               `json:"enabled"`
	Fixtures int                `json:"fixtures"`
	Loop     *outputStats       `json:"loop,omitempty"`
}

func (s *Server) outputState(out project.Output) outputState {
	st := outputState{
		ID:       out.ID,
		Name:     out.Name,
		Kind:     out.Kind,
		Address:  out.Address,
		Enabled:  out.Enabled,
		Fixtures: len(out.Fixtures),
	}
	if s.loops == nil {
		return st
	}
	for _, l := range s.loops.Snapshot() {
		if l.Output == out.ID {
			o := newOutputStats(l)
			st.Loop = &o
		}
	}
	return st
}

func (s *Server) handleOutputs(w http.ResponseWriter, r *http.Request) {
	states := []outputState{}
	for _, out := range s.show.Outputs() {
		states = append(states, s.outputState(out))
	}
	writeJSON(w, states)
}

// startOutput starts or restarts the loop of an enabled output. A dial
// failure leaves the output enabled and answers 502.
func (s *Server) startOutput(w http.ResponseWriter, out project.Output) {
	if s.loops != nil {
		if err := s.loops.Start(s.base, out); err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
	}
	writeJSON(w, s.outputState(out))
}

func (s *Server) handleEnableOutput(w http.ResponseWriter, r *http.Request) {
	out, err := s.show.SetOutputEnabled(project.OutputID(r.PathValue("id")), true)
	if err != nil {
		writeError(w, err)
		return
	}
	s.startOutput(w, out)
}

func (s *Server) handleDisableOutput(w http.ResponseWriter, r *http.Request) {
	out, err := s.show.SetOutputEnabled(project.OutputID(r.PathValue("id")), false)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.loops != nil {
		s.loops.Stop(out.ID)
	}
	writeJSON(w, s.outputState(out))
}

func (s *Server) handleReconnectOutput(w http.ResponseWriter, r *http.Request) {
	out, err := s.show.Output(project.OutputID(r.PathValue("id")))
	if err != nil {
		writeError(w, err)
		return
	}
	if !out.Enabled {
		writeError(w, fmt.Errorf("web: reconnect %s: %w", out.ID, errOutputDisabled))
		return
	}
	s.startOutput(w, out)
}

func (s *Server) handleTap(w http.ResponseWriter, r *http.Request) {
	s.show.Tap()
	writeJSON(w, map[string]float64{"bpm": s.show.Beat().Metadata().BPM()})
}
