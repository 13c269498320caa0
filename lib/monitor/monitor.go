// Package monitor is a terminal view of running outputs and tile levels.
package monitor

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tileshow/lib/project"
	"tileshow/lib/scheduler"
	"tileshow/lib/show"
)

const (
	refreshInterval = 100 * time.Millisecond
	barWidth        = 24
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

type Config struct {
	FPS    <-chan scheduler.FPS
	Errors <-chan scheduler.OutputError
	Stats  func() []scheduler.Stats
	Tiles  func() []show.TileState
	BPM    func() float64
}

type outputRow struct {
	id      project.OutputID
	fps     float64
	latency float64
	frames  uint64
	err     string
}

type Model struct {
	cfg      Config
	outputs  []outputRow
	tiles    []show.TileState
	bpm      float64
	quitting bool
}

type fpsMsg scheduler.FPS

type errMsg scheduler.OutputError

type tickMsg time.Time

func New(cfg Config) Model {
	return Model{cfg: cfg}
}

func listenFPS(ch <-chan scheduler.FPS) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return fpsMsg(v)
	}
}

func listenErrors(ch <-chan scheduler.OutputError) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return errMsg(v)
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(listenFPS(m.cfg.FPS), listenErrors(m.cfg.Errors), tick())
}

func (m Model) row(id project.OutputID) *outputRow {
	for i := range m.outputs {
		if m.outputs[i].id == id {
			return &m.outputs[i]
		}
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case fpsMsg:
		if r := m.row(msg.Output); r != nil {
			r.fps = msg.FPS
		} else {
			m.outputs = append(m.outputs, outputRow{id: msg.Output, fps: msg.FPS})
		}
		return m, listenFPS(m.cfg.FPS)

	case errMsg:
		if r := m.row(msg.Output); r != nil {
			r.err = msg.Err.Error()
		} else {
			m.outputs = append(m.outputs, outputRow{id: msg.Output, fps: math.NaN(), err: msg.Err.Error()})
		}
		return m, listenErrors(m.cfg.Errors)

	case tickMsg:
		m = m.refresh()
		return m, tick()
	}
	return m, nil
}

// refresh pulls loop stats and tile levels. Stats replace the row list so
// removed outputs drop out.
func (m Model) refresh() Model {
	if m.cfg.Stats != nil {
		var rows []outputRow
		for _, st := range m.cfg.Stats() {
			r := outputRow{id: st.Output, fps: st.FPS, latency: st.LatencyMs, frames: st.Frames, err: st.LastError}
			if old := m.row(st.Output); old != nil && r.err == "" {
				r.err = old.err
			}
			rows = append(rows, r)
		}
		m.outputs = rows
	}
	if m.cfg.Tiles != nil {
		m.tiles = m.cfg.Tiles()
	}
	if m.cfg.BPM != nil {
		m.bpm = m.cfg.BPM()
	}
	return m
}

func bar(level float64) string {
	n := int(math.Round(min(max(level, 0), 1) * barWidth))
	return barStyle.Render(strings.Repeat("█", n)) + dimStyle.Render(strings.Repeat("░", barWidth-n))
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var out strings.Builder
	out.WriteString(headerStyle.Render(fmt.Sprintf("tileshow  %.1f bpm", m.bpm)))
	out.WriteString("\n\n")

	out.WriteString(headerStyle.Render("outputs"))
	out.WriteString("\n")
	if len(m.outputs) == 0 {
		out.WriteString(dimStyle.Render("  none running"))
		out.WriteString("\n")
	}
	for _, r := range m.outputs {
		status := okStyle.Render(fmt.Sprintf("%6.1f fps", r.fps))
		if math.IsNaN(r.fps) {
			status = errStyle.Render("   stopped")
		}
		line := fmt.Sprintf("  %-12s %s  %5.1f ms  %8d frames", r.id, status, r.latency, r.frames)
		if r.err != "" {
			line += "  " + errStyle.Render(r.err)
		}
		out.WriteString(line)
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(headerStyle.Render("tiles"))
	out.WriteString("\n")
	for _, t := range m.tiles {
		fmt.Fprintf(&out, "  %-16s %s %3.0f%%  %s\n", t.Name, bar(t.Envelope), t.Envelope*100, dimStyle.Render(t.State))
	}

	out.WriteString("\n")
	out.WriteString(dimStyle.Render("q:quit"))
	return out.String()
}

// Run shows the monitor until the user quits or ctx ends.
func Run(ctx context.Context, cfg Config) error {
	p := tea.NewProgram(New(cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
