// Package tui is a terminal dashboard that steps an engine and shows its
// diagnostics and stability as they evolve.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/engine"
	"github.com/san-kum/mdsim/internal/integrators"
	"github.com/san-kum/mdsim/internal/metrics"
	"github.com/san-kum/mdsim/internal/neighbor"
)

const (
	historyLen = 120
	maxNotes   = 4
)

type tickMsg time.Time

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Watch is a bubbletea model. It steps the engine itself on every tick
// rather than running the engine loop, so all engine events arrive on the
// bubbletea goroutine.
type Watch struct {
	eng      *engine.Engine
	interval time.Duration

	paused   bool
	perTick  int
	diag     metrics.Diagnostics
	level    metrics.Level
	energy   []float64
	temps    []float64
	notes    []string
	wraps    int
	stopped  bool
	lastTick time.Time
	fps      float64

	width int
}

func NewWatch(e *engine.Engine, interval time.Duration) *Watch {
	w := &Watch{
		eng:      e,
		interval: interval,
		perTick:  1,
		width:    80,
		diag:     e.Diagnostics(),
	}
	e.Subscribe(engine.KindDiagnostics, func(ev engine.Event) {
		w.diag = ev.Diagnostics
		w.energy = appendBounded(w.energy, ev.Diagnostics.Total)
		w.temps = appendBounded(w.temps, ev.Diagnostics.Temperature)
		w.level = metrics.Stable
	})
	e.Subscribe(engine.KindInstability, func(ev engine.Event) {
		w.level = ev.Stability.Level
		w.note(fmt.Sprintf("%s: %s", ev.Stability.Level, ev.Stability.Message))
	})
	e.Subscribe(engine.KindWrap, func(ev engine.Event) {
		w.wraps += len(ev.Wraps)
	})
	e.Subscribe(engine.KindError, func(ev engine.Event) {
		w.stopped = true
		w.note("error: " + ev.Err.Error())
	})
	e.Subscribe(engine.KindStateReallocated, func(ev engine.Event) {
		w.note(fmt.Sprintf("state reallocated: %d particles", ev.State.N))
	})
	return w
}

func appendBounded(s []float64, v float64) []float64 {
	s = append(s, v)
	if len(s) > historyLen {
		s = s[len(s)-historyLen:]
	}
	return s
}

func (w *Watch) note(s string) {
	w.notes = append(w.notes, s)
	if len(w.notes) > maxNotes {
		w.notes = w.notes[len(w.notes)-maxNotes:]
	}
}

func (w *Watch) Init() tea.Cmd { return tick(w.interval) }

func (w *Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return w, w.handleKey(msg)
	case tea.WindowSizeMsg:
		w.width = msg.Width
		return w, nil
	case tickMsg:
		now := time.Time(msg)
		if !w.lastTick.IsZero() {
			if d := now.Sub(w.lastTick).Seconds(); d > 0 {
				w.fps = 1 / d
			}
		}
		w.lastTick = now
		if !w.paused && !w.stopped {
			for i := 0; i < w.perTick; i++ {
				if err := w.eng.Step(); err != nil {
					break
				}
			}
		}
		return w, tick(w.interval)
	}
	return w, nil
}

func (w *Watch) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return tea.Quit
	case " ":
		w.paused = !w.paused
	case "+", "=":
		w.perTick = min(w.perTick*2, 64)
	case "-":
		w.perTick = max(w.perTick/2, 1)
	case "s":
		w.reconfigure(func(c *config.Config) {
			c.Neighbor.Strategy = toggle(c.Neighbor.Strategy, neighbor.NameNaive, neighbor.NameCell)
		})
	case "i":
		w.reconfigure(func(c *config.Config) {
			c.Runtime.Integrator = toggle(c.Runtime.Integrator, integrators.NameEuler, integrators.NameVerlet)
		})
	case "t":
		w.reconfigure(func(c *config.Config) { c.Runtime.Thermostat.Enabled = !c.Runtime.Thermostat.Enabled })
	case "n":
		w.reconfigure(func(c *config.Config) { c.World.ParticleCount += 8 })
	case "N":
		w.reconfigure(func(c *config.Config) { c.World.ParticleCount = max(c.World.ParticleCount-8, 1) })
	case "r":
		w.stopped = false
	}
	return nil
}

func toggle(cur, a, b string) string {
	if cur == a {
		return b
	}
	return a
}

func (w *Watch) reconfigure(patch func(*config.Config)) {
	if err := w.eng.UpdateConfig(patch); err != nil {
		w.note("config rejected: " + err.Error())
		return
	}
	cfg := w.eng.Config()
	w.note(fmt.Sprintf("config: %s / %s, thermostat %v", cfg.Runtime.Integrator, cfg.Neighbor.Strategy, cfg.Runtime.Thermostat.Enabled))
}

func (w *Watch) View() string {
	cfg := w.eng.Config()

	status := StatusRunning.Render("RUNNING")
	switch {
	case w.stopped:
		status = levelStyles[metrics.Critical].Render("STOPPED")
	case w.paused:
		status = StatusPaused.Render("PAUSED")
	}

	name := cfg.Name
	if name == "" {
		name = "custom"
	}
	header := Title.Render("mdsim watch") + "  " + Subtle.Render(name) + "  " + status + "  " + LevelBadge(w.level)

	d := w.diag
	rows := []string{
		metricRow("time", fmt.Sprintf("%.4f", d.Time)),
		metricRow("steps", fmt.Sprintf("%d (x%d/tick)", w.eng.Steps(), w.perTick)),
		metricRow("particles", fmt.Sprintf("%d", cfg.World.ParticleCount)),
		metricRow("kinetic", fmt.Sprintf("%.6g", d.Kinetic)),
		metricRow("potential", fmt.Sprintf("%.6g", d.Potential)),
		metricRow("total", fmt.Sprintf("%.6g", d.Total)),
		metricRow("temperature", fmt.Sprintf("%.4g", d.Temperature)),
		metricRow("max speed", fmt.Sprintf("%.4g", d.MaxSpeed)),
		metricRow("max force", fmt.Sprintf("%.4g", d.MaxForceMag)),
		metricRow("wraps", fmt.Sprintf("%d", w.wraps)),
		metricRow("fps", fmt.Sprintf("%.0f", w.fps)),
	}
	diagPanel := Panel.Render(strings.Join(rows, "\n"))

	sparkWidth := max(min(w.width-8, historyLen), 10)
	charts := Panel.Render(strings.Join([]string{
		Subtle.Render("total energy"),
		Sparkline(w.energy, sparkWidth),
		Subtle.Render("temperature"),
		Sparkline(w.temps, sparkWidth),
	}, "\n"))

	run := Panel.Render(strings.Join([]string{
		metricRow("integrator", cfg.Runtime.Integrator),
		metricRow("strategy", cfg.Neighbor.Strategy),
		metricRow("pbc", fmt.Sprintf("%v", cfg.Runtime.PBC)),
		metricRow("thermostat", fmt.Sprintf("%v", cfg.Runtime.Thermostat.Enabled)),
		metricRow("dt", fmt.Sprintf("%g", cfg.Runtime.Dt)),
	}, "\n"))

	var notes string
	if len(w.notes) > 0 {
		notes = Subtle.Render(strings.Join(w.notes, "\n"))
	}

	keys := KeyHint.Render("space pause  +/- speed  s strategy  i integrator  t thermostat  n/N particles  r resume  q quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinHorizontal(lipgloss.Top, diagPanel, run),
		charts,
		notes,
		keys,
	)
}

// Run starts the dashboard on the alternate screen and blocks until quit.
func Run(e *engine.Engine, interval time.Duration) error {
	p := tea.NewProgram(NewWatch(e, interval), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
