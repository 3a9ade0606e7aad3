package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/engine"
)

func newWatch(t *testing.T) (*Watch, *engine.Engine) {
	t.Helper()
	cfg := config.GetPreset("lj-gas")
	cfg.World.ParticleCount = 27
	e, err := engine.New(cfg, engine.WithDiagnosticsEvery(1))
	if err != nil {
		t.Fatal(err)
	}
	return NewWatch(e, time.Millisecond), e
}

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestTickSteps(t *testing.T) {
	w, e := newWatch(t)
	w.Update(tickMsg(time.Now()))
	w.Update(key("+"))
	w.Update(tickMsg(time.Now()))

	if e.Steps() != 3 {
		t.Errorf("steps = %d, want 3", e.Steps())
	}
	if len(w.energy) != 3 {
		t.Errorf("recorded %d energy samples, want 3", len(w.energy))
	}
}

func TestPauseStopsStepping(t *testing.T) {
	w, e := newWatch(t)
	w.Update(key(" "))
	w.Update(tickMsg(time.Now()))
	if e.Steps() != 0 {
		t.Errorf("paused watch stepped %d times", e.Steps())
	}
	if !strings.Contains(w.View(), "PAUSED") {
		t.Error("view does not show the paused status")
	}
}

func TestKeysReconfigure(t *testing.T) {
	w, e := newWatch(t)
	w.Update(key("s"))
	w.Update(key("i"))
	w.Update(key("n"))

	cfg := e.Config()
	if cfg.Neighbor.Strategy != "naive" || cfg.Runtime.Integrator != "euler" {
		t.Errorf("got %s/%s", cfg.Neighbor.Strategy, cfg.Runtime.Integrator)
	}
	if cfg.World.ParticleCount != 35 {
		t.Errorf("particles = %d, want 35", cfg.World.ParticleCount)
	}
	if len(w.notes) == 0 {
		t.Error("expected reconfiguration notes")
	}
}

func TestQuit(t *testing.T) {
	w, _ := newWatch(t)
	if _, cmd := w.Update(key("q")); cmd == nil {
		t.Error("expected a quit command")
	}
}

func TestSparkline(t *testing.T) {
	if got := Sparkline(nil, 5); got != "─────" {
		t.Errorf("empty sparkline = %q", got)
	}
	if n := strings.Count(Sparkline([]float64{1, 2, 3, 4, 5, 6}, 4), "▁"); n > 1 {
		t.Errorf("expected only the last four values, got %d minima", n)
	}
}
