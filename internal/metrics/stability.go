package metrics

import (
	"fmt"
	"math"
)

type Level int

const (
	Stable Level = iota
	Warning
	Severe
	Critical
)

func (l Level) String() string {
	switch l {
	case Stable:
		return "stable"
	case Warning:
		return "warning"
	case Severe:
		return "severe"
	case Critical:
		return "critical"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Thresholds tune the stability tiers.
type Thresholds struct {
	MaxSpeed         float64 `yaml:"maxSpeed" json:"maxSpeed"`
	MaxForce         float64 `yaml:"maxForce" json:"maxForce"`
	EnergyJump       float64 `yaml:"energyJump" json:"energyJump"`
	TemperatureRatio float64 `yaml:"temperatureRatio" json:"temperatureRatio"`
	SevereFrames     int     `yaml:"severeFrames" json:"severeFrames"`
	WarningFrames    int     `yaml:"warningFrames" json:"warningFrames"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxSpeed:         500,
		MaxForce:         5000,
		EnergyJump:       0.05,
		TemperatureRatio: 5,
		SevereFrames:     3,
		WarningFrames:    20,
	}
}

// Result is advisory only; nothing acts on it automatically.
type Result struct {
	Level       Level    `json:"level"`
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// StabilityMonitor classifies a stream of diagnostics. Severe and warning
// conditions must persist for consecutive frames before they are reported.
type StabilityMonitor struct {
	thresholds Thresholds
	severeRun  int
	warningRun int
	prevTotal  float64
	hasPrev    bool
}

func NewStabilityMonitor(t Thresholds) *StabilityMonitor {
	return &StabilityMonitor{thresholds: t}
}

func (m *StabilityMonitor) Thresholds() Thresholds { return m.thresholds }

// Evaluate classifies one frame. With the thermostat on, the warning tier
// compares temperature against target instead of tracking energy jumps.
func (m *StabilityMonitor) Evaluate(d Diagnostics, thermostat bool, target float64) Result {
	if !finite(d.Temperature) || !finite(d.MaxSpeed) || !finite(d.MaxForceMag) || !finite(d.Total) {
		m.severeRun, m.warningRun = 0, 0
		m.hasPrev = false
		return Result{
			Level:   Critical,
			Message: "non-finite diagnostics: the state has diverged",
			Suggestions: []string{
				"reduce the timestep",
				"increase softening",
				"reload the last good snapshot",
			},
		}
	}

	t := m.thresholds
	if d.MaxSpeed > t.MaxSpeed || d.MaxForceMag > t.MaxForce {
		m.severeRun++
	} else {
		m.severeRun = 0
	}

	warn := false
	if thermostat {
		warn = target > 0 && d.Temperature > t.TemperatureRatio*target
	} else if m.hasPrev && m.prevTotal != 0 {
		warn = math.Abs(d.Total-m.prevTotal)/math.Abs(m.prevTotal) > t.EnergyJump
	}
	m.prevTotal, m.hasPrev = d.Total, true
	if warn {
		m.warningRun++
	} else {
		m.warningRun = 0
	}

	switch {
	case m.severeRun >= t.SevereFrames:
		return Result{
			Level:   Severe,
			Message: fmt.Sprintf("max speed %.3g or max force %.3g above limits for %d frames", d.MaxSpeed, d.MaxForceMag, m.severeRun),
			Suggestions: []string{
				"reduce the timestep",
				"increase the Lennard-Jones sigma spacing or softening",
			},
		}
	case m.warningRun >= t.WarningFrames:
		msg := fmt.Sprintf("total energy jumping more than %.0f%% per frame", 100*t.EnergyJump)
		if thermostat {
			msg = fmt.Sprintf("temperature %.3g exceeds %.0fx the thermostat target", d.Temperature, t.TemperatureRatio)
		}
		return Result{
			Level:       Warning,
			Message:     msg,
			Suggestions: []string{"reduce the timestep", "switch to the verlet integrator"},
		}
	}
	return Result{Level: Stable, Message: "stable"}
}

// Reset clears both frame counters and the previous total.
func (m *StabilityMonitor) Reset() {
	m.severeRun, m.warningRun = 0, 0
	m.prevTotal, m.hasPrev = 0, false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
