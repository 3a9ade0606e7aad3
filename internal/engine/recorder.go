package engine

import (
	"sync"

	"github.com/san-kum/mdsim/internal/metrics"
)

// Series holds diagnostics sampled on diagnostics steps.
type Series struct {
	Time        []float64
	Kinetic     []float64
	Potential   []float64
	Total       []float64
	Temperature []float64
}

// Recorder accumulates diagnostics events from one engine.
type Recorder struct {
	mu          sync.Mutex
	series      Series
	drift       metrics.EnergyDrift
	unsubscribe func()
}

func NewRecorder(e *Engine) *Recorder {
	r := &Recorder{}
	r.unsubscribe = e.Subscribe(KindDiagnostics, func(ev Event) {
		r.Observe(ev.Diagnostics)
	})
	return r
}

func (r *Recorder) Observe(d metrics.Diagnostics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &r.series
	s.Time = append(s.Time, d.Time)
	s.Kinetic = append(s.Kinetic, d.Kinetic)
	s.Potential = append(s.Potential, d.Potential)
	s.Total = append(s.Total, d.Total)
	s.Temperature = append(s.Temperature, d.Temperature)
	r.drift.Observe(d)
}

// Stop detaches the recorder from its engine. Recorded data stays readable.
func (r *Recorder) Stop() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.series.Time)
}

// Series returns a copy of everything recorded so far.
func (r *Recorder) Series() Series {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.series
	return Series{
		Time:        append([]float64(nil), s.Time...),
		Kinetic:     append([]float64(nil), s.Kinetic...),
		Potential:   append([]float64(nil), s.Potential...),
		Total:       append([]float64(nil), s.Total...),
		Temperature: append([]float64(nil), s.Temperature...),
	}
}

// EnergyDrift is the largest relative deviation of total energy from the
// first recorded sample.
func (r *Recorder) EnergyDrift() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drift.Value()
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.series = Series{}
	r.drift.Reset()
}
