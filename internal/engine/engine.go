// Package engine owns a running particle simulation: its configuration,
// state and pair strategy, a ticker-driven run loop, hot reconfiguration and
// an event stream for observers.
//
// All state mutation happens under a single mutex. Events are collected while
// the lock is held and dispatched after it is released, on the goroutine that
// produced them, so handlers may call back into the engine.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/dynamo"
	"github.com/san-kum/mdsim/internal/metrics"
	"github.com/san-kum/mdsim/internal/pbc"
	"github.com/san-kum/mdsim/internal/sim"
	"github.com/san-kum/mdsim/internal/state"
)

type Engine struct {
	mu       sync.Mutex
	cfg      *config.Config
	st       *state.State
	sim      *sim.Simulation
	monitor  *metrics.StabilityMonitor
	steps    int64
	lastDiag metrics.Diagnostics

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	bus           *bus
	log           *slog.Logger
	diagEvery     int
	frameInterval time.Duration
}

// New validates cfg and builds an engine around a lattice-initialized state.
// The engine keeps its own copy of cfg.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:           cfg.Clone(),
		bus:           newBus(),
		log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		diagEvery:     DefaultDiagnosticsEvery,
		frameInterval: DefaultFrameInterval,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.st = state.New(cfg.World.ParticleCount, cfg.World.Box.Half())
	s, err := buildSimulation(e.cfg, e.st)
	if err != nil {
		return nil, err
	}
	e.sim = s
	e.sim.ComputeForces()
	e.monitor = metrics.NewStabilityMonitor(e.cfg.Stability)
	e.log.Debug("engine created", "particles", e.st.N, "integrator", e.cfg.Runtime.Integrator, "strategy", e.cfg.Neighbor.Strategy)
	return e, nil
}

// Subscribe registers handler for one event kind and returns a function that
// removes it. Calling the returned function more than once is harmless.
func (e *Engine) Subscribe(kind Kind, handler Handler) func() {
	return e.bus.subscribe(kind, handler)
}

// Step advances the simulation by one timestep. A panic raised by a force
// field or integrator is recovered into a *dynamo.StepError; the engine then
// pauses and emits an error event before returning the error.
func (e *Engine) Step() error {
	events, err := e.advance()
	if err != nil {
		e.Pause()
		e.log.Error("step failed, engine paused", "err", err)
		events = append(events, Event{Kind: KindError, Err: err})
	}
	e.bus.dispatch(events)
	return err
}

func (e *Engine) advance() (events []Event, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			events = nil
			err = &dynamo.StepError{Step: e.steps, Time: e.st.Time, Wrapped: dynamo.Recovered(r)}
		}
	}()

	if err := e.sim.Step(); err != nil {
		return nil, &dynamo.StepError{Step: e.steps, Time: e.st.Time, Wrapped: err}
	}
	e.steps++

	cfg := e.cfg
	half := cfg.World.Box.Half()
	if cfg.Runtime.PBC {
		if records := pbc.WrapPositions(e.st.Positions, half); records != nil {
			events = append(events, Event{Kind: KindWrap, Step: e.steps, Time: e.st.Time, Wraps: records})
		}
	} else if n := pbc.MarkEscaped(e.st.Positions, e.st.Escaped, half); n > 0 {
		e.log.Debug("particles escaped", "count", n, "step", e.steps)
	}

	if th := cfg.Runtime.Thermostat; th.Enabled {
		berendsen(e.st, th, cfg.Runtime.Dt, cfg.Constants.KB)
	}

	events = append(events, Event{Kind: KindFrame, Step: e.steps, Time: e.st.Time, State: e.st})

	if e.steps%int64(e.diagEvery) == 0 {
		d := metrics.Compute(e.st, e.sim.Fields, e.sim.Context, cfg.Constants.KB)
		e.lastDiag = d
		events = append(events, Event{Kind: KindDiagnostics, Step: e.steps, Time: d.Time, Diagnostics: d})

		th := cfg.Runtime.Thermostat
		if r := e.monitor.Evaluate(d, th.Enabled, th.Target); r.Level != metrics.Stable {
			events = append(events, Event{Kind: KindInstability, Step: e.steps, Time: d.Time, Diagnostics: d, Stability: r})
		}
	}
	return events, nil
}

// Run steps synchronously n times, stopping at the first error.
func (e *Engine) Run(n int) error {
	for i := 0; i < n; i++ {
		if err := e.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Start launches the run loop, which steps once per frame tick until ctx is
// done, Pause is called, or a step fails. It returns false if the engine is
// already running.
func (e *Engine) Start(ctx context.Context) bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	go e.loop(ctx, done)
	e.log.Info("engine started", "interval", e.frameInterval)
	return true
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(e.frameInterval)
	defer func() {
		ticker.Stop()
		e.runMu.Lock()
		if e.done == done && e.cancel != nil {
			e.cancel()
			e.cancel = nil
		}
		e.runMu.Unlock()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if err := e.Step(); err != nil {
				return
			}
		}
	}
}

// Pause stops scheduling further steps. A step already in progress
// completes. Pausing a paused engine does nothing.
func (e *Engine) Pause() {
	e.runMu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.runMu.Unlock()
	if cancel != nil {
		cancel()
		e.log.Info("engine paused")
	}
}

func (e *Engine) Running() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.cancel != nil
}

// Done is closed when the most recently started loop has exited. It is nil
// if Start was never called.
func (e *Engine) Done() <-chan struct{} {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.done
}

// UpdateConfig applies patch to a copy of the current configuration,
// validates it and swaps in a freshly built simulation. A particle-count
// change reallocates the state, keeping the overlapping prefix. In a periodic
// box, positions are wrapped into the new box before forces are recomputed.
// On a validation error nothing changes.
func (e *Engine) UpdateConfig(patch func(*config.Config)) error {
	events, err := e.reconfigure(patch)
	if err != nil {
		return err
	}
	e.bus.dispatch(events)
	return nil
}

func (e *Engine) reconfigure(patch func(*config.Config)) ([]Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.cfg.Clone()
	patch(next)
	if err := next.Validate(); err != nil {
		return nil, err
	}

	st := e.st
	prevN := st.N
	resized := next.World.ParticleCount != prevN
	if resized {
		st = st.Resize(next.World.ParticleCount, next.World.Box.Half())
	}
	s, err := buildSimulation(next, st)
	if err != nil {
		return nil, err
	}

	var events []Event
	if resized {
		e.log.Info("state reallocated", "from", prevN, "to", st.N)
		events = append(events, Event{Kind: KindStateReallocated, Step: e.steps, Time: st.Time, State: st})
	}
	if ev, ok := e.wrapInto(next, st); ok {
		events = append(events, ev)
	}
	s.ComputeForces()

	e.cfg, e.st, e.sim = next, st, s
	e.monitor = metrics.NewStabilityMonitor(next.Stability)
	e.log.Debug("config updated", "integrator", next.Runtime.Integrator, "strategy", next.Neighbor.Strategy)
	return append(events, Event{Kind: KindConfig, Step: e.steps, Time: st.Time, Config: next.Clone()}), nil
}

// wrapInto wraps st into cfg's box when cfg is periodic. Positions may lie
// outside after switching periodicity on or shrinking the box, and the
// minimum image only corrects by one box length.
func (e *Engine) wrapInto(cfg *config.Config, st *state.State) (Event, bool) {
	if !cfg.Runtime.PBC {
		return Event{}, false
	}
	records := pbc.WrapPositions(st.Positions, cfg.World.Box.Half())
	if records == nil {
		return Event{}, false
	}
	e.log.Debug("positions wrapped into new box", "count", len(records))
	return Event{Kind: KindWrap, Step: e.steps, Time: st.Time, Wraps: records}, true
}

// Restore replaces configuration and state wholesale, as when loading a
// snapshot. st must match cfg's particle count; the engine takes ownership.
func (e *Engine) Restore(cfg *config.Config, st *state.State, steps int64) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if st.N != cfg.World.ParticleCount {
		return fmt.Errorf("%w: state has %d particles, config %d", dynamo.ErrDimensionMismatch, st.N, cfg.World.ParticleCount)
	}
	if err := dynamo.CheckDimensions(st); err != nil {
		return err
	}
	next := cfg.Clone()
	s, err := buildSimulation(next, st)
	if err != nil {
		return err
	}

	e.mu.Lock()
	events := []Event{{Kind: KindStateReallocated, Step: steps, Time: st.Time, State: st}}
	e.steps = steps
	if ev, ok := e.wrapInto(next, st); ok {
		events = append(events, ev)
	}
	s.ComputeForces()
	e.cfg, e.st, e.sim = next, st, s
	e.monitor = metrics.NewStabilityMonitor(next.Stability)
	events = append(events, Event{Kind: KindConfig, Step: steps, Time: st.Time, Config: next.Clone()})
	e.mu.Unlock()

	e.log.Info("state restored", "particles", st.N, "time", st.Time)
	e.bus.dispatch(events)
	return nil
}

// Seed copies the provided buffers into the current state. Forces are
// recomputed for the new positions.
func (e *Engine) Seed(d state.SeedData) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.st.Seed(d)
	e.sim.ComputeForces()
}

func (e *Engine) Config() *config.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Clone()
}

// State returns a copy of the current particle state.
func (e *Engine) State() *state.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.Clone()
}

// View calls fn with the live configuration and state under the engine lock.
// fn must not modify either or call back into the engine.
func (e *Engine) View(fn func(cfg *config.Config, st *state.State, steps int64)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.cfg, e.st, e.steps)
}

func (e *Engine) Steps() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps
}

// Diagnostics computes a fresh diagnostics snapshot of the current state.
func (e *Engine) Diagnostics() metrics.Diagnostics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return metrics.Compute(e.st, e.sim.Fields, e.sim.Context, e.cfg.Constants.KB)
}

// LastDiagnostics returns the snapshot from the most recent diagnostics step.
func (e *Engine) LastDiagnostics() metrics.Diagnostics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastDiag
}

// Contributions splits the current net force by field.
func (e *Engine) Contributions() []sim.Contribution {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.PerForceContributions()
}

// Thermalize draws fresh velocities at temperature t.
func (e *Engine) Thermalize(t float64, seed int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.st.Thermalize(t, e.cfg.Constants.KB, seed)
}
