package engine

import (
	"context"
	"sync"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/metrics"
)

// ReplicaResult is the outcome of one ensemble member.
type ReplicaResult struct {
	Seed        int64
	Steps       int
	Final       metrics.Diagnostics
	EnergyDrift float64
	Worst       metrics.Level
	Err         error
}

// Ensemble runs independent replicas of one configuration that differ only in
// their thermalization seed.
type Ensemble struct {
	cfg         *config.Config
	temperature float64
	seeds       []int64
	opts        []Option
}

func NewEnsemble(cfg *config.Config, temperature float64, seeds []int64, opts ...Option) *Ensemble {
	return &Ensemble{cfg: cfg, temperature: temperature, seeds: seeds, opts: opts}
}

// Run advances every replica by steps on its own goroutine. Results are in
// seed order; the first replica error is returned alongside them.
func (en *Ensemble) Run(ctx context.Context, steps int) ([]ReplicaResult, error) {
	if err := en.cfg.Validate(); err != nil {
		return nil, err
	}

	results := make([]ReplicaResult, len(en.seeds))
	var wg sync.WaitGroup
	for i, seed := range en.seeds {
		wg.Add(1)
		go func(idx int, seed int64) {
			defer wg.Done()
			results[idx] = en.replica(ctx, seed, steps)
		}(i, seed)
	}
	wg.Wait()

	for _, r := range results {
		if r.Err != nil {
			return results, r.Err
		}
	}
	return results, nil
}

func (en *Ensemble) replica(ctx context.Context, seed int64, steps int) ReplicaResult {
	res := ReplicaResult{Seed: seed}
	e, err := New(en.cfg, en.opts...)
	if err != nil {
		res.Err = err
		return res
	}
	if en.temperature > 0 {
		e.Thermalize(en.temperature, seed)
	}

	rec := NewRecorder(e)
	defer rec.Stop()
	rec.Observe(e.Diagnostics())
	e.Subscribe(KindInstability, func(ev Event) {
		res.Worst = max(res.Worst, ev.Stability.Level)
	})

	for ; res.Steps < steps; res.Steps++ {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}
		if err := e.Step(); err != nil {
			res.Err = err
			break
		}
	}
	res.Final = e.Diagnostics()
	res.EnergyDrift = rec.EnergyDrift()
	return res
}
