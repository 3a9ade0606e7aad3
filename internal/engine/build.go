package engine

import (
	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/forces"
	"github.com/san-kum/mdsim/internal/integrators"
	"github.com/san-kum/mdsim/internal/neighbor"
	"github.com/san-kum/mdsim/internal/pbc"
	"github.com/san-kum/mdsim/internal/sim"
	"github.com/san-kum/mdsim/internal/state"
)

// buildFields maps the enabled forces to fields. In a periodic domain
// gravity and Coulomb switch to their Ewald forms.
func buildFields(cfg *config.Config, n int) []forces.ForceField {
	r, k := cfg.Runtime, cfg.Constants
	eps := r.Softening
	if eps == 0 {
		eps = forces.DefaultSoftening(cfg.World.Box.Half(), n)
	}

	var fields []forces.ForceField
	if cfg.Forces.Gravity {
		if r.PBC {
			fields = append(fields, forces.NewEwaldGravity(k.G, r.EwaldAlpha, r.EwaldKMax, eps))
		} else {
			fields = append(fields, forces.NewGravity(k.G, eps))
		}
	}
	if cfg.Forces.Coulomb {
		if r.PBC {
			fields = append(fields, forces.NewEwaldCoulomb(k.K, r.EwaldAlpha, r.EwaldKMax, eps))
		} else {
			fields = append(fields, forces.NewCoulomb(k.K, eps))
		}
	}
	if cfg.Forces.LennardJones {
		fields = append(fields, forces.NewLennardJones(k.Epsilon, k.Sigma))
	}
	return fields
}

// buildSimulation assembles a fresh simulation around st. Nothing is shared
// with any previous simulation, so the result can be swapped in atomically.
func buildSimulation(cfg *config.Config, st *state.State) (*sim.Simulation, error) {
	pairs, err := neighbor.New(cfg.Neighbor.Strategy)
	if err != nil {
		return nil, err
	}
	integ, err := integrators.New(cfg.Runtime.Integrator)
	if err != nil {
		return nil, err
	}
	ctx := forces.Context{
		Cutoff: cfg.Runtime.Cutoff,
		Domain: pbc.Domain{Half: cfg.World.Box.Half(), Periodic: cfg.Runtime.PBC},
		Pairs:  pairs,
	}
	return sim.New(st, integ, buildFields(cfg, st.N), ctx, cfg.Runtime.Dt), nil
}
