package config

import (
	"sort"

	"github.com/san-kum/mdsim/internal/integrators"
	"github.com/san-kum/mdsim/internal/neighbor"
)

func preset(name string, edit func(c *Config)) *Config {
	c := DefaultConfig()
	c.Name = name
	edit(c)
	return c
}

func cube(h float64) Box { return Box{X: h, Y: h, Z: h} }

var Presets = map[string]*Config{
	"lj-gas": preset("lj-gas", func(c *Config) {
		c.World = World{ParticleCount: 125, Box: cube(6)}
		c.Runtime.Dt = 0.005
		c.Runtime.Cutoff = 2.5
	}),
	// 6x6x6 sites at the Lennard-Jones minimum spacing, held cold.
	"lj-crystal": preset("lj-crystal", func(c *Config) {
		c.World = World{ParticleCount: 216, Box: cube(3.367)}
		c.Runtime.Dt = 0.002
		c.Runtime.Cutoff = 2.5
		c.Runtime.Thermostat = Thermostat{Enabled: true, Target: 0.1, Tau: 0.5}
	}),
	"plasma": preset("plasma", func(c *Config) {
		c.World = World{ParticleCount: 200, Box: cube(10)}
		c.Runtime.Dt = 0.002
		c.Runtime.Cutoff = 6
		c.Runtime.PBC = false
		c.Runtime.Softening = 0.2
		c.Forces = Forces{LennardJones: true, Coulomb: true}
		c.Neighbor.Strategy = neighbor.NameCell
	}),
	"galaxy": preset("galaxy", func(c *Config) {
		c.World = World{ParticleCount: 300, Box: cube(20)}
		c.Runtime.Dt = 0.005
		c.Runtime.Cutoff = 80
		c.Runtime.PBC = false
		c.Runtime.Softening = 0.5
		c.Forces = Forces{Gravity: true}
		c.Neighbor.Strategy = neighbor.NameNaive
	}),
	"ewald-salt": preset("ewald-salt", func(c *Config) {
		c.World = World{ParticleCount: 64, Box: cube(4)}
		c.Runtime.Dt = 0.002
		c.Runtime.Cutoff = 3.5
		c.Runtime.Integrator = integrators.NameVerlet
		c.Forces = Forces{LennardJones: true, Coulomb: true}
	}),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
