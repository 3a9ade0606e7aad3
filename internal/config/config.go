package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/mdsim/internal/integrators"
	"github.com/san-kum/mdsim/internal/metrics"
	"github.com/san-kum/mdsim/internal/neighbor"
	"github.com/san-kum/mdsim/internal/pbc"
)

const (
	DefaultParticles = 64
	DefaultHalfBox   = 5.0
	DefaultDt        = 0.005
	DefaultCutoff    = 2.5
)

type Config struct {
	// Name is informational; presets set it and snapshots record it.
	Name      string             `yaml:"name,omitempty" json:"name,omitempty"`
	World     World              `yaml:"world" json:"world"`
	Runtime   Runtime            `yaml:"runtime" json:"runtime"`
	Forces    Forces             `yaml:"forces" json:"forces"`
	Constants Constants          `yaml:"constants" json:"constants"`
	Neighbor  Neighbor           `yaml:"neighbor" json:"neighbor"`
	Stability metrics.Thresholds `yaml:"stability" json:"stability"`
}

type World struct {
	ParticleCount int `yaml:"particleCount" json:"particleCount"`
	Box           Box `yaml:"box" json:"box"`
}

// Box holds half-extents; the domain is [-X,X]x[-Y,Y]x[-Z,Z].
type Box struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

func (b Box) Half() pbc.Box { return pbc.Box{b.X, b.Y, b.Z} }

type Runtime struct {
	Dt         float64 `yaml:"dt" json:"dt"`
	Cutoff     float64 `yaml:"cutoff" json:"cutoff"`
	Integrator string  `yaml:"integrator" json:"integrator"`
	PBC        bool    `yaml:"pbc" json:"pbc"`
	// Zero selects the built-in default for the optional knobs below.
	EwaldAlpha float64    `yaml:"ewaldAlpha,omitempty" json:"ewaldAlpha,omitempty"`
	EwaldKMax  int        `yaml:"ewaldKMax,omitempty" json:"ewaldKMax,omitempty"`
	Softening  float64    `yaml:"softening,omitempty" json:"softening,omitempty"`
	Thermostat Thermostat `yaml:"thermostat" json:"thermostat"`
}

// Thermostat configures Berendsen velocity rescaling toward Target with
// coupling time Tau.
type Thermostat struct {
	Enabled bool    `yaml:"enabled" json:"enabled"`
	Target  float64 `yaml:"target" json:"target"`
	Tau     float64 `yaml:"tau" json:"tau"`
}

type Forces struct {
	LennardJones bool `yaml:"lennardJones" json:"lennardJones"`
	Gravity      bool `yaml:"gravity" json:"gravity"`
	Coulomb      bool `yaml:"coulomb" json:"coulomb"`
}

type Constants struct {
	Epsilon float64 `yaml:"epsilon" json:"epsilon"`
	Sigma   float64 `yaml:"sigma" json:"sigma"`
	G       float64 `yaml:"G" json:"G"`
	K       float64 `yaml:"K" json:"K"`
	KB      float64 `yaml:"kB" json:"kB"`
}

type Neighbor struct {
	Strategy string `yaml:"strategy" json:"strategy"`
}

func DefaultConfig() *Config {
	return &Config{
		World: World{
			ParticleCount: DefaultParticles,
			Box:           Box{X: DefaultHalfBox, Y: DefaultHalfBox, Z: DefaultHalfBox},
		},
		Runtime: Runtime{
			Dt:         DefaultDt,
			Cutoff:     DefaultCutoff,
			Integrator: integrators.NameVerlet,
			PBC:        true,
			Thermostat: Thermostat{Target: 1, Tau: 0.5},
		},
		Forces: Forces{LennardJones: true},
		Constants: Constants{
			Epsilon: 1,
			Sigma:   1,
			G:       1,
			K:       1,
			KB:      1,
		},
		Neighbor:  Neighbor{Strategy: neighbor.NameCell},
		Stability: metrics.DefaultThresholds(),
	}
}

// Clone returns an independent copy.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
