package integrators

import (
	"errors"
	"fmt"

	"github.com/san-kum/mdsim/internal/dynamo"
)

const (
	NameEuler  = "euler"
	NameVerlet = "verlet"
)

var ErrUnknownIntegrator = errors.New("integrators: unknown integrator")

var registry = map[string]func() dynamo.Integrator{
	NameEuler:  func() dynamo.Integrator { return NewEuler() },
	NameVerlet: func() dynamo.Integrator { return NewVerlet() },
}

// New returns a fresh integrator by name.
func New(name string) (dynamo.Integrator, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntegrator, name)
	}
	return fn(), nil
}

// Names lists the registered integrators.
func Names() []string {
	return []string{NameEuler, NameVerlet}
}
