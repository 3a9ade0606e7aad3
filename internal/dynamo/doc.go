// Package dynamo provides the core primitives shared by the particle
// simulation packages.
//
// The package defines:
//
//   - [Integrator]: a time-stepping scheme over a [state.State]
//   - [ForceFunc]: the callback an integrator uses to recompute forces
//   - [StepError]: a failed step with its simulation context
//   - [ParallelFor]: chunked fan-out over a particle range
//
// # Example
//
//	integ, _ := integrators.New("verlet")
//	s := sim.New(st, integ, fields, ctx, dt)
//	if err := s.Step(); err != nil {
//		...
//	}
//
// # Thread Safety
//
// Integrators keep scratch buffers and are NOT safe for concurrent use. Each
// engine owns its own integrator, strategy and state.
package dynamo
