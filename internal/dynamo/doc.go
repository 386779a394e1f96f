// Package dynamo provides the primitives shared by every swarmlab package.
//
// The package defines the vocabulary the simulation packages agree on:
//
//   - [Params]: named bounded floats read once per step
//   - [Bound]: the accepted interval of a parameter
//   - [Configurable]: named parameter access for CLIs and viewers
//   - [SimulationError]: an error tagged with the step and entity that raised it
//   - [ParallelFor]: chunked fan-out for independent work
//
// # Clamping
//
// Params are clamped with [Params.Clamp] or [Params.SetParam] where external
// input is accepted. Simulation code never re-validates them.
//
// # Thread Safety
//
// Params is a plain value and is safe to copy between goroutines. Nothing in
// this package holds shared mutable state.
package dynamo
