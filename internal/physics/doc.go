// Package physics provides the force models that fill entity accumulators.
//
// Available models:
//   - Gravity: exact pairwise attraction with Plummer softening
//   - BarnesHut: octree approximation of Gravity for large populations
//   - Flocking: boids separation, alignment and cohesion
//
// Accumulators hold force. PostPass applies drag and the acceleration
// clamp after every model has run, and the integrator divides by mass.
package physics
