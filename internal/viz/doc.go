// Package viz draws simulation snapshots in the terminal.
//
// [Model] is a Bubble Tea program that polls a [Source] for the newest
// snapshot and renders it on a colour-aware braille [Canvas] through a
// rotatable [Camera]. The simulation runs on its own goroutine; the viewer
// only reads published snapshots and queues requests.
//
// # Key Bindings
//
//	Space - Freeze/resume stepping
//	R     - Reset to the run seed
//	Tab   - Select the next parameter, Up/Down to tune it
//	V     - Cycle world, RGB cube and HSV cylinder views
//	X Y   - Rotate the camera, +/- to zoom
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
