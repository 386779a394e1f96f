// Package analysis looks for structure in telemetry series.
//
//   - [PowerSpectrum]: magnitude spectrum of a mean-removed series
//   - [DominantPeriod]: period of the strongest non-zero frequency
//
// Population and energy series of an evolving swarm tend to oscillate with
// the cull interval and the food replenish cycle; the spectrum makes those
// cycles visible:
//
//	period, ok := analysis.DominantPeriod(population)
//	if ok {
//	    fmt.Printf("population cycles every %.0f samples\n", period)
//	}
package analysis
