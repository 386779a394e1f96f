package analysis

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// NextPow2 returns the smallest power of two >= n.
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Spectrum holds magnitudes by frequency bin. Freq[i] is in cycles per sample.
type Spectrum struct {
	Power []float64
	Freq  []float64
}

// PowerSpectrum removes the mean, zero-pads to a power of two and returns
// the magnitude of each non-negative frequency bin.
func PowerSpectrum(data []float64) Spectrum {
	if len(data) < 2 {
		return Spectrum{}
	}
	n := NextPow2(len(data))
	seq := make([]float64, n)
	mean := stat.Mean(data, nil)
	for i, v := range data {
		seq[i] = v - mean
	}

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, seq)

	sp := Spectrum{
		Power: make([]float64, len(coeff)),
		Freq:  make([]float64, len(coeff)),
	}
	for i, c := range coeff {
		sp.Power[i] = cmplx.Abs(c)
		sp.Freq[i] = fft.Freq(i)
	}
	return sp
}

// DominantPeriod returns the period in samples of the strongest non-zero
// frequency. ok is false for series that are too short or flat.
func DominantPeriod(data []float64) (period float64, ok bool) {
	sp := PowerSpectrum(data)
	if len(sp.Power) < 2 {
		return 0, false
	}
	best := 1
	for i := 2; i < len(sp.Power); i++ {
		if sp.Power[i] > sp.Power[best] {
			best = i
		}
	}
	if sp.Power[best] < 1e-12 {
		return 0, false
	}
	return 1 / sp.Freq[best], true
}
