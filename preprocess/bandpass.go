package preprocess

import (
	"math"

	"github.com/IndrashisDas/dl-lab-project/datasets"
	"github.com/IndrashisDas/dl-lab-project/tensor"
)

// Bandpass applies a linear-phase FIR band-pass (windowed sinc, Hamming
// window) between lowHz and highHz. The filter delay is compensated, so the
// output stays aligned with the event annotations.
func Bandpass(lowHz, highHz float64) Step {
	return func(r *datasets.Raw) error {
		taps := firBandpass(lowHz, highHz, r.SFreq)
		for i, ch := range r.Data {
			r.Data[i] = convolveSame(ch, taps)
		}
		return nil
	}
}

// firBandpass designs the band-pass kernel as the difference of two
// windowed-sinc low-passes. One second of taps gives a transition band
// narrow enough for the 4 Hz lower edge at 250 Hz sampling.
func firBandpass(lowHz, highHz, sfreq float64) []float64 {
	n := int(sfreq)
	if n%2 == 0 {
		n++ // odd length keeps the group delay an integer
	}
	m := n / 2
	taps := make([]float64, n)
	for i := range taps {
		k := float64(i - m)
		hp := sinc(2*highHz/sfreq, k) * 2 * highHz / sfreq
		lp := sinc(2*lowHz/sfreq, k) * 2 * lowHz / sfreq
		w := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		taps[i] = (hp - lp) * w
	}
	// Normalize to unit gain at the geometric center of the pass band.
	center := 2 * math.Pi * math.Sqrt(lowHz*highHz) / sfreq
	var re, im float64
	for i, t := range taps {
		re += t * math.Cos(center*float64(i))
		im += t * math.Sin(center*float64(i))
	}
	gain := math.Hypot(re, im)
	if gain > 0 {
		for i := range taps {
			taps[i] /= gain
		}
	}
	return taps
}

func sinc(cutoff, k float64) float64 {
	if k == 0 {
		return 1
	}
	x := math.Pi * cutoff * k
	return math.Sin(x) / x
}

// convolveSame convolves x with the odd-length kernel and trims the group
// delay, returning a slice of the same length as x (zero-padded edges).
func convolveSame(x, taps []float64) []float64 {
	n := len(taps)
	m := n / 2
	// Reversing the kernel turns the interior of the convolution into a
	// dot product against a contiguous stretch of x.
	rev := make([]float64, n)
	for j, t := range taps {
		rev[n-1-j] = t
	}
	out := make([]float64, len(x))
	edge := func(i int) float64 {
		var acc float64
		for j, t := range taps {
			k := i + m - j
			if k < 0 || k >= len(x) {
				continue
			}
			acc += t * x[k]
		}
		return acc
	}
	for i := 0; i < m && i < len(x); i++ {
		out[i] = edge(i)
	}
	for i := m; i+m < len(x); i++ {
		out[i] = tensor.Dot(rev, x[i-m:i-m+n])
	}
	for i := len(x) - m; i < len(x); i++ {
		if i < m {
			continue // already filled by the leading edge loop
		}
		out[i] = edge(i)
	}
	return out
}
