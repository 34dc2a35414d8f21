package preprocess

import (
	"math"

	"github.com/IndrashisDas/dl-lab-project/datasets"
)

const emsEps = 1e-4

// StandardizeEMS applies exponential moving standardization per channel:
// each sample is demeaned and scaled by an exponentially weighted running
// mean and standard deviation with decay factor, and the first
// initBlockSize samples are standardized with the plain statistics of that
// block, since the running estimates have not warmed up yet.
func StandardizeEMS(factor float64, initBlockSize int) Step {
	return func(r *datasets.Raw) error {
		for _, ch := range r.Data {
			standardizeChannel(ch, factor, initBlockSize)
		}
		return nil
	}
}

func standardizeChannel(x []float64, factor float64, initBlockSize int) {
	n := len(x)
	if n == 0 {
		return
	}
	block := initBlockSize
	if block > n {
		block = n
	}

	// Plain statistics over the warm-up block.
	var mean float64
	for _, v := range x[:block] {
		mean += v
	}
	mean /= float64(block)
	var variance float64
	for _, v := range x[:block] {
		d := v - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(block))

	// Weight-adjusted exponentially moving mean and variance over the
	// whole channel, matching pandas ewm(alpha=factor, adjust=True).
	out := make([]float64, n)
	alpha := factor
	var meanNum, varNum, weight float64
	for i, v := range x {
		meanNum = (1-alpha)*meanNum + v
		weight = (1-alpha)*weight + 1
		m := meanNum / weight
		d := v - m
		varNum = (1-alpha)*varNum + d*d
		s := math.Sqrt(varNum / weight)
		out[i] = d / math.Max(emsEps, s)
	}

	for i := 0; i < block; i++ {
		out[i] = (x[i] - mean) / math.Max(emsEps, std)
	}
	copy(x, out)
}
