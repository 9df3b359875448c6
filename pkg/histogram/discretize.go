package histogram

import (
	"math"
	"sort"
)

// InvalidBin marks a value that falls outside every preset bin
const InvalidBin = -1

// DiscretizeLinear maps v to one of n equal bins over [lo, hi).
// The result is not bounds checked.
func DiscretizeLinear(v, lo, hi float64, n int) int {
	return int(math.Floor((v - lo) / ((hi - lo) / float64(n))))
}

// linearPosition is the continuous form of DiscretizeLinear
func linearPosition(v, lo, hi float64, n int) float64 {
	return (v - lo) / ((hi - lo) / float64(n))
}

// DiscretizePresetBins returns i such that edges[i] <= v < edges[i+1],
// or InvalidBin when v lies outside [edges[0], edges[len-1]).
func DiscretizePresetBins(v float64, edges []float64) int {
	if len(edges) < 2 || v < edges[0] || v >= edges[len(edges)-1] || math.IsNaN(v) {
		return InvalidBin
	}
	// First edge strictly greater than v
	i := sort.Search(len(edges), func(i int) bool { return edges[i] > v })
	return i - 1
}
