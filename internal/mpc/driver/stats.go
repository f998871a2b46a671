package driver

import "sort"

// Stats is a summary of a global distribution of per-edge counters
// (line-graph degree, ball size): min, max, mean, and the 95th percentile.
// There is no percentile library anywhere in the dependency surface this
// module draws from, so this is a plain stdlib sort.Slice; P95 is the
// sorted value at index floor((n-1)*0.95).
type Stats struct {
	Min, Max int32
	Mean     float64
	P95      float64
}

func computeStats(values []int32) Stats {
	if len(values) == 0 {
		return Stats{}
	}
	sorted := append([]int32{}, values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum int64
	for _, v := range sorted {
		sum += int64(v)
	}

	idx := int(float64(len(sorted)-1) * 0.95)
	return Stats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: float64(sum) / float64(len(sorted)),
		P95:  float64(sorted[idx]),
	}
}
