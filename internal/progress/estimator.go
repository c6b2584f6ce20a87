package progress

// Defaults used when no history exists for a (provider, operation) pair.
const (
	defaultBaseLines    = 100
	defaultPerNodeLines = 50
)

// EstimateLines predicts the stdout volume of an operation on a cluster of
// the given size from historical samples.
//
// The base is the line count of the smallest recorded cluster; growth per
// node is the average incremental slope of the larger samples relative to
// that base. The estimate is non-decreasing in the node count.
func (r *Repository) EstimateLines(provider, operation string, nodes int) Estimate {
	maxHistorical := r.MaxLines()
	samples := r.Samples(provider, operation)

	if len(samples) == 0 {
		total := defaultBaseLines
		if nodes > 1 {
			total += (nodes - 1) * defaultPerNodeLines
		}
		return Estimate{TotalLines: total, MaxHistorical: maxHistorical}
	}

	// Base sample: fewest nodes, smallest output on ties.
	base := samples[0]
	for _, s := range samples[1:] {
		if s.NodeCount < base.NodeCount ||
			(s.NodeCount == base.NodeCount && s.TotalOutputLines < base.TotalOutputLines) {
			base = s
		}
	}

	perNode := perNodeSlope(samples, base)

	total := base.TotalOutputLines
	if nodes > base.NodeCount {
		total += (nodes - base.NodeCount) * perNode
	}
	return Estimate{TotalLines: total, MaxHistorical: maxHistorical}
}

// perNodeSlope averages the incremental lines-per-node of samples larger
// than the base. With only same-sized samples it falls back to the mean
// lines/nodes ratio, clamped non-negative either way so estimates cannot
// shrink as clusters grow.
func perNodeSlope(samples []Sample, base Sample) int {
	sum, n := 0, 0
	for _, s := range samples {
		if s.NodeCount > base.NodeCount {
			sum += (s.TotalOutputLines - base.TotalOutputLines) / (s.NodeCount - base.NodeCount)
			n++
		}
	}
	if n == 0 {
		for _, s := range samples {
			if s.NodeCount > 0 {
				sum += s.TotalOutputLines / s.NodeCount
				n++
			}
		}
	}
	if n == 0 {
		return defaultPerNodeLines
	}
	slope := sum / n
	if slope < 0 {
		return 0
	}
	return slope
}
