package trace

// TraceSummary aggregates statistics from a SessionTrace.
type TraceSummary struct {
	TotalAnomalies   int
	TotalEvictions   int
	KindDistribution map[AnomalyKind]int // kind → transitions recorded
	CarDistribution  map[string]int      // car ID → transitions recorded
	MostAffectedCar  string
}

// Summarize computes aggregate statistics from a SessionTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SessionTrace) *TraceSummary {
	summary := &TraceSummary{
		KindDistribution: make(map[AnomalyKind]int),
		CarDistribution:  make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalAnomalies = len(st.Anomalies)
	summary.TotalEvictions = len(st.Evictions)
	for _, a := range st.Anomalies {
		summary.KindDistribution[a.Kind]++
		summary.CarDistribution[a.CarID]++
	}

	best := 0
	for id, n := range summary.CarDistribution {
		// ties resolve to the lexicographically smallest ID for stable output
		if n > best || (n == best && id < summary.MostAffectedCar) {
			best = n
			summary.MostAffectedCar = id
		}
	}

	return summary
}
