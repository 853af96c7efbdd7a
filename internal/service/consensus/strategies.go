package consensus

type simpleAverage struct{}

func (simpleAverage) Target(sorted []float64) float64 { return mean(sorted) }
func (simpleAverage) Rounding() rounding              { return roundNearest }
func (simpleAverage) Describe() string                { return "Average" }

// smartConsensus uses a clear majority when there is one, otherwise the
// median after dropping outliers outside 1.5 IQR.
type smartConsensus struct{}

func (smartConsensus) Target(sorted []float64) float64 {
	counts := make(map[float64]int, len(sorted))
	for _, v := range sorted {
		counts[v]++
	}
	for v, c := range counts {
		if c*2 > len(sorted) {
			return v
		}
	}

	kept := sorted
	if len(sorted) >= 4 {
		q1 := percentile(sorted, 0.25)
		q3 := percentile(sorted, 0.75)
		iqr := q3 - q1
		lo, hi := q1-1.5*iqr, q3+1.5*iqr
		filtered := make([]float64, 0, len(sorted))
		for _, v := range sorted {
			if v >= lo && v <= hi {
				filtered = append(filtered, v)
			}
		}
		if len(filtered) > 0 {
			kept = filtered
		}
	}
	return median(kept)
}
func (smartConsensus) Rounding() rounding { return roundNearest }
func (smartConsensus) Describe() string   { return "Outlier-trimmed median" }

type conservativeMode struct{}

func (conservativeMode) Target(sorted []float64) float64 { return percentile(sorted, 0.75) }
func (conservativeMode) Rounding() rounding              { return roundUp }
func (conservativeMode) Describe() string                { return "Upper quartile" }

type optimisticMode struct{}

func (optimisticMode) Target(sorted []float64) float64 { return percentile(sorted, 0.25) }
func (optimisticMode) Rounding() rounding              { return roundDown }
func (optimisticMode) Describe() string                { return "Lower quartile" }
