package indicators

import "backtest-core/pkg/fixed"

// Crossover classifies how a short series relates to a long one at an index.
type Crossover int

const (
	// CrossoverNone means no current transition happens exactly at the index.
	CrossoverNone Crossover = iota
	// CrossoverBelow means the short series came from below and is now at or
	// above the long series (golden cross).
	CrossoverBelow
	// CrossoverAbove means the short series came from above and is now at or
	// below the long series.
	CrossoverAbove
)

func (c Crossover) String() string {
	switch c {
	case CrossoverBelow:
		return "BELOW"
	case CrossoverAbove:
		return "ABOVE"
	default:
		return "NONE"
	}
}

// DetectCrossover reports a transition between index-1 and index that still
// holds at every point from index to the end of the series. A crossing that
// has already reversed is reported as CrossoverNone.
func DetectCrossover(short, long []fixed.Price, index int) Crossover {
	n := len(short)
	if n != len(long) || index < 1 || index >= n {
		return CrossoverNone
	}

	before := short[index-1].Cmp(long[index-1])
	var want int
	switch {
	case before < 0:
		want = 1
	case before > 0:
		want = -1
	default:
		return CrossoverNone
	}

	for j := index; j < n; j++ {
		// The relation must not fall back to the side it came from.
		if short[j].Cmp(long[j]) == -want {
			return CrossoverNone
		}
	}

	if want > 0 {
		return CrossoverBelow
	}
	return CrossoverAbove
}
