package life

import "lifereg/pkg/core"

// DefaultBatch is how many generations History and Extend add per call.
const DefaultBatch = 100

// History returns initial followed by batch successive generations.
func History(initial core.Grid, batch int) []core.Grid {
	return Extend([]core.Grid{initial}, batch)
}

// Extend appends batch generations continuing from the last grid of history.
// The returned slice shares no backing array with history.
func Extend(history []core.Grid, batch int) []core.Grid {
	if batch < 0 {
		batch = 0
	}
	out := make([]core.Grid, len(history), len(history)+batch)
	copy(out, history)
	if len(out) == 0 {
		return out
	}
	l := FromGrid(out[len(out)-1])
	for i := 0; i < batch; i++ {
		l.Step()
		out = append(out, l.Grid())
	}
	return out
}

// DetectCycle returns the index of the first earlier generation equal to the
// last one.
func DetectCycle(history []core.Grid) (int, bool) {
	if len(history) < 2 {
		return 0, false
	}
	last := history[len(history)-1]
	for i := 0; i < len(history)-1; i++ {
		if history[i] == last {
			return i, true
		}
	}
	return 0, false
}
