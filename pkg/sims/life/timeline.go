package life

import (
	"lifereg/pkg/bitmap"
	"lifereg/pkg/core"
)

// DefaultLimit caps the generations a Timeline retains when no limit is given.
const DefaultLimit = 10*DefaultBatch + 1

// Timeline is caller-owned playback state over a lazily computed history. It
// grows in batches and stops growing once a generation repeats or the retained
// history reaches its limit.
type Timeline struct {
	gens  []core.Grid
	seen  map[bitmap.Bitmap]int
	pos   int
	batch int
	limit int

	cycleStart int
	cycleFound bool
}

// NewTimeline computes the first batch of generations after initial.
func NewTimeline(initial core.Grid, batch, limit int) *Timeline {
	if batch <= 0 {
		batch = DefaultBatch
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	t := &Timeline{
		gens:  []core.Grid{initial},
		seen:  map[bitmap.Bitmap]int{bitmap.EncodeGrid(initial): 0},
		batch: batch,
		limit: limit,
	}
	t.Extend()
	return t
}

// Len is the number of generations computed so far.
func (t *Timeline) Len() int { return len(t.gens) }

// Position is the index of the current generation.
func (t *Timeline) Position() int { return t.pos }

// Current returns the generation at the playback position.
func (t *Timeline) Current() core.Grid { return t.gens[t.pos] }

// At returns generation i if it has been computed.
func (t *Timeline) At(i int) (core.Grid, bool) {
	if i < 0 || i >= len(t.gens) {
		return core.Grid{}, false
	}
	return t.gens[i], true
}

// Seek moves the playback position. Out of range positions are rejected.
func (t *Timeline) Seek(i int) bool {
	if i < 0 || i >= len(t.gens) {
		return false
	}
	t.pos = i
	return true
}

// Next advances playback by one generation and reports false at the end of
// the computed history.
func (t *Timeline) Next() bool { return t.Seek(t.pos + 1) }

// Prev steps playback back by one generation.
func (t *Timeline) Prev() bool { return t.Seek(t.pos - 1) }

// AtEnd reports whether playback sits on the last computed generation.
func (t *Timeline) AtEnd() bool { return t.pos == len(t.gens)-1 }

// Extend computes up to one more batch and returns how many generations were
// added. It adds nothing once a cycle is known or the limit is reached.
func (t *Timeline) Extend() int {
	added := 0
	if t.cycleFound {
		return 0
	}
	l := FromGrid(t.gens[len(t.gens)-1])
	for added < t.batch && len(t.gens) < t.limit {
		l.Step()
		g := l.Grid()
		key := bitmap.EncodeGrid(g)
		idx := len(t.gens)
		t.gens = append(t.gens, g)
		added++
		if first, ok := t.seen[key]; ok {
			t.cycleStart = first
			t.cycleFound = true
			break
		}
		t.seen[key] = idx
	}
	return added
}

// Cycle reports the first generation of the repeating segment and its period.
func (t *Timeline) Cycle() (start, period int, ok bool) {
	if !t.cycleFound {
		return 0, 0, false
	}
	return t.cycleStart, len(t.gens) - 1 - t.cycleStart, true
}

// Exhausted reports whether Extend can add more generations.
func (t *Timeline) Exhausted() bool {
	return t.cycleFound || len(t.gens) >= t.limit
}

// Generations returns a copy of the computed history.
func (t *Timeline) Generations() []core.Grid {
	return append([]core.Grid(nil), t.gens...)
}
