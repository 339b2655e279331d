package life

import (
	"testing"

	"lifereg/pkg/core"
)

func TestHistoryLength(t *testing.T) {
	h := History(blinker(), DefaultBatch)
	if len(h) != DefaultBatch+1 {
		t.Fatalf("history length = %d, want %d", len(h), DefaultBatch+1)
	}
	if h[0] != blinker() {
		t.Fatal("history must start with the initial grid")
	}
}

func TestExtendContinuesSequence(t *testing.T) {
	g := core.RandomGrid(99, 0.3)
	first := History(g, 100)
	snapshot := append([]core.Grid(nil), first...)

	extended := Extend(first, 100)
	if len(extended) != 201 {
		t.Fatalf("extended length = %d, want 201", len(extended))
	}
	for i := range snapshot {
		if extended[i] != snapshot[i] {
			t.Fatalf("generation %d changed after extension", i)
		}
		if first[i] != snapshot[i] {
			t.Fatalf("input history mutated at %d", i)
		}
	}
	if extended[100] != Step(extended[99]) {
		t.Fatal("generation 100 should be Step(generation 99)")
	}
	if extended[101] != Step(extended[100]) {
		t.Fatal("generation 101 should be Step(generation 100)")
	}

	whole := History(g, 200)
	for i := range whole {
		if whole[i] != extended[i] {
			t.Fatalf("batched history drifts from single pass at %d", i)
		}
	}
}

func TestDetectCycleBlinker(t *testing.T) {
	h := History(blinker(), 2)
	start, ok := DetectCycle(h)
	if !ok || start != 0 {
		t.Fatalf("DetectCycle = (%d,%v), want (0,true)", start, ok)
	}
	if _, ok := DetectCycle(h[:2]); ok {
		t.Fatal("two distinct phases alone should not report a cycle")
	}
}

func TestDetectCycleNone(t *testing.T) {
	if _, ok := DetectCycle(nil); ok {
		t.Fatal("empty history has no cycle")
	}
	if _, ok := DetectCycle([]core.Grid{blinker()}); ok {
		t.Fatal("single generation has no cycle")
	}
	glider := core.GridFromCells(
		core.Cell{Row: 0, Col: 1}, core.Cell{Row: 1, Col: 2},
		core.Cell{Row: 2, Col: 0}, core.Cell{Row: 2, Col: 1}, core.Cell{Row: 2, Col: 2},
	)
	if _, ok := DetectCycle(History(glider, 8)); ok {
		t.Fatal("a glider does not repeat within eight generations")
	}
}
