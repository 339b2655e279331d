package life

import (
	"testing"

	"lifereg/pkg/core"
)

func TestBlinkerOscillation(t *testing.T) {
	life := New(5, 5)
	cells := life.Cells()
	for i := range cells {
		cells[i] = 0
	}

	w := life.Size().W
	set := func(x, y int) { life.Cells()[y*w+x] = 1 }
	set(2, 1)
	set(2, 2)
	set(2, 3)

	life.Step()
	cells = life.Cells()

	expects := map[[2]int]bool{
		{1, 2}: true,
		{2, 2}: true,
		{3, 2}: true,
	}

	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			idx := y*w + x
			alive := cells[idx] == 1
			_, shouldBeAlive := expects[[2]int{x, y}]
			if shouldBeAlive != alive {
				t.Fatalf("cell (%d,%d) alive=%v, expected %v", x, y, alive, shouldBeAlive)
			}
		}
	}

	life.Step()
	cells = life.Cells()

	expects = map[[2]int]bool{
		{2, 1}: true,
		{2, 2}: true,
		{2, 3}: true,
	}

	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			idx := y*w + x
			alive := cells[idx] == 1
			_, shouldBeAlive := expects[[2]int{x, y}]
			if shouldBeAlive != alive {
				t.Fatalf("after second step cell (%d,%d) alive=%v, expected %v", x, y, alive, shouldBeAlive)
			}
		}
	}
}

func blinker() core.Grid {
	return core.GridFromCells(core.Cell{Row: 1, Col: 1}, core.Cell{Row: 1, Col: 2}, core.Cell{Row: 1, Col: 3})
}

func TestStepBlinkerPhases(t *testing.T) {
	start := blinker()
	vertical := core.GridFromCells(core.Cell{Row: 0, Col: 2}, core.Cell{Row: 1, Col: 2}, core.Cell{Row: 2, Col: 2})

	next := Step(start)
	if next != vertical {
		t.Fatalf("first step live cells = %v, want %v", next.Live(), vertical.Live())
	}
	if again := Step(next); again != start {
		t.Fatalf("second step live cells = %v, want %v", again.Live(), start.Live())
	}
}

func TestStepWrapsAcrossEdges(t *testing.T) {
	// A blinker straddling the corner only survives if neighbors wrap.
	g := core.GridFromCells(core.Cell{Row: 0, Col: 63}, core.Cell{Row: 0, Col: 0}, core.Cell{Row: 0, Col: 1})
	want := core.GridFromCells(core.Cell{Row: 63, Col: 0}, core.Cell{Row: 0, Col: 0}, core.Cell{Row: 1, Col: 0})
	if got := Step(g); got != want {
		t.Fatalf("wrapped blinker = %v, want %v", got.Live(), want.Live())
	}
}

func TestStepRules(t *testing.T) {
	// Block is a still life.
	block := core.GridFromCells(core.Cell{Row: 10, Col: 10}, core.Cell{Row: 10, Col: 11}, core.Cell{Row: 11, Col: 10}, core.Cell{Row: 11, Col: 11})
	if Step(block) != block {
		t.Fatal("block should be stable")
	}

	// A lone cell dies of underpopulation.
	lone := core.GridFromCells(core.Cell{Row: 5, Col: 5})
	if next := Step(lone); next.Population() != 0 {
		t.Fatal("lone cell should die")
	}

	// A plus sign's center has four neighbors and dies of overpopulation.
	plus := core.GridFromCells(
		core.Cell{Row: 20, Col: 20},
		core.Cell{Row: 19, Col: 20}, core.Cell{Row: 21, Col: 20},
		core.Cell{Row: 20, Col: 19}, core.Cell{Row: 20, Col: 21},
	)
	next := Step(plus)
	if next.Alive(20, 20) {
		t.Fatal("overcrowded center should die")
	}
	if !next.Alive(19, 19) {
		t.Fatal("corner with three neighbors should be born")
	}
}

func TestAdvanceMatchesRepeatedStep(t *testing.T) {
	g := core.RandomGrid(21, 0.35)
	want := g
	for i := 0; i < 7; i++ {
		want = Step(want)
	}
	if got := Advance(g, 7); got != want {
		t.Fatal("Advance(7) should equal seven Steps")
	}
	if Advance(g, 0) != g {
		t.Fatal("Advance(0) should be identity")
	}
}

func TestLoadOnOddSizedBoards(t *testing.T) {
	g := core.GridFromCells(core.Cell{Row: 1, Col: 1}, core.Cell{Row: 63, Col: 63})

	big := New(80, 70)
	big.Load(g)
	cells := big.Cells()
	if cells[1*80+1] != 1 || cells[63*80+63] != 1 {
		t.Fatal("expected grid cells copied into the larger board")
	}
	if got := big.Grid(); got != g {
		t.Fatal("snapshot of the larger board should match the loaded grid")
	}

	small := New(5, 5)
	small.Load(g)
	if small.Cells()[1*5+1] != 1 {
		t.Fatal("expected (1,1) copied into the smaller board")
	}
	want := core.GridFromCells(core.Cell{Row: 1, Col: 1})
	if got := small.Grid(); got != want {
		t.Fatal("snapshot of the smaller board should hold only the overlap")
	}
}
