package block

import "testing"

type fakeGrid struct {
	w, h, l int
	cells   map[int32]ID
	queued  []int32
}

func newFakeGrid(w, h, l int) *fakeGrid {
	return &fakeGrid{w: w, h: h, l: l, cells: map[int32]ID{}}
}

func (g *fakeGrid) BlockAt(index int32) ID       { return g.cells[index] }
func (g *fakeGrid) SetBlockAt(index int32, b ID) { g.cells[index] = b }
func (g *fakeGrid) QueuePhysics(index int32)     { g.queued = append(g.queued, index) }
func (g *fakeGrid) Dimensions() (int, int, int)  { return g.w, g.h, g.l }

func TestDefaultPropsTable(t *testing.T) {
	props := DefaultProps()
	if len(props) != ExtendedCount {
		t.Fatalf("expected %d props entries, got %d", ExtendedCount, len(props))
	}
	if props[Air].Collision != CollideWalkThrough {
		t.Fatalf("air must be walk-through")
	}
	if props[Water].Collision != CollideSwim || props[Lava].Collision != CollideSwim {
		t.Fatalf("liquids must use the swim collision class")
	}
	if props[Stone].Collision != CollideSolid {
		t.Fatalf("stone must be solid")
	}
	if !props[Sand].Physics || props[Sand].OnPhysics == nil {
		t.Fatalf("sand must carry a physics handler")
	}
}

func TestFallMovesBlockDown(t *testing.T) {
	g := newFakeGrid(4, 4, 4)
	// Column layout stacks y planes of w*l cells; one cell above another
	// differs by w*l in packed index.
	plane := int32(4 * 4)
	top := 2 * plane
	g.SetBlockAt(top, Sand)

	fall(g, top)

	if got := g.BlockAt(top); got != Air {
		t.Fatalf("expected source cell to clear, got %d", got)
	}
	if got := g.BlockAt(top - plane); got != Sand {
		t.Fatalf("expected sand one cell down, got %d", got)
	}
	if len(g.queued) != 1 || g.queued[0] != top-plane {
		t.Fatalf("expected a follow-up physics update at the new cell, got %v", g.queued)
	}
}

func TestFallStopsOnSupport(t *testing.T) {
	g := newFakeGrid(4, 4, 4)
	plane := int32(4 * 4)
	g.SetBlockAt(plane, Gravel)
	g.SetBlockAt(0, Stone)

	fall(g, plane)

	if got := g.BlockAt(plane); got != Gravel {
		t.Fatalf("supported gravel must not move, got %d", got)
	}
	if len(g.queued) != 0 {
		t.Fatalf("no follow-up update expected, got %v", g.queued)
	}
}

func TestIDRawOverlayRoundTrip(t *testing.T) {
	for _, id := range []ID{Air, Stone, Custom - 1, Count, Count + 17, ExtendedCount - 1} {
		if id.Extended() {
			if id.Raw() != byte(Custom) {
				t.Fatalf("extended ID %d must store the custom sentinel", id)
			}
			if got := FromOverlay(id.Overlay()); got != id {
				t.Fatalf("overlay round trip of %d returned %d", id, got)
			}
		} else if ID(id.Raw()) != id {
			t.Fatalf("base ID %d must store itself, stored %d", id, id.Raw())
		}
	}
}
