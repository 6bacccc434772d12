package level

import (
	"testing"

	"github.com/opal-mc/opal/server/block"
)

func TestInitDimensions(t *testing.T) {
	conf := newTestConfig(t)
	for _, tc := range []struct {
		w, h, l int
		chunks  int
	}{
		{16, 16, 16, 1},
		{32, 16, 16, 2},
		{17, 16, 16, 2},
		{1, 1, 1, 1},
		{64, 32, 48, 4 * 2 * 3},
	} {
		l, err := Init(conf, "dims", tc.w, tc.h, tc.l, nil)
		if err != nil {
			t.Fatalf("init %d×%d×%d: %v", tc.w, tc.h, tc.l, err)
		}
		if got := l.Volume(); got != tc.w*tc.h*tc.l {
			t.Fatalf("volume of %d×%d×%d = %d, want %d", tc.w, tc.h, tc.l, got, tc.w*tc.h*tc.l)
		}
		if got := l.ChunkCount(); got != tc.chunks {
			t.Fatalf("chunk count of %d×%d×%d = %d, want %d", tc.w, tc.h, tc.l, got, tc.chunks)
		}
		if got := l.Block(0, 0, 0); got != block.Air {
			t.Fatalf("fresh level holds %d at origin, want air", got)
		}
	}
}

func TestInitRejectsInvalidArguments(t *testing.T) {
	conf := newTestConfig(t)
	for _, tc := range [][3]int{{0, 16, 16}, {16, 0, 16}, {16, 16, 0}, {-1, 16, 16}} {
		if _, err := Init(conf, "bad", tc[0], tc[1], tc[2], nil); err == nil {
			t.Fatalf("init %v: expected error", tc)
		}
	}
	if _, err := Init(conf, "bad", 4, 4, 4, make([]byte, 10)); err == nil {
		t.Fatal("init with mis-sized seed: expected error")
	}
}

func TestIndexPosRoundTrip(t *testing.T) {
	conf := newTestConfig(t)
	l := newTestLevel(t, conf, "index", 7, 5, 9)
	for y := 0; y < 5; y++ {
		for z := 0; z < 9; z++ {
			for x := 0; x < 7; x++ {
				idx := l.Index(x, y, z)
				gx, gy, gz := l.Pos(idx)
				if gx != x || gy != y || gz != z {
					t.Fatalf("Pos(Index(%d,%d,%d)) = (%d,%d,%d)", x, y, z, gx, gy, gz)
				}
			}
		}
	}
	// Vertically adjacent cells differ by one layer.
	if l.Index(0, 1, 0)-l.Index(0, 0, 0) != 7*9 {
		t.Fatal("vertical stride does not equal width×length")
	}
}

func TestSetBlockRoundTrip(t *testing.T) {
	conf := newTestConfig(t)
	l := newTestLevel(t, conf, "blocks", 20, 20, 20)

	l.SetBlock(3, 4, 5, block.Stone)
	if got := l.Block(3, 4, 5); got != block.Stone {
		t.Fatalf("Block(3,4,5) = %d, want stone", got)
	}

	// An extended block stores the sentinel in the dense grid and the real ID
	// in the overlay.
	custom := block.ID(300)
	l.SetBlock(17, 2, 1, custom)
	if got := l.Block(17, 2, 1); got != custom {
		t.Fatalf("Block(17,2,1) = %d, want %d", got, custom)
	}
	if raw := l.blocks[l.Index(17, 2, 1)]; block.ID(raw) != block.Custom {
		t.Fatalf("dense grid holds %d for extended block, want the sentinel", raw)
	}
	if !l.Dirty() {
		t.Fatal("level not marked dirty after mutation")
	}
}

func TestSetBlockIgnoresOutOfBounds(t *testing.T) {
	conf := newTestConfig(t)
	l := newTestLevel(t, conf, "bounds", 4, 4, 4)

	l.SetBlock(-1, 0, 0, block.Stone)
	l.SetBlock(4, 0, 0, block.Stone)
	l.SetBlock(0, 0, 17, block.Stone)
	if l.Dirty() {
		t.Fatal("out-of-bounds writes marked the level dirty")
	}
	if got := l.Block(99, 99, 99); got != block.Air {
		t.Fatalf("out-of-bounds read = %d, want air", got)
	}
}

func TestSetBlockSameValueIsNoop(t *testing.T) {
	conf := newTestConfig(t)
	l := newTestLevel(t, conf, "noop", 4, 4, 4)

	l.SetBlock(1, 1, 1, block.Stone)
	before := len(l.UndoBuffer())
	l.SetBlock(1, 1, 1, block.Stone)
	if got := len(l.UndoBuffer()); got != before {
		t.Fatalf("writing the standing block grew the undo buffer to %d", got)
	}
}

func TestDispose(t *testing.T) {
	conf := newTestConfig(t)
	l := newTestLevel(t, conf, "disposed", 8, 8, 8)
	l.SetBlock(1, 1, 1, block.Stone)
	l.SetExtra("k", 1)

	l.Dispose()
	if !l.Disposed() {
		t.Fatal("Disposed() = false after Dispose")
	}
	if got := l.Block(1, 1, 1); got != block.Air {
		t.Fatalf("read after dispose = %d, want air", got)
	}
	l.SetBlock(2, 2, 2, block.Stone)
	if len(l.UndoBuffer()) != 0 {
		t.Fatal("write after dispose recorded a change")
	}
	l.SetExtra("k2", 2)
	if _, ok := l.Extra("k2"); ok {
		t.Fatal("extras accepted a value after dispose")
	}
	// Idempotent.
	l.Dispose()
}

func TestPropsOutsideTableResolveToAir(t *testing.T) {
	conf := newTestConfig(t)
	l := newTestLevel(t, conf, "props", 4, 4, 4)
	if got := l.Props(block.ID(5000)).Collision; got != block.CollideWalkThrough {
		t.Fatalf("out-of-table props collide as %d, want walk-through", got)
	}
	if got := l.Props(block.Stone).Collision; got != block.CollideSolid {
		t.Fatalf("stone collides as %d, want solid", got)
	}
}

func TestExtrasDoNotSurviveDispose(t *testing.T) {
	conf := newTestConfig(t)
	l := newTestLevel(t, conf, "extras", 4, 4, 4)
	l.SetExtra("visits", 3)
	if v, ok := l.Extra("visits"); !ok || v.(int) != 3 {
		t.Fatalf("Extra(visits) = %v, %v", v, ok)
	}
	l.Dispose()
	if _, ok := l.Extra("visits"); ok {
		t.Fatal("extras cache survived dispose")
	}
}
