package level

import (
	"sync/atomic"
	"testing"

	"github.com/opal-mc/opal/server/event"
)

type countingHandler struct {
	NopHandler
	loads  atomic.Int32
	saves  atomic.Int32
	cancel bool
}

func (h *countingHandler) HandlePreLoad(*event.Context[PreLoad]) {
	h.loads.Add(1)
}

func (h *countingHandler) HandlePreSave(ctx *event.Context[*Level]) {
	h.saves.Add(1)
	if h.cancel {
		ctx.Cancel()
	}
}

func TestHooksFanOut(t *testing.T) {
	hub := NewHooks()
	a, b := &countingHandler{}, &countingHandler{}
	hub.Subscribe(a)
	hub.Subscribe(b)

	if hub.preLoad("lobby", "levels/lobby.lvl") {
		t.Fatal("uncancelled pre-load reported a veto")
	}
	if a.loads.Load() != 1 || b.loads.Load() != 1 {
		t.Fatalf("handlers saw %d and %d pre-load events, want 1 each", a.loads.Load(), b.loads.Load())
	}
}

func TestHooksVetoIsSticky(t *testing.T) {
	hub := NewHooks()
	veto := &countingHandler{cancel: true}
	after := &countingHandler{}
	hub.Subscribe(veto)
	hub.Subscribe(after)

	if !hub.preSave(nil) {
		t.Fatal("cancelled pre-save not reported as vetoed")
	}
	// A veto does not short-circuit delivery to later handlers.
	if after.saves.Load() != 1 {
		t.Fatal("handler after the vetoing one was skipped")
	}
}

func TestHooksUnsubscribe(t *testing.T) {
	hub := NewHooks()
	h := &countingHandler{}
	unsubscribe := hub.Subscribe(h)

	hub.preLoad("a", "levels/a.lvl")
	unsubscribe()
	// Unsubscribing twice is harmless.
	unsubscribe()
	hub.preLoad("b", "levels/b.lvl")

	if got := h.loads.Load(); got != 1 {
		t.Fatalf("handler saw %d events after unsubscribe, want 1", got)
	}
}

func TestEventContext(t *testing.T) {
	ctx := event.C(42)
	if ctx.Cancelled() {
		t.Fatal("fresh context is cancelled")
	}
	if ctx.Val() != 42 {
		t.Fatalf("Val() = %d", ctx.Val())
	}
	ctx.Cancel()
	ctx.Cancel()
	if !ctx.Cancelled() {
		t.Fatal("cancel did not stick")
	}
}
