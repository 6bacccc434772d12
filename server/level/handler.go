package level

import (
	"sync"
	"sync/atomic"

	"github.com/opal-mc/opal/server/block"
	"github.com/opal-mc/opal/server/event"
)

// PreLoad describes a level about to be loaded. Handlers receive it before
// any file is touched and may cancel the load.
type PreLoad struct {
	Name, Path string
}

// Handler receives lifecycle events of levels. The pre-hooks are synchronous
// veto points: cancelling the event Context stops the operation before its
// side effects begin. Handlers are invoked in registration order; the
// cancellation outcome is the OR of all handlers' vetoes.
type Handler interface {
	// HandlePreLoad is called before any part of a level is read from disk.
	HandlePreLoad(ctx *event.Context[PreLoad])
	// HandlePostLoad is called after a level and all its auxiliary data
	// loaded successfully.
	HandlePostLoad(l *Level)
	// HandlePreSave is called before a save writes anything.
	HandlePreSave(ctx *event.Context[*Level])
	// HandlePreUnload is called before an unload relocates actors or saves.
	HandlePreUnload(ctx *event.Context[*Level])
	// HandleBlockHandlersUpdated is called when the per-block property table
	// of a level was rebuilt for the block ID passed.
	HandleBlockHandlersUpdated(l *Level, id block.ID)
}

// NopHandler implements Handler with no-op methods. Embed it to handle only
// the events of interest.
type NopHandler struct{}

// Compile-time check to make sure NopHandler implements Handler.
var _ Handler = NopHandler{}

func (NopHandler) HandlePreLoad(*event.Context[PreLoad]) {}
func (NopHandler) HandlePostLoad(*Level) {}
func (NopHandler) HandlePreSave(*event.Context[*Level]) {}
func (NopHandler) HandlePreUnload(*event.Context[*Level]) {}
func (NopHandler) HandleBlockHandlersUpdated(*Level, block.ID) {}

type hookRegistration struct {
	handler Handler
	id      uint64
}

// Hooks is the multi-subscriber hub for lifecycle handlers. Subscribing and
// unsubscribing are cheap and safe at any time; dispatch reads an immutable
// snapshot so firing a hook never blocks a concurrent (un)subscribe.
type Hooks struct {
	mu    sync.Mutex
	regs  []hookRegistration
	next  uint64
	chain atomic.Value // []hookRegistration
}

// NewHooks returns an empty hook hub.
func NewHooks() *Hooks {
	h := &Hooks{}
	h.chain.Store([]hookRegistration{})
	return h
}

// Subscribe registers a handler and returns a function that removes it
// again. Handlers fire in registration order.
func (h *Hooks) Subscribe(handler Handler) (unsubscribe func()) {
	if handler == nil {
		return func() {}
	}
	h.mu.Lock()
	id := h.next
	h.next++
	h.regs = append(h.regs, hookRegistration{handler: handler, id: id})
	h.chain.Store(h.snapshotLocked())
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			regs := h.regs[:0]
			for _, reg := range h.regs {
				if reg.id == id {
					continue
				}
				regs = append(regs, reg)
			}
			h.regs = regs
			h.chain.Store(h.snapshotLocked())
		})
	}
}

func (h *Hooks) snapshotLocked() []hookRegistration {
	out := make([]hookRegistration, len(h.regs))
	copy(out, h.regs)
	return out
}

func (h *Hooks) handlers() []hookRegistration {
	return h.chain.Load().([]hookRegistration)
}

// preLoad fires the pre-load hook and reports if any handler vetoed.
func (h *Hooks) preLoad(name, path string) bool {
	ctx := event.C(PreLoad{Name: name, Path: path})
	for _, reg := range h.handlers() {
		reg.handler.HandlePreLoad(ctx)
	}
	return ctx.Cancelled()
}

func (h *Hooks) postLoad(l *Level) {
	for _, reg := range h.handlers() {
		reg.handler.HandlePostLoad(l)
	}
}

// preSave fires the pre-save hook and reports if any handler vetoed.
func (h *Hooks) preSave(l *Level) bool {
	ctx := event.C(l)
	for _, reg := range h.handlers() {
		reg.handler.HandlePreSave(ctx)
	}
	return ctx.Cancelled()
}

// preUnload fires the pre-unload hook and reports if any handler vetoed.
func (h *Hooks) preUnload(l *Level) bool {
	ctx := event.C(l)
	for _, reg := range h.handlers() {
		reg.handler.HandlePreUnload(ctx)
	}
	return ctx.Cancelled()
}

func (h *Hooks) blockHandlersUpdated(l *Level, id block.ID) {
	for _, reg := range h.handlers() {
		reg.handler.HandleBlockHandlersUpdated(l, id)
	}
}
