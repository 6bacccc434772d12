// Package event exposes a generic cancellable context used at the veto points
// of level lifecycle operations.
package event

// Context represents the context of an event. Handlers may cancel the event
// before the action it describes takes effect. A Context carries a value of
// type T, typically the subject of the event.
type Context[T any] struct {
	val       T
	cancelled bool
}

// C returns a new event Context wrapping the value passed.
func C[T any](v T) *Context[T] {
	return &Context[T]{val: v}
}

// Val returns the subject value the Context was created with.
func (ctx *Context[T]) Val() T {
	return ctx.val
}

// Cancel cancels the event. Cancellation is sticky: once cancelled, a Context
// cannot be un-cancelled by a later handler.
func (ctx *Context[T]) Cancel() {
	ctx.cancelled = true
}

// Cancelled reports if the event has been cancelled by any handler.
func (ctx *Context[T]) Cancelled() bool {
	return ctx.cancelled
}
