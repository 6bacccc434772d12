package level

import (
	"sync"

	"github.com/google/uuid"
	"github.com/opal-mc/opal/server/internal/nameutil"
)

// Registry tracks the levels currently loaded by the server. Names resolve
// case-insensitively. One level may be designated as the main (fallback)
// level; it cannot be unloaded and actors are relocated to it when their
// level goes away.
type Registry struct {
	mu     sync.RWMutex
	levels map[string]*Level
	main   *Level
}

// NewRegistry returns an empty level registry.
func NewRegistry() *Registry {
	return &Registry{levels: make(map[string]*Level)}
}

// Add registers a loaded level. It reports if the level was newly added; a
// level with the same folded name already registered keeps its slot.
func (r *Registry) Add(l *Level) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.levels[l.key]; ok {
		return false
	}
	r.levels[l.key] = l
	return true
}

// Remove deregisters a level. Removing the main level clears the main
// designation as well.
func (r *Registry) Remove(l *Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.levels[l.key]; ok && cur == l {
		delete(r.levels, l.key)
	}
	if r.main == l {
		r.main = nil
	}
}

// Get finds a loaded level by name, case-insensitively.
func (r *Registry) Get(name string) (*Level, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.levels[nameutil.Fold(name)]
	return l, ok
}

// All returns the loaded levels in unspecified order.
func (r *Registry) All() []*Level {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Level, 0, len(r.levels))
	for _, l := range r.levels {
		out = append(out, l)
	}
	return out
}

// SetMain designates the main/fallback level. The level is registered if it
// was not yet.
func (r *Registry) SetMain(l *Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l != nil {
		r.levels[l.key] = l
	}
	r.main = l
}

// Main returns the designated main level, or nil if none is set.
func (r *Registry) Main() *Level {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.main
}

// IsMain reports if the level passed is the designated main level.
func (r *Registry) IsMain(l *Level) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.main != nil && r.main == l
}

// OnlineList tracks the actors currently connected to the server. The
// lifecycle manager uses it for presence checks and for relocating actors
// when their level unloads.
type OnlineList struct {
	mu     sync.RWMutex
	actors map[uuid.UUID]Actor
}

// NewOnlineList returns an empty online-actor registry.
func NewOnlineList() *OnlineList {
	return &OnlineList{actors: make(map[uuid.UUID]Actor)}
}

// Add registers a connected actor, replacing any previous entry with the
// same UUID.
func (o *OnlineList) Add(a Actor) {
	o.mu.Lock()
	o.actors[a.UUID()] = a
	o.mu.Unlock()
}

// Remove deregisters an actor.
func (o *OnlineList) Remove(a Actor) {
	o.mu.Lock()
	delete(o.actors, a.UUID())
	o.mu.Unlock()
}

// All returns a snapshot of the connected actors.
func (o *OnlineList) All() []Actor {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Actor, 0, len(o.actors))
	for _, a := range o.actors {
		out = append(out, a)
	}
	return out
}

// OnLevel returns a snapshot of the actors currently on the level with the
// folded name passed.
func (o *OnlineList) OnLevel(key string) []Actor {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var out []Actor
	for _, a := range o.actors {
		if a.LevelKey() == key {
			out = append(out, a)
		}
	}
	return out
}

// AnyOn reports if at least one actor is currently on the level with the
// folded name passed.
func (o *OnlineList) AnyOn(key string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, a := range o.actors {
		if a.LevelKey() == key {
			return true
		}
	}
	return false
}
