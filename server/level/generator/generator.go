// Package generator produces the initial block data of newly created levels.
// Generators are registered by name so server configuration and commands can
// refer to them.
package generator

import (
	"fmt"
	"sync"

	"github.com/opal-mc/opal/server/internal/nameutil"
)

// Generator fills the block array of a fresh level. The returned slice must
// hold exactly w×h×l bytes, laid out x-first, then z, then y, and contain
// only base-palette block IDs.
type Generator interface {
	// Name returns the name the generator is registered under.
	Name() string
	// Generate returns the block data of a new level of the dimensions
	// passed.
	Generate(w, h, l int) []byte
}

var (
	mu         sync.Mutex
	generators = map[string]Generator{}
	order      []Generator
)

// Register makes a generator available by name. It panics when the name is
// already taken.
func Register(g Generator) {
	key := nameutil.Fold(g.Name())
	mu.Lock()
	defer mu.Unlock()
	if _, ok := generators[key]; ok {
		panic("generator: duplicate registration of " + g.Name())
	}
	generators[key] = g
	order = append(order, g)
}

// ByName finds a registered generator, case-insensitively.
func ByName(name string) (Generator, error) {
	mu.Lock()
	defer mu.Unlock()
	g, ok := generators[nameutil.Fold(name)]
	if !ok {
		return nil, fmt.Errorf("generator: no generator named %q", name)
	}
	return g, nil
}

// Default returns the first registered generator. It panics when none is
// registered, which cannot happen as long as this package's own generators
// exist.
func Default() Generator {
	mu.Lock()
	defer mu.Unlock()
	if len(order) == 0 {
		panic("generator: no generator registered")
	}
	return order[0]
}
