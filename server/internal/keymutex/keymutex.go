// Package keymutex provides a registry of mutexes keyed by string, used to
// serialize operations that must not run concurrently for the same logical
// name, such as loading the auxiliary stores of a named level.
package keymutex

import (
	"sync"

	"github.com/segmentio/fasthash/fnv1a"
)

const shards = 32

// Registry hands out mutexes keyed by string. Keys with the same value always
// map to the same mutex; the registry never frees a mutex once created, so it
// should only be used with a bounded key space such as level names.
type Registry struct {
	mu    [shards]sync.Mutex
	locks [shards]map[string]*sync.Mutex
}

// NewRegistry returns an empty keyed-mutex registry ready for use.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.locks {
		r.locks[i] = make(map[string]*sync.Mutex)
	}
	return r
}

// Get returns the mutex registered under the key passed, creating it if it
// does not yet exist.
func (r *Registry) Get(key string) *sync.Mutex {
	shard := fnv1a.HashString64(key) % shards
	r.mu[shard].Lock()
	defer r.mu[shard].Unlock()

	if m, ok := r.locks[shard][key]; ok {
		return m
	}
	m := &sync.Mutex{}
	r.locks[shard][key] = m
	return m
}
