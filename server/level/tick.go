package level

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/brentp/intintmap"
	"github.com/opal-mc/opal/server/block"
)

// occupancySet is a membership set over packed grid indices, used to dedupe
// simulation work: a cell enters the physics queue at most once per sweep.
type occupancySet struct {
	m    *intintmap.Map
	size int
}

func newOccupancySet() *occupancySet {
	return &occupancySet{m: intintmap.New(1024, 0.6)}
}

// add inserts an index and reports if it was newly added.
func (s *occupancySet) add(index int32) bool {
	if _, ok := s.m.Get(int64(index)); ok {
		return false
	}
	s.m.Put(int64(index), 1)
	s.size++
	return true
}

// clear drops all members.
func (s *occupancySet) clear() {
	if s.size == 0 {
		return
	}
	s.m = intintmap.New(1024, 0.6)
	s.size = 0
}

func (s *occupancySet) len() int { return s.size }

// physicsUpdate is one queued simulation task: a cell index and the number
// of sweeps to wait before the cell's handler runs.
type physicsUpdate struct {
	index int32
	wait  int
}

// physics bundles the per-level simulation state: the pending queue with its
// occupancy set and the background thread coordination channels.
type physics struct {
	mu      sync.Mutex
	queue   []physicsUpdate
	pending *occupancySet

	wake    chan struct{}
	closing chan struct{}
	done    chan struct{}

	running  atomic.Bool
	stopOnce sync.Once

	// counter counts handler dispatches since the level loaded. Teardown
	// resets it to zero.
	counter atomic.Int64
}

// clearPending drops all queued block updates and the occupancy set.
func (p *physics) clearPending() {
	p.mu.Lock()
	p.queue = nil
	if p.pending != nil {
		p.pending.clear()
	}
	p.mu.Unlock()
}

func (l *Level) initPhysics() {
	l.phys.pending = newOccupancySet()
	l.phys.wake = make(chan struct{}, 1)
	l.phys.closing = make(chan struct{})
	l.phys.done = make(chan struct{})
	l.physicsMode = 1
}

// PhysicsMode returns the simulation mode of the level: 0 is off, higher
// values run the simulation thread.
func (l *Level) PhysicsMode() int { return l.physicsMode }

// SetPhysicsMode updates the simulation mode. It only takes effect for the
// simulation thread on the next StartPhysics.
func (l *Level) SetPhysicsMode(mode int) { l.physicsMode = mode }

// PhysicsCount returns the number of physics handler dispatches since load,
// for status tooling.
func (l *Level) PhysicsCount() int64 { return l.phys.counter.Load() }

// QueuePhysics schedules a simulation pass over the packed index, deduped by
// the occupancy set. The update waits the block type's tick delay before its
// handler runs.
func (l *Level) QueuePhysics(index int32) {
	if l.Disposed() {
		return
	}
	props := l.Props(l.BlockAt(index))
	l.phys.mu.Lock()
	if l.phys.pending.add(index) {
		l.phys.queue = append(l.phys.queue, physicsUpdate{index: index, wait: props.TickDelay})
	}
	l.phys.mu.Unlock()
}

// queueNeighbourhood queues the cell itself and its six direct neighbours,
// which is what a block change disturbs.
func (l *Level) queueNeighbourhood(x, y, z int) {
	for _, d := range [...][3]int{{0, 0, 0}, {-1, 0, 0}, {1, 0, 0}, {0, -1, 0}, {0, 1, 0}, {0, 0, -1}, {0, 0, 1}} {
		nx, ny, nz := x+d[0], y+d[1], z+d[2]
		if l.InBounds(nx, ny, nz) {
			l.QueuePhysics(l.Index(nx, ny, nz))
		}
	}
}

// dispatchPlace runs the place handler of a block type, if any.
func (l *Level) dispatchPlace(id block.ID, index int32) {
	if h := l.Props(id).OnPlace; h != nil {
		h(l, index)
	}
}

// dispatchDelete runs the delete handler of the block type that was removed.
func (l *Level) dispatchDelete(id block.ID, index int32) {
	if h := l.Props(id).OnDelete; h != nil {
		h(l, index)
	}
}

// StartPhysics starts the level's simulation thread if the simulation mode
// enables it and it is not already running.
func (l *Level) StartPhysics() {
	if l.physicsMode == 0 || l.Disposed() {
		return
	}
	if !l.phys.running.CompareAndSwap(false, true) {
		return
	}
	go l.physicsLoop()
}

// physicsLoop drives simulation sweeps until the level closes. The sleep
// between sweeps is interruptible through the wake channel so shutdown and
// on-demand sweeps do not wait out the interval.
func (l *Level) physicsLoop() {
	tc := time.NewTicker(l.conf.PhysicsInterval)
	defer tc.Stop()
	defer close(l.phys.done)
	for {
		select {
		case <-tc.C:
			l.physicsTick()
		case <-l.phys.wake:
			l.physicsTick()
		case <-l.phys.closing:
			return
		}
	}
}

// WakePhysics triggers a simulation sweep without waiting for the interval.
func (l *Level) WakePhysics() {
	select {
	case l.phys.wake <- struct{}{}:
	default:
	}
}

// physicsTick drains the queued updates and dispatches the physics handlers
// of due cells. Cells still waiting out their tick delay are re-queued.
func (l *Level) physicsTick() {
	l.phys.mu.Lock()
	batch := l.phys.queue
	l.phys.queue = nil
	l.phys.pending.clear()
	l.phys.mu.Unlock()

	for _, u := range batch {
		if l.Disposed() {
			return
		}
		if u.wait > 0 {
			l.phys.mu.Lock()
			if l.phys.pending.add(u.index) {
				l.phys.queue = append(l.phys.queue, physicsUpdate{index: u.index, wait: u.wait - 1})
			}
			l.phys.mu.Unlock()
			continue
		}
		props := l.Props(l.BlockAt(u.index))
		if !props.Physics || props.OnPhysics == nil {
			continue
		}
		props.OnPhysics(l, u.index)
		l.phys.counter.Add(1)
	}
}

// stopPhysics interrupts the simulation thread's sleep and waits for it to
// stop, bounded by a one second timeout. Failure to join in time is
// swallowed: teardown proceeds regardless.
func (l *Level) stopPhysics() {
	if !l.phys.running.Load() {
		return
	}
	l.phys.stopOnce.Do(func() { close(l.phys.closing) })
	select {
	case <-l.phys.done:
	case <-time.After(time.Second):
		l.conf.Log.Debug("level simulation thread did not stop in time", "level", l.name)
	}
}

// Cleanup performs the level's thread teardown and resource release: the
// simulation work counter is reset, the simulation thread is joined with a
// bounded wait, and the grid is disposed.
func (l *Level) Cleanup() {
	l.phys.counter.Store(0)
	l.stopPhysics()
	l.Dispose()
	l.reclaimMemory()
}
