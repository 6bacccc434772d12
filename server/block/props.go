package block

// Collision classifies how entities interact with a block type.
type Collision byte

const (
	// CollideWalkThrough lets entities pass through the block freely.
	CollideWalkThrough Collision = iota
	// CollideSwim slows entities passing through, as liquids do.
	CollideSwim
	// CollideSolid stops entities.
	CollideSolid
)

// Grid is the surface a handler mutates. It is implemented by *level.Level.
// Handlers receive packed block indices rather than coordinates; Grid exposes
// the conversions a handler needs.
type Grid interface {
	// BlockAt returns the block at a packed index.
	BlockAt(index int32) ID
	// SetBlockAt writes a block at a packed index, with all the usual side
	// effects of a block change (dirty flag, undo record, physics queue).
	SetBlockAt(index int32, id ID)
	// QueuePhysics schedules a physics pass over the packed index.
	QueuePhysics(index int32)
	// Dimensions returns the width, height and length of the grid.
	Dimensions() (w, h, l int)
}

// PlaceHandler runs when a block of its type is placed.
type PlaceHandler func(g Grid, index int32)

// DeleteHandler runs when a block of its type is removed.
type DeleteHandler func(g Grid, index int32)

// PhysicsHandler runs when a queued physics update reaches a block of its
// type.
type PhysicsHandler func(g Grid, index int32)

// Props describes the behaviour of a single block type within one level.
// Levels hold a table of ExtendedCount Props entries, rebuilt wholesale when
// defaults load or a custom block definition is installed.
type Props struct {
	Collision Collision
	// Physics marks the block as participating in the simulation loop. Blocks
	// without physics are skipped when draining the update queue.
	Physics bool
	// TickDelay is the number of simulation ticks between queued physics
	// updates for this block type. Zero means the block reacts on the next
	// sweep.
	TickDelay int

	OnPlace   PlaceHandler
	OnDelete  DeleteHandler
	OnPhysics PhysicsHandler
}

// DefaultProps returns a fresh property table covering the full extended
// identifier space. The engine only wires the collision and physics classes
// of the blocks it references itself; game content installs its own handlers
// on top through UpdateHandler callbacks.
func DefaultProps() []Props {
	props := make([]Props, ExtendedCount)
	for id := range props {
		props[id] = Props{Collision: CollideSolid}
	}
	props[Air] = Props{Collision: CollideWalkThrough}
	for _, liquid := range []ID{Water, StillWater, Lava, StillLava} {
		props[liquid] = Props{Collision: CollideSwim}
	}
	props[Water].Physics = true
	props[Water].TickDelay = 1
	props[Lava].Physics = true
	props[Lava].TickDelay = 4
	props[Sand].Physics = true
	props[Gravel].Physics = true
	props[Sand].OnPhysics = fall
	props[Gravel].OnPhysics = fall
	return props
}

// fall implements the shared falling behaviour of sand-like blocks: the block
// drops one cell whenever the cell below is passable.
func fall(g Grid, index int32) {
	w, _, l := g.Dimensions()
	below := index - int32(w*l)
	if below < 0 {
		return
	}
	if g.BlockAt(below) != Air {
		return
	}
	id := g.BlockAt(index)
	g.SetBlockAt(index, Air)
	g.SetBlockAt(below, id)
	// Keep falling on the next sweep if there is still room.
	g.QueuePhysics(below)
}
