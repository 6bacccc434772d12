// Package level implements the world persistence and lifecycle engine of the
// server: the in-memory block grid of a level, its mutation under concurrent
// access from actors and the simulation thread, and its crash-safe
// persistence to disk.
package level

import (
	"fmt"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/opal-mc/opal/server/block"
	"github.com/opal-mc/opal/server/internal/nameutil"
	"github.com/opal-mc/opal/server/level/store"
)

// Level is a single world of the server: a dense 3D block grid with a sparse
// custom-block overlay, plus the per-level state that travels with it. All
// methods are safe for simultaneous calls from actor request flows and the
// level's simulation thread. Dimensions are fixed for the lifetime of a
// Level; resizing means constructing a new instance.
type Level struct {
	conf Config

	name string
	// key is the case-folded form of name, used for all registry and on-disk
	// keys.
	key  string
	path string

	width, height, length int
	// chunksX/Y/Z size the custom-block overlay: one entry per 16³ chunk,
	// ceiling-divided per axis.
	chunksX, chunksY, chunksZ int

	// saveMu is the save lock: it guards grid disposal, zone clearing and
	// the critical rename window of the save protocol. These must never
	// interleave.
	saveMu sync.Mutex
	// gridMu guards reads and writes of the block data under concurrent
	// access from actors and the simulation thread.
	gridMu sync.RWMutex
	// auditMu serializes persistence of the audit log.
	auditMu sync.Mutex

	disposed atomic.Bool

	blocks  []byte
	overlay [][]byte

	propsMu sync.RWMutex
	props   []block.Props

	// Spawn is the spawn position of the level. SpawnYaw and SpawnPitch are
	// the spawn orientation in the classic 256-step angle encoding.
	Spawn                mgl64.Vec3
	SpawnYaw, SpawnPitch byte

	// Museum marks a transient instance: fully functional in memory but
	// never persisted, and unloaded without save or notification.
	Museum bool

	VisitAccess *AccessController
	BuildAccess *AccessController

	// changed is the dirty flag: the grid has unsaved mutations.
	changed atomic.Bool
	// changedSinceBackup tracks mutations since the last successful backup.
	changedSinceBackup atomic.Bool

	// physicsMode is the simulation mode from the properties file: 0 is off,
	// higher values enable the simulation thread.
	physicsMode int
	autoUnload  bool
	// extraProps carries properties-file settings the engine does not
	// interpret, preserved across save cycles.
	extraProps map[string]string

	extrasMu sync.Mutex
	extras   map[string]any

	undoMu sync.Mutex
	undo   []UndoPos
	// auditBuf holds encoded audit records not yet flushed to the store.
	auditBuf []byte

	zonesMu    sync.Mutex
	zones      []store.Zone
	portals    []store.Portal
	messages   []store.Message
	bots       []store.Bot
	customDefs []store.BlockDef

	phys physics
}

// Compile-time check to make sure *Level implements block.Grid.
var _ block.Grid = (*Level)(nil)

// Init creates a level of the dimensions passed, optionally seeded with an
// existing block array of exactly w×h×l bytes. Each dimension must be at
// least 1.
func Init(conf Config, name string, w, h, l int, seed []byte) (*Level, error) {
	if w < 1 || h < 1 || l < 1 {
		return nil, fmt.Errorf("level: invalid dimensions %d×%d×%d", w, h, l)
	}
	conf = conf.withDefaults()
	volume := w * h * l
	if seed != nil && len(seed) != volume {
		return nil, fmt.Errorf("level: seed data is %d bytes, want %d", len(seed), volume)
	}

	lv := &Level{
		conf:    conf,
		name:    name,
		key:     nameutil.Fold(name),
		path:    filepath.Join(conf.Dir, name+"."+conf.Format.Ext()),
		width:   w,
		height:  h,
		length:  l,
		chunksX: chunksOf(w),
		chunksY: chunksOf(h),
		chunksZ: chunksOf(l),
		extras:  map[string]any{},
	}
	lv.overlay = make([][]byte, lv.chunksX*lv.chunksY*lv.chunksZ)
	if seed != nil {
		lv.blocks = seed
	} else {
		lv.blocks = make([]byte, volume)
	}
	lv.props = block.DefaultProps()
	lv.VisitAccess = NewAccessController(lv, AccessVisit)
	lv.BuildAccess = NewAccessController(lv, AccessBuild)
	lv.Spawn = mgl64.Vec3{float64(w) / 2, float64(h) * 0.75, float64(l) / 2}
	lv.initPhysics()
	return lv, nil
}

func chunksOf(dim int) int {
	return (dim + 15) / 16
}

// Name returns the display name of the level.
func (l *Level) Name() string { return l.name }

// Key returns the canonical case-folded name used as the registry and
// on-disk key of the level.
func (l *Level) Key() string { return l.key }

// Path returns the location of the level's file on disk.
func (l *Level) Path() string { return l.path }

// Dimensions returns the width, height and length of the grid.
func (l *Level) Dimensions() (w, h, ln int) {
	return l.width, l.height, l.length
}

// Volume returns the number of cells in the grid.
func (l *Level) Volume() int {
	return l.width * l.height * l.length
}

// ChunkCount returns the size of the custom-block overlay.
func (l *Level) ChunkCount() int {
	return l.chunksX * l.chunksY * l.chunksZ
}

// Dirty reports if the grid has unsaved mutations.
func (l *Level) Dirty() bool { return l.changed.Load() }

// MarkDirty flags the grid as having unsaved mutations.
func (l *Level) MarkDirty() {
	l.changed.Store(true)
	l.changedSinceBackup.Store(true)
}

// Disposed reports if the level's grid has been released. A disposed level
// rejects all further grid access.
func (l *Level) Disposed() bool { return l.disposed.Load() }

// InBounds reports if the coordinates fall inside the grid.
func (l *Level) InBounds(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < l.width && y < l.height && z < l.length
}

// Index packs coordinates into the flat grid index. Cells advance x-first,
// then z, then y, so vertically adjacent cells differ by width×length.
func (l *Level) Index(x, y, z int) int32 {
	return int32(x + l.width*(z+l.length*y))
}

// Pos unpacks a flat grid index into coordinates.
func (l *Level) Pos(index int32) (x, y, z int) {
	i := int(index)
	x = i % l.width
	i /= l.width
	z = i % l.length
	y = i / l.length
	return x, y, z
}

// chunkIndex returns the overlay slot of the chunk containing the block
// coordinates passed, and the cell offset within that chunk.
func (l *Level) chunkIndex(x, y, z int) (chunk int, cell int) {
	chunk = (x >> 4) + l.chunksX*((z>>4)+l.chunksZ*(y>>4))
	cell = (x & 15) | (z&15)<<4 | (y&15)<<8
	return chunk, cell
}

// Block returns the block at the coordinates passed, resolving the
// custom-block overlay. Out-of-bounds or disposed access returns air.
func (l *Level) Block(x, y, z int) block.ID {
	if !l.InBounds(x, y, z) || l.Disposed() {
		return block.Air
	}
	l.gridMu.RLock()
	defer l.gridMu.RUnlock()
	if l.blocks == nil {
		return block.Air
	}
	raw := l.blocks[l.Index(x, y, z)]
	if block.ID(raw) != block.Custom {
		return block.ID(raw)
	}
	chunk, cell := l.chunkIndex(x, y, z)
	c := l.overlay[chunk]
	if c == nil {
		return block.Custom
	}
	return block.FromOverlay(c[cell])
}

// SetBlock writes a block at the coordinates passed, recording the change in
// the undo and audit buffers, marking the level dirty and queueing a physics
// update over the cell and its neighbours. Out-of-bounds or disposed calls
// are no-ops.
func (l *Level) SetBlock(x, y, z int, id block.ID) {
	if !l.InBounds(x, y, z) || l.Disposed() {
		return
	}
	old := l.Block(x, y, z)
	if old == id {
		return
	}

	l.gridMu.Lock()
	if l.blocks == nil {
		l.gridMu.Unlock()
		return
	}
	idx := l.Index(x, y, z)
	l.blocks[idx] = id.Raw()
	if id.Extended() {
		chunk, cell := l.chunkIndex(x, y, z)
		c := l.overlay[chunk]
		if c == nil {
			c = make([]byte, 16*16*16)
			l.overlay[chunk] = c
		}
		c[cell] = id.Overlay()
	}
	l.gridMu.Unlock()

	l.MarkDirty()
	l.recordChange(idx, old, id)
	l.dispatchDelete(old, idx)
	l.dispatchPlace(id, idx)
	l.queueNeighbourhood(x, y, z)
}

// BlockAt returns the block at a packed grid index. It implements
// block.Grid for handler dispatch.
func (l *Level) BlockAt(index int32) block.ID {
	x, y, z := l.Pos(index)
	return l.Block(x, y, z)
}

// SetBlockAt writes a block at a packed grid index, with all side effects of
// SetBlock.
func (l *Level) SetBlockAt(index int32, id block.ID) {
	x, y, z := l.Pos(index)
	l.SetBlock(x, y, z, id)
}

// Props returns the property entry of a block ID. IDs outside the table
// resolve to the air entry.
func (l *Level) Props(id block.ID) block.Props {
	l.propsMu.RLock()
	defer l.propsMu.RUnlock()
	if int(id) >= len(l.props) {
		return l.props[block.Air]
	}
	return l.props[id]
}

// RebuildBlockHandlers rebuilds the whole per-block property table from the
// defaults and the level's installed block definitions. It runs on load and
// whenever a definition is installed or removed.
func (l *Level) RebuildBlockHandlers() {
	l.propsMu.Lock()
	l.props = block.DefaultProps()
	l.applyBlockDefsLocked()
	l.propsMu.Unlock()
}

// UpdateBlockHandlers rebuilds the property entry of a single block ID and
// fires the block-handlers-updated hook.
func (l *Level) UpdateBlockHandlers(id block.ID) {
	l.RebuildBlockHandlers()
	l.conf.Hooks.blockHandlersUpdated(l, id)
}

// applyBlockDefsLocked overlays the level's custom block definitions onto the
// default property table. propsMu must be held; the definitions are
// snapshotted under their own lock, as InstallBlockDef mutates them
// concurrently.
func (l *Level) applyBlockDefsLocked() {
	l.zonesMu.Lock()
	defs := make([]store.BlockDef, len(l.customDefs))
	copy(defs, l.customDefs)
	l.zonesMu.Unlock()
	for _, def := range defs {
		if int(def.ID) >= len(l.props) {
			continue
		}
		p := &l.props[def.ID]
		p.Collision = block.Collision(def.Collision)
		p.Physics = def.Physics
	}
}

// Extra returns a value from the level's extras cache.
func (l *Level) Extra(key string) (any, bool) {
	l.extrasMu.Lock()
	defer l.extrasMu.Unlock()
	v, ok := l.extras[key]
	return v, ok
}

// SetExtra stores a value in the level's extras cache. The cache is cleared
// on dispose and never persisted.
func (l *Level) SetExtra(key string, v any) {
	l.extrasMu.Lock()
	defer l.extrasMu.Unlock()
	if l.extras == nil {
		return
	}
	l.extras[key] = v
}

// Zones returns a copy of the level's zone registrations.
func (l *Level) Zones() []store.Zone {
	l.zonesMu.Lock()
	defer l.zonesMu.Unlock()
	out := make([]store.Zone, len(l.zones))
	copy(out, l.zones)
	return out
}

// SetZones replaces the level's zone registrations and persists them to the
// auxiliary store. Persistence is best effort: a store failure is logged and
// the in-memory registrations stand.
func (l *Level) SetZones(zones []store.Zone) {
	l.zonesMu.Lock()
	l.zones = zones
	l.zonesMu.Unlock()
	l.persistAux("zones", func(db *store.DB) error { return db.SaveZones(l.key, zones) })
}

// Portals returns a copy of the level's portals.
func (l *Level) Portals() []store.Portal {
	l.zonesMu.Lock()
	defer l.zonesMu.Unlock()
	out := make([]store.Portal, len(l.portals))
	copy(out, l.portals)
	return out
}

// SetPortals replaces the level's portals and persists them.
func (l *Level) SetPortals(portals []store.Portal) {
	l.zonesMu.Lock()
	l.portals = portals
	l.zonesMu.Unlock()
	l.persistAux("portals", func(db *store.DB) error { return db.SavePortals(l.key, portals) })
}

// Messages returns a copy of the level's message blocks.
func (l *Level) Messages() []store.Message {
	l.zonesMu.Lock()
	defer l.zonesMu.Unlock()
	out := make([]store.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// SetMessages replaces the level's message blocks and persists them.
func (l *Level) SetMessages(messages []store.Message) {
	l.zonesMu.Lock()
	l.messages = messages
	l.zonesMu.Unlock()
	l.persistAux("messages", func(db *store.DB) error { return db.SaveMessages(l.key, messages) })
}

// InstallBlockDef installs or replaces a custom block definition, persists
// the definition set and rebuilds the property table, firing the
// block-handlers-updated hook.
func (l *Level) InstallBlockDef(def store.BlockDef) {
	l.zonesMu.Lock()
	replaced := false
	for i, d := range l.customDefs {
		if d.ID == def.ID {
			l.customDefs[i] = def
			replaced = true
			break
		}
	}
	if !replaced {
		l.customDefs = append(l.customDefs, def)
	}
	defs := make([]store.BlockDef, len(l.customDefs))
	copy(defs, l.customDefs)
	l.zonesMu.Unlock()

	l.persistAux("block definitions", func(db *store.DB) error { return db.SaveBlockDefs(l.key, defs) })
	l.UpdateBlockHandlers(block.ID(def.ID))
}

// persistAux writes one auxiliary collection to the store, logging failures
// instead of surfacing them.
func (l *Level) persistAux(kind string, save func(db *store.DB) error) {
	if l.conf.Store == nil {
		return
	}
	if err := save(l.conf.Store); err != nil {
		l.conf.Log.Warn("save level "+kind+": "+err.Error(), "level", l.name)
	}
}

// Dispose releases the level's in-memory resources: the extras cache, the
// pending physics work, the undo and audit buffers, and finally, under the
// save lock, the grid itself and the zone registrations. Dispose is
// idempotent; after it returns the grid is inaccessible for good.
func (l *Level) Dispose() {
	l.extrasMu.Lock()
	l.extras = nil
	l.extrasMu.Unlock()

	l.phys.clearPending()

	l.undoMu.Lock()
	l.undo = nil
	l.undoMu.Unlock()

	l.auditMu.Lock()
	l.auditBuf = nil
	l.auditMu.Unlock()

	l.saveMu.Lock()
	defer l.saveMu.Unlock()
	l.disposed.Store(true)
	l.gridMu.Lock()
	l.blocks = nil
	l.overlay = nil
	l.gridMu.Unlock()
	l.zonesMu.Lock()
	l.zones = nil
	l.zonesMu.Unlock()
}

// reclaimMemory asks the runtime to hand freed grid memory back to the OS.
// Best effort only.
func (l *Level) reclaimMemory() {
	debug.FreeOSMemory()
}
