// Package block holds the block identifier space of a level and the per-block
// property table used to dispatch behaviour handlers.
package block

// ID identifies a block type. IDs 0-255 form the base palette and are stored
// directly in a level's grid. IDs 256-511 are custom blocks, stored in the
// grid as the Custom sentinel with the remainder kept in the per-chunk
// overlay.
type ID uint16

const (
	// Count is the size of the base palette.
	Count = 256
	// ExtendedCount is the size of the full identifier space including custom
	// blocks. Block IDs must stay below 1024 so that their two high bits fit
	// the packed undo record format.
	ExtendedCount = 512
)

// Base palette blocks referenced by the engine itself. The full palette is
// defined by the game content, not here.
const (
	Air         ID = 0
	Stone       ID = 1
	Grass       ID = 2
	Dirt        ID = 3
	Cobblestone ID = 4
	Water       ID = 8
	StillWater  ID = 9
	Lava        ID = 10
	StillLava   ID = 11
	Sand        ID = 12
	Gravel      ID = 13
	Sponge      ID = 19

	// Custom is the sentinel stored in the dense grid for blocks whose real
	// ID lives in the custom-block overlay.
	Custom ID = 255
)

// Extended reports if the ID is outside the base palette and therefore needs
// the overlay to be represented in a grid.
func (id ID) Extended() bool {
	return id >= Count
}

// Raw returns the byte stored in the dense grid for this ID: the ID itself
// for the base palette, or the Custom sentinel for extended blocks.
func (id ID) Raw() byte {
	if id.Extended() {
		return byte(Custom)
	}
	return byte(id)
}

// Overlay returns the byte stored in the custom-block overlay for an extended
// ID. It must only be called for extended IDs.
func (id ID) Overlay() byte {
	return byte(id - Count)
}

// FromOverlay reconstructs the full ID of a custom block from its overlay
// byte.
func FromOverlay(b byte) ID {
	return Count + ID(b)
}
