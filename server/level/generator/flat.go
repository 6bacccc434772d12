package generator

import "github.com/opal-mc/opal/server/block"

func init() {
	Register(Flat{})
	Register(Empty{})
}

// Flat generates the classic flat terrain: stone below a dirt layer capped
// with grass at half the level height, air above.
type Flat struct{}

func (Flat) Name() string { return "flat" }

func (Flat) Generate(w, h, l int) []byte {
	blocks := make([]byte, w*h*l)
	surface := h/2 - 1
	layer := w * l
	for y := 0; y <= surface; y++ {
		var id block.ID
		switch {
		case y == surface:
			id = block.Grass
		case y >= surface-3:
			id = block.Dirt
		default:
			id = block.Stone
		}
		row := blocks[y*layer : (y+1)*layer]
		for i := range row {
			row[i] = byte(id)
		}
	}
	return blocks
}

// Empty generates a level of nothing but air.
type Empty struct{}

func (Empty) Name() string { return "empty" }

func (Empty) Generate(w, h, l int) []byte {
	return make([]byte, w*h*l)
}
