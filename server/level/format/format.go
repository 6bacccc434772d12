// Package format holds the registry of level grid codecs. The engine encodes
// and decodes grids exclusively through this registry, so alternative on-disk
// layouts can be added without touching the save protocol.
package format

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Grid is the serialisable form of a level's block data. It carries only what
// a codec needs: the immutable dimensions, the dense block array and the
// sparse custom-block overlay. Metadata travels separately through the level
// properties file.
type Grid struct {
	Width, Height, Length uint16
	// Blocks is the dense block array of Width×Height×Length bytes.
	Blocks []byte
	// Overlay is the custom-block overlay, one entry per 16³ chunk. Entries
	// are nil where the chunk holds no custom blocks, or dense 4096-byte
	// arrays where it does.
	Overlay [][]byte
}

// Format encodes and decodes level grids to a binary stream.
type Format interface {
	// Name returns a human-readable name for the format.
	Name() string
	// Ext returns the file extension used by the format, without the dot.
	Ext() string
	// Encode writes the grid to w.
	Encode(w io.Writer, g *Grid) error
	// Decode reads a grid from r.
	Decode(r io.Reader) (*Grid, error)
}

var (
	mu      sync.RWMutex
	formats []Format
	byExt   = map[string]Format{}
)

// Register adds a format to the registry. The first format registered becomes
// the default writer used by the save protocol. Register panics if the
// extension is already taken.
func Register(f Format) {
	mu.Lock()
	defer mu.Unlock()
	ext := strings.ToLower(f.Ext())
	if _, ok := byExt[ext]; ok {
		panic("format: duplicate registration for extension " + ext)
	}
	formats = append(formats, f)
	byExt[ext] = f
}

// Default returns the default format, the first one registered.
func Default() Format {
	mu.RLock()
	defer mu.RUnlock()
	if len(formats) == 0 {
		panic("format: no formats registered")
	}
	return formats[0]
}

// ByExt finds a format by file extension, without the dot.
func ByExt(ext string) (Format, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := byExt[strings.ToLower(ext)]
	if !ok {
		return nil, fmt.Errorf("format: no codec registered for extension %q", ext)
	}
	return f, nil
}
