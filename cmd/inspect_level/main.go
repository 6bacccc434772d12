// Command inspect_level dumps the contents of a level file: its dimensions,
// the populated custom-block chunks and a histogram of the most common block
// types. It is a diagnostic aid for corrupted or mystery level files.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/opal-mc/opal/server/block"
	"github.com/opal-mc/opal/server/level/format"
)

func main() {
	top := flag.Int("top", 10, "number of block types to list in the histogram")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: inspect_level [-top n] <level file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	codec, err := format.ByExt(ext)
	if err != nil {
		fmt.Fprintln(os.Stderr, "inspect_level:", err)
		os.Exit(1)
	}
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "inspect_level:", err)
		os.Exit(1)
	}
	defer f.Close()
	g, err := codec.Decode(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "inspect_level: decode:", err)
		os.Exit(1)
	}

	fmt.Printf("format:     %s\n", codec.Name())
	fmt.Printf("dimensions: %d×%d×%d (%d cells)\n", g.Width, g.Height, g.Length, len(g.Blocks))

	populated := 0
	for _, c := range g.Overlay {
		if c != nil {
			populated++
		}
	}
	fmt.Printf("overlay:    %d of %d chunks populated\n", populated, len(g.Overlay))

	counts := map[block.ID]int{}
	for i, raw := range g.Blocks {
		id := block.ID(raw)
		if id == block.Custom {
			if full, ok := overlayAt(g, i); ok {
				id = full
			}
		}
		counts[id]++
	}
	type entry struct {
		id block.ID
		n  int
	}
	entries := make([]entry, 0, len(counts))
	for id, n := range counts {
		entries = append(entries, entry{id, n})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].n > entries[j].n })
	if len(entries) > *top {
		entries = entries[:*top]
	}
	fmt.Println("blocks:")
	for _, e := range entries {
		fmt.Printf("  %4d  ×%d\n", e.id, e.n)
	}
}

// overlayAt resolves the full ID of a custom block at the flat grid index
// passed.
func overlayAt(g *format.Grid, index int) (block.ID, bool) {
	w, l := int(g.Width), int(g.Length)
	x := index % w
	z := (index / w) % l
	y := index / (w * l)
	chunksX, chunksZ := (w+15)/16, (l+15)/16
	chunk := (x >> 4) + chunksX*((z>>4)+chunksZ*(y>>4))
	if chunk >= len(g.Overlay) || g.Overlay[chunk] == nil {
		return 0, false
	}
	cell := (x & 15) | (z&15)<<4 | (y&15)<<8
	return block.FromOverlay(g.Overlay[chunk][cell]), true
}
