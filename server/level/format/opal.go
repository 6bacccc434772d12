package format

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/gzip"
)

// opalMagic identifies the native level format.
var opalMagic = [4]byte{'O', 'P', 'L', 'V'}

const (
	opalVersion = 1
	// chunkCells is the number of cells in one 16³ overlay chunk.
	chunkCells = 16 * 16 * 16
)

// ErrChecksum is returned when the block payload of a level file does not
// match the checksum recorded in its header.
var ErrChecksum = errors.New("format: block data does not match header checksum")

// Opal is the native level codec: a fixed header holding the dimensions and
// an xxhash of the raw block array, followed by a gzip stream with the dense
// grid and any populated overlay chunks.
type Opal struct{}

func init() {
	Register(Opal{})
}

// Name returns the format name.
func (Opal) Name() string { return "Opal level" }

// Ext returns the file extension of the format.
func (Opal) Ext() string { return "lvl" }

// Encode writes the grid to w.
func (Opal) Encode(w io.Writer, g *Grid) error {
	if len(g.Blocks) != int(g.Width)*int(g.Height)*int(g.Length) {
		return fmt.Errorf("format: block array length %d does not match dimensions %d×%d×%d",
			len(g.Blocks), g.Width, g.Height, g.Length)
	}
	header := make([]byte, 0, 24)
	header = append(header, opalMagic[:]...)
	header = append(header, opalVersion)
	header = binary.LittleEndian.AppendUint16(header, g.Width)
	header = binary.LittleEndian.AppendUint16(header, g.Height)
	header = binary.LittleEndian.AppendUint16(header, g.Length)
	header = binary.LittleEndian.AppendUint64(header, xxhash.Sum64(g.Blocks))
	if _, err := w.Write(header); err != nil {
		return err
	}

	zw := gzip.NewWriter(w)
	if _, err := zw.Write(g.Blocks); err != nil {
		return err
	}
	populated := uint32(0)
	for _, c := range g.Overlay {
		if c != nil {
			populated++
		}
	}
	var scratch [8]byte
	binary.LittleEndian.PutUint32(scratch[:4], populated)
	if _, err := zw.Write(scratch[:4]); err != nil {
		return err
	}
	for i, c := range g.Overlay {
		if c == nil {
			continue
		}
		if len(c) != chunkCells {
			return fmt.Errorf("format: overlay chunk %d has %d cells, want %d", i, len(c), chunkCells)
		}
		binary.LittleEndian.PutUint32(scratch[:4], uint32(i))
		if _, err := zw.Write(scratch[:4]); err != nil {
			return err
		}
		if _, err := zw.Write(c); err != nil {
			return err
		}
	}
	return zw.Close()
}

// Decode reads a grid from r, verifying the header checksum.
func (Opal) Decode(r io.Reader) (*Grid, error) {
	header := make([]byte, 19)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("format: read header: %w", err)
	}
	if [4]byte(header[:4]) != opalMagic {
		return nil, errors.New("format: not an Opal level file")
	}
	if header[4] != opalVersion {
		return nil, fmt.Errorf("format: unsupported version %d", header[4])
	}
	g := &Grid{
		Width:  binary.LittleEndian.Uint16(header[5:7]),
		Height: binary.LittleEndian.Uint16(header[7:9]),
		Length: binary.LittleEndian.Uint16(header[9:11]),
	}
	if g.Width == 0 || g.Height == 0 || g.Length == 0 {
		return nil, fmt.Errorf("format: invalid dimensions %d×%d×%d", g.Width, g.Height, g.Length)
	}
	sum := binary.LittleEndian.Uint64(header[11:19])

	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("format: open payload: %w", err)
	}
	defer zr.Close()

	g.Blocks = make([]byte, int(g.Width)*int(g.Height)*int(g.Length))
	if _, err := io.ReadFull(zr, g.Blocks); err != nil {
		return nil, fmt.Errorf("format: read blocks: %w", err)
	}
	if xxhash.Sum64(g.Blocks) != sum {
		return nil, ErrChecksum
	}

	chunks := chunksOf(g.Width) * chunksOf(g.Height) * chunksOf(g.Length)
	g.Overlay = make([][]byte, chunks)
	var scratch [4]byte
	if _, err := io.ReadFull(zr, scratch[:]); err != nil {
		return nil, fmt.Errorf("format: read overlay count: %w", err)
	}
	populated := binary.LittleEndian.Uint32(scratch[:])
	for i := uint32(0); i < populated; i++ {
		if _, err := io.ReadFull(zr, scratch[:]); err != nil {
			return nil, fmt.Errorf("format: read overlay index: %w", err)
		}
		idx := binary.LittleEndian.Uint32(scratch[:])
		if idx >= uint32(chunks) {
			return nil, fmt.Errorf("format: overlay chunk index %d out of range, have %d chunks", idx, chunks)
		}
		c := make([]byte, chunkCells)
		if _, err := io.ReadFull(zr, c); err != nil {
			return nil, fmt.Errorf("format: read overlay chunk %d: %w", idx, err)
		}
		g.Overlay[idx] = c
	}
	return g, nil
}

// chunksOf ceiling-divides a dimension into 16-cell chunks.
func chunksOf(dim uint16) int {
	return (int(dim) + 15) / 16
}
