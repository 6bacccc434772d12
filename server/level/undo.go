package level

import (
	"encoding/binary"
	"time"

	"github.com/opal-mc/opal/server/block"
)

// UndoPosSize is the encoded size of one change record.
const UndoPosSize = 10

// undoTimeMax caps the relative timestamp stored in a record: 28 bits of
// whole seconds since the server epoch.
const undoTimeMax = 1<<28 - 1

// UndoPos is one entry of a level's change history: which cell changed, what
// stood there before and after, and when. Records pack to a fixed 10 bytes:
// the grid index, a flags word carrying the two high bits of each block ID
// and the timestamp, and the low byte of each block ID. Block IDs up to 1023
// encode losslessly; timestamps are whole seconds relative to the server
// start.
type UndoPos struct {
	// Index is the packed grid index of the changed cell.
	Index int32
	// flags packs, from the low bit up: the old block's high bits (2), the
	// new block's high bits (2), and the relative timestamp (28).
	flags          uint32
	oldLow, newLow byte
}

// SetData fills the record from the old and new block IDs and a timestamp
// relative to the server epoch.
func (u *UndoPos) SetData(oldBlock, newBlock block.ID, t time.Duration) {
	secs := int64(t / time.Second)
	if secs < 0 {
		secs = 0
	}
	if secs > undoTimeMax {
		secs = undoTimeMax
	}
	u.oldLow = byte(oldBlock)
	u.newLow = byte(newBlock)
	u.flags = uint32(oldBlock>>8)&3 | (uint32(newBlock>>8)&3)<<2 | uint32(secs)<<4
}

// OldBlock reconstructs the block that stood in the cell before the change.
func (u *UndoPos) OldBlock() block.ID {
	return block.ID(u.oldLow) | block.ID(u.flags&3)<<8
}

// NewBlock reconstructs the block written by the change.
func (u *UndoPos) NewBlock() block.ID {
	return block.ID(u.newLow) | block.ID(u.flags>>2&3)<<8
}

// Time returns the record's timestamp as an offset from the server epoch,
// with whole-second resolution.
func (u *UndoPos) Time() time.Duration {
	return time.Duration(u.flags>>4) * time.Second
}

// appendUndoPos encodes a record onto buf.
func appendUndoPos(buf []byte, u UndoPos) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(u.Index))
	buf = binary.LittleEndian.AppendUint32(buf, u.flags)
	return append(buf, u.oldLow, u.newLow)
}

// decodeUndoPos decodes one record from the start of buf, which must hold at
// least UndoPosSize bytes.
func decodeUndoPos(buf []byte) UndoPos {
	return UndoPos{
		Index:  int32(binary.LittleEndian.Uint32(buf[0:4])),
		flags:  binary.LittleEndian.Uint32(buf[4:8]),
		oldLow: buf[8],
		newLow: buf[9],
	}
}

// recordChange appends a block change to the level's in-memory undo buffer
// and to the pending audit records.
func (l *Level) recordChange(index int32, oldBlock, newBlock block.ID) {
	var u UndoPos
	u.Index = index
	u.SetData(oldBlock, newBlock, time.Since(l.conf.Epoch))

	l.undoMu.Lock()
	l.undo = append(l.undo, u)
	l.undoMu.Unlock()

	l.auditMu.Lock()
	l.auditBuf = appendUndoPos(l.auditBuf, u)
	l.auditMu.Unlock()
}

// UndoBuffer returns a copy of the level's in-memory undo records.
func (l *Level) UndoBuffer() []UndoPos {
	l.undoMu.Lock()
	defer l.undoMu.Unlock()
	out := make([]UndoPos, len(l.undo))
	copy(out, l.undo)
	return out
}

// SaveAudit flushes the pending audit records to the auxiliary store. It is
// safe for concurrent calls; a dedicated lock serializes them. Flushed
// records are dropped from the buffer only after the store accepted them, so
// a failed flush retries in full on the next call.
func (l *Level) SaveAudit() error {
	if l.conf.Store == nil {
		return nil
	}
	l.auditMu.Lock()
	defer l.auditMu.Unlock()
	if len(l.auditBuf) == 0 {
		return nil
	}
	if err := l.conf.Store.AppendAudit(l.key, l.auditBuf); err != nil {
		return err
	}
	l.auditBuf = l.auditBuf[:0]
	return nil
}

// AuditLog reads the level's full persisted change history and decodes it.
func (l *Level) AuditLog() ([]UndoPos, error) {
	if l.conf.Store == nil {
		return nil, nil
	}
	raw, err := l.conf.Store.Audit(l.key)
	if err != nil {
		return nil, err
	}
	out := make([]UndoPos, 0, len(raw)/UndoPosSize)
	for len(raw) >= UndoPosSize {
		out = append(out, decodeUndoPos(raw))
		raw = raw[UndoPosSize:]
	}
	return out, nil
}
