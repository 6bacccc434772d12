package level

import (
	"testing"
	"time"

	"github.com/opal-mc/opal/server/block"
)

func TestUndoPosRoundTrip(t *testing.T) {
	ids := []block.ID{0, 1, 12, 254, 255, 256, 300, 511, 767, 1023}
	times := []time.Duration{0, time.Second, 90 * time.Second, undoTimeMax * time.Second}
	for _, old := range ids {
		for _, next := range ids {
			for _, d := range times {
				var u UndoPos
				u.Index = 42
				u.SetData(old, next, d)
				if got := u.OldBlock(); got != old {
					t.Fatalf("OldBlock() = %d, want %d", got, old)
				}
				if got := u.NewBlock(); got != next {
					t.Fatalf("NewBlock() = %d, want %d", got, next)
				}
				if got := u.Time(); got != d {
					t.Fatalf("Time() = %v, want %v", got, d)
				}
			}
		}
	}
}

func TestUndoPosTimeClamped(t *testing.T) {
	var u UndoPos
	u.SetData(block.Stone, block.Air, -time.Minute)
	if got := u.Time(); got != 0 {
		t.Fatalf("negative timestamp decoded as %v, want 0", got)
	}
	u.SetData(block.Stone, block.Air, (undoTimeMax+100)*time.Second)
	if got := u.Time(); got != undoTimeMax*time.Second {
		t.Fatalf("oversized timestamp decoded as %v, want %v", got, time.Duration(undoTimeMax)*time.Second)
	}
	// Clamping must not bleed into the block ID bits.
	if u.OldBlock() != block.Stone || u.NewBlock() != block.Air {
		t.Fatalf("block IDs corrupted by timestamp clamp: %d -> %d", u.OldBlock(), u.NewBlock())
	}
}

func TestUndoPosEncodeDecode(t *testing.T) {
	var u UndoPos
	u.Index = 123456
	u.SetData(block.ID(300), block.Sand, 7*time.Second)

	buf := appendUndoPos(nil, u)
	if len(buf) != UndoPosSize {
		t.Fatalf("encoded record is %d bytes, want %d", len(buf), UndoPosSize)
	}
	got := decodeUndoPos(buf)
	if got != u {
		t.Fatalf("decoded record %+v, want %+v", got, u)
	}
}

func TestSetBlockRecordsUndo(t *testing.T) {
	conf := newTestConfig(t)
	l := newTestLevel(t, conf, "history", 8, 8, 8)

	l.SetBlock(1, 2, 3, block.Stone)
	l.SetBlock(1, 2, 3, block.ID(300))

	buf := l.UndoBuffer()
	if len(buf) != 2 {
		t.Fatalf("undo buffer holds %d records, want 2", len(buf))
	}
	if buf[0].Index != l.Index(1, 2, 3) || buf[0].OldBlock() != block.Air || buf[0].NewBlock() != block.Stone {
		t.Fatalf("first record %+v does not match change air -> stone", buf[0])
	}
	if buf[1].OldBlock() != block.Stone || buf[1].NewBlock() != block.ID(300) {
		t.Fatalf("second record %+v does not match change stone -> 300", buf[1])
	}
}

func TestAuditLogPersists(t *testing.T) {
	conf := newTestConfig(t)
	newTestStore(t, &conf)
	l := newTestLevel(t, conf, "audited", 8, 8, 8)

	l.SetBlock(0, 0, 0, block.Stone)
	l.SetBlock(1, 0, 0, block.Gravel)
	if err := l.SaveAudit(); err != nil {
		t.Fatalf("save audit: %v", err)
	}
	// A second flush with nothing pending must not duplicate records.
	if err := l.SaveAudit(); err != nil {
		t.Fatalf("save audit again: %v", err)
	}
	l.SetBlock(2, 0, 0, block.Sand)
	if err := l.SaveAudit(); err != nil {
		t.Fatalf("save audit after third change: %v", err)
	}

	log, err := l.AuditLog()
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	if len(log) != 3 {
		t.Fatalf("audit log holds %d records, want 3", len(log))
	}
	want := []block.ID{block.Stone, block.Gravel, block.Sand}
	for i, u := range log {
		if u.NewBlock() != want[i] {
			t.Fatalf("record %d placed %d, want %d", i, u.NewBlock(), want[i])
		}
	}
}
