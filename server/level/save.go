package level

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/opal-mc/opal/server/level/format"
)

// Save persists the level's grid to disk. It returns false without error
// when the grid has been disposed, the level is a museum instance, or a
// pre-save hook vetoed. When the level is clean, not forced, and the file
// already exists, the write is skipped and Save returns true. All I/O
// failures are caught here: they are logged, broadcast to operators, and
// surface only as a false return, with the dirty flag preserved so a retry
// stays possible.
func (l *Level) Save(force bool) bool {
	if l.Disposed() || l.Museum {
		return false
	}
	if l.conf.Hooks.preSave(l) {
		return false
	}
	if !l.Dirty() && !force && fileExists(l.path) {
		l.conf.Log.Debug("skipping save of unchanged level", "level", l.name)
		return true
	}

	l.saveMu.Lock()
	defer l.saveMu.Unlock()
	if l.Disposed() {
		return false
	}
	if err := l.writeGrid(); err != nil {
		l.conf.Log.Error("save level: "+err.Error(), "level", l.name)
		if l.conf.Broadcast != nil {
			l.conf.Broadcast.BroadcastOps("Saving of level " + l.name + " failed: " + err.Error())
		}
		return false
	}
	l.changed.Store(false)
	l.conf.Log.Info("saved level", "level", l.name)
	l.reclaimMemory()
	return true
}

// writeGrid runs the crash-safe write sequence. No single crash, kill or
// out-of-space event in it may corrupt the previously good on-disk state:
//
//  1. The full grid is encoded to the .backup sibling. If this fails, the
//     primary file and its .prev companion are untouched.
//  2. Any stale .prev file is deleted, freeing space for what follows.
//  3. The current primary's content is preserved as .prev through a hard
//     link, then the .backup takes the primary's place in one atomic
//     rename. The primary is never absent: a crash before the rename leaves
//     the old primary in place, a crash after it leaves the new one. A
//     level saved for the first time skips the link.
//  4. The properties file is rewritten to match the just-written grid.
//  5. A fresh .backup copy of the new primary is recreated, so the next
//     cycle's step 1 starts from known-good state even if it fails outright.
//
// Re-running the whole sequence after a crash at any point converges to a
// consistent state. The caller must hold saveMu.
func (l *Level) writeGrid() error {
	backup, prev := l.path+".backup", l.path+".prev"

	if err := l.encodeTo(backup); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}

	if err := os.Remove(prev); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale prev: %w", err)
	}

	if fileExists(l.path) {
		if err := os.Link(l.path, prev); err != nil {
			return fmt.Errorf("preserve primary as prev: %w", err)
		}
	}
	if err := os.Rename(backup, l.path); err != nil {
		return fmt.Errorf("replace primary: %w", err)
	}

	if err := l.saveProperties(); err != nil {
		// The grid is durable at this point; stale metadata is tolerated on
		// the next load.
		l.conf.Log.Warn("save level properties: "+err.Error(), "level", l.name)
	}

	if err := copyFile(l.path, backup); err != nil {
		l.conf.Log.Warn("recreate level backup copy: "+err.Error(), "level", l.name)
	}
	return nil
}

// encodeTo encodes the level's grid to the file at the path passed through
// the configured codec. The write is synced before the file closes so a
// following rename never publishes an incomplete file.
func (l *Level) encodeTo(path string) error {
	l.gridMu.RLock()
	defer l.gridMu.RUnlock()
	if l.blocks == nil {
		return errors.New("grid disposed")
	}
	g := &format.Grid{
		Width:   uint16(l.width),
		Height:  uint16(l.height),
		Length:  uint16(l.length),
		Blocks:  l.blocks,
		Overlay: l.overlay,
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := l.conf.Format.Encode(f, g); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// copyFile copies src to dst, replacing dst. Used only for the best-effort
// backup recreation; the primary file is never written this way.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
