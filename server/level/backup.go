package level

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Backup writes a labelled backup of the level through the configured
// BackupWriter. Without force, it is a no-op returning "" unless the level
// changed since its last backup. When no label is passed, the next
// sequential label for this level is used. On failure the level is re-marked
// as pending backup and "" is returned; on success the label used is
// returned.
func (l *Level) Backup(force bool, label string) string {
	if !l.changedSinceBackup.Load() && !force {
		return ""
	}
	if label == "" {
		label = l.nextBackupLabel()
	}
	l.changedSinceBackup.Store(false)
	if !l.conf.Backup.Backup(l.name, label) {
		l.changedSinceBackup.Store(true)
		l.conf.Log.Error("backup level failed", "level", l.name, "label", label)
		return ""
	}
	l.conf.Log.Info("backed up level", "level", l.name, "label", label)
	return label
}

// nextBackupLabel picks the lowest unused numeric label for the level by
// scanning its backup directory.
func (l *Level) nextBackupLabel() string {
	entries, err := os.ReadDir(filepath.Join(l.conf.BackupDir, l.name))
	if err != nil {
		return "1"
	}
	max := 0
	for _, e := range entries {
		if n, err := strconv.Atoi(e.Name()); err == nil && n > max {
			max = n
		}
	}
	return strconv.Itoa(max + 1)
}

// dirBackup is the default BackupWriter: it copies the level's primary file
// into a per-label directory under the backup root.
type dirBackup struct {
	dir    string
	levels string
	log    *slog.Logger
}

// Backup copies the level file into <dir>/<level>/<label>/ and reports if it
// succeeded.
func (b dirBackup) Backup(levelName, label string) bool {
	src, ok := b.findLevelFile(levelName)
	if !ok {
		b.log.Error("backup level: primary file not found", "level", levelName)
		return false
	}
	dst := filepath.Join(b.dir, levelName, label)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		b.log.Error("backup level: "+err.Error(), "level", levelName)
		return false
	}
	if err := copyFile(src, filepath.Join(dst, filepath.Base(src))); err != nil {
		b.log.Error("backup level: "+err.Error(), "level", levelName)
		return false
	}
	return true
}

// findLevelFile locates the level's primary file in the levels directory,
// whichever codec wrote it. The .backup and .prev companions are not backup
// candidates.
func (b dirBackup) findLevelFile(levelName string) (string, bool) {
	entries, err := os.ReadDir(b.levels)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, levelName+".") {
			continue
		}
		if strings.HasSuffix(name, ".backup") || strings.HasSuffix(name, ".prev") {
			continue
		}
		return filepath.Join(b.levels, name), true
	}
	return "", false
}
