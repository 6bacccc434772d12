package level

import (
	"log/slog"
	"time"

	"github.com/opal-mc/opal/server/level/format"
	"github.com/opal-mc/opal/server/level/store"
)

// Broadcaster delivers operator-facing notices, such as save failures. The
// engine never formats chat itself; it hands plain text to the Broadcaster.
type Broadcaster interface {
	// BroadcastOps sends a message to all privileged observers.
	BroadcastOps(msg string)
}

// BackupWriter writes a named backup of a level. The engine decides when a
// backup is due and which label to use; the writer owns the copy itself.
type BackupWriter interface {
	// Backup stores a backup of the level under the label passed and reports
	// if it succeeded.
	Backup(levelName, label string) bool
}

// Config holds the collaborators and tunables shared by all levels of a
// server. The zero value is not usable directly; withDefaults fills in
// fallbacks for every nil collaborator.
type Config struct {
	// Log is the logger used for all level lifecycle output. If nil, Log is
	// set to slog.Default().
	Log *slog.Logger
	// Dir is the directory holding level files and their property files.
	// Defaults to "levels".
	Dir string
	// Format is the codec used to write level grids. If nil, the default
	// (first registered) format is used. Loading always resolves the codec
	// from the file extension, so levels written by other codecs still read.
	Format format.Format
	// Store is the auxiliary store for zones, portals, messages, bots, block
	// definitions and audit logs. A nil Store disables auxiliary data.
	Store *store.DB
	// Hooks is the lifecycle hook hub. If nil, a private empty hub is used.
	Hooks *Hooks
	// Registry is the registry of loaded levels. If nil, a private registry
	// is created, which is generally only useful in tests.
	Registry *Registry
	// Online is the registry of connected actors, used for presence checks
	// and relocation during unload. If nil, a private empty list is used.
	Online *OnlineList
	// Lockdown is the set of level names currently barred from entry. May be
	// nil, in which case no level is locked.
	Lockdown *Lockdown
	// Backup is the writer invoked by Level.Backup. If nil, backups are
	// written as plain directory copies under BackupDir.
	Backup BackupWriter
	// BackupDir is the directory used by the default backup writer. Defaults
	// to "backups".
	BackupDir string
	// Broadcast receives operator notices. May be nil.
	Broadcast Broadcaster
	// SaveChanges controls whether Unload persists a dirty grid before
	// detaching the level. It mirrors the server's save-on-change setting.
	SaveChanges bool
	// PhysicsInterval is the delay between simulation sweeps. Defaults to
	// 100ms.
	PhysicsInterval time.Duration
	// Epoch is the fixed point undo timestamps are measured from, normally
	// the server start time. Defaults to the moment withDefaults runs.
	Epoch time.Time
}

func (conf Config) withDefaults() Config {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Dir == "" {
		conf.Dir = "levels"
	}
	if conf.Format == nil {
		conf.Format = format.Default()
	}
	if conf.Hooks == nil {
		conf.Hooks = NewHooks()
	}
	if conf.Registry == nil {
		conf.Registry = NewRegistry()
	}
	if conf.Online == nil {
		conf.Online = NewOnlineList()
	}
	if conf.BackupDir == "" {
		conf.BackupDir = "backups"
	}
	if conf.Backup == nil {
		conf.Backup = dirBackup{dir: conf.BackupDir, levels: conf.Dir, log: conf.Log}
	}
	if conf.PhysicsInterval <= 0 {
		conf.PhysicsInterval = time.Millisecond * 100
	}
	if conf.Epoch.IsZero() {
		conf.Epoch = time.Now()
	}
	return conf
}
