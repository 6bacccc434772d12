package level

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opal-mc/opal/server/internal/keymutex"
	"github.com/opal-mc/opal/server/internal/nameutil"
	"github.com/opal-mc/opal/server/level/format"
	"github.com/opal-mc/opal/server/level/generator"
)

// auxLocks serializes the load sequence per level name, so two concurrent
// loads of the same named level cannot race each other into the registry or
// interleave their auxiliary-store reads.
var auxLocks = keymutex.NewRegistry()

// Load reads a level from disk and prepares it for use: grid, metadata,
// block definitions, bots, zones, portals and messages, after which the
// level is registered, the simulation thread starts and the post-load hook
// fires. A level already registered under the name is returned as is. Load
// returns nil when a pre-load hook vetoes, when the backing file is absent,
// or when the grid or metadata cannot be decoded; failures are logged and
// the level is not registered. The whole sequence runs under a per-name
// lock, so concurrent loads of the same name yield one shared instance.
func Load(conf Config, name string) *Level {
	conf = conf.withDefaults()
	if existing, ok := conf.Registry.Get(name); ok {
		return existing
	}
	if conf.Hooks.preLoad(name, filepath.Join(conf.Dir, name+"."+conf.Format.Ext())) {
		return nil
	}

	lock := auxLocks.Get(nameutil.Fold(name))
	lock.Lock()
	defer lock.Unlock()
	if existing, ok := conf.Registry.Get(name); ok {
		return existing
	}

	path, f, err := findLevelFile(conf, name)
	if err != nil {
		conf.Log.Warn("load level: file not found", "level", name)
		return nil
	}

	l, err := readLevel(conf, name, path, f)
	if err != nil {
		conf.Log.Error("load level: "+err.Error(), "level", name)
		return nil
	}
	if err := l.loadProperties(); err != nil {
		conf.Log.Error("load level: "+err.Error(), "level", name)
		return nil
	}
	if err := l.loadBlockDefs(); err != nil {
		conf.Log.Error("load level: "+err.Error(), "level", name)
		return nil
	}
	l.RebuildBlockHandlers()
	l.loadBots()
	l.loadAuxiliary()

	if !conf.Registry.Add(l) {
		// Unreachable while the name lock is held; never share the loser.
		l.Cleanup()
		existing, _ := conf.Registry.Get(name)
		return existing
	}
	l.StartPhysics()
	conf.Hooks.postLoad(l)
	conf.Log.Info("loaded level", "level", name)
	return l
}

// Create builds a brand new level from the generator passed and persists it
// immediately, so a crash right after creation does not lose the level. The
// level is registered, the simulation thread is started and the post-load
// hook fires, making a created level indistinguishable from a loaded one to
// observers. A name already registered fails the creation.
func Create(conf Config, name string, w, h, l int, g generator.Generator) (*Level, error) {
	conf = conf.withDefaults()
	if g == nil {
		g = generator.Default()
	}

	lock := auxLocks.Get(nameutil.Fold(name))
	lock.Lock()
	defer lock.Unlock()
	if _, ok := conf.Registry.Get(name); ok {
		return nil, fmt.Errorf("create level %q: already loaded", name)
	}

	lv, err := Init(conf, name, w, h, l, g.Generate(w, h, l))
	if err != nil {
		return nil, err
	}
	lv.MarkDirty()
	if !lv.Save(false) {
		lv.Cleanup()
		return nil, fmt.Errorf("create level %q: initial save failed", name)
	}
	conf.Registry.Add(lv)
	lv.StartPhysics()
	conf.Hooks.postLoad(lv)
	conf.Log.Info("created level", "level", name, "generator", g.Name())
	return lv, nil
}

// findLevelFile resolves the primary file of a level and the codec that can
// read it. The configured format's extension is tried first; any other
// registered codec's extension after that.
func findLevelFile(conf Config, name string) (string, format.Format, error) {
	path := filepath.Join(conf.Dir, name+"."+conf.Format.Ext())
	if fileExists(path) {
		return path, conf.Format, nil
	}
	entries, err := os.ReadDir(conf.Dir)
	if err != nil {
		return path, nil, fmt.Errorf("level file absent: %w", err)
	}
	for _, e := range entries {
		fname := e.Name()
		if e.IsDir() || !strings.HasPrefix(fname, name+".") {
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(fname), ".")
		if ext == "backup" || ext == "prev" {
			continue
		}
		if f, err := format.ByExt(ext); err == nil {
			return filepath.Join(conf.Dir, fname), f, nil
		}
	}
	return path, nil, fmt.Errorf("no level file for %q in %s", name, conf.Dir)
}

// readLevel decodes a level grid from the file passed and wraps it in a
// fresh Level.
func readLevel(conf Config, name, path string, f format.Format) (*Level, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open grid: %w", err)
	}
	defer file.Close()
	g, err := f.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode grid: %w", err)
	}

	l, err := Init(conf, name, int(g.Width), int(g.Height), int(g.Length), g.Blocks)
	if err != nil {
		return nil, err
	}
	if len(g.Overlay) != l.ChunkCount() {
		return nil, fmt.Errorf("decode grid: overlay has %d chunks, want %d", len(g.Overlay), l.ChunkCount())
	}
	l.overlay = g.Overlay
	l.path = path
	return l, nil
}

// loadBlockDefs reads the level's custom block definitions from the
// auxiliary store. Absence of a store disables definitions.
func (l *Level) loadBlockDefs() error {
	if l.conf.Store == nil {
		return nil
	}
	defs, err := l.conf.Store.BlockDefs(l.key)
	if err != nil {
		return err
	}
	l.customDefs = defs
	return nil
}

// loadBots restores the level's bot placements. Bot state is auxiliary:
// failure is logged, not fatal.
func (l *Level) loadBots() {
	if l.conf.Store == nil {
		return
	}
	bots, err := l.conf.Store.Bots(l.key)
	if err != nil {
		l.conf.Log.Warn("load level bots: "+err.Error(), "level", l.name)
		return
	}
	l.bots = bots
}

// saveBots persists the level's bot placements.
func (l *Level) saveBots() error {
	if l.conf.Store == nil {
		return nil
	}
	l.zonesMu.Lock()
	bots := l.bots
	l.zonesMu.Unlock()
	return l.conf.Store.SaveBots(l.key, bots)
}

// loadAuxiliary reads zones, portals and saved messages. Each is best
// effort: a failure is logged and leaves that collection empty without
// aborting the load. Callers must hold the level's keyed name lock.
func (l *Level) loadAuxiliary() {
	if l.conf.Store == nil {
		return
	}
	zones, err := l.conf.Store.Zones(l.key)
	if err != nil {
		l.conf.Log.Warn("load level zones: "+err.Error(), "level", l.name)
	}
	portals, err := l.conf.Store.Portals(l.key)
	if err != nil {
		l.conf.Log.Warn("load level portals: "+err.Error(), "level", l.name)
	}
	messages, err := l.conf.Store.Messages(l.key)
	if err != nil {
		l.conf.Log.Warn("load level messages: "+err.Error(), "level", l.name)
	}
	l.zonesMu.Lock()
	l.zones, l.portals, l.messages = zones, portals, messages
	l.zonesMu.Unlock()
}

// Unload detaches the level from the running server. The main level refuses
// to unload. A museum instance skips saving and notification and goes
// straight to resource teardown. Otherwise, after the pre-unload veto point,
// actors on the level are relocated to the main level both before and after
// the optional save, so an actor joining mid-save is still caught. Bot state
// is saved best-effort. Unload reports whether the level was detached.
func (l *Level) Unload(silent, save bool) bool {
	if l.conf.Registry.IsMain(l) {
		return false
	}
	if l.Museum {
		l.Cleanup()
		return true
	}
	if l.conf.Hooks.preUnload(l) {
		return false
	}

	l.movePlayersToMain()
	if save && l.conf.SaveChanges && l.Dirty() {
		l.Save(false)
		if err := l.SaveAudit(); err != nil {
			l.conf.Log.Warn("save level audit log: "+err.Error(), "level", l.name)
		}
	}
	l.movePlayersToMain()

	l.conf.Registry.Remove(l)

	if err := l.saveBots(); err != nil {
		l.conf.Log.Warn("save level bots: "+err.Error(), "level", l.name)
	}

	l.Cleanup()

	if !silent && l.conf.Broadcast != nil {
		l.conf.Broadcast.BroadcastOps("Level " + nameutil.Title(l.name) + " was unloaded.")
	}
	l.conf.Log.Info("unloaded level", "level", l.name)
	return true
}

// AutoUnload unloads the level if it is eligible: a museum instance, or a
// level configured to auto-unload with nobody on it. It reports whether the
// level was actually unloaded.
func (l *Level) AutoUnload() bool {
	eligible := l.Museum || (l.autoUnload && !l.conf.Online.AnyOn(l.key))
	return eligible && l.Unload(true, true)
}

// movePlayersToMain relocates every actor currently on this level to the
// main level's spawn. Without a designated main level the actors stay where
// they are, which is worth a warning when the level is about to go away.
func (l *Level) movePlayersToMain() {
	main := l.conf.Registry.Main()
	if main == nil || main == l {
		if stranded := l.conf.Online.OnLevel(l.key); len(stranded) > 0 {
			l.conf.Log.Warn("no main level to relocate actors to", "level", l.name, "actors", len(stranded))
		}
		return
	}
	for _, a := range l.conf.Online.OnLevel(l.key) {
		a.Message("You were moved to the main level.")
		a.Teleport(main)
	}
}
