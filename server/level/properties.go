package level

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"
)

// propsFile is the on-disk shape of a level's properties. Settings the
// engine does not interpret travel in the Extra table and survive a
// load/save cycle untouched.
type propsFile struct {
	Physics    int  `toml:"physics"`
	AutoUnload bool `toml:"auto_unload"`

	// The spawn coordinates are pointers so a level with its spawn at the
	// origin is distinguishable from one with no recorded spawn.
	SpawnX     *float64 `toml:"spawn_x"`
	SpawnY     *float64 `toml:"spawn_y"`
	SpawnZ     *float64 `toml:"spawn_z"`
	SpawnYaw   int      `toml:"spawn_yaw"`
	SpawnPitch int      `toml:"spawn_pitch"`

	VisitMin int `toml:"visit_min"`
	BuildMin int `toml:"build_min"`

	Extra map[string]string `toml:"extra,omitempty"`
}

// propsPath returns the location of the level's properties file.
func (l *Level) propsPath() string {
	return filepath.Join(l.conf.Dir, "level properties", l.name+".properties")
}

// loadProperties reads the level's metadata file and applies it: simulation
// mode, auto-unload flag, spawn, and the access controllers' minimum ranks.
// A missing file leaves the defaults in place; a corrupt file fails the
// load.
func (l *Level) loadProperties() error {
	contents, err := os.ReadFile(l.propsPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read properties: %w", err)
	}
	var p propsFile
	if err := toml.Unmarshal(contents, &p); err != nil {
		return fmt.Errorf("decode properties: %w", err)
	}

	l.physicsMode = p.Physics
	l.autoUnload = p.AutoUnload
	if p.SpawnX != nil && p.SpawnY != nil && p.SpawnZ != nil {
		l.Spawn[0], l.Spawn[1], l.Spawn[2] = *p.SpawnX, *p.SpawnY, *p.SpawnZ
	}
	l.SpawnYaw, l.SpawnPitch = byte(p.SpawnYaw), byte(p.SpawnPitch)
	l.VisitAccess.SetMin(Rank(p.VisitMin))
	l.BuildAccess.SetMin(Rank(p.BuildMin))
	l.extraProps = p.Extra
	return nil
}

// saveProperties writes the level's metadata file next to the grid, creating
// the properties directory on first use.
func (l *Level) saveProperties() error {
	p := propsFile{
		Physics:    l.physicsMode,
		AutoUnload: l.autoUnload,
		SpawnX:     &l.Spawn[0],
		SpawnY:     &l.Spawn[1],
		SpawnZ:     &l.Spawn[2],
		SpawnYaw:   int(l.SpawnYaw),
		SpawnPitch: int(l.SpawnPitch),
		VisitMin:   int(l.VisitAccess.Min()),
		BuildMin:   int(l.BuildAccess.Min()),
		Extra:      l.extraProps,
	}
	contents, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}
	path := l.propsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create properties directory: %w", err)
	}
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		return fmt.Errorf("write properties: %w", err)
	}
	return nil
}
