// Package store persists the auxiliary data attached to levels: zones,
// portals, message blocks, bot placements, custom block definitions and the
// per-block audit log. All of it lives in a single goleveldb database keyed
// by data kind and level name, so the engine opens one handle for the whole
// server rather than one file per level.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/df-mc/goleveldb/leveldb"
	"github.com/opal-mc/opal/server/internal/nameutil"
)

// Zone is an axis-aligned region of a level with its own build permission.
type Zone struct {
	Name  string    `json:"name"`
	Min   [3]uint16 `json:"min"`
	Max   [3]uint16 `json:"max"`
	Owner string    `json:"owner,omitempty"`
	// BuildRank is the minimum rank allowed to build inside the zone.
	BuildRank int `json:"build_rank"`
}

// Portal teleports an actor entering its source block to a destination level
// and position.
type Portal struct {
	Pos       [3]uint16 `json:"pos"`
	DestLevel string    `json:"dest_level"`
	DestPos   [3]uint16 `json:"dest_pos"`
}

// Message is a block that shows a text to actors walking through it.
type Message struct {
	Pos  [3]uint16 `json:"pos"`
	Text string    `json:"text"`
}

// Bot is the placement of a server-controlled actor in a level. Behaviour is
// out of scope here; the engine only persists and restores placements.
type Bot struct {
	Name  string     `json:"name"`
	Pos   [3]float64 `json:"pos"`
	Yaw   byte       `json:"yaw"`
	Pitch byte       `json:"pitch"`
	Model string     `json:"model,omitempty"`
}

// BlockDef is a custom block definition installed on a level, overriding the
// behaviour of one block ID.
type BlockDef struct {
	ID        uint16 `json:"id"`
	Name      string `json:"name"`
	Collision byte   `json:"collision"`
	Physics   bool   `json:"physics"`
	// Fallback is the base-palette block shown to clients that do not
	// support custom blocks.
	Fallback byte `json:"fallback"`
}

// DB is the auxiliary store shared by all levels of a server.
type DB struct {
	ldb *leveldb.DB
	log *slog.Logger
}

// Open opens (or creates) the auxiliary store inside the directory passed.
func Open(dir string, log *slog.Logger) (*DB, error) {
	if log == nil {
		log = slog.Default()
	}
	ldb, err := leveldb.OpenFile(filepath.Join(dir, "aux.ldb"), nil)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	return &DB{ldb: ldb, log: log.With("subsystem", "level.store")}, nil
}

// Close releases the underlying database.
func (db *DB) Close() error {
	return db.ldb.Close()
}

func key(kind, level string) []byte {
	return []byte(kind + "/" + nameutil.Fold(level))
}

// load unmarshals the JSON value stored under kind/level into out. A missing
// key is not an error: out is left empty.
func (db *DB) load(kind, level string, out any) error {
	val, err := db.ldb.Get(key(kind, level), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: load %s of %s: %w", kind, level, err)
	}
	if err := json.Unmarshal(val, out); err != nil {
		return fmt.Errorf("store: decode %s of %s: %w", kind, level, err)
	}
	return nil
}

func (db *DB) save(kind, level string, in any) error {
	val, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("store: encode %s of %s: %w", kind, level, err)
	}
	if err := db.ldb.Put(key(kind, level), val, nil); err != nil {
		return fmt.Errorf("store: save %s of %s: %w", kind, level, err)
	}
	return nil
}

// Zones loads the zones of a level.
func (db *DB) Zones(level string) ([]Zone, error) {
	var zones []Zone
	err := db.load("zones", level, &zones)
	return zones, err
}

// SaveZones stores the zones of a level.
func (db *DB) SaveZones(level string, zones []Zone) error {
	return db.save("zones", level, zones)
}

// Portals loads the portals of a level.
func (db *DB) Portals(level string) ([]Portal, error) {
	var portals []Portal
	err := db.load("portals", level, &portals)
	return portals, err
}

// SavePortals stores the portals of a level.
func (db *DB) SavePortals(level string, portals []Portal) error {
	return db.save("portals", level, portals)
}

// Messages loads the message blocks of a level.
func (db *DB) Messages(level string) ([]Message, error) {
	var messages []Message
	err := db.load("messages", level, &messages)
	return messages, err
}

// SaveMessages stores the message blocks of a level.
func (db *DB) SaveMessages(level string, messages []Message) error {
	return db.save("messages", level, messages)
}

// Bots loads the bot placements of a level.
func (db *DB) Bots(level string) ([]Bot, error) {
	var bots []Bot
	err := db.load("bots", level, &bots)
	return bots, err
}

// SaveBots stores the bot placements of a level.
func (db *DB) SaveBots(level string, bots []Bot) error {
	return db.save("bots", level, bots)
}

// BlockDefs loads the custom block definitions of a level.
func (db *DB) BlockDefs(level string) ([]BlockDef, error) {
	var defs []BlockDef
	err := db.load("blockdefs", level, &defs)
	return defs, err
}

// SaveBlockDefs stores the custom block definitions of a level.
func (db *DB) SaveBlockDefs(level string, defs []BlockDef) error {
	return db.save("blockdefs", level, defs)
}

// Audit returns the raw audit log bytes of a level. The record layout is
// owned by the level package; the store treats it as opaque.
func (db *DB) Audit(level string) ([]byte, error) {
	val, err := db.ldb.Get(key("audit", level), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: load audit of %s: %w", level, err)
	}
	return val, nil
}

// AppendAudit appends raw audit records to the log of a level. Callers must
// serialize concurrent appends for the same level themselves.
func (db *DB) AppendAudit(level string, records []byte) error {
	if len(records) == 0 {
		return nil
	}
	cur, err := db.Audit(level)
	if err != nil {
		return err
	}
	if err := db.ldb.Put(key("audit", level), append(cur, records...), nil); err != nil {
		return fmt.Errorf("store: append audit of %s: %w", level, err)
	}
	return nil
}
