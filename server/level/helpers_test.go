package level

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opal-mc/opal/server/level/store"
)

// newTestConfig returns a Config rooted in a temporary directory with all
// collaborators private to the test.
func newTestConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Dir:      t.TempDir(),
		Registry: NewRegistry(),
		Online:   NewOnlineList(),
		Hooks:    NewHooks(),
		// Keep the simulation thread quiet unless a test drives it.
		PhysicsInterval: time.Hour,
		SaveChanges:     true,
	}.withDefaults()
}

func newTestStore(t *testing.T, conf *Config) *store.DB {
	t.Helper()
	db, err := store.Open(t.TempDir(), conf.Log)
	if err != nil {
		t.Fatalf("open auxiliary store: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close auxiliary store: %v", err)
		}
	})
	conf.Store = db
	return db
}

func newTestLevel(t *testing.T, conf Config, name string, w, h, l int) *Level {
	t.Helper()
	lv, err := Init(conf, name, w, h, l, nil)
	if err != nil {
		t.Fatalf("init level: %v", err)
	}
	return lv
}

type fakeActor struct {
	mu       sync.Mutex
	id       uuid.UUID
	name     string
	rank     Rank
	console  bool
	level    string
	summoned string
	messages []string
	moved    []*Level
}

func newFakeActor(name string, rank Rank) *fakeActor {
	return &fakeActor{id: uuid.New(), name: name, rank: rank}
}

func (a *fakeActor) UUID() uuid.UUID    { return a.id }
func (a *fakeActor) Name() string       { return a.name }
func (a *fakeActor) Rank() Rank         { return a.rank }
func (a *fakeActor) Console() bool      { return a.console }
func (a *fakeActor) SummonedTo() string { return a.summoned }

func (a *fakeActor) LevelKey() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.level
}

func (a *fakeActor) Message(msg string) {
	a.mu.Lock()
	a.messages = append(a.messages, msg)
	a.mu.Unlock()
}

func (a *fakeActor) Teleport(l *Level) {
	a.mu.Lock()
	a.level = l.Key()
	a.moved = append(a.moved, l)
	a.mu.Unlock()
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []string
}

func (b *fakeBroadcaster) BroadcastOps(msg string) {
	b.mu.Lock()
	b.messages = append(b.messages, msg)
	b.mu.Unlock()
}

func (b *fakeBroadcaster) all() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.messages))
	copy(out, b.messages)
	return out
}
