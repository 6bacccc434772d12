package level

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Rank is an actor's permission level. Higher ranks imply more access.
type Rank int

// Well-known ranks referenced by the engine. Servers are free to define
// values between these.
const (
	RankBanned   Rank = -20
	RankGuest    Rank = 0
	RankBuilder  Rank = 30
	RankOperator Rank = 100
	RankOwner    Rank = 120
	// RankConsole outranks every player rank. It is used for console actors
	// and as the elevated rank of summoned actors.
	RankConsole Rank = 127
)

// Actor is a connected participant: a player, a bot, or the console. The
// engine only needs identity, rank, presence and messaging; everything else
// about actors is external.
type Actor interface {
	// UUID returns the stable identity of the actor.
	UUID() uuid.UUID
	// Name returns the display name of the actor.
	Name() string
	// Rank returns the actor's permission level.
	Rank() Rank
	// Console reports if the actor is a privileged console actor.
	Console() bool
	// LevelKey returns the case-folded name of the level the actor is
	// currently on, or "" if none.
	LevelKey() string
	// SummonedTo returns the case-folded name of the level the actor was
	// last explicitly summoned to, or "" if none.
	SummonedTo() string
	// Message sends a plain text message to the actor.
	Message(msg string)
	// Teleport relocates the actor to the spawn of the level passed.
	Teleport(l *Level)
}

// AccessKind distinguishes the two access controllers of a level.
type AccessKind string

const (
	// AccessVisit gates entering the level.
	AccessVisit AccessKind = "visit"
	// AccessBuild gates placing and deleting blocks in the level.
	AccessBuild AccessKind = "build"
)

// AccessController is the yes/no permission gate of a level for one kind of
// access. It combines a minimum rank with explicit per-name allow and deny
// lists; the lists win over the rank check.
type AccessController struct {
	level *Level
	kind  AccessKind

	mu      sync.RWMutex
	min     Rank
	allowed map[string]struct{}
	blocked map[string]struct{}
}

// NewAccessController creates a controller for the level and kind passed,
// with the minimum rank set to guest.
func NewAccessController(l *Level, kind AccessKind) *AccessController {
	return &AccessController{
		level:   l,
		kind:    kind,
		allowed: map[string]struct{}{},
		blocked: map[string]struct{}{},
	}
}

// Min returns the minimum rank the controller requires.
func (c *AccessController) Min() Rank {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.min
}

// SetMin updates the minimum rank the controller requires.
func (c *AccessController) SetMin(r Rank) {
	c.mu.Lock()
	c.min = r
	c.mu.Unlock()
}

// Allow adds a name to the explicit allow list, overriding the rank check
// for that actor.
func (c *AccessController) Allow(name string) {
	key := strings.ToLower(name)
	c.mu.Lock()
	c.allowed[key] = struct{}{}
	delete(c.blocked, key)
	c.mu.Unlock()
}

// Block adds a name to the explicit deny list.
func (c *AccessController) Block(name string) {
	key := strings.ToLower(name)
	c.mu.Lock()
	c.blocked[key] = struct{}{}
	delete(c.allowed, key)
	c.mu.Unlock()
}

// Check applies the controller's rules to an actor with the effective rank
// passed.
func (c *AccessController) Check(a Actor, effective Rank) bool {
	key := strings.ToLower(a.Name())
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.blocked[key]; ok {
		return false
	}
	if _, ok := c.allowed[key]; ok {
		return true
	}
	return effective >= c.min
}

// CanEnter reports if the actor may enter the level with the effective rank
// passed. Console actors and the main level always pass. A level on the
// lockdown set denies entry with a message to the actor. An actor summoned
// to this level by name passes the rank check at console rank, so
// intentional summons bypass visit restrictions.
func (l *Level) CanEnter(a Actor, effective Rank) bool {
	if a.Console() || l.conf.Registry.IsMain(l) {
		return true
	}
	if l.conf.Lockdown.Contains(l.name) {
		a.Message("The level " + l.name + " is locked down and cannot be entered.")
		return false
	}
	if a.SummonedTo() == l.key {
		effective = RankConsole
	}
	return l.VisitAccess.Check(a, effective)
}

// CanBuild reports if the actor may place or delete blocks in the level.
func (l *Level) CanBuild(a Actor, effective Rank) bool {
	if a.Console() {
		return true
	}
	return l.BuildAccess.Check(a, effective)
}
