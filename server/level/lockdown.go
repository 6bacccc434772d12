package level

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/opal-mc/opal/server/internal/nameutil"
	"github.com/pelletier/go-toml"
)

// ErrLockdownUnavailable is returned when a lockdown operation is attempted
// without a configured lockdown set.
var ErrLockdownUnavailable = errors.New("lockdown set is not configured")

// Lockdown is the global set of level names currently barred from entry.
// Entries are persisted in a TOML file so a restart keeps levels locked.
type Lockdown struct {
	mu       sync.RWMutex
	levels   map[string]string
	filePath string
}

type lockdownFile struct {
	Levels []string `toml:"levels"`
}

// LoadLockdown loads the lockdown set stored in the file at the provided
// path. If the file does not exist yet, it will be created empty.
func LoadLockdown(path string) (*Lockdown, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("lockdown path must not be empty")
	}
	l := &Lockdown{
		levels:   make(map[string]string),
		filePath: path,
	}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Contains reports if the level name passed is currently locked down. A nil
// Lockdown locks nothing.
func (l *Lockdown) Contains(name string) bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	_, ok := l.levels[nameutil.Fold(name)]
	l.mu.RUnlock()
	return ok
}

// Add inserts the level name into the lockdown set. The returned bool
// indicates if the name was newly added.
func (l *Lockdown) Add(name string) (bool, error) {
	if l == nil {
		return false, ErrLockdownUnavailable
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return false, errors.New("invalid level name")
	}
	key := nameutil.Fold(trimmed)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.levels[key]; exists {
		return false, nil
	}
	l.levels[key] = trimmed
	if err := l.writeLocked(); err != nil {
		delete(l.levels, key)
		return false, err
	}
	return true, nil
}

// Remove deletes the level name from the lockdown set. The returned bool
// indicates if the name was present before the call.
func (l *Lockdown) Remove(name string) (bool, error) {
	if l == nil {
		return false, ErrLockdownUnavailable
	}
	key := nameutil.Fold(strings.TrimSpace(name))

	l.mu.Lock()
	defer l.mu.Unlock()
	original, exists := l.levels[key]
	if !exists {
		return false, nil
	}
	delete(l.levels, key)
	if err := l.writeLocked(); err != nil {
		l.levels[key] = original
		return false, err
	}
	return true, nil
}

// Levels returns the locked level names in sorted order.
func (l *Lockdown) Levels() []string {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.levels))
	for _, name := range l.levels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *Lockdown) reload() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data := lockdownFile{}
	contents, err := os.ReadFile(l.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.levels = make(map[string]string)
			return l.writeLocked()
		}
		return fmt.Errorf("read lockdown set: %w", err)
	}
	if len(contents) != 0 {
		if err := toml.Unmarshal(contents, &data); err != nil {
			return fmt.Errorf("decode lockdown set: %w", err)
		}
	}
	l.levels = make(map[string]string, len(data.Levels))
	for _, name := range data.Levels {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		l.levels[nameutil.Fold(trimmed)] = trimmed
	}
	return nil
}

func (l *Lockdown) writeLocked() error {
	names := make([]string, 0, len(l.levels))
	for _, name := range l.levels {
		names = append(names, name)
	}
	sort.Strings(names)
	contents, err := toml.Marshal(lockdownFile{Levels: names})
	if err != nil {
		return fmt.Errorf("encode lockdown set: %w", err)
	}
	if dir := filepath.Dir(l.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create lockdown directory: %w", err)
		}
	}
	if err := os.WriteFile(l.filePath, contents, 0o644); err != nil {
		return fmt.Errorf("write lockdown set: %w", err)
	}
	return nil
}
