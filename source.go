package migrate

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Migration is a user-supplied pair of optional actions identified by a
// file-derived name. A nil action means the migration has nothing to do in
// that direction and is skipped without touching history.
type Migration struct {
	// Up applies the migration.
	Up func(ctx context.Context) error

	// Down reverses the migration.
	Down func(ctx context.Context) error
}

// Action returns the function for the given direction, nil if the
// migration does not define one.
func (m *Migration) Action(direction Direction) func(ctx context.Context) error {
	if direction == DirectionDown {
		return m.Down
	}
	return m.Up
}

// Source resolves a migration ID to its runnable unit at execution time.
// Resolution is deliberately late: the unit behind an ID may change between
// listing and execution, and only the executor cares.
type Source interface {
	// Load returns the migration unit for name. Returns a NotRunnableError
	// if no unit can be resolved for it.
	Load(name ID) (*Migration, error)
}

// Registry is a Source backed by an in-process function table. Migration
// files register their units at init time; the executor resolves them by
// the ID derived from the filename.
type Registry struct {
	mu    sync.RWMutex
	units map[ID]*Migration
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{units: make(map[ID]*Migration)}
}

// Register adds a migration unit under name. Registering the same name
// twice panics: it means two files resolved to one ID and the sequence
// would be ambiguous.
func (r *Registry) Register(name ID, m *Migration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.units[name]; ok {
		panic(fmt.Sprintf("migrate: %s registered twice", name))
	}
	r.units[name] = m
}

// Load returns the unit registered under name.
func (r *Registry) Load(name ID) (*Migration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.units[name]
	if !ok {
		return nil, &NotRunnableError{Name: name}
	}
	return m, nil
}

// Names returns the registered IDs in ascending order.
func (r *Registry) Names() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]ID, 0, len(r.units))
	for name := range r.units {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// DefaultRegistry is the registry used by the package-level Register. It
// exists so migration files can self-register from init without plumbing.
var DefaultRegistry = NewRegistry()

// Register adds a migration to the DefaultRegistry. Intended to be called
// from init in a migration file:
//
//	func init() {
//	    migrate.Register("20240101120000_create_users", &migrate.Migration{
//	        Up:   createUsers,
//	        Down: dropUsers,
//	    })
//	}
func Register(name ID, m *Migration) {
	DefaultRegistry.Register(name, m)
}
