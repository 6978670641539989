// Package store implements the relational backend for timelink: it persists
// kleio groups into a joined-table class hierarchy whose tables are created
// on demand from the class metadata held in the database itself.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/timelink/pkg/kleio"
	"github.com/mesh-intelligence/timelink/pkg/types"
)

// Compile-time interface check.
var _ types.Store = (*Backend)(nil)

// Backend implements types.Store over database/sql.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	dialect  dialect
	log      *slog.Logger
	shapes   *kleio.Registry

	// Mapping state. mapMu serializes schema evolution; the fields below
	// are only touched while holding it.
	mapMu    sync.Mutex
	cache    map[string]*types.EntityType
	registry *typeRegistry
	declared map[string]*types.TableDef
}

// typeRegistry holds every entity type bound in this process, by class id
// and by table name.
type typeRegistry struct {
	byID    map[string]*types.EntityType
	byTable map[string]*types.EntityType
	order   []string
}

func newTypeRegistry() *typeRegistry {
	return &typeRegistry{
		byID:    make(map[string]*types.EntityType),
		byTable: make(map[string]*types.EntityType),
	}
}

func (r *typeRegistry) add(t *types.EntityType) {
	if _, ok := r.byID[t.ID]; !ok {
		r.order = append(r.order, t.ID)
	}
	r.byID[t.ID] = t
	if _, taken := r.byTable[t.Table.Name]; !taken {
		r.byTable[t.Table.Name] = t
	}
}

// NewBackend creates a new backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Attach opens the database described by config, creates the metadata
// tables when missing and seeds the base classes on first use.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	d, err := dialectFor(config.Backend)
	if err != nil {
		return err
	}

	if d.name() == types.BackendSQLite && config.DSN == "" {
		dataDir := config.DataDir
		if dataDir == "" {
			dataDir = "."
		}
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return err
		}
	}

	db, err := sql.Open(d.driver(), d.dsn(config))
	if err != nil {
		return fmt.Errorf("open %s: %w", d.name(), err)
	}
	if n := d.maxOpenConns(); n > 0 {
		db.SetMaxOpenConns(n)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping %s: %w", d.name(), err)
	}
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	b.db = db
	b.dialect = d
	b.config = config
	b.log = config.Logger
	if b.log == nil {
		b.log = slog.Default()
	}
	b.log = b.log.With("component", "store", "backend", d.name())
	b.shapes = config.Shapes
	if b.shapes == nil {
		b.shapes = kleio.NewRegistry()
	}

	if err := b.seedBaseClasses(ctx); err != nil {
		db.Close()
		b.db = nil
		return fmt.Errorf("seeding classes: %w", err)
	}

	b.cache = make(map[string]*types.EntityType)
	b.registry = newTypeRegistry()
	b.declared = make(map[string]*types.TableDef)
	if err := b.registerRootType(ctx); err != nil {
		db.Close()
		b.db = nil
		return err
	}

	b.attached = true
	return nil
}

// Detach releases all resources held by the backend.
// After Detach, all operations return ErrNotAttached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
		b.db = nil
	}

	b.mapMu.Lock()
	b.cache = nil
	b.registry = nil
	b.declared = nil
	b.mapMu.Unlock()

	b.attached = false
	return nil
}

// Shapes returns the shape registry groups are rebuilt with.
func (b *Backend) Shapes() *kleio.Registry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.shapes == nil {
		return kleio.NewRegistry()
	}
	return b.shapes
}

// EntityTypes lists the entity types bound so far, in binding order.
func (b *Backend) EntityTypes() []*types.EntityType {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil
	}

	b.mapMu.Lock()
	defer b.mapMu.Unlock()
	out := make([]*types.EntityType, 0, len(b.registry.order))
	for _, id := range b.registry.order {
		out = append(out, b.registry.byID[id])
	}
	return out
}

// TypeForShape returns the entity type bound to a class id, if any.
func (b *Backend) TypeForShape(id string) (*types.EntityType, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, false
	}
	b.mapMu.Lock()
	defer b.mapMu.Unlock()
	t, ok := b.registry.byID[id]
	return t, ok
}

// TypeForTable returns the entity type bound to a table, if any.
func (b *Backend) TypeForTable(name string) (*types.EntityType, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, false
	}
	b.mapMu.Lock()
	defer b.mapMu.Unlock()
	t, ok := b.registry.byTable[name]
	return t, ok
}

// q rebinds a query for the attached dialect.
func (b *Backend) q(query string) string {
	return b.dialect.rebind(query)
}

// newID generates a UUID v7 for groups stored without an id.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
