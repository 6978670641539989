package types

import (
	"context"
	"io"

	"github.com/mesh-intelligence/timelink/pkg/kleio"
)

// Store persists kleio groups into a relational schema that grows at run
// time. Callers attach to a backend, declare or look up classes, store
// groups and detach when done.
type Store interface {
	// Attach connects to the backend described by config, creates the
	// metadata tables when missing and seeds the base classes.
	// Returns ErrAlreadyAttached if called while attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent.
	Detach() error

	// UpsertClass creates or replaces a class and its attributes.
	UpsertClass(ctx context.Context, class ClassMapping, attrs []ClassAttribute) error

	// GetClass returns a class and its attributes, primary key first.
	// Returns ErrClassNotFound if no class has that id.
	GetClass(ctx context.Context, id string) (*ClassMapping, []ClassAttribute, error)

	// Classes lists every declared class ordered by id.
	Classes(ctx context.Context) ([]ClassMapping, error)

	// EnsureMapping returns the entity type for a class, creating its table
	// and the tables of its super classes when they do not exist yet.
	EnsureMapping(ctx context.Context, classID string) (*EntityType, error)

	// EntityTypes lists the entity types bound so far.
	EntityTypes() []*EntityType

	// TypeForShape returns the entity type bound to a class id, if any.
	TypeForShape(id string) (*EntityType, bool)

	// TypeForTable returns the entity type whose concrete table is name, if
	// any.
	TypeForTable(name string) (*EntityType, bool)

	// GroupToEntity projects a group onto the class it maps to. A non-empty
	// withShape overrides class resolution.
	GroupToEntity(ctx context.Context, g *kleio.Group, withShape string) (*Entity, error)

	// StoreGroup stores g and its descendants, replacing any entity already
	// stored under the same id.
	StoreGroup(ctx context.Context, g *kleio.Group) error

	// GetEntity returns a stored entity with its concrete columns.
	// Returns ErrNotFound if no entity has that id.
	GetEntity(ctx context.Context, id string) (*Entity, error)

	// Children lists the direct children of an entity ordered by order.
	Children(ctx context.Context, id string) ([]*Entity, error)

	// Delete removes an entity and everything it contains.
	// Returns ErrNotFound if no entity has that id.
	Delete(ctx context.Context, id string) error

	// LoadGroup rebuilds the group tree stored under id.
	LoadGroup(ctx context.Context, id string) (*kleio.Group, error)

	// ImportKleio parses Kleio notation from r and stores every group.
	ImportKleio(ctx context.Context, r io.Reader) (ImportStats, error)

	// ImportFeed reads a JSONL feed of classes, attributes and groups.
	ImportFeed(ctx context.Context, r io.Reader) (ImportStats, error)

	// Export writes every entity to path as JSONL, one group record per line.
	Export(ctx context.Context, path string) (int, error)

	// Shapes returns the shape registry the store rebuilds groups with.
	Shapes() *kleio.Registry
}

// ImportStats counts what an import stored.
type ImportStats struct {
	Classes int
	Groups  int
	Skipped int
}
