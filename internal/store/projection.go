// This file projects kleio groups onto entity rows and stores group trees
// with replace-on-reimport semantics.
package store

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/timelink/pkg/kleio"
	"github.com/mesh-intelligence/timelink/pkg/types"
)

// GroupToEntity projects g onto the class it maps to. A non-empty withShape
// overrides class resolution.
func (b *Backend) GroupToEntity(ctx context.Context, g *kleio.Group, withShape string) (*types.Entity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrNotAttached
	}
	return b.groupToEntity(ctx, g, withShape)
}

// resolveClass picks the class of g: the explicit override, then the class
// recorded on the group, then the class imported from groups of that name,
// then the class of the nearest shape g's shape extends.
func (b *Backend) resolveClass(ctx context.Context, g *kleio.Group, withShape string) (string, error) {
	if withShape != "" {
		return withShape, nil
	}
	if g.ShapeID != "" {
		return g.ShapeID, nil
	}
	names := []string{g.Name}
	for s := g.Shape; s != nil; s = s.Parent {
		if !slices.Contains(names, s.Name) {
			names = append(names, s.Name)
		}
	}
	for _, name := range names {
		id, ok, err := b.classByGroup(ctx, name)
		if err != nil {
			return "", err
		}
		if ok {
			return id, nil
		}
	}
	return "", fmt.Errorf("group %s: %w", g.Name, types.ErrClassNotFound)
}

func (b *Backend) groupToEntity(ctx context.Context, g *kleio.Group, withShape string) (*types.Entity, error) {
	classID, err := b.resolveClass(ctx, g, withShape)
	if err != nil {
		return nil, err
	}
	t, err := b.ensure(ctx, classID)
	if err != nil {
		return nil, err
	}

	e := &types.Entity{
		ID:        g.ID(),
		ShapeID:   t.ID,
		GroupName: g.Name,
		Order:     g.Order,
		Level:     g.Level,
		Line:      g.Line,
		UpdatedAt: time.Now().UTC(),
		Columns:   make(map[string]any),
		Type:      t,
	}
	if g.Parent != nil {
		e.ParentID = g.Parent.ID()
	}

	for _, at := range t.Chain() {
		if at.ID == types.EntityClass {
			continue
		}
		keys := primaryKeyOf(at.Table)
		for _, a := range at.Attributes {
			col := a.Column()
			if a.PrimaryKey > 0 || slices.Contains(keys, col) {
				continue
			}
			c, ok := at.Table.Column(col)
			if !ok {
				b.log.Warn("attribute has no column", "class", at.ID, "column", col)
				continue
			}
			el, ok := g.ResolveElementForColumn(a.Name, a.Semantic())
			if !ok || el.Core == "" {
				b.log.Debug("no element for column", "class", at.ID, "column", col, "group", g.Name)
				continue
			}
			v, err := convertCore(el.Core, c.Kind)
			if err != nil {
				b.log.Warn("skipping column", "class", at.ID, "column", col, "id", e.ID, "error", err)
				continue
			}
			e.Columns[col] = v
		}
	}
	return e, nil
}

// convertCore turns a core value into the Go value stored in a column.
func convertCore(core string, kind types.ColumnKind) (any, error) {
	switch kind {
	case types.KindInteger:
		return strconv.ParseInt(strings.TrimSpace(core), 10, 64)
	case types.KindFloat:
		return strconv.ParseFloat(strings.TrimSpace(core), 64)
	}
	return core, nil
}

// StoreGroup stores g and its descendants. Each group replaces the entity
// stored under its id, subtree included, in its own transaction; a failure
// leaves the groups stored before it in place.
func (b *Backend) StoreGroup(ctx context.Context, g *kleio.Group) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrNotAttached
	}
	_, err := b.storeGroup(ctx, g)
	return err
}

// storeGroup stores the tree rooted at g and returns how many groups were
// stored.
func (b *Backend) storeGroup(ctx context.Context, g *kleio.Group) (int, error) {
	n := 0
	err := g.Walk(func(node *kleio.Group) error {
		parentID := ""
		if node.Parent != nil {
			parentID = node.Parent.ID()
		}
		if err := b.storeOne(ctx, node, parentID); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

// storeOne replaces the entity stored under g's id with the projection of g.
func (b *Backend) storeOne(ctx context.Context, g *kleio.Group, parentID string) error {
	if g.ID() == "" {
		g.SetID(newID())
	}
	e, err := b.groupToEntity(ctx, g, "")
	if err != nil {
		return &types.ImportError{ID: g.ID(), Group: g.Name, Err: err}
	}
	e.ParentID = parentID
	if err := b.replaceEntity(ctx, e); err != nil {
		return &types.ImportError{ID: g.ID(), Group: g.Name, Err: err}
	}
	return nil
}

// replaceEntity deletes any entity stored under e.ID, with everything it
// contains, and inserts e, in one transaction.
func (b *Backend) replaceEntity(ctx context.Context, e *types.Entity) error {
	arena, err := b.loadSubtree(ctx, e.ID)
	if err != nil {
		return err
	}
	old := arena.Subtree(e.ID)
	typs := b.typesFor(ctx, old)

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning store transaction: %w", err)
	}
	defer tx.Rollback()

	if err := b.deleteNodes(ctx, tx, old, typs); err != nil {
		return err
	}
	if err := b.insertEntity(ctx, tx, e); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing entity %s: %w", e.ID, err)
	}
	return nil
}
