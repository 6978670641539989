// This file rebuilds kleio groups from stored entities so records can be
// rendered back to Kleio notation or exported.
package store

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/mesh-intelligence/timelink/pkg/kleio"
	"github.com/mesh-intelligence/timelink/pkg/types"
)

// LoadGroup rebuilds the group tree stored under id.
// Returns ErrInvalidID if id is empty, ErrNotFound if not found.
func (b *Backend) LoadGroup(ctx context.Context, id string) (*kleio.Group, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrNotAttached
	}

	e, err := b.getEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	return b.loadTree(ctx, e, map[string]bool{})
}

func (b *Backend) loadTree(ctx context.Context, e *types.Entity, seen map[string]bool) (*kleio.Group, error) {
	seen[e.ID] = true
	g, err := b.entityToGroup(e)
	if err != nil {
		return nil, err
	}
	kids, err := b.children(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	for _, k := range kids {
		if seen[k.ID] {
			continue
		}
		child, err := b.loadTree(ctx, k, seen)
		if err != nil {
			return nil, err
		}
		if err := g.Attach(child); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// shapeForEntity picks the shape to rebuild e with: the shape named after
// its group, then the shape its class is imported from, then the base shape.
func (b *Backend) shapeForEntity(e *types.Entity) *kleio.Shape {
	for _, name := range []string{e.GroupName, e.Type.Class.GroupName} {
		if name == "" {
			continue
		}
		if s, ok := b.shapes.Shape(name); ok {
			return s
		}
	}
	s, _ := b.shapes.Shape(kleio.BaseShape)
	return s
}

// entityToGroup rebuilds a single group, without children, from e.
func (b *Backend) entityToGroup(e *types.Entity) (*kleio.Group, error) {
	shape := b.shapeForEntity(e)
	name := e.GroupName
	if name == "" {
		name = shape.Name
	}
	g, err := shape.New(nil, nil, kleio.Unchecked(), kleio.Named(name), kleio.WithShapeID(e.ShapeID))
	if err != nil {
		return nil, fmt.Errorf("rebuilding %s: %w", e.ID, err)
	}
	g.SetID(e.ID)
	g.Order, g.Level, g.Line = e.Order, e.Level, e.Line

	for _, at := range e.Type.Chain() {
		if at.ID == types.EntityClass {
			continue
		}
		keys := primaryKeyOf(at.Table)
		for _, a := range at.Attributes {
			col := a.Column()
			if a.PrimaryKey > 0 || slices.Contains(keys, col) {
				continue
			}
			v, ok := e.Columns[col]
			if !ok || v == nil {
				continue
			}
			slot := slotFor(shape, a)
			if g.Get(slot) != nil {
				continue
			}
			if err := g.Set(slot, coreOf(v)); err != nil {
				b.log.Warn("dropping stored value", "id", e.ID, "column", col, "slot", slot, "error", err)
			}
		}
	}
	return g, nil
}

// slotFor chooses the slot a stored attribute goes back into: its own name,
// then a positional slot of the same semantic class, then the semantic
// class itself, then any slot of that class. Unknown attributes keep their
// name, which unchecked groups accept.
func slotFor(shape *kleio.Shape, a types.ClassAttribute) string {
	sem := a.Semantic()
	if shape.Allowed(a.Name) {
		return a.Name
	}
	for _, slot := range shape.Position {
		if shape.ElementType(slot).IsA(sem) {
			return slot
		}
	}
	if shape.Allowed(sem) {
		return sem
	}
	for _, slot := range shape.Slots() {
		if shape.ElementType(slot).IsA(sem) {
			return slot
		}
	}
	return a.Name
}

// coreOf renders a column value as a core value.
func coreOf(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []byte:
		return string(x)
	}
	return fmt.Sprint(v)
}
