// This file implements the mapping engine: it turns a class declared in the
// classes table into a bound entity type with a physical table, reconciling
// what is cached, registered, declared and present in the database.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/timelink/pkg/types"
)

// EnsureMapping returns the entity type for classID, creating the tables of
// the class and its super classes when they do not exist. Calling it again
// for the same class returns the same type and table definition.
func (b *Backend) EnsureMapping(ctx context.Context, classID string) (*types.EntityType, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrNotAttached
	}
	return b.ensure(ctx, classID)
}

// ensure is EnsureMapping for callers already holding b.mu.
func (b *Backend) ensure(ctx context.Context, classID string) (*types.EntityType, error) {
	b.mapMu.Lock()
	defer b.mapMu.Unlock()
	return b.ensureMapping(ctx, classID, 0)
}

// ensureMapping walks the states in order; the first that applies wins:
//
//  1. the class is cached;
//  2. an entity type is registered for it: adopt and cache;
//  3. its table is already declared: reuse the definition;
//  4. its table exists in the database: introspect it;
//  5. otherwise synthesize the table from the class attributes.
//
// In states 3 to 5 the super class is resolved first and a new type is bound,
// registered and cached. The caller holds b.mapMu.
func (b *Backend) ensureMapping(ctx context.Context, classID string, depth int) (*types.EntityType, error) {
	if depth > types.MaxHierarchyDepth {
		return nil, fmt.Errorf("class %s: super chain longer than %d: %w",
			classID, types.MaxHierarchyDepth, types.ErrMappingResolution)
	}
	if t, ok := b.cache[classID]; ok {
		return t, nil
	}
	if t, ok := b.registry.byID[classID]; ok {
		if err := b.adopt(ctx, t); err != nil {
			return nil, err
		}
		b.cache[classID] = t
		return t, nil
	}

	class, attrs, err := b.getClass(ctx, b.db, classID)
	if err != nil {
		return nil, err
	}

	super, err := b.resolveSuper(ctx, class, depth)
	if err != nil {
		return nil, err
	}
	// A cycle may have bound this class further down the recursion.
	if t, ok := b.cache[classID]; ok {
		return t, nil
	}

	td, err := b.tableFor(ctx, class, attrs, super)
	if err != nil {
		return nil, err
	}

	t := &types.EntityType{
		ID:         class.ID,
		Table:      td,
		Super:      super,
		Class:      *class,
		Attributes: attrs,
	}
	b.registry.add(t)
	b.cache[classID] = t
	b.log.Debug("bound entity type", "class", class.ID, "table", td.Name, "super_class", super.ID)
	return t, nil
}

// resolveSuper returns the entity type of class's super class. A super class
// that cannot be resolved degrades to the root entity type with a warning.
func (b *Backend) resolveSuper(ctx context.Context, class *types.ClassMapping, depth int) (*types.EntityType, error) {
	root := b.cache[types.EntityClass]
	if class.IsRoot() || class.SuperClass == types.EntityClass {
		return root, nil
	}
	if class.SuperClass == class.ID {
		b.log.Warn("class is its own super class, using root",
			"class", class.ID, "super_class", class.SuperClass)
		return root, nil
	}

	super, err := b.ensureMapping(ctx, class.SuperClass, depth+1)
	if err == nil {
		return super, nil
	}
	if errors.Is(err, types.ErrClassNotFound) || errors.Is(err, types.ErrMappingResolution) {
		b.log.Warn("super class unresolvable, using root",
			"class", class.ID, "super_class", class.SuperClass, "error", err)
		return root, nil
	}
	return nil, err
}

// tableFor finds or creates the table of class.
func (b *Backend) tableFor(ctx context.Context, class *types.ClassMapping, attrs []types.ClassAttribute, super *types.EntityType) (*types.TableDef, error) {
	name := class.TableName
	if td, ok := b.declared[name]; ok {
		// Shared by another class; this one may declare extra columns.
		if err := b.addMissingColumns(ctx, td, attrs); err != nil {
			return nil, err
		}
		return td, nil
	}

	exists, err := b.dialect.tableExists(ctx, b.db, name)
	if err != nil {
		return nil, err
	}
	if exists {
		td, err := b.introspect(ctx, name, super)
		if err != nil {
			return nil, err
		}
		if err := b.addMissingColumns(ctx, td, attrs); err != nil {
			return nil, err
		}
		b.declared[name] = td
		return td, nil
	}

	td := synthesize(name, attrs, super)
	if err := b.createTable(ctx, td); err != nil {
		return nil, err
	}
	b.declared[name] = td
	return td, nil
}

// adopt refreshes a registered type from the class metadata, adding
// columns for attributes declared since the type was bound.
func (b *Backend) adopt(ctx context.Context, t *types.EntityType) error {
	class, attrs, err := b.getClass(ctx, b.db, t.ID)
	if err != nil {
		return err
	}
	t.Class = *class
	t.Attributes = attrs
	return b.addMissingColumns(ctx, t.Table, attrs)
}

func (b *Backend) addMissingColumns(ctx context.Context, td *types.TableDef, attrs []types.ClassAttribute) error {
	for _, a := range attrs {
		if columnIndex(td, a.Column()) >= 0 {
			continue
		}
		c := columnFor(a)
		c.PrimaryKey = 0
		c.Nullable = true
		if err := b.addColumn(ctx, td, c); err != nil {
			return err
		}
	}
	return nil
}

// registerRootType binds the entity class to the entities table created by
// the schema.
func (b *Backend) registerRootType(ctx context.Context) error {
	class, attrs, err := b.getClass(ctx, b.db, types.EntityClass)
	if err != nil {
		return fmt.Errorf("loading root class: %w", err)
	}
	td := entitiesTableDef()
	t := &types.EntityType{ID: types.EntityClass, Table: td, Class: *class, Attributes: attrs}

	b.mapMu.Lock()
	defer b.mapMu.Unlock()
	b.declared[td.Name] = td
	b.registry.add(t)
	b.cache[t.ID] = t
	return nil
}

// invalidate drops the cache entry of a class.
func (b *Backend) invalidate(classID string) {
	b.mapMu.Lock()
	defer b.mapMu.Unlock()
	if classID != types.EntityClass {
		delete(b.cache, classID)
	}
}

// typeOrRoot returns the entity type of classID, or the root type when the
// class is unknown or cannot be mapped.
func (b *Backend) typeOrRoot(ctx context.Context, classID string) *types.EntityType {
	if classID != "" {
		t, err := b.ensure(ctx, classID)
		if err == nil {
			return t
		}
		b.log.Debug("using root type", "class", classID, "error", err)
	}
	b.mapMu.Lock()
	defer b.mapMu.Unlock()
	return b.cache[types.EntityClass]
}
