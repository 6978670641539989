// This file implements the classes and class_attributes metadata tables.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mesh-intelligence/timelink/pkg/types"
)

// UpsertClass creates or replaces a class and its attributes in one
// transaction. An empty table name defaults to the class id and an empty
// super class to the entity class. The class's cache entry is dropped so the
// next EnsureMapping picks up the new attributes.
func (b *Backend) UpsertClass(ctx context.Context, class types.ClassMapping, attrs []types.ClassAttribute) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrNotAttached
	}
	return b.upsertClass(ctx, class, attrs)
}

func (b *Backend) upsertClass(ctx context.Context, class types.ClassMapping, attrs []types.ClassAttribute) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning class transaction: %w", err)
	}
	defer tx.Rollback()

	if err := b.upsertClassTx(ctx, tx, class, attrs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing class %s: %w", class.ID, err)
	}

	b.invalidate(class.ID)
	return nil
}

func normalizeClass(class types.ClassMapping) (types.ClassMapping, error) {
	class.ID = strings.TrimSpace(class.ID)
	if class.ID == "" || class.ID == types.RootClass {
		return class, types.ErrInvalidID
	}
	if class.TableName == "" {
		class.TableName = class.ID
	}
	if class.SuperClass == "" {
		class.SuperClass = types.EntityClass
		if class.ID == types.EntityClass {
			class.SuperClass = types.RootClass
		}
	}
	return class, nil
}

func (b *Backend) upsertClassTx(ctx context.Context, tx *sql.Tx, class types.ClassMapping, attrs []types.ClassAttribute) error {
	class, err := normalizeClass(class)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, b.q(
		`INSERT INTO classes (id, table_name, group_name, super_class) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   table_name = excluded.table_name,
		   group_name = excluded.group_name,
		   super_class = excluded.super_class`),
		class.ID, class.TableName, class.GroupName, class.SuperClass,
	)
	if err != nil {
		return fmt.Errorf("upserting class %s: %w", class.ID, err)
	}

	if _, err := tx.ExecContext(ctx, b.q("DELETE FROM class_attributes WHERE class_id = ?"), class.ID); err != nil {
		return fmt.Errorf("clearing attributes of %s: %w", class.ID, err)
	}
	for _, a := range attrs {
		a.ClassID = class.ID
		if err := b.upsertAttribute(ctx, tx, a); err != nil {
			return err
		}
	}
	return nil
}

// upsertAttribute writes one attribute row, replacing any with the same
// class and name.
func (b *Backend) upsertAttribute(ctx context.Context, q querier, a types.ClassAttribute) error {
	if a.ClassID == "" || a.Name == "" {
		return fmt.Errorf("attribute %s.%s: %w", a.ClassID, a.Name, types.ErrInvalidID)
	}
	if a.ColumnName == "" {
		a.ColumnName = a.Name
	}
	_, err := q.ExecContext(ctx, b.q(
		`INSERT INTO class_attributes
		   (class_id, name, column_name, column_semantic_class, column_type,
		    column_size, column_precision, primary_key)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (class_id, name) DO UPDATE SET
		   column_name = excluded.column_name,
		   column_semantic_class = excluded.column_semantic_class,
		   column_type = excluded.column_type,
		   column_size = excluded.column_size,
		   column_precision = excluded.column_precision,
		   primary_key = excluded.primary_key`),
		a.ClassID, a.Name, a.ColumnName, a.ColumnSemanticClass, a.ColumnType,
		a.ColumnSize, a.ColumnPrecision, a.PrimaryKey,
	)
	if err != nil {
		return fmt.Errorf("upserting attribute %s.%s: %w", a.ClassID, a.Name, err)
	}
	return nil
}

// putAttribute adds or replaces a single attribute of an existing class.
func (b *Backend) putAttribute(ctx context.Context, a types.ClassAttribute) error {
	if _, _, err := b.getClass(ctx, b.db, a.ClassID); err != nil {
		return err
	}
	if err := b.upsertAttribute(ctx, b.db, a); err != nil {
		return err
	}
	b.invalidate(a.ClassID)
	return nil
}

// GetClass returns a class and its attributes, primary key first.
// Returns ErrClassNotFound if no class has that id.
func (b *Backend) GetClass(ctx context.Context, id string) (*types.ClassMapping, []types.ClassAttribute, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, nil, types.ErrNotAttached
	}
	return b.getClass(ctx, b.db, id)
}

func (b *Backend) getClass(ctx context.Context, q querier, id string) (*types.ClassMapping, []types.ClassAttribute, error) {
	var (
		c     types.ClassMapping
		group sql.NullString
	)
	err := q.QueryRowContext(ctx, b.q(
		"SELECT id, table_name, group_name, super_class FROM classes WHERE id = ?"), id,
	).Scan(&c.ID, &c.TableName, &group, &c.SuperClass)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("class %s: %w", id, types.ErrClassNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("getting class %s: %w", id, err)
	}
	c.GroupName = group.String

	rows, err := q.QueryContext(ctx, b.q(
		`SELECT class_id, name, column_name, column_semantic_class, column_type,
		        column_size, column_precision, primary_key
		 FROM class_attributes WHERE class_id = ?`), id)
	if err != nil {
		return nil, nil, fmt.Errorf("getting attributes of %s: %w", id, err)
	}
	defer rows.Close()

	var attrs []types.ClassAttribute
	for rows.Next() {
		var (
			a             types.ClassAttribute
			semantic, typ sql.NullString
		)
		if err := rows.Scan(&a.ClassID, &a.Name, &a.ColumnName, &semantic, &typ,
			&a.ColumnSize, &a.ColumnPrecision, &a.PrimaryKey); err != nil {
			return nil, nil, fmt.Errorf("scanning attribute of %s: %w", id, err)
		}
		a.ColumnSemanticClass = semantic.String
		a.ColumnType = typ.String
		attrs = append(attrs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	sortAttributes(attrs)
	return &c, attrs, nil
}

// sortAttributes orders primary key columns first, by key position, then
// the rest by name.
func sortAttributes(attrs []types.ClassAttribute) {
	slices.SortStableFunc(attrs, func(a, b types.ClassAttribute) int {
		switch {
		case a.PrimaryKey > 0 && b.PrimaryKey > 0:
			return a.PrimaryKey - b.PrimaryKey
		case a.PrimaryKey > 0:
			return -1
		case b.PrimaryKey > 0:
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
}

// Classes lists every declared class ordered by id.
func (b *Backend) Classes(ctx context.Context) ([]types.ClassMapping, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrNotAttached
	}
	return b.classes(ctx)
}

func (b *Backend) classes(ctx context.Context) ([]types.ClassMapping, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT id, table_name, group_name, super_class FROM classes ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("listing classes: %w", err)
	}
	defer rows.Close()

	var out []types.ClassMapping
	for rows.Next() {
		var (
			c     types.ClassMapping
			group sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.TableName, &group, &c.SuperClass); err != nil {
			return nil, fmt.Errorf("scanning class: %w", err)
		}
		c.GroupName = group.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// classByGroup returns the id of the class imported from groups called name.
func (b *Backend) classByGroup(ctx context.Context, name string) (string, bool, error) {
	var id string
	err := b.db.QueryRowContext(ctx, b.q(
		"SELECT id FROM classes WHERE group_name = ? ORDER BY id LIMIT 1"), name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up class for group %s: %w", name, err)
	}
	return id, true, nil
}
