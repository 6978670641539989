// This file implements reads, inserts and deletes of entity rows across the
// entities table and the concrete tables of each class chain.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mesh-intelligence/timelink/pkg/types"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(r rowScanner) (*types.Entity, error) {
	var (
		e                                    types.Entity
		shape, parent, group, updated, index sql.NullString
		order, level, line                   sql.NullInt64
	)
	if err := r.Scan(&e.ID, &shape, &parent, &order, &level, &line, &group, &updated, &index); err != nil {
		return nil, err
	}
	e.ShapeID = shape.String
	e.ParentID = parent.String
	e.Order = int(order.Int64)
	e.Level = int(level.Int64)
	e.Line = int(line.Int64)
	e.GroupName = group.String
	if t, err := time.Parse(time.RFC3339Nano, updated.String); err == nil {
		e.UpdatedAt = t
	}
	if index.Valid {
		if t, err := time.Parse(time.RFC3339Nano, index.String); err == nil {
			e.IndexedAt = &t
		}
	}
	return &e, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetEntity returns a stored entity with its concrete columns.
// Returns ErrInvalidID if id is empty, ErrNotFound if not found.
func (b *Backend) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrNotAttached
	}
	return b.getEntity(ctx, id)
}

func (b *Backend) getEntity(ctx context.Context, id string) (*types.Entity, error) {
	row := b.db.QueryRowContext(ctx, b.q("SELECT "+entityColumns+" FROM entities WHERE id = ?"), id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entity %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting entity %s: %w", id, err)
	}
	if err := b.loadColumns(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// loadColumns resolves the entity type and reads the entity's row from
// every concrete table of its chain.
func (b *Backend) loadColumns(ctx context.Context, e *types.Entity) error {
	e.Type = b.typeOrRoot(ctx, e.ShapeID)
	e.Columns = make(map[string]any)

	for _, td := range concreteTables(e.Type) {
		key := primaryKeyOf(td)[0]
		rows, err := b.db.QueryContext(ctx, b.q(fmt.Sprintf("SELECT * FROM %s WHERE %s = ?",
			quoteIdent(td.Name), quoteIdent(key))), e.ID)
		if err != nil {
			return fmt.Errorf("reading %s row of %s: %w", td.Name, e.ID, err)
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return err
		}
		if rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				rows.Close()
				return fmt.Errorf("scanning %s row of %s: %w", td.Name, e.ID, err)
			}
			for i, c := range cols {
				if c == key || vals[i] == nil {
					continue
				}
				e.Columns[c] = normalizeValue(vals[i])
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
	}
	return nil
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case int32:
		return int64(x)
	case int:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}

// concreteTables returns the tables below the entities table along t's
// chain, root first, each table once.
func concreteTables(t *types.EntityType) []*types.TableDef {
	var out []*types.TableDef
	for _, at := range t.Chain() {
		if at.ID == types.EntityClass || at.Table.Name == types.EntitiesTable {
			continue
		}
		if slices.ContainsFunc(out, func(td *types.TableDef) bool { return td.Name == at.Table.Name }) {
			continue
		}
		out = append(out, at.Table)
	}
	return out
}

// Children lists the direct children of id ordered by order. An empty id
// lists the top-level entities.
func (b *Backend) Children(ctx context.Context, id string) ([]*types.Entity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return nil, types.ErrNotAttached
	}
	return b.children(ctx, id)
}

func (b *Backend) children(ctx context.Context, id string) ([]*types.Entity, error) {
	query := "SELECT " + entityColumns + ` FROM entities WHERE parent_id = ? ORDER BY "order", id`
	args := []any{id}
	if id == "" {
		query = "SELECT " + entityColumns + ` FROM entities WHERE parent_id IS NULL ORDER BY "order", id`
		args = nil
	}
	rows, err := b.db.QueryContext(ctx, b.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing children of %s: %w", id, err)
	}
	var out []*types.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning child of %s: %w", id, err)
		}
		out = append(out, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Columns are read after the cursor is closed; SQLite runs on one connection.
	for _, e := range out {
		if err := b.loadColumns(ctx, e); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// insertEntity writes e to the entities table and then to each concrete
// table, root first.
func (b *Backend) insertEntity(ctx context.Context, tx *sql.Tx, e *types.Entity) error {
	var indexed any
	if e.IndexedAt != nil {
		indexed = e.IndexedAt.UTC().Format(time.RFC3339Nano)
	}
	_, err := tx.ExecContext(ctx, b.q("INSERT INTO entities ("+entityColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		e.ID, nullable(e.ShapeID), nullable(e.ParentID), e.Order, e.Level, e.Line,
		e.GroupName, e.UpdatedAt.UTC().Format(time.RFC3339Nano), indexed,
	)
	if err != nil {
		return fmt.Errorf("inserting entity %s: %w", e.ID, err)
	}

	for _, td := range concreteTables(e.Type) {
		var (
			cols []string
			args []any
			keys = primaryKeyOf(td)
		)
		for _, c := range td.Columns {
			v, ok := e.Columns[c.Name]
			switch {
			case slices.Contains(keys, c.Name) && !ok:
				v = e.ID
			case !ok:
				continue
			}
			cols = append(cols, quoteIdent(c.Name))
			args = append(args, v)
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(td.Name), strings.Join(cols, ", "), marks)
		if _, err := tx.ExecContext(ctx, b.q(stmt), args...); err != nil {
			return fmt.Errorf("inserting %s row of %s: %w", td.Name, e.ID, err)
		}
	}
	return nil
}

// loadSubtree reads id and all its descendants into an arena.
func (b *Backend) loadSubtree(ctx context.Context, id string) (*types.Arena, error) {
	rows, err := b.db.QueryContext(ctx, b.q(`
WITH RECURSIVE subtree (id, parent_id, shape_id, ord) AS (
    SELECT id, parent_id, shape_id, "order" FROM entities WHERE id = ?
    UNION ALL
    SELECT e.id, e.parent_id, e.shape_id, e."order"
    FROM entities e JOIN subtree s ON e.parent_id = s.id
)
SELECT id, parent_id, shape_id, ord FROM subtree`), id)
	if err != nil {
		return nil, fmt.Errorf("loading subtree of %s: %w", id, err)
	}
	defer rows.Close()

	arena := types.NewArena()
	for rows.Next() {
		var (
			n             types.Node
			parent, shape sql.NullString
			order         sql.NullInt64
		)
		if err := rows.Scan(&n.ID, &parent, &shape, &order); err != nil {
			return nil, fmt.Errorf("scanning subtree of %s: %w", id, err)
		}
		n.ParentID, n.ShapeID, n.Order = parent.String, shape.String, int(order.Int64)
		if n.ID == id {
			n.ParentID = ""
		}
		if err := arena.Add(n); err != nil {
			return nil, err
		}
	}
	return arena, rows.Err()
}

// typesFor maps every class id present in nodes to its entity type. It must
// run before a row transaction opens, since mapping may execute DDL.
func (b *Backend) typesFor(ctx context.Context, nodes []types.Node) map[string]*types.EntityType {
	out := make(map[string]*types.EntityType)
	for _, n := range nodes {
		if _, ok := out[n.ShapeID]; !ok {
			out[n.ShapeID] = b.typeOrRoot(ctx, n.ShapeID)
		}
	}
	return out
}

// deleteNodes removes nodes in the given order, each from its concrete
// tables most specific first and finally from the entities table.
func (b *Backend) deleteNodes(ctx context.Context, tx *sql.Tx, nodes []types.Node, typs map[string]*types.EntityType) error {
	for _, n := range nodes {
		tables := concreteTables(typs[n.ShapeID])
		slices.Reverse(tables)
		for _, td := range tables {
			stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(td.Name), quoteIdent(primaryKeyOf(td)[0]))
			if _, err := tx.ExecContext(ctx, b.q(stmt), n.ID); err != nil {
				return fmt.Errorf("deleting %s row of %s: %w", td.Name, n.ID, err)
			}
		}
		if _, err := tx.ExecContext(ctx, b.q("DELETE FROM entities WHERE id = ?"), n.ID); err != nil {
			return fmt.Errorf("deleting entity %s: %w", n.ID, err)
		}
	}
	return nil
}

// Delete removes id and every entity it contains, leaf first, in one
// transaction. Returns ErrNotFound if no entity has that id.
func (b *Backend) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached {
		return types.ErrNotAttached
	}

	arena, err := b.loadSubtree(ctx, id)
	if err != nil {
		return err
	}
	nodes := arena.Subtree(id)
	if len(nodes) == 0 {
		return fmt.Errorf("entity %s: %w", id, types.ErrNotFound)
	}
	typs := b.typesFor(ctx, nodes)

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	if err := b.deleteNodes(ctx, tx, nodes, typs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete of %s: %w", id, err)
	}
	b.log.Debug("deleted entity", "id", id, "count", len(nodes))
	return nil
}
