// This file builds table definitions from class attributes and renders the
// DDL that creates or extends them.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/timelink/pkg/types"
)

// joinColumn is the primary key column linking every table to its super
// table when a class declares no primary key of its own.
const joinColumn = "id"

// entitiesTableDef describes the root entities table created by the schema.
func entitiesTableDef() *types.TableDef {
	return &types.TableDef{Name: types.EntitiesTable, Columns: []types.Column{
		{Name: "id", Kind: types.KindString, Size: 64, PrimaryKey: 1},
		{Name: "shape_id", Kind: types.KindString, Size: 64, References: "classes.id", Nullable: true},
		{Name: "parent_id", Kind: types.KindString, Size: 64, References: "entities.id", Nullable: true},
		{Name: "order", Kind: types.KindInteger, Nullable: true},
		{Name: "level", Kind: types.KindInteger, Nullable: true},
		{Name: "line", Kind: types.KindInteger, Nullable: true},
		{Name: "group_name", Kind: types.KindString, Size: 128, Nullable: true},
		{Name: "updated_at", Kind: types.KindString},
		{Name: "indexed_at", Kind: types.KindString, Nullable: true},
	}}
}

// columnFor derives the storage column of an attribute: character types keep
// their size, numeric columns become integers without precision and floats
// with it, anything else is stored as characters.
func columnFor(a types.ClassAttribute) types.Column {
	c := types.Column{
		Name:       a.Column(),
		PrimaryKey: a.PrimaryKey,
		Nullable:   a.PrimaryKey == 0,
	}
	switch strings.ToLower(a.ColumnType) {
	case types.ColumnVarchar, types.ColumnChar:
		c.Kind, c.Size = types.KindString, a.ColumnSize
	case types.ColumnText:
		c.Kind = types.KindString
	case types.ColumnNumeric:
		if a.ColumnPrecision == 0 {
			c.Kind = types.KindInteger
		} else {
			c.Kind = types.KindFloat
		}
	default:
		c.Kind, c.Size = types.KindString, a.ColumnSize
	}
	return c
}

// primaryKeyOf returns the names of a table's key columns, defaulting to
// the join column.
func primaryKeyOf(td *types.TableDef) []string {
	var names []string
	for _, c := range td.PrimaryKey() {
		names = append(names, c.Name)
	}
	if len(names) == 0 {
		names = []string{joinColumn}
	}
	return names
}

// synthesize builds the definition of a new table for a class. Primary key
// columns reference the super table's key; a class without key attributes
// gets the super table's key as its own.
func synthesize(name string, attrs []types.ClassAttribute, super *types.EntityType) *types.TableDef {
	td := &types.TableDef{Name: name}
	var superKey []string
	if super != nil {
		superKey = primaryKeyOf(super.Table)
	}

	hasKey := false
	for _, a := range attrs {
		c := columnFor(a)
		if c.PrimaryKey > 0 {
			hasKey = true
			if super != nil {
				c.References = super.Table.Name + "." + superKeyFor(superKey, c.PrimaryKey)
			}
		}
		td.Columns = append(td.Columns, c)
	}

	if !hasKey {
		var key []types.Column
		names := superKey
		if len(names) == 0 {
			names = []string{joinColumn}
		}
		for i, n := range names {
			c := types.Column{Name: n, Kind: types.KindString, Size: 64, PrimaryKey: i + 1}
			if super != nil {
				c.References = super.Table.Name + "." + n
			}
			key = append(key, c)
		}
		td.Columns = append(key, td.Columns...)
	}
	return td
}

func superKeyFor(superKey []string, ordinal int) string {
	if ordinal-1 < len(superKey) {
		return superKey[ordinal-1]
	}
	return superKey[len(superKey)-1]
}

// createTableSQL renders CREATE TABLE IF NOT EXISTS for td.
func createTableSQL(d dialect, td *types.TableDef) string {
	var lines []string
	for _, c := range td.Columns {
		line := "    " + quoteIdent(c.Name) + " " + d.columnType(c)
		if !c.Nullable || c.PrimaryKey > 0 {
			line += " NOT NULL"
		}
		lines = append(lines, line)
	}

	var key []string
	for _, c := range td.PrimaryKey() {
		key = append(key, quoteIdent(c.Name))
	}
	if len(key) > 0 {
		lines = append(lines, "    PRIMARY KEY ("+strings.Join(key, ", ")+")")
	}

	for _, c := range td.Columns {
		if c.References == "" {
			continue
		}
		table, column, _ := strings.Cut(c.References, ".")
		lines = append(lines, fmt.Sprintf("    FOREIGN KEY (%s) REFERENCES %s (%s)",
			quoteIdent(c.Name), quoteIdent(table), quoteIdent(column)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", quoteIdent(td.Name), strings.Join(lines, ",\n"))
}

// addColumnSQL renders ALTER TABLE ... ADD COLUMN for c.
func addColumnSQL(d dialect, table string, c types.Column) string {
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", quoteIdent(table), quoteIdent(c.Name), d.columnType(c))
	if c.References != "" {
		rt, rc, _ := strings.Cut(c.References, ".")
		stmt += fmt.Sprintf(" REFERENCES %s (%s)", quoteIdent(rt), quoteIdent(rc))
	}
	return stmt
}

// createTable executes the DDL for td directly on the database, outside any
// row transaction.
func (b *Backend) createTable(ctx context.Context, td *types.TableDef) error {
	if _, err := b.db.ExecContext(ctx, createTableSQL(b.dialect, td)); err != nil {
		return fmt.Errorf("create table %s: %w: %w", td.Name, types.ErrDDL, err)
	}
	b.log.Info("created table", "table", td.Name, "columns", len(td.Columns))
	return nil
}

// addColumn extends an existing table with c.
func (b *Backend) addColumn(ctx context.Context, td *types.TableDef, c types.Column) error {
	if _, err := b.db.ExecContext(ctx, addColumnSQL(b.dialect, td.Name, c)); err != nil {
		return fmt.Errorf("add column %s.%s: %w: %w", td.Name, c.Name, types.ErrDDL, err)
	}
	td.Columns = append(td.Columns, c)
	b.log.Info("added column", "table", td.Name, "column", c.Name)
	return nil
}

// introspect reads the definition of an existing table and makes sure it
// carries the key columns linking it to its super table.
func (b *Backend) introspect(ctx context.Context, name string, super *types.EntityType) (*types.TableDef, error) {
	cols, err := b.dialect.columns(ctx, b.db, name)
	if err != nil {
		return nil, fmt.Errorf("introspect %s: %w", name, err)
	}
	td := &types.TableDef{Name: name, Columns: cols}
	if super == nil {
		return td, nil
	}

	for _, key := range primaryKeyOf(super.Table) {
		ref := super.Table.Name + "." + key
		if i := columnIndex(td, key); i >= 0 {
			if td.Columns[i].References == "" {
				td.Columns[i].References = ref
			}
			continue
		}
		c := types.Column{Name: key, Kind: types.KindString, Size: 64, References: ref, Nullable: true}
		if err := b.addColumn(ctx, td, c); err != nil {
			return nil, err
		}
	}
	return td, nil
}

func columnIndex(td *types.TableDef, name string) int {
	for i, c := range td.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}
