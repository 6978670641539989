package types

import "slices"

// ColumnKind is the storage kind of a synthesized column.
type ColumnKind string

// Column kinds.
const (
	KindString  ColumnKind = "string"
	KindInteger ColumnKind = "integer"
	KindFloat   ColumnKind = "float"
)

// Column is one column of a TableDef.
type Column struct {
	Name       string
	Kind       ColumnKind
	Size       int
	PrimaryKey int    // Ordinal in the primary key, 0 if not part of it.
	References string // "table.column" for foreign keys.
	Nullable   bool
}

// TableDef is the in-memory description of a physical table.
type TableDef struct {
	Name    string
	Columns []Column
}

// Column returns the named column.
func (t *TableDef) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// PrimaryKey returns the primary key columns in key order.
func (t *TableDef) PrimaryKey() []Column {
	var pk []Column
	for _, c := range t.Columns {
		if c.PrimaryKey > 0 {
			pk = append(pk, c)
		}
	}
	slices.SortStableFunc(pk, func(a, b Column) int { return a.PrimaryKey - b.PrimaryKey })
	return pk
}

// EntityType is the runtime type bound to a storage class: its table, its
// super type and the attributes that fill the table.
type EntityType struct {
	ID         string
	Table      *TableDef
	Super      *EntityType
	Class      ClassMapping
	Attributes []ClassAttribute
}

// Chain returns the type and its super types, root first.
func (t *EntityType) Chain() []*EntityType {
	var chain []*EntityType
	for at := t; at != nil; at = at.Super {
		chain = append(chain, at)
	}
	slices.Reverse(chain)
	return chain
}

// IsA reports whether t is the type with the given id or descends from it.
func (t *EntityType) IsA(id string) bool {
	for at := t; at != nil; at = at.Super {
		if at.ID == id {
			return true
		}
	}
	return false
}
