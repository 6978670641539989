package store

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/timelink/pkg/types"
)

// baseClass describes a class seeded on first attach.
type baseClass struct {
	class types.ClassMapping
	attrs []types.ClassAttribute
}

func idAttr(class string) types.ClassAttribute {
	return types.ClassAttribute{ClassID: class, Name: "id", ColumnName: "id", ColumnSemanticClass: "id",
		ColumnType: types.ColumnVarchar, ColumnSize: 64, PrimaryKey: 1}
}

func varchar(class, name, column, semantic string, size int) types.ClassAttribute {
	return types.ClassAttribute{ClassID: class, Name: name, ColumnName: column, ColumnSemanticClass: semantic,
		ColumnType: types.ColumnVarchar, ColumnSize: size}
}

func text(class, name, semantic string) types.ClassAttribute {
	return types.ClassAttribute{ClassID: class, Name: name, ColumnName: name, ColumnSemanticClass: semantic,
		ColumnType: types.ColumnText}
}

func integer(class, name, column, semantic string) types.ClassAttribute {
	return types.ClassAttribute{ClassID: class, Name: name, ColumnName: column, ColumnSemanticClass: semantic,
		ColumnType: types.ColumnNumeric, ColumnSize: 10}
}

// baseClasses is the vocabulary a fresh database starts with. The entity
// class describes the root entities table; the others are created as
// tables the first time a group maps to them.
var baseClasses = []baseClass{
	{
		class: types.ClassMapping{ID: types.EntityClass, TableName: types.EntitiesTable, SuperClass: types.RootClass},
		attrs: []types.ClassAttribute{
			idAttr(types.EntityClass),
			varchar(types.EntityClass, "class", "shape_id", "class", 64),
			varchar(types.EntityClass, "inside", "parent_id", "inside", 64),
			integer(types.EntityClass, "order", "order", "order"),
			integer(types.EntityClass, "level", "level", "level"),
			integer(types.EntityClass, "line", "line", "line"),
			varchar(types.EntityClass, "groupname", "group_name", "groupname", 128),
		},
	},
	{
		class: types.ClassMapping{ID: "source", TableName: "sources", GroupName: "source", SuperClass: types.EntityClass},
		attrs: []types.ClassAttribute{
			idAttr("source"),
			varchar("source", "the_type", "the_type", "type", 32),
			varchar("source", "the_date", "the_date", "date", 24),
			varchar("source", "loc", "loc", "loc", 64),
			varchar("source", "ref", "ref", "ref", 64),
			varchar("source", "kleiofile", "kleiofile", "kleiofile", 512),
			text("source", "obs", "obs"),
		},
	},
	{
		class: types.ClassMapping{ID: "act", TableName: "acts", GroupName: "act", SuperClass: types.EntityClass},
		attrs: []types.ClassAttribute{
			idAttr("act"),
			varchar("act", "the_type", "the_type", "type", 32),
			varchar("act", "the_date", "the_date", "date", 24),
			varchar("act", "loc", "loc", "loc", 64),
			varchar("act", "ref", "ref", "ref", 64),
			text("act", "obs", "obs"),
		},
	},
	{
		class: types.ClassMapping{ID: "person", TableName: "persons", GroupName: "person", SuperClass: types.EntityClass},
		attrs: []types.ClassAttribute{
			idAttr("person"),
			varchar("person", "name", "name", "name", 128),
			{ClassID: "person", Name: "sex", ColumnName: "sex", ColumnSemanticClass: "sex", ColumnType: types.ColumnChar, ColumnSize: 1},
			text("person", "obs", "obs"),
		},
	},
	{
		class: types.ClassMapping{ID: "object", TableName: "objects", GroupName: "object", SuperClass: types.EntityClass},
		attrs: []types.ClassAttribute{
			idAttr("object"),
			varchar("object", "name", "name", "name", 128),
			varchar("object", "the_type", "the_type", "type", 32),
			text("object", "obs", "obs"),
		},
	},
	{
		class: types.ClassMapping{ID: "attribute", TableName: "attributes", GroupName: "attr", SuperClass: types.EntityClass},
		attrs: []types.ClassAttribute{
			idAttr("attribute"),
			varchar("attribute", "entity", "entity", "entity", 64),
			varchar("attribute", "the_type", "the_type", "type", 512),
			text("attribute", "the_value", "value"),
			varchar("attribute", "the_date", "the_date", "date", 24),
			text("attribute", "obs", "obs"),
		},
	},
	{
		class: types.ClassMapping{ID: "relation", TableName: "relations", GroupName: "rel", SuperClass: types.EntityClass},
		attrs: []types.ClassAttribute{
			idAttr("relation"),
			varchar("relation", "origin", "origin", "origin", 64),
			varchar("relation", "destination", "destination", "destination", 64),
			varchar("relation", "destname", "destname", "destname", 128),
			varchar("relation", "the_type", "the_type", "type", 32),
			varchar("relation", "the_value", "the_value", "value", 256),
			varchar("relation", "the_date", "the_date", "date", 24),
			text("relation", "obs", "obs"),
		},
	},
}

// seedBaseClasses declares the base classes when the classes table is empty
// (first run). Seeding never creates entity tables.
func (b *Backend) seedBaseClasses(ctx context.Context) error {
	var count int
	if err := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM classes").Scan(&count); err != nil {
		return fmt.Errorf("counting classes: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, bc := range baseClasses {
		if err := b.upsertClassTx(ctx, tx, bc.class, bc.attrs); err != nil {
			return fmt.Errorf("seeding class %s: %w", bc.class.ID, err)
		}
	}
	return tx.Commit()
}
