// Tests for the mapping engine and table synthesis.
package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/timelink/pkg/types"
)

func TestEnsureMapping_CreatesTableOnce(t *testing.T) {
	b, _ := attached(t)
	ctx := context.Background()

	first, err := b.EnsureMapping(ctx, "person")
	require.NoError(t, err)
	assert.Equal(t, "persons", first.Table.Name)
	require.NotNil(t, first.Super)
	assert.Equal(t, types.EntityClass, first.Super.ID)
	assert.True(t, first.IsA(types.EntityClass))

	second, err := b.EnsureMapping(ctx, "person")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Same(t, first.Table, second.Table, "same TableDef on repeated calls")

	exists, err := b.dialect.tableExists(ctx, b.db, "persons")
	require.NoError(t, err)
	assert.True(t, exists)

	id, ok := first.Table.Column("id")
	require.True(t, ok)
	assert.Equal(t, 1, id.PrimaryKey)
	assert.Equal(t, "entities.id", id.References)

	sex, ok := first.Table.Column("sex")
	require.True(t, ok)
	assert.Equal(t, types.KindString, sex.Kind)
	assert.Equal(t, 1, sex.Size)
}

func TestEnsureMapping_UnknownClass(t *testing.T) {
	b, _ := attached(t)
	_, err := b.EnsureMapping(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrClassNotFound)
}

func TestEnsureMapping_SuperChain(t *testing.T) {
	b, _ := attached(t)
	ctx := context.Background()

	require.NoError(t, b.UpsertClass(ctx, types.ClassMapping{ID: "priest", TableName: "priests", SuperClass: "person"},
		[]types.ClassAttribute{{Name: "parish", ColumnType: types.ColumnVarchar, ColumnSize: 64}}))

	priest, err := b.EnsureMapping(ctx, "priest")
	require.NoError(t, err)
	chain := priest.Chain()
	require.Len(t, chain, 3)
	assert.Equal(t, types.EntityClass, chain[0].ID)
	assert.Equal(t, "person", chain[1].ID)
	assert.Equal(t, "priest", chain[2].ID)

	// No key attribute: the super table's key becomes the join column.
	key := priest.Table.PrimaryKey()
	require.Len(t, key, 1)
	assert.Equal(t, "id", key[0].Name)
	assert.Equal(t, "persons.id", key[0].References)

	person, ok := b.TypeForShape("person")
	require.True(t, ok)
	assert.Same(t, person, priest.Super)
	byTable, ok := b.TypeForTable("priests")
	require.True(t, ok)
	assert.Same(t, priest, byTable)
}

func TestEnsureMapping_DeclaredTableReused(t *testing.T) {
	b, _ := attached(t)
	ctx := context.Background()

	require.NoError(t, b.UpsertClass(ctx, types.ClassMapping{ID: "witness", TableName: "persons", GroupName: "witness", SuperClass: "person"},
		[]types.ClassAttribute{idAttr("witness"), varchar("witness", "name", "name", "name", 128)}))

	person, err := b.EnsureMapping(ctx, "person")
	require.NoError(t, err)
	witness, err := b.EnsureMapping(ctx, "witness")
	require.NoError(t, err)
	assert.Same(t, person.Table, witness.Table)
	assert.Len(t, concreteTables(witness), 1)
}

func TestEnsureMapping_IntrospectsExistingTable(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := testConfig(dir)
	ctx := context.Background()

	b := NewBackend()
	require.NoError(t, b.Attach(cfg))
	_, err := b.EnsureMapping(ctx, "act")
	require.NoError(t, err)
	require.NoError(t, b.Detach())

	other := NewBackend()
	require.NoError(t, other.Attach(cfg))
	defer other.Detach()

	act, err := other.EnsureMapping(ctx, "act")
	require.NoError(t, err)
	assert.Equal(t, "acts", act.Table.Name)
	for _, name := range []string{"id", "the_type", "the_date", "loc", "ref", "obs"} {
		_, ok := act.Table.Column(name)
		assert.True(t, ok, "column %s", name)
	}
	id, _ := act.Table.Column("id")
	assert.Equal(t, 1, id.PrimaryKey)
	assert.Equal(t, "entities.id", id.References)
}

func TestEnsureMapping_IntrospectAddsJoinColumn(t *testing.T) {
	b, _ := attached(t)
	ctx := context.Background()

	_, err := b.db.ExecContext(ctx, `CREATE TABLE legacy ("note" TEXT)`)
	require.NoError(t, err)
	require.NoError(t, b.UpsertClass(ctx, types.ClassMapping{ID: "legacy"},
		[]types.ClassAttribute{{Name: "note", ColumnType: types.ColumnText}, {Name: "extra", ColumnType: types.ColumnText}}))

	legacy, err := b.EnsureMapping(ctx, "legacy")
	require.NoError(t, err)
	id, ok := legacy.Table.Column("id")
	require.True(t, ok, "join column added")
	assert.Equal(t, "entities.id", id.References)
	_, ok = legacy.Table.Column("extra")
	assert.True(t, ok, "missing attribute column added")

	cols, err := b.dialect.columns(ctx, b.db, "legacy")
	require.NoError(t, err)
	assert.Len(t, cols, 3)
}

func TestEnsureMapping_UpsertAddsColumn(t *testing.T) {
	b, _ := attached(t)
	ctx := context.Background()

	before, err := b.EnsureMapping(ctx, "object")
	require.NoError(t, err)

	_, attrs, err := b.GetClass(ctx, "object")
	require.NoError(t, err)
	attrs = append(attrs, types.ClassAttribute{Name: "value", ColumnType: types.ColumnNumeric, ColumnPrecision: 2})
	class, _, err := b.GetClass(ctx, "object")
	require.NoError(t, err)
	require.NoError(t, b.UpsertClass(ctx, *class, attrs))

	after, err := b.EnsureMapping(ctx, "object")
	require.NoError(t, err)
	assert.Same(t, before, after, "registered type is adopted")
	c, ok := after.Table.Column("value")
	require.True(t, ok)
	assert.Equal(t, types.KindFloat, c.Kind)
}

func TestEnsureMapping_UnresolvableSuperDegradesToRoot(t *testing.T) {
	b, logs := attached(t)
	ctx := context.Background()

	require.NoError(t, b.UpsertClass(ctx, types.ClassMapping{ID: "orphan", SuperClass: "missing"},
		[]types.ClassAttribute{{Name: "note", ColumnType: types.ColumnText}}))

	orphan, err := b.EnsureMapping(ctx, "orphan")
	require.NoError(t, err)
	require.NotNil(t, orphan.Super)
	assert.Equal(t, types.EntityClass, orphan.Super.ID)
	assert.Contains(t, logs.String(), "super class unresolvable")
	assert.Contains(t, logs.String(), "super_class=missing")
}

func TestEnsureMapping_SuperCycle(t *testing.T) {
	b, logs := attached(t)
	ctx := context.Background()

	require.NoError(t, b.UpsertClass(ctx, types.ClassMapping{ID: "left", SuperClass: "right"}, nil))
	require.NoError(t, b.UpsertClass(ctx, types.ClassMapping{ID: "right", SuperClass: "left"}, nil))

	left, err := b.EnsureMapping(ctx, "left")
	require.NoError(t, err)
	assert.True(t, left.IsA(types.EntityClass))
	assert.LessOrEqual(t, len(left.Chain()), 3)
	assert.Contains(t, logs.String(), "super class unresolvable")

	self := types.ClassMapping{ID: "selfish", SuperClass: "selfish"}
	require.NoError(t, b.UpsertClass(ctx, self, nil))
	selfish, err := b.EnsureMapping(ctx, "selfish")
	require.NoError(t, err)
	assert.Equal(t, types.EntityClass, selfish.Super.ID)
}

func TestColumnFor(t *testing.T) {
	tests := []struct {
		attr types.ClassAttribute
		want types.Column
	}{
		{types.ClassAttribute{Name: "n", ColumnType: "VARCHAR", ColumnSize: 32},
			types.Column{Name: "n", Kind: types.KindString, Size: 32, Nullable: true}},
		{types.ClassAttribute{Name: "n", ColumnType: types.ColumnText},
			types.Column{Name: "n", Kind: types.KindString, Nullable: true}},
		{types.ClassAttribute{Name: "n", ColumnType: types.ColumnNumeric, ColumnSize: 10},
			types.Column{Name: "n", Kind: types.KindInteger, Nullable: true}},
		{types.ClassAttribute{Name: "n", ColumnType: types.ColumnNumeric, ColumnPrecision: 2},
			types.Column{Name: "n", Kind: types.KindFloat, Nullable: true}},
		{types.ClassAttribute{Name: "n", ColumnName: "col", ColumnType: "blob", ColumnSize: 8, PrimaryKey: 1},
			types.Column{Name: "col", Kind: types.KindString, Size: 8, PrimaryKey: 1}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, columnFor(tt.attr))
	}
}

func TestCreateTableSQL(t *testing.T) {
	td := synthesize("persons", []types.ClassAttribute{
		idAttr("person"),
		varchar("person", "name", "name", "name", 128),
	}, &types.EntityType{ID: types.EntityClass, Table: entitiesTableDef()})

	stmt := createTableSQL(sqliteDialect{}, td)
	assert.True(t, strings.HasPrefix(stmt, `CREATE TABLE IF NOT EXISTS "persons" (`), stmt)
	assert.Contains(t, stmt, `"id" VARCHAR(64) NOT NULL`)
	assert.Contains(t, stmt, `"name" VARCHAR(128)`)
	assert.Contains(t, stmt, `PRIMARY KEY ("id")`)
	assert.Contains(t, stmt, `FOREIGN KEY ("id") REFERENCES "entities" ("id")`)
}
