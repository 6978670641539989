// Tests for storing groups, reading entities back and cascade deletes.
package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/timelink/pkg/kleio"
	"github.com/mesh-intelligence/timelink/pkg/types"
)

func newGroup(t *testing.T, r *kleio.Registry, shape string, pos []any, slots map[string]any) *kleio.Group {
	t.Helper()
	s, ok := r.Shape(shape)
	require.True(t, ok, "shape %s", shape)
	g, err := s.New(pos, slots)
	require.NoError(t, err)
	return g
}

// scenario builds source s1 > act a1 > person p01.
func scenario(t *testing.T, r *kleio.Registry) (src, act, person *kleio.Group) {
	t.Helper()
	ctx := kleio.NewContext()
	src = newGroup(t, r, "source", []any{"s1"}, map[string]any{"type": "test", "loc": "auc"})
	act = newGroup(t, r, "act", []any{"a1", "test-act", "2021-07-16"}, nil)
	require.NoError(t, src.Include(ctx, act))
	person = newGroup(t, r, "person", []any{"Joaquim", "m", "p01"}, nil)
	require.NoError(t, act.Include(ctx, person))
	return src, act, person
}

func TestStoreGroup_Scenario(t *testing.T) {
	b, _ := attached(t)
	ctx := context.Background()
	src, _, _ := scenario(t, b.Shapes())

	require.NoError(t, b.StoreGroup(ctx, src))

	p, err := b.GetEntity(ctx, "p01")
	require.NoError(t, err)
	assert.Equal(t, "a1", p.ParentID)
	assert.Equal(t, "person", p.ShapeID)
	assert.Equal(t, "person", p.GroupName)
	assert.Equal(t, 3, p.Level)
	assert.Equal(t, "Joaquim", p.Column("name"))
	assert.Equal(t, "m", p.Column("sex"))
	assert.Nil(t, p.Column("obs"))
	assert.False(t, p.UpdatedAt.IsZero())

	a, err := b.GetEntity(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "s1", a.ParentID)
	assert.Equal(t, "test-act", a.Column("the_type"))
	assert.Equal(t, "2021-07-16", a.Column("the_date"))

	s, err := b.GetEntity(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, s.ParentID)
	assert.Equal(t, "test", s.Column("the_type"))
	assert.Equal(t, "auc", s.Column("loc"))

	top, err := b.Children(ctx, "")
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "s1", top[0].ID)
}

func TestGroupToEntity_ResolvesClass(t *testing.T) {
	b, _ := attached(t)
	ctx := context.Background()
	r := b.Shapes()
	_, act, person := scenario(t, r)

	e, err := b.GroupToEntity(ctx, person, "")
	require.NoError(t, err)
	assert.Equal(t, "person", e.ShapeID)
	assert.Equal(t, "a1", e.ParentID)

	// Extended shapes store as the nearest mapped supershape.
	_, err = r.Extend("person", "godparent")
	require.NoError(t, err)
	gp := newGroup(t, r, "godparent", []any{"Ana", "f", "g1"}, nil)
	require.NoError(t, act.Include(kleio.NewContext(), gp))
	e, err = b.GroupToEntity(ctx, gp, "")
	require.NoError(t, err)
	assert.Equal(t, "person", e.ShapeID)
	assert.Equal(t, "godparent", e.GroupName)

	e, err = b.GroupToEntity(ctx, person, "object")
	require.NoError(t, err)
	assert.Equal(t, "object", e.ShapeID)
	assert.Equal(t, "Joaquim", e.Column("name"))

	_, err = r.Extend(kleio.BaseShape, "loose")
	require.NoError(t, err)
	loose := newGroup(t, r, "loose", nil, nil)
	_, err = b.GroupToEntity(ctx, loose, "")
	assert.ErrorIs(t, err, types.ErrClassNotFound)
}

func TestGroupToEntity_ConvertsNumbers(t *testing.T) {
	b, logs := attached(t)
	ctx := context.Background()
	r := b.Shapes()

	require.NoError(t, b.UpsertClass(ctx, types.ClassMapping{ID: "census", GroupName: "census"}, []types.ClassAttribute{
		{Name: "households", ColumnType: types.ColumnNumeric, ColumnSize: 6},
		{Name: "area", ColumnType: types.ColumnNumeric, ColumnPrecision: 2},
		{Name: "year", ColumnType: types.ColumnNumeric, ColumnSemanticClass: "year"},
	}))
	_, err := r.Extend(kleio.BaseShape, "census", kleio.Optional("id", "households", "area", "year"))
	require.NoError(t, err)

	g := newGroup(t, r, "census", nil, map[string]any{"id": "c1", "households": " 42 ", "area": "12.5", "year": "1801"})
	e, err := b.GroupToEntity(ctx, g, "")
	require.NoError(t, err)
	assert.Equal(t, int64(42), e.Column("households"))
	assert.Equal(t, 12.5, e.Column("area"))
	assert.Equal(t, int64(1801), e.Column("year"))

	bad := newGroup(t, r, "census", nil, map[string]any{"id": "c2", "households": "many"})
	e, err = b.GroupToEntity(ctx, bad, "")
	require.NoError(t, err)
	assert.Nil(t, e.Column("households"))
	assert.Contains(t, logs.String(), "skipping column")

	require.NoError(t, b.StoreGroup(ctx, g))
	stored, err := b.GetEntity(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), stored.Column("households"))
	assert.Equal(t, 12.5, stored.Column("area"))
}

func TestStoreGroup_ReplaceOnReimport(t *testing.T) {
	b, _ := attached(t)
	ctx := context.Background()
	r := b.Shapes()

	src, _, _ := scenario(t, r)
	require.NoError(t, b.StoreGroup(ctx, src))

	again := newGroup(t, r, "source", []any{"s1"}, map[string]any{"type": "revised"})
	require.NoError(t, b.StoreGroup(ctx, again))

	kids, err := b.Children(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, kids)
	_, err = b.GetEntity(ctx, "p01")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, 0, countRows(t, b, "persons"))
	assert.Equal(t, 0, countRows(t, b, "acts"))

	s, err := b.GetEntity(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "revised", s.Column("the_type"))
	assert.Nil(t, s.Column("loc"))
}

func TestStoreGroup_GeneratesMissingIDs(t *testing.T) {
	b, _ := attached(t)
	ctx := context.Background()
	r := b.Shapes()

	_, err := r.Extend(kleio.BaseShape, "remark", kleio.Optional("obs"))
	require.NoError(t, err)
	require.NoError(t, b.UpsertClass(ctx, types.ClassMapping{ID: "remark", GroupName: "remark"},
		[]types.ClassAttribute{{Name: "obs", ColumnType: types.ColumnText}}))

	g := newGroup(t, r, "remark", nil, map[string]any{"obs": "loose note"})
	require.NoError(t, b.StoreGroup(ctx, g))
	require.NotEmpty(t, g.ID())

	e, err := b.GetEntity(ctx, g.ID())
	require.NoError(t, err)
	assert.Equal(t, "loose note", e.Column("obs"))
}

func TestStoreGroup_SiblingsWithoutContext(t *testing.T) {
	b, _ := attached(t)
	ctx := context.Background()

	p := newGroup(t, b.Shapes(), "person", []any{"Joaquim", "m", "p1"}, nil)
	occupation, err := p.Attr(nil, "occupation", "farmer", "", "")
	require.NoError(t, err)
	residence, err := p.Attr(nil, "residence", "Coimbra", "", "")
	require.NoError(t, err)
	require.NotEqual(t, occupation.ID(), residence.ID())

	require.NoError(t, b.StoreGroup(ctx, p))
	kids, err := b.Children(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, kids, 2)
	assert.Equal(t, "farmer", kids[0].Column("the_value"))
	assert.Equal(t, "Coimbra", kids[1].Column("the_value"))
}

func TestStoreGroup_ImportError(t *testing.T) {
	b, _ := attached(t)
	ctx := context.Background()
	r := b.Shapes()

	kctx := kleio.NewContext()
	src := newGroup(t, r, "source", []any{"s1"}, nil)
	actShape, _ := r.Shape("act")
	act, err := actShape.New([]any{"a1", "test-act", "2021-07-16"}, nil, kleio.Unchecked())
	require.NoError(t, err)
	require.NoError(t, src.Include(kctx, act))
	require.NoError(t, act.Include(kctx, newGroup(t, r, "person", []any{"Joaquim", "m", "p01"}, nil)))

	_, err = r.Extend(kleio.BaseShape, "unmapped")
	require.NoError(t, err)
	stray := newGroup(t, r, "unmapped", nil, nil)
	stray.SetID("u1")
	require.NoError(t, act.Attach(stray))

	err = b.StoreGroup(ctx, src)
	var ie *types.ImportError
	require.True(t, errors.As(err, &ie), "got %v", err)
	assert.Equal(t, "u1", ie.ID)
	assert.Equal(t, "unmapped", ie.Group)
	assert.ErrorIs(t, err, types.ErrClassNotFound)

	// Groups stored before the failure stay.
	_, err = b.GetEntity(ctx, "p01")
	assert.NoError(t, err)
}

func TestStoreGroup_SharedTable(t *testing.T) {
	dir := t.TempDir()
	cfg, _ := testConfig(dir)
	b := NewBackend()
	require.NoError(t, b.Attach(cfg))
	ctx := context.Background()

	witnessShape := func(r *kleio.Registry) {
		_, err := r.Extend("person", "witness", kleio.Optional("obs", "same_as", "xsame_as", "role"))
		require.NoError(t, err)
	}
	witnessShape(b.Shapes())

	require.NoError(t, b.UpsertClass(ctx, types.ClassMapping{ID: "witness", TableName: "persons", GroupName: "witness", SuperClass: "person"},
		[]types.ClassAttribute{
			idAttr("witness"),
			varchar("witness", "name", "name", "name", 128),
			varchar("witness", "role", "role", "role", 32),
		}))

	w := newGroup(t, b.Shapes(), "witness", []any{"Ana", "f", "w1"}, map[string]any{"role": "godmother"})
	p := newGroup(t, b.Shapes(), "person", []any{"Rui", "m", "p9"}, nil)
	require.NoError(t, b.StoreGroup(ctx, w))
	require.NoError(t, b.StoreGroup(ctx, p))

	got, err := b.GetEntity(ctx, "w1")
	require.NoError(t, err)
	assert.Equal(t, "witness", got.ShapeID)
	assert.Equal(t, "Ana", got.Column("name"))
	assert.Equal(t, "godmother", got.Column("role"), "the sharing class adds its own column")
	assert.Equal(t, 2, countRows(t, b, "persons"))

	got, err = b.GetEntity(ctx, "p9")
	require.NoError(t, err)
	assert.Equal(t, "person", got.ShapeID)
	assert.Nil(t, got.Column("role"))

	require.NoError(t, b.Delete(ctx, "w1"))
	assert.Equal(t, 1, countRows(t, b, "persons"))
	require.NoError(t, b.Detach())

	// A new process declares persons through the super class first.
	cfg, _ = testConfig(dir)
	b = NewBackend()
	require.NoError(t, b.Attach(cfg))
	defer b.Detach()
	witnessShape(b.Shapes())

	w = newGroup(t, b.Shapes(), "witness", []any{"Eva", "f", "w2"}, map[string]any{"role": "witness"})
	require.NoError(t, b.StoreGroup(ctx, w))
	got, err = b.GetEntity(ctx, "w2")
	require.NoError(t, err)
	assert.Equal(t, "witness", got.Column("role"))
}

func TestDelete_Cascade(t *testing.T) {
	b, _ := attached(t)
	ctx := context.Background()
	r := b.Shapes()
	kctx := kleio.NewContext()

	// A > B > C, and D under B.
	a := newGroup(t, r, "source", []any{"A"}, nil)
	bg := newGroup(t, r, "act", []any{"B", "baptism", "1700-01-01"}, nil)
	require.NoError(t, a.Include(kctx, bg))
	c := newGroup(t, r, "person", []any{"Ana", "f", "C"}, nil)
	require.NoError(t, bg.Include(kctx, c))
	d, err := bg.Attr(kctx, "place", "Coimbra", "", "")
	require.NoError(t, err)

	require.NoError(t, b.StoreGroup(ctx, a))
	assert.Equal(t, 4, countRows(t, b, types.EntitiesTable))

	arena, err := b.loadSubtree(ctx, "A")
	require.NoError(t, err)
	order := arena.Subtree("A")
	require.Len(t, order, 4)
	assert.Equal(t, "A", order[3].ID, "root deleted last")

	require.NoError(t, b.Delete(ctx, "A"))
	for _, id := range []string{"A", "B", "C", d.ID()} {
		_, err := b.GetEntity(ctx, id)
		assert.ErrorIs(t, err, types.ErrNotFound, id)
	}
	assert.Equal(t, 0, countRows(t, b, types.EntitiesTable))
	for _, table := range []string{"sources", "acts", "persons", "attributes"} {
		assert.Equal(t, 0, countRows(t, b, table), table)
	}

	assert.ErrorIs(t, b.Delete(ctx, "A"), types.ErrNotFound)
	assert.ErrorIs(t, b.Delete(ctx, ""), types.ErrInvalidID)
}

func TestDelete_Subtree(t *testing.T) {
	b, _ := attached(t)
	ctx := context.Background()
	src, _, _ := scenario(t, b.Shapes())
	require.NoError(t, b.StoreGroup(ctx, src))

	require.NoError(t, b.Delete(ctx, "a1"))
	_, err := b.GetEntity(ctx, "s1")
	assert.NoError(t, err)
	kids, err := b.Children(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, kids)
}

// insertRawEntity writes an entities row directly, bypassing class checks.
func insertRawEntity(t *testing.T, b *Backend, id string, shapeID any) {
	t.Helper()
	_, err := b.db.Exec("PRAGMA foreign_keys = OFF")
	require.NoError(t, err)
	defer b.db.Exec("PRAGMA foreign_keys = ON")
	_, err = b.db.Exec(b.q("INSERT INTO entities ("+entityColumns+") VALUES (?, ?, NULL, 1, 1, 1, ?, ?, NULL)"),
		id, shapeID, "legacy", time.Now().UTC().Format(time.RFC3339Nano))
	require.NoError(t, err)
}

func TestGetEntity_UnmappedShapeUsesRootType(t *testing.T) {
	b, _ := attached(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		id      string
		shapeID any
	}{
		{"no shape", "x1", nil},
		{"class no longer declared", "x2", "vanished"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			insertRawEntity(t, b, tt.id, tt.shapeID)

			e, err := b.GetEntity(ctx, tt.id)
			require.NoError(t, err)
			require.NotNil(t, e.Type)
			assert.Equal(t, types.EntityClass, e.Type.ID)
			assert.Equal(t, "legacy", e.GroupName)
			assert.Empty(t, e.Columns)
		})
	}
}
