// Tests for shapes, group construction and inclusion.
package kleio

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustShape(t *testing.T, r *Registry, name string) *Shape {
	t.Helper()
	s, ok := r.Shape(name)
	require.True(t, ok, "shape %s not registered", name)
	return s
}

func mustNew(t *testing.T, r *Registry, shape string, pos []any, slots map[string]any) *Group {
	t.Helper()
	g, err := mustShape(t, r, shape).New(pos, slots)
	require.NoError(t, err)
	return g
}

// scenarioTree builds source s1 > act a1 > person p01.
func scenarioTree(t *testing.T, r *Registry, ctx *Context) (src, act, person *Group) {
	t.Helper()
	src = mustNew(t, r, "source", []any{"s1"}, map[string]any{"type": "test", "loc": "auc"})
	act = mustNew(t, r, "act", []any{"a1", "test-act", "2021-07-16"}, nil)
	require.NoError(t, src.Include(ctx, act))
	person = mustNew(t, r, "person", []any{"Joaquim", "m", "p01"}, nil)
	require.NoError(t, act.Include(ctx, person))
	return src, act, person
}

// --- Registry.Extend ---

func TestExtend_CopiesListsByValue(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterPortuguese(r))

	source := mustShape(t, r, "source")
	fonte := mustShape(t, r, "fonte")

	assert.Equal(t, []string{"id"}, fonte.Guaranteed)
	assert.Equal(t, source.Part, fonte.Part)

	fonte.Guaranteed[0] = "changed"
	fonte.Part = append(fonte.Part, "extra")
	assert.Equal(t, []string{"id"}, source.Guaranteed)
	assert.NotContains(t, source.Part, "extra")
}

func TestExtend_InheritsHooksAndPrefix(t *testing.T) {
	r := NewRegistry()
	note, err := r.Extend("attr", "note")
	require.NoError(t, err)

	assert.Equal(t, "att", note.Prefix)
	assert.NotNil(t, note.BeforeInclude)
	assert.True(t, note.IsA("attr"))
	assert.Same(t, mustShape(t, r, "attr"), note.Parent)
}

func TestExtend_Errors(t *testing.T) {
	r := NewRegistry()

	_, err := r.Extend("no-such-parent", "x")
	assert.ErrorIs(t, err, ErrUnknownShape)

	_, err = r.Extend(BaseShape, "person")
	assert.ErrorIs(t, err, ErrDuplicateShape)
}

func TestExtend_SynonymsAliasElementTypes(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterPortuguese(r))
	acto := mustShape(t, r, "acto")

	ano := acto.ElementType("ano")
	assert.True(t, ano.IsA("year"))
	assert.True(t, acto.ElementType("tipo").IsA("type"))

	_, err := acto.New([]any{"a1", "baptismo", "1718-03-02"}, map[string]any{"ano": "not a year"})
	assert.ErrorIs(t, err, ErrSchemaViolation)

	g, err := acto.New([]any{"a1", "baptismo", "1718-03-02"}, map[string]any{"ano": 1718})
	require.NoError(t, err)
	assert.Equal(t, "1718", g.Value("ano"))
}

// --- Shape.New ---

func TestNew_GuaranteedSlots(t *testing.T) {
	r := NewRegistry()
	person := mustShape(t, r, "person")

	_, err := person.New([]any{"Joaquim"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaViolation)

	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "sex", se.Slot)

	g, err := person.New([]any{"Joaquim", "m"}, nil)
	require.NoError(t, err)
	for _, slot := range person.Guaranteed {
		assert.False(t, g.Get(slot).IsEmpty(), slot)
	}
}

func TestNew_TooManyPositionals(t *testing.T) {
	r := NewRegistry()
	_, err := mustShape(t, r, "person").New([]any{"a", "m", "p1", "extra"}, nil)
	assert.ErrorIs(t, err, ErrSchemaViolation)
}

func TestNew_UndeclaredSlot(t *testing.T) {
	r := NewRegistry()
	person := mustShape(t, r, "person")

	_, err := person.New([]any{"a", "m"}, map[string]any{"colour": "blue"})
	assert.ErrorIs(t, err, ErrSchemaViolation)

	g, err := person.New([]any{"a"}, map[string]any{"colour": "blue"}, Unchecked())
	require.NoError(t, err)
	assert.Equal(t, "blue", g.Value("colour"))
	assert.True(t, g.Unchecked())
}

func TestGroup_SetReplacesAndDeletes(t *testing.T) {
	r := NewRegistry()
	g := mustNew(t, r, "person", []any{"Joaquim", "m"}, nil)
	first := g.Get("name")

	require.NoError(t, g.Set("name", "Joao"))
	assert.Equal(t, "Joaquim", first.Core)
	assert.Equal(t, "Joao", g.Value("name"))

	require.NoError(t, g.Set("obs", nil))
	assert.Nil(t, g.Get("obs"))

	assert.ErrorIs(t, g.Set("colour", "blue"), ErrSchemaViolation)
	require.NoError(t, g.Set("line", 12))
}

// --- Group.Include ---

func TestInclude_StampsLevelOrderLine(t *testing.T) {
	r := NewRegistry()
	ctx := NewContext()
	src, act, person := scenarioTree(t, r, ctx)

	assert.Equal(t, 1, src.Level)
	assert.Equal(t, 2, act.Level)
	assert.Equal(t, 3, person.Level)
	assert.Less(t, act.Order, person.Order)
	assert.Less(t, act.Line, person.Line)
	assert.Same(t, act, person.Parent)
	assert.Same(t, src, act.Parent)
}

func TestInclude_PartPrecedence(t *testing.T) {
	r := NewRegistry()
	_, err := r.Extend("attr", "note")
	require.NoError(t, err)
	_, err = r.Extend("attr", "remark")
	require.NoError(t, err)
	_, err = r.Extend(BaseShape, "box", Part("attr", "note"))
	require.NoError(t, err)

	ctx := NewContext()
	box := mustNew(t, r, "box", nil, nil)
	note := mustShape(t, r, "note")
	remark := mustShape(t, r, "remark")

	byShape, err := note.New([]any{"a", "1"}, nil)
	require.NoError(t, err)
	require.NoError(t, box.Include(ctx, byShape))

	byName, err := remark.New([]any{"b", "2"}, nil, Named("note"))
	require.NoError(t, err)
	require.NoError(t, box.Include(ctx, byName))

	bySuper, err := remark.New([]any{"c", "3"}, nil)
	require.NoError(t, err)
	require.NoError(t, box.Include(ctx, bySuper))

	assert.Equal(t, []*Group{byShape, byName}, box.ChildrenOf("note"))
	assert.Equal(t, []*Group{bySuper}, box.ChildrenOf("attr"))
	assert.Equal(t, []*Group{bySuper, byShape, byName}, box.Children())
}

func TestInclude_NotAllowed(t *testing.T) {
	r := NewRegistry()
	src := mustNew(t, r, "source", []any{"s1"}, nil)
	person := mustNew(t, r, "person", []any{"Joaquim", "m"}, nil)

	err := src.Include(NewContext(), person)
	assert.ErrorIs(t, err, ErrSchemaViolation)
	assert.Empty(t, src.Children())
	assert.Nil(t, person.Parent)
}

func TestInclude_GeneratesIDs(t *testing.T) {
	r := NewRegistry()
	ctx := NewContext()
	_, act, _ := scenarioTree(t, r, ctx)

	anon := mustNew(t, r, "person", []any{"Maria", "f"}, nil)
	require.NoError(t, act.Include(ctx, anon))
	assert.Equal(t, "a1-03-per", anon.ID())

	attr, err := anon.Attr(ctx, "profession", "farmer", "", "")
	require.NoError(t, err)
	assert.Equal(t, "a1-03-per-04-att", attr.ID())
	assert.Equal(t, "a1-03-per", attr.Value("entity"))

	rel, err := act.Rel(ctx, "function", "witness", "Maria", anon.ID(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "a1-05-rel", rel.ID())
	assert.Equal(t, "a1", rel.Value("origin"))
}

func TestGenerateID_WithoutParentID(t *testing.T) {
	r := NewRegistry()
	g := mustNew(t, r, "person", []any{"Joaquim", "m"}, nil)

	require.NoError(t, GenerateID(nil, nil, g))
	parsed, err := uuid.Parse(g.ID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestInclude_NilContextSharesTreeCounters(t *testing.T) {
	r := NewRegistry()
	p := mustNew(t, r, "person", []any{"Joaquim", "m", "p1"}, nil)

	occupation, err := p.Attr(nil, "occupation", "farmer", "", "")
	require.NoError(t, err)
	residence, err := p.Attr(nil, "residence", "Coimbra", "", "")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, []int{occupation.Order, residence.Order})
	assert.Equal(t, "p1-01-att", occupation.ID())
	assert.Equal(t, "p1-02-att", residence.ID())

	// A tree stamped with an explicit context keeps counting from it.
	_, act, _ := scenarioTree(t, r, NewContext())
	attr, err := act.Attr(nil, "place", "Soure", "", "")
	require.NoError(t, err)
	assert.Equal(t, 3, attr.Order)
	assert.Equal(t, "a1-03-att", attr.ID())
}

func TestInclude_FailingHookLeavesNoTrace(t *testing.T) {
	r := NewRegistry()
	refused := errors.New("refused")
	_, err := r.Extend("attr", "note", BeforeInclude(func(_ *Context, _, child *Group) error {
		if err := child.Set("id", "half-done"); err != nil {
			return err
		}
		return refused
	}))
	require.NoError(t, err)
	_, err = r.Extend("attr", "flaky", AfterInclude(func(*Context, *Group, *Group) error { return refused }))
	require.NoError(t, err)

	ctx := NewContext()
	p := mustNew(t, r, "person", []any{"Joaquim", "m", "p1"}, nil)
	for _, shape := range []string{"note", "flaky"} {
		child := mustNew(t, r, shape, []any{"remark", "illegible"}, nil)
		err := p.Include(ctx, child)
		assert.ErrorIs(t, err, refused, shape)
		assert.Equal(t, 1, child.Level, shape)
		assert.Zero(t, child.Order, shape)
		assert.Zero(t, child.Line, shape)
		assert.Empty(t, child.ID(), shape)
		assert.Nil(t, child.Parent, shape)
	}
	assert.Empty(t, p.Children())

	attr, err := p.Attr(ctx, "occupation", "farmer", "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, attr.Order, "failed includes do not consume the counters")
	assert.Equal(t, 1, attr.Line)
}

func TestGroup_Walk(t *testing.T) {
	r := NewRegistry()
	src, act, person := scenarioTree(t, r, NewContext())

	var seen []*Group
	require.NoError(t, src.Walk(func(g *Group) error {
		seen = append(seen, g)
		return nil
	}))
	assert.Equal(t, []*Group{src, act, person}, seen)
}

func TestAttach_KeepsPositionsAndSkipsHooks(t *testing.T) {
	r := NewRegistry()
	act := mustNew(t, r, "act", []any{"a1", "test-act", "2021-07-16"}, nil)
	person := mustNew(t, r, "person", []any{"Maria", "f"}, nil)
	person.Order, person.Line, person.Level = 7, 12, 3

	require.NoError(t, act.Attach(person))
	assert.Same(t, act, person.Parent)
	assert.Equal(t, []*Group{person}, act.ChildrenOf("person"))
	assert.Empty(t, person.ID())
	assert.Equal(t, 7, person.Order)
	assert.Equal(t, 12, person.Line)
	assert.Equal(t, 3, person.Level)

	src := mustNew(t, r, "source", []any{"s1"}, nil)
	assert.ErrorIs(t, src.Attach(mustNew(t, r, "person", []any{"Ana", "f"}, nil)), ErrSchemaViolation)

	loose, err := mustShape(t, r, "source").New(nil, nil, Unchecked())
	require.NoError(t, err)
	require.NoError(t, loose.Attach(person))
	assert.Equal(t, []*Group{person}, loose.Children())
}
