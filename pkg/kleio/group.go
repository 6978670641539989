package kleio

import (
	"fmt"
	"maps"
	"slices"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Group is a record in a transcription: a set of elements filling the slots
// of its shape, plus the sub-groups included into it.
type Group struct {
	Name    string
	Shape   *Shape
	ShapeID string
	Order   int
	Level   int
	Line    int
	Parent  *Group

	elements  map[string]*Element
	children  map[string][]*Group
	extraKeys []string
	unchecked bool

	// ctx holds the counters of the tree when g is its root.
	ctx *Context
}

func newGroup(s *Shape) *Group {
	return &Group{
		Name:     s.Name,
		Shape:    s,
		Level:    1,
		elements: make(map[string]*Element),
		children: make(map[string][]*Group),
	}
}

// Get returns the element in slot, or nil.
func (g *Group) Get(slot string) *Element {
	return g.elements[slot]
}

// Value returns the core value in slot, or "".
func (g *Group) Value(slot string) string {
	return g.elements[slot].String()
}

// ID returns the core value of the id slot.
func (g *Group) ID() string {
	return g.Value("id")
}

// SetID stores id even when the shape does not declare an id slot.
func (g *Group) SetID(id string) {
	g.elements["id"] = &Element{Name: "id", Core: id, Type: g.Shape.ElementType("id")}
}

// Unchecked reports whether the group accepts undeclared slots.
func (g *Group) Unchecked() bool {
	return g.unchecked
}

// Set stores value in slot, replacing any previous element. A nil value
// removes the slot.
func (g *Group) Set(slot string, value any) error {
	if value == nil {
		delete(g.elements, slot)
		return nil
	}
	if !g.unchecked && !g.Shape.Allowed(slot) {
		return schemaErr(g.Name, slot, "slot not allowed")
	}
	e, err := NewElement(g.Shape.ElementType(slot), slot, value)
	if err != nil {
		return schemaErr(g.Name, slot, "%v", err)
	}
	g.elements[slot] = e
	return nil
}

// SetElement stores e under its own name, keeping its type.
func (g *Group) SetElement(e *Element) error {
	if !g.unchecked && !g.Shape.Allowed(e.Name) {
		return schemaErr(g.Name, e.Name, "slot not allowed")
	}
	if e.Type == nil {
		cp := *e
		cp.Type = g.Shape.ElementType(e.Name)
		e = &cp
	}
	if err := e.Type.Validate(e.Core); err != nil {
		return schemaErr(g.Name, e.Name, "%v", err)
	}
	g.elements[e.Name] = e
	return nil
}

// Elements returns the non-empty elements in slot order, followed by any
// undeclared slots in name order.
func (g *Group) Elements() []*Element {
	var out []*Element
	seen := make(map[string]bool)
	for _, slot := range g.Shape.Slots() {
		seen[slot] = true
		if e := g.elements[slot]; !e.IsEmpty() {
			out = append(out, e)
		}
	}
	var rest []string
	for slot, e := range g.elements {
		if !seen[slot] && !e.IsEmpty() {
			rest = append(rest, slot)
		}
	}
	slices.Sort(rest)
	for _, slot := range rest {
		out = append(out, g.elements[slot])
	}
	return out
}

// Children returns the included groups in part order, insertion order within
// each part.
func (g *Group) Children() []*Group {
	var out []*Group
	for _, key := range g.Shape.Part {
		out = append(out, g.children[key]...)
	}
	for _, key := range g.extraKeys {
		out = append(out, g.children[key]...)
	}
	return out
}

// ChildrenOf returns the groups included under the given part key.
func (g *Group) ChildrenOf(key string) []*Group {
	return g.children[key]
}

// partKey resolves which allowed sub-group entry child falls under: its exact
// name first, then its exact shape, then the nearest shape it extends.
func (g *Group) partKey(child *Group) (string, bool) {
	if slices.Contains(g.Shape.Part, child.Name) {
		return child.Name, true
	}
	for s := child.Shape; s != nil; s = s.Parent {
		if slices.Contains(g.Shape.Part, s.Name) {
			return s.Name, true
		}
	}
	if g.unchecked {
		return child.Name, true
	}
	return "", false
}

// Include attaches child below g. The child's level, line and order are
// stamped from ctx and its shape's include hooks run around the attachment.
// A nil ctx uses the counters of g's tree, so siblings included without a
// context still get distinct orders. When a hook fails, the child, its
// elements and the counters are left as they were before the call.
func (g *Group) Include(ctx *Context, child *Group) error {
	key, ok := g.partKey(child)
	if !ok {
		return schemaErr(g.Name, "", "cannot include %s", child.Name)
	}
	ctx = g.treeContext(ctx)

	saved := *ctx
	level, order, line := child.Level, child.Order, child.Line
	elements := maps.Clone(child.elements)
	undo := func() {
		*ctx = saved
		child.Level, child.Order, child.Line = level, order, line
		child.elements = elements
	}

	child.Level = g.Level + 1
	ctx.Stamp(child)

	if h := child.Shape.BeforeInclude; h != nil {
		if err := h(ctx, g, child); err != nil {
			undo()
			return fmt.Errorf("include %s in %s: %w", child.Name, g.Name, err)
		}
	}

	added := g.register(key, child)

	if h := child.Shape.AfterInclude; h != nil {
		if err := h(ctx, g, child); err != nil {
			g.unregister(key, child, added)
			undo()
			return fmt.Errorf("include %s in %s: %w", child.Name, g.Name, err)
		}
	}
	return nil
}

// treeContext returns ctx, remembering it on the root of g's tree, or the
// root's counters when ctx is nil. Counters created here start past the
// highest order and line already in the tree.
func (g *Group) treeContext(ctx *Context) *Context {
	root := g
	for root.Parent != nil {
		root = root.Parent
	}
	if ctx != nil {
		if root.ctx == nil {
			root.ctx = ctx
		}
		return ctx
	}
	if root.ctx == nil {
		c := NewContext()
		_ = root.Walk(func(n *Group) error {
			c.order = max(c.order, n.Order)
			c.line = max(c.line, n.Line)
			return nil
		})
		root.ctx = c
	}
	return root.ctx
}

// register files child under key and reports whether key was new to g's
// extra keys.
func (g *Group) register(key string, child *Group) bool {
	added := false
	if _, known := g.children[key]; !known && !slices.Contains(g.Shape.Part, key) {
		g.extraKeys = append(g.extraKeys, key)
		added = true
	}
	g.children[key] = append(g.children[key], child)
	child.Parent = g
	return added
}

func (g *Group) unregister(key string, child *Group, added bool) {
	kids := slices.DeleteFunc(g.children[key], func(c *Group) bool { return c == child })
	if len(kids) == 0 {
		delete(g.children, key)
	} else {
		g.children[key] = kids
	}
	if added {
		g.extraKeys = slices.DeleteFunc(g.extraKeys, func(k string) bool { return k == key })
	}
	child.Parent = nil
}

// Attach adds child below g as it is, without stamping or running include
// hooks. It is used to rebuild trees whose ids and positions are already
// known.
func (g *Group) Attach(child *Group) error {
	key, ok := g.partKey(child)
	if !ok {
		return schemaErr(g.Name, "", "cannot include %s", child.Name)
	}
	g.register(key, child)
	return nil
}

// Walk visits g and its descendants depth first, parents before children.
// Returning an error stops the walk.
func (g *Group) Walk(fn func(*Group) error) error {
	if err := fn(g); err != nil {
		return err
	}
	for _, c := range g.Children() {
		if err := c.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// Attr includes an attribute of g.
func (g *Group) Attr(ctx *Context, typ, value, date, obs string) (*Group, error) {
	return g.includeNew(ctx, "attr", []any{typ, value, emptyNil(date)}, obs)
}

// Rel includes a relation from g to destination.
func (g *Group) Rel(ctx *Context, typ, value, destname, destination, date, obs string) (*Group, error) {
	return g.includeNew(ctx, "rel", []any{typ, value, destname, destination, emptyNil(date)}, obs)
}

func (g *Group) includeNew(ctx *Context, shape string, pos []any, obs string) (*Group, error) {
	s, ok := g.Shape.registry.Shape(shape)
	if !ok {
		return nil, fmt.Errorf("%s: %w", shape, ErrUnknownShape)
	}
	slots := map[string]any{}
	if obs != "" {
		slots["obs"] = obs
	}
	child, err := s.New(pos, slots)
	if err != nil {
		return nil, err
	}
	if err := g.Include(ctx, child); err != nil {
		return nil, err
	}
	return child, nil
}

func emptyNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GenerateID gives child an id derived from its parent when its shape
// accepts one and none was given: {parent}-{order:02d}-{prefix}. Groups
// without an identified parent get a time-ordered UUID.
func GenerateID(_ *Context, parent, child *Group) error {
	if child.ID() != "" || !child.Shape.Allowed("id") {
		return nil
	}
	pid := ""
	if parent != nil {
		pid = parent.ID()
	}
	if pid == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		return child.Set("id", id.String())
	}
	return child.Set("id", fmt.Sprintf("%s-%02d-%s", pid, child.Order, idPrefix(child)))
}

func idPrefix(g *Group) string {
	if g.Shape.Prefix != "" {
		return g.Shape.Prefix
	}
	if utf8.RuneCountInString(g.Name) <= 3 {
		return g.Name
	}
	return string([]rune(g.Name)[:3])
}

// attributeHook generates the id and records the owning entity.
func attributeHook(ctx *Context, parent, child *Group) error {
	if err := GenerateID(ctx, parent, child); err != nil {
		return err
	}
	return child.Set("entity", parent.ID())
}

// relationHook generates the id and records the origin of the relation.
func relationHook(ctx *Context, parent, child *Group) error {
	if err := GenerateID(ctx, parent, child); err != nil {
		return err
	}
	return child.Set("origin", parent.ID())
}
