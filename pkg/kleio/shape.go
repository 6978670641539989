package kleio

import (
	"fmt"
	"slices"
	"sync"
)

// BaseShape is the shape every other shape extends.
const BaseShape = "group"

// builtinSlots are bookkeeping slots any group may carry. They are never
// rendered.
var builtinSlots = []string{"line", "level", "order", "inside", "groupname", "class"}

// Hook runs when child is included into parent.
type Hook func(ctx *Context, parent, child *Group) error

// Shape describes a kind of group: the slots it accepts, the order of its
// positional slots, the sub-groups it may include and the hooks run on
// inclusion. Shapes are created through Registry.Extend.
type Shape struct {
	Name       string
	Parent     *Shape
	Position   []string
	Guaranteed []string
	Optional   []string
	Part       []string
	Prefix     string

	BeforeInclude Hook
	AfterInclude  Hook

	elements map[string]*ElementType
	registry *Registry
}

// ShapeOption overrides part of a shape inherited from its parent.
type ShapeOption func(*shapeSpec)

type shapeSpec struct {
	position   []string
	guaranteed []string
	optional   []string
	part       []string
	synonyms   map[string]string
	prefix     *string
	before     Hook
	after      Hook
}

// Position sets the slots filled by positional values, in order.
func Position(slots ...string) ShapeOption {
	return func(s *shapeSpec) { s.position = nonNil(slots) }
}

// Guaranteed sets the slots that must be non-empty after construction.
func Guaranteed(slots ...string) ShapeOption {
	return func(s *shapeSpec) { s.guaranteed = nonNil(slots) }
}

// Optional sets the additional slots the shape accepts.
func Optional(slots ...string) ShapeOption {
	return func(s *shapeSpec) { s.optional = nonNil(slots) }
}

// Part sets the names of the sub-groups the shape may include.
func Part(shapes ...string) ShapeOption {
	return func(s *shapeSpec) { s.part = nonNil(shapes) }
}

// Synonyms maps local slot names to the element types they stand for, so
// that "ano" is stored and resolved as a year.
func Synonyms(m map[string]string) ShapeOption {
	return func(s *shapeSpec) {
		if s.synonyms == nil {
			s.synonyms = make(map[string]string, len(m))
		}
		for slot, semantic := range m {
			s.synonyms[slot] = semantic
		}
	}
}

// Prefix sets the short code used when generating ids.
func Prefix(p string) ShapeOption {
	return func(s *shapeSpec) { s.prefix = &p }
}

// BeforeInclude replaces the hook run before a group is attached to its parent.
func BeforeInclude(h Hook) ShapeOption {
	return func(s *shapeSpec) { s.before = h }
}

// AfterInclude replaces the hook run after a group is attached to its parent.
func AfterInclude(h Hook) ShapeOption {
	return func(s *shapeSpec) { s.after = h }
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

// Registry holds the shapes known to an import run.
type Registry struct {
	mu     sync.RWMutex
	shapes map[string]*Shape
	order  []string

	Elements *ElementRegistry
}

// NewRegistry returns a registry with the base group shape and the builtin
// source-oriented shapes.
func NewRegistry() *Registry {
	r := &Registry{
		shapes:   make(map[string]*Shape),
		Elements: NewElementRegistry(),
	}
	base := &Shape{
		Name:          BaseShape,
		Position:      []string{},
		Guaranteed:    []string{},
		Optional:      []string{},
		Part:          []string{},
		BeforeInclude: GenerateID,
		elements:      make(map[string]*ElementType),
		registry:      r,
	}
	r.shapes[BaseShape] = base
	r.order = append(r.order, BaseShape)
	registerBuiltinShapes(r)
	return r
}

// Shape returns the shape registered under name.
func (r *Registry) Shape(name string) (*Shape, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shapes[name]
	return s, ok
}

// Shapes returns every registered shape in registration order.
func (r *Registry) Shapes() []*Shape {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Shape, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.shapes[name])
	}
	return out
}

// Extend registers a new shape called name derived from parent. Lists not
// overridden by opts are copied from the parent.
func (r *Registry) Extend(parent, name string, opts ...ShapeOption) (*Shape, error) {
	if name == "" {
		return nil, fmt.Errorf("extend %s: empty shape name", parent)
	}
	p, ok := r.Shape(parent)
	if !ok {
		return nil, fmt.Errorf("extend %s from %s: %w", name, parent, ErrUnknownShape)
	}
	if _, dup := r.Shape(name); dup {
		return nil, fmt.Errorf("extend %s: %w", name, ErrDuplicateShape)
	}

	var spec shapeSpec
	for _, opt := range opts {
		opt(&spec)
	}

	s := &Shape{
		Name:          name,
		Parent:        p,
		Position:      pick(spec.position, p.Position),
		Guaranteed:    pick(spec.guaranteed, p.Guaranteed),
		Optional:      pick(spec.optional, p.Optional),
		Part:          pick(spec.part, p.Part),
		Prefix:        p.Prefix,
		BeforeInclude: p.BeforeInclude,
		AfterInclude:  p.AfterInclude,
		elements:      make(map[string]*ElementType, len(p.elements)),
		registry:      r,
	}
	for slot, t := range p.elements {
		s.elements[slot] = t
	}
	if spec.prefix != nil {
		s.Prefix = *spec.prefix
	}
	if spec.before != nil {
		s.BeforeInclude = spec.before
	}
	if spec.after != nil {
		s.AfterInclude = spec.after
	}

	slots := make([]string, 0, len(spec.synonyms))
	for slot := range spec.synonyms {
		slots = append(slots, slot)
	}
	slices.Sort(slots)
	for _, slot := range slots {
		s.elements[slot] = r.Elements.alias(slot, spec.synonyms[slot])
		if !s.declares(slot) {
			s.Optional = append(s.Optional, slot)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.shapes[name] = s
	r.order = append(r.order, name)
	return s, nil
}

func pick(override, inherited []string) []string {
	if override != nil {
		return override
	}
	return slices.Clone(inherited)
}

func (s *Shape) declares(slot string) bool {
	return slices.Contains(s.Position, slot) ||
		slices.Contains(s.Guaranteed, slot) ||
		slices.Contains(s.Optional, slot)
}

// Allowed reports whether slot may be set on groups of this shape.
func (s *Shape) Allowed(slot string) bool {
	return s.declares(slot) || slices.Contains(builtinSlots, slot)
}

// Slots returns the declared slots: positional first, then guaranteed, then
// optional, without repeats.
func (s *Shape) Slots() []string {
	var out []string
	for _, list := range [][]string{s.Position, s.Guaranteed, s.Optional} {
		for _, slot := range list {
			if !slices.Contains(out, slot) {
				out = append(out, slot)
			}
		}
	}
	return out
}

// ElementType returns the type used for values of slot.
func (s *Shape) ElementType(slot string) *ElementType {
	if t, ok := s.elements[slot]; ok {
		return t
	}
	return s.registry.Elements.typeFor(slot)
}

// IsA reports whether s is called name or extends a shape called name.
func (s *Shape) IsA(name string) bool {
	for at := s; at != nil; at = at.Parent {
		if at.Name == name {
			return true
		}
	}
	return false
}

// Registry returns the registry the shape belongs to.
func (s *Shape) Registry() *Registry {
	return s.registry
}

// NewOption adjusts group construction.
type NewOption func(*Group)

// Unchecked lets the group accept slots its shape does not declare and skips
// the guaranteed check. Groups rebuilt from storage use it.
func Unchecked() NewOption {
	return func(g *Group) { g.unchecked = true }
}

// Named records name as the group name instead of the shape name.
func Named(name string) NewOption {
	return func(g *Group) { g.Name = name }
}

// WithShapeID records the storage class the group maps to.
func WithShapeID(id string) NewOption {
	return func(g *Group) { g.ShapeID = id }
}

// New builds a group. Positional values fill the shape's positional slots in
// order; slots sets named values.
func (s *Shape) New(pos []any, slots map[string]any, opts ...NewOption) (*Group, error) {
	g := newGroup(s)
	for _, opt := range opts {
		opt(g)
	}

	if len(pos) > len(s.Position) {
		return nil, schemaErr(g.Name, "", "%d positional values, at most %d allowed", len(pos), len(s.Position))
	}
	for i, v := range pos {
		if v == nil {
			continue
		}
		if err := g.Set(s.Position[i], v); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(slots))
	for name := range slots {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := g.Set(name, slots[name]); err != nil {
			return nil, err
		}
	}

	if !g.unchecked {
		for _, slot := range s.Guaranteed {
			if g.Get(slot).IsEmpty() {
				return nil, schemaErr(g.Name, slot, "guaranteed slot is empty")
			}
		}
	}
	return g, nil
}
