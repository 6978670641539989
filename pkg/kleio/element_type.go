package kleio

import (
	"fmt"
	"strconv"
	"sync"
)

// RootElement is the name of the generic element type every other type
// descends from.
const RootElement = "element"

// ElementType is the semantic class of an element. Types form a tree rooted
// at RootElement; Depth counts the hops from the root and decides which type
// wins when several share a name.
type ElementType struct {
	Name      string
	Parent    *ElementType
	Depth     int
	Invisible bool

	validate func(core string) error
}

// ElementOption configures a type created by ElementRegistry.Extend.
type ElementOption func(*ElementType)

// Invisible marks elements of the type as hidden from Kleio rendering.
func Invisible() ElementOption {
	return func(t *ElementType) { t.Invisible = true }
}

// Validator sets the check applied to non-empty core values.
func Validator(fn func(core string) error) ElementOption {
	return func(t *ElementType) { t.validate = fn }
}

// Names returns the type name followed by the names of its ancestors,
// excluding the root.
func (t *ElementType) Names() []string {
	var names []string
	for at := t; at != nil && at.Parent != nil; at = at.Parent {
		names = append(names, at.Name)
	}
	return names
}

// IsA reports whether t is called name or descends from a type called name.
func (t *ElementType) IsA(name string) bool {
	for at := t; at != nil; at = at.Parent {
		if at.Name == name {
			return true
		}
	}
	return false
}

// Validate runs the nearest validator up the type chain.
func (t *ElementType) Validate(core string) error {
	if core == "" {
		return nil
	}
	for at := t; at != nil; at = at.Parent {
		if at.validate != nil {
			return at.validate(core)
		}
	}
	return nil
}

// commonAncestor returns the nearest non-root type shared by a and b.
func commonAncestor(a, b *ElementType) *ElementType {
	if a == nil || b == nil {
		return nil
	}
	seen := make(map[*ElementType]bool)
	for at := a; at != nil && at.Parent != nil; at = at.Parent {
		seen[at] = true
	}
	for bt := b; bt != nil && bt.Parent != nil; bt = bt.Parent {
		if seen[bt] {
			return bt
		}
	}
	return nil
}

// ElementRegistry holds every known element type keyed by name.
type ElementRegistry struct {
	mu     sync.RWMutex
	root   *ElementType
	byName map[string][]*ElementType
}

// NewElementRegistry returns a registry holding the root type and the
// builtin vocabulary.
func NewElementRegistry() *ElementRegistry {
	r := &ElementRegistry{
		root:   &ElementType{Name: RootElement},
		byName: make(map[string][]*ElementType),
	}
	r.byName[RootElement] = []*ElementType{r.root}
	for _, b := range builtinElements {
		parent := r.root
		if b.parent != "" {
			parent, _ = r.ResolveFor(b.parent)
		}
		r.Extend(parent, b.name, b.opts...)
	}
	return r
}

// Root returns the generic element type.
func (r *ElementRegistry) Root() *ElementType {
	return r.root
}

// Extend registers a new type called name below parent. A nil parent means
// the root type. Visibility is inherited unless overridden by opts.
func (r *ElementRegistry) Extend(parent *ElementType, name string, opts ...ElementOption) *ElementType {
	if parent == nil {
		parent = r.root
	}
	t := &ElementType{
		Name:      name,
		Parent:    parent,
		Depth:     parent.Depth + 1,
		Invisible: parent.Invisible,
	}
	for _, opt := range opts {
		opt(t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = append(r.byName[name], t)
	return t
}

// ResolveFor returns the most specialized type declared with the given name.
// When two types share the name and the depth, the first registered wins.
func (r *ElementRegistry) ResolveFor(name string) (*ElementType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *ElementType
	for _, t := range r.byName[name] {
		if best == nil || t.Depth > best.Depth {
			best = t
		}
	}
	return best, best != nil
}

// typeFor resolves name, falling back to the root type.
func (r *ElementRegistry) typeFor(name string) *ElementType {
	if t, ok := r.ResolveFor(name); ok {
		return t
	}
	return r.root
}

// alias returns a type called name that behaves as semantic, reusing an
// existing one when it already descends from semantic.
func (r *ElementRegistry) alias(name, semantic string) *ElementType {
	if t, ok := r.ResolveFor(name); ok && t.IsA(semantic) {
		return t
	}
	return r.Extend(r.typeFor(semantic), name)
}

type builtinElement struct {
	name   string
	parent string
	opts   []ElementOption
}

// builtinElements is the base vocabulary, parents before children.
var builtinElements = []builtinElement{
	{name: "id"},
	{name: "type"},
	{name: "name"},
	{name: "sex"},
	{name: "date"},
	{name: "day", opts: []ElementOption{Validator(rangeValidator("day", 1, 31))}},
	{name: "month", opts: []ElementOption{Validator(rangeValidator("month", 1, 12))}},
	{name: "year", opts: []ElementOption{Validator(intValidator("year"))}},
	{name: "value"},
	{name: "loc"},
	{name: "ref"},
	{name: "obs"},
	{name: "description"},
	{name: "summary"},
	{name: "destname", parent: "name"},
	{name: "destination", parent: "id"},
	{name: "origin", parent: "id", opts: []ElementOption{Invisible()}},
	{name: "entity", parent: "id", opts: []ElementOption{Invisible()}},
	{name: "same_as", parent: "id"},
	{name: "xsame_as", parent: "id"},
	{name: "replace", parent: "id"},
	{name: "kleiofile"},
	{name: "structure"},
	{name: "line", opts: []ElementOption{Invisible()}},
	{name: "level", opts: []ElementOption{Invisible()}},
	{name: "order", opts: []ElementOption{Invisible()}},
	{name: "inside", parent: "id", opts: []ElementOption{Invisible()}},
	{name: "groupname", opts: []ElementOption{Invisible()}},
	{name: "class", opts: []ElementOption{Invisible()}},
}

func intValidator(name string) func(string) error {
	return func(core string) error {
		if _, err := strconv.Atoi(core); err != nil {
			return fmt.Errorf("%s %q is not an integer", name, core)
		}
		return nil
	}
}

func rangeValidator(name string, lo, hi int) func(string) error {
	return func(core string) error {
		n, err := strconv.Atoi(core)
		if err != nil {
			return fmt.Errorf("%s %q is not an integer", name, core)
		}
		if n < lo || n > hi {
			return fmt.Errorf("%s %d out of range %d-%d", name, n, lo, hi)
		}
		return nil
	}
}
