package kleio

import "slices"

// ResolveElementForColumn finds the element of g that best fills a storage
// column. It tries the slot called name, then the slot called semantic, then
// any held element whose type is or extends the requested class, and finally
// any held element sharing a non-root ancestor type with the requested class.
func (g *Group) ResolveElementForColumn(name, semantic string) (*Element, bool) {
	if e, ok := g.elements[name]; ok {
		return e, true
	}
	if semantic == "" {
		semantic = name
	}
	if e, ok := g.elements[semantic]; ok {
		return e, true
	}

	held := g.heldSlots()
	for _, slot := range held {
		e := g.elements[slot]
		if e.Type != nil && (e.Type.IsA(semantic) || e.Type.IsA(name)) {
			return e, true
		}
	}

	want, ok := g.Shape.registry.Elements.ResolveFor(semantic)
	if !ok {
		return nil, false
	}
	for _, slot := range held {
		if commonAncestor(want, g.elements[slot].Type) != nil {
			return g.elements[slot], true
		}
	}
	return nil, false
}

// heldSlots lists the slots holding elements, declared slots first.
func (g *Group) heldSlots() []string {
	var out []string
	for _, slot := range g.Shape.Slots() {
		if _, ok := g.elements[slot]; ok {
			out = append(out, slot)
		}
	}
	var rest []string
	for slot := range g.elements {
		if !slices.Contains(out, slot) {
			rest = append(rest, slot)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}
