package kleio

import (
	"bufio"
	"io"
	"slices"
	"strings"
)

// indentUnit is the indentation added per nesting level.
const indentUnit = "    "

// KleioLine renders g alone as shape$pos1/pos2/name=value. Positional values
// are emitted until the first empty one; the remaining non-empty slots follow
// as name=value in name order, with obs last.
func (g *Group) KleioLine() string {
	var parts []string
	emitted := make(map[string]bool)
	for _, slot := range g.Shape.Position {
		s := g.elements[slot].Render(false, false)
		if s == "" {
			break
		}
		parts = append(parts, s)
		emitted[slot] = true
	}

	var named []string
	for slot, e := range g.elements {
		if emitted[slot] || e.IsEmpty() || slices.Contains(builtinSlots, slot) {
			continue
		}
		if e.Type != nil && e.Type.Invisible {
			continue
		}
		named = append(named, slot)
	}
	slices.SortFunc(named, compareSlots)
	for _, slot := range named {
		parts = append(parts, g.elements[slot].Render(true, false))
	}
	return g.Name + "$" + strings.Join(parts, "/")
}

// compareSlots orders slot names alphabetically with obs last.
func compareSlots(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "obs":
		return 1
	case b == "obs":
		return -1
	}
	return strings.Compare(a, b)
}

// Render returns g and its descendants in Kleio notation, one group per line,
// children indented one level deeper than their parent.
func (g *Group) Render() string {
	var b strings.Builder
	_ = g.WriteKleio(&b)
	return b.String()
}

// WriteKleio writes g and its descendants in Kleio notation to w.
func (g *Group) WriteKleio(w io.Writer) error {
	bw := bufio.NewWriter(w)
	err := g.Walk(func(n *Group) error {
		depth := 0
		for p := n; p != g; p = p.Parent {
			depth++
		}
		if _, err := bw.WriteString(strings.Repeat(indentUnit, depth)); err != nil {
			return err
		}
		if _, err := bw.WriteString(n.KleioLine()); err != nil {
			return err
		}
		return bw.WriteByte('\n')
	})
	if err != nil {
		return err
	}
	return bw.Flush()
}

// String returns the Kleio line of g.
func (g *Group) String() string {
	return g.KleioLine()
}
