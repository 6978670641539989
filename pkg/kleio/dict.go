package kleio

import (
	"fmt"
	"strconv"
	"strings"
)

// Dict is a nested map view of a group, suitable for templates and JSON.
type Dict map[string]any

// ToDict projects g and its descendants into a Dict. Every declared slot is
// present, nil when empty; present elements add _comment, _original, _str and
// _kleio companions. Children are listed under includes.<name>, and when the
// keys are free also under the plural of the name and under the name indexed
// by id.
func (g *Group) ToDict() Dict {
	d := Dict{
		"groupname": g.Name,
		"level":     g.Level,
		"line":      g.Line,
		"order":     g.Order,
	}
	for _, slot := range g.Shape.Slots() {
		d[slot] = nil
	}
	for slot, e := range g.elements {
		if slot == "groupname" || slot == "level" || slot == "line" || slot == "order" {
			continue
		}
		d[slot] = e.Core
		d[slot+"_comment"] = e.Comment
		d[slot+"_original"] = e.Original
		d[slot+"_str"] = e.String()
		d[slot+"_kleio"] = e.Render(true, true)
	}

	children := g.Children()
	if len(children) == 0 {
		return d
	}

	includes := make(map[string][]Dict)
	var names []string
	for _, c := range children {
		if _, ok := includes[c.Name]; !ok {
			names = append(names, c.Name)
		}
		includes[c.Name] = append(includes[c.Name], c.ToDict())
	}
	d["includes"] = includes

	for _, name := range names {
		if plural := pluralize(name); !d.has(plural) {
			d[plural] = includes[name]
		}
		if d.has(name) {
			continue
		}
		byID := make(map[string]Dict)
		for _, cd := range includes[name] {
			if id, ok := cd["id"].(string); ok && id != "" {
				byID[id] = cd
			}
		}
		d[name] = byID
	}
	return d
}

func (d Dict) has(key string) bool {
	_, ok := d[key]
	return ok
}

func pluralize(name string) string {
	switch {
	case strings.HasSuffix(name, "y") && len(name) > 1:
		return name[:len(name)-1] + "ies"
	case strings.HasSuffix(name, "s"):
		return name + "es"
	}
	return name + "s"
}

// Get follows a dotted path such as "includes.person.0.name". Numeric
// segments index lists.
func (d Dict) Get(path string) (any, error) {
	var cur any = d
	for _, seg := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case Dict:
			next, ok := v[seg]
			if !ok {
				return nil, fmt.Errorf("%s: no key %q", path, seg)
			}
			cur = next
		case map[string]Dict:
			next, ok := v[seg]
			if !ok {
				return nil, fmt.Errorf("%s: no key %q", path, seg)
			}
			cur = next
		case map[string][]Dict:
			next, ok := v[seg]
			if !ok {
				return nil, fmt.Errorf("%s: no key %q", path, seg)
			}
			cur = next
		case []Dict:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(v) {
				return nil, fmt.Errorf("%s: bad index %q", path, seg)
			}
			cur = v[i]
		default:
			return nil, fmt.Errorf("%s: cannot descend into %q", path, seg)
		}
	}
	return cur, nil
}
