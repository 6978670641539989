package kleio

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// LongTextLimit is the rune count above which core values are quoted.
const LongTextLimit = 80

// tripleQuote wraps values that would otherwise break a Kleio line.
const tripleQuote = `"""`

// delimiters are the characters with meaning in Kleio notation.
const delimiters = "$/=#%;"

// Value carries the three aspects of an element when building a group.
type Value struct {
	Core     string
	Comment  string
	Original string
}

// Element is one slot value of a group: the core value, an optional comment
// and an optional original wording. Elements are immutable once created.
type Element struct {
	Name     string
	Core     string
	Comment  string
	Original string
	Type     *ElementType
}

// NewElement builds an element of type t filling slot name. Accepted values
// are Value, Element, *Element, string, fmt.Stringer and anything fmt.Sprint
// can render. A nil value yields an empty element.
func NewElement(t *ElementType, name string, value any) (*Element, error) {
	e := &Element{Name: name, Type: t}
	switch v := value.(type) {
	case nil:
	case Value:
		e.Core, e.Comment, e.Original = v.Core, v.Comment, v.Original
	case *Value:
		e.Core, e.Comment, e.Original = v.Core, v.Comment, v.Original
	case Element:
		e.Core, e.Comment, e.Original = v.Core, v.Comment, v.Original
	case *Element:
		e.Core, e.Comment, e.Original = v.Core, v.Comment, v.Original
	case string:
		e.Core = v
	case fmt.Stringer:
		e.Core = v.String()
	default:
		e.Core = fmt.Sprint(v)
	}
	if t != nil {
		if err := t.Validate(e.Core); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// IsEmpty reports whether core, comment and original are all empty.
func (e *Element) IsEmpty() bool {
	return e == nil || (e.Core == "" && e.Comment == "" && e.Original == "")
}

// SemanticClass returns the name of the element's type.
func (e *Element) SemanticClass() string {
	if e.Type == nil {
		return e.Name
	}
	return e.Type.Name
}

// String returns the core value.
func (e *Element) String() string {
	if e == nil {
		return ""
	}
	return e.Core
}

// Render returns the Kleio form core#comment%original, prefixed with name=
// when withName is set. Invisible elements render empty unless force is set.
func (e *Element) Render(withName, force bool) string {
	if e == nil {
		return ""
	}
	if e.Type != nil && e.Type.Invisible && !force {
		return ""
	}
	var b strings.Builder
	if withName {
		b.WriteString(e.Name)
		b.WriteByte('=')
	}
	b.WriteString(quote(e.Core))
	if e.Comment != "" {
		b.WriteByte('#')
		b.WriteString(quote(e.Comment))
	}
	if e.Original != "" {
		b.WriteByte('%')
		b.WriteString(quote(e.Original))
	}
	return b.String()
}

func needsQuote(s string) bool {
	return strings.ContainsAny(s, delimiters+"\n") ||
		utf8.RuneCountInString(s) > LongTextLimit ||
		strings.TrimSpace(s) != s
}

func quote(s string) string {
	if !needsQuote(s) {
		return s
	}
	return tripleQuote + s + tripleQuote
}

func unquote(s string) string {
	if len(s) >= 2*len(tripleQuote) && strings.HasPrefix(s, tripleQuote) && strings.HasSuffix(s, tripleQuote) {
		return s[len(tripleQuote) : len(s)-len(tripleQuote)]
	}
	return s
}
