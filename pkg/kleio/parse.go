package kleio

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Parse reads Kleio notation as written by Group.Render. Indentation of four
// spaces per level defines nesting. Returned groups are the top-level ones;
// every group is stamped from ctx with its physical line number.
func Parse(r io.Reader, reg *Registry, ctx *Context) ([]*Group, error) {
	if ctx == nil {
		ctx = NewContext()
	}
	lines, err := logicalLines(r)
	if err != nil {
		return nil, err
	}

	var (
		roots []*Group
		stack []*Group
	)
	for _, ll := range lines {
		raw := ll.text
		if strings.TrimSpace(raw) == "" {
			continue
		}
		text := strings.TrimLeft(raw, " ")
		depth := (len(raw) - len(text)) / len(indentUnit)

		g, err := parseGroup(reg, strings.TrimRight(text, " \r"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", ll.number, err)
		}

		ctx.SetLine(ll.number)
		switch {
		case depth == 0:
			ctx.Stamp(g)
			roots = append(roots, g)
		case depth > len(stack):
			return nil, fmt.Errorf("line %d: %w: indentation skips a level", ll.number, ErrSyntax)
		default:
			if err := stack[depth-1].Include(ctx, g); err != nil {
				return nil, fmt.Errorf("line %d: %w", ll.number, err)
			}
		}
		stack = append(stack[:depth], g)
	}
	return roots, nil
}

type logicalLine struct {
	number int
	text   string
}

// logicalLines joins physical lines while a triple-quoted value is open.
func logicalLines(r io.Reader) ([]logicalLine, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var (
		out     []logicalLine
		pending *logicalLine
		n       int
	)
	for sc.Scan() {
		n++
		if pending != nil {
			pending.text += "\n" + sc.Text()
		} else {
			pending = &logicalLine{number: n, text: sc.Text()}
		}
		if strings.Count(pending.text, tripleQuote)%2 == 0 {
			out = append(out, *pending)
			pending = nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, fmt.Errorf("line %d: %w: unterminated %s", pending.number, ErrSyntax, tripleQuote)
	}
	return out, nil
}

func parseGroup(reg *Registry, text string) (*Group, error) {
	i := strings.IndexByte(text, '$')
	if i < 0 {
		return nil, fmt.Errorf("%w: missing $ in %q", ErrSyntax, text)
	}
	name := text[:i]
	shape, ok := reg.Shape(name)
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownShape)
	}

	var (
		pos   []any
		slots = make(map[string]any)
	)
	for _, field := range splitOutside(text[i+1:], '/') {
		if eq := indexOutside(field, '='); eq >= 0 {
			slots[field[:eq]] = parseValue(field[eq+1:])
			continue
		}
		pos = append(pos, parseValue(field))
	}
	return shape.New(pos, slots)
}

// parseValue splits core#comment%original, honouring quoted sections.
func parseValue(s string) Value {
	var v Value
	parts := splitOutside(s, '%')
	if len(parts) > 1 {
		v.Original = unquote(strings.Join(parts[1:], "%"))
	}
	cc := splitOutside(parts[0], '#')
	v.Core = unquote(cc[0])
	if len(cc) > 1 {
		v.Comment = unquote(strings.Join(cc[1:], "#"))
	}
	return v
}

// splitOutside splits s on sep wherever sep is not inside a triple-quoted
// section. An empty s yields no fields.
func splitOutside(s string, sep byte) []string {
	if s == "" {
		return nil
	}
	var (
		out    []string
		start  int
		quoted bool
	)
	for i := 0; i < len(s); i++ {
		if strings.HasPrefix(s[i:], tripleQuote) {
			quoted = !quoted
			i += len(tripleQuote) - 1
			continue
		}
		if !quoted && s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

func indexOutside(s string, sep byte) int {
	quoted := false
	for i := 0; i < len(s); i++ {
		if strings.HasPrefix(s[i:], tripleQuote) {
			quoted = !quoted
			i += len(tripleQuote) - 1
			continue
		}
		if !quoted && s[i] == sep {
			return i
		}
	}
	return -1
}
