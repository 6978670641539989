// Tests for element types and element rendering.
package kleio

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementRegistry_ResolveForPicksDeepest(t *testing.T) {
	reg := NewElementRegistry()

	year, ok := reg.ResolveFor("year")
	require.True(t, ok)
	assert.Equal(t, 1, year.Depth)

	date, _ := reg.ResolveFor("date")
	special := reg.Extend(date, "year")
	assert.Equal(t, 2, special.Depth)

	got, ok := reg.ResolveFor("year")
	require.True(t, ok)
	assert.Same(t, special, got)

	_, ok = reg.ResolveFor("no-such-type")
	assert.False(t, ok)
}

func TestElementType_InheritsVisibilityAndNames(t *testing.T) {
	reg := NewElementRegistry()

	origin, _ := reg.ResolveFor("origin")
	assert.True(t, origin.Invisible)
	assert.Equal(t, []string{"origin", "id"}, origin.Names())
	assert.True(t, origin.IsA("id"))
	assert.True(t, origin.IsA(RootElement))

	sub := reg.Extend(origin, "source_origin")
	assert.True(t, sub.Invisible)
}

func TestNewElement_Values(t *testing.T) {
	reg := NewElementRegistry()
	typ := reg.typeFor("name")

	tests := []struct {
		name  string
		value any
		want  Element
	}{
		{"string", "Joaquim", Element{Core: "Joaquim"}},
		{"int", 1718, Element{Core: "1718"}},
		{"value", Value{Core: "Joaquim", Comment: "c", Original: "Joaquym"}, Element{Core: "Joaquim", Comment: "c", Original: "Joaquym"}},
		{"element", &Element{Core: "x", Comment: "y"}, Element{Core: "x", Comment: "y"}},
		{"nil", nil, Element{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewElement(typ, "name", tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Core, e.Core)
			assert.Equal(t, tt.want.Comment, e.Comment)
			assert.Equal(t, tt.want.Original, e.Original)
			assert.Same(t, typ, e.Type)
		})
	}
}

func TestNewElement_NumericValidation(t *testing.T) {
	reg := NewElementRegistry()

	tests := []struct {
		slot  string
		value string
		ok    bool
	}{
		{"day", "31", true},
		{"day", "32", false},
		{"day", "0", false},
		{"month", "12", true},
		{"month", "13", false},
		{"year", "1718", true},
		{"year", "c. 1718", false},
		{"year", "", true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s=%s", tt.slot, tt.value), func(t *testing.T) {
			_, err := NewElement(reg.typeFor(tt.slot), tt.slot, tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestElement_IsEmpty(t *testing.T) {
	assert.True(t, (&Element{}).IsEmpty())
	assert.True(t, (*Element)(nil).IsEmpty())
	assert.False(t, (&Element{Comment: "only a comment"}).IsEmpty())
	assert.False(t, (&Element{Original: "x"}).IsEmpty())
}

func TestElement_Render(t *testing.T) {
	reg := NewElementRegistry()
	name := reg.typeFor("name")
	origin := reg.typeFor("origin")
	long := strings.Repeat("a", LongTextLimit+1)

	tests := []struct {
		desc     string
		e        Element
		withName bool
		force    bool
		want     string
	}{
		{"core", Element{Name: "name", Core: "Joaquim", Type: name}, false, false, "Joaquim"},
		{"named", Element{Name: "name", Core: "Joaquim", Type: name}, true, false, "name=Joaquim"},
		{"comment and original", Element{Name: "name", Core: "Joaquim", Comment: "lido", Original: "Joaquym", Type: name}, false, false, "Joaquim#lido%Joaquym"},
		{"delimiter", Element{Name: "name", Core: "a/b", Type: name}, false, false, `"""a/b"""`},
		{"newline", Element{Name: "name", Core: "a\nb", Type: name}, false, false, "\"\"\"a\nb\"\"\""},
		{"long", Element{Name: "name", Core: long, Type: name}, false, false, `"""` + long + `"""`},
		{"invisible", Element{Name: "origin", Core: "p01", Type: origin}, true, false, ""},
		{"invisible forced", Element{Name: "origin", Core: "p01", Type: origin}, true, true, "origin=p01"},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.e.Render(tt.withName, tt.force))
		})
	}
}
