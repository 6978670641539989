// Tests for Kleio rendering and parsing.
package kleio

import (
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKleioLine_Scenario(t *testing.T) {
	r := NewRegistry()
	src, act, person := scenarioTree(t, r, NewContext())

	assert.Equal(t, "source$s1/loc=auc/type=test", src.KleioLine())
	assert.Equal(t, "act$a1/test-act/2021-07-16", act.KleioLine())
	assert.Equal(t, "person$Joaquim/m/p01", person.KleioLine())

	want := "source$s1/loc=auc/type=test\n" +
		"    act$a1/test-act/2021-07-16\n" +
		"        person$Joaquim/m/p01\n"
	assert.Equal(t, want, src.Render())
}

func TestKleioLine_EmptyOptionalOmitted(t *testing.T) {
	r := NewRegistry()
	g := mustNew(t, r, "attr", []any{"profession", "farmer"}, map[string]any{"obs": ""})

	assert.Equal(t, "attr$profession/farmer", g.KleioLine())
	assert.NotContains(t, g.KleioLine(), "obs")
}

func TestKleioLine_ObsLast(t *testing.T) {
	r := NewRegistry()
	g := mustNew(t, r, "source", []any{"s1"}, map[string]any{
		"obs":  "checked",
		"type": "parish",
		"date": "1718",
		"ref":  "liv. 3",
	})
	assert.Equal(t, "source$s1/date=1718/ref=liv. 3/type=parish/obs=checked", g.KleioLine())
}

func TestKleioLine_PositionalStopsAtFirstEmpty(t *testing.T) {
	r := NewRegistry()
	g := mustNew(t, r, "object", []any{"house", nil, "o1"}, nil)
	assert.Equal(t, "object$house/id=o1", g.KleioLine())
}

func TestKleioLine_HidesBookkeepingAndInvisible(t *testing.T) {
	r := NewRegistry()
	ctx := NewContext()
	_, _, person := scenarioTree(t, r, ctx)

	attr, err := person.Attr(ctx, "profession", "farmer", "", "")
	require.NoError(t, err)
	require.NoError(t, attr.Set("line", 40))

	line := attr.KleioLine()
	assert.Equal(t, "attr$profession/farmer/id="+attr.ID(), line)
	assert.NotContains(t, line, "entity")
}

func TestParse_RoundTrip(t *testing.T) {
	text := strings.Join([]string{
		"kleio$gacto2.str/prefix=t1",
		"    source$s1/loc=auc/type=test",
		"        act$a1/test-act/2021-07-16/loc=Coimbra",
		"            person$Joaquim#lido%Joaquym/m/p01",
		"                attr$profession/farmer/id=p01-att",
		"            person$Maria/f/p02/obs=\"\"\"first line",
		"second line\"\"\"",
		"            object$house/id=o1/obs=\"\"\"a/b; c\"\"\"",
		"            rel$function/witness/Maria/p02/id=a1-rel",
		"",
	}, "\n")

	r := NewRegistry()
	roots, err := Parse(strings.NewReader(text), r, NewContext())
	require.NoError(t, err)
	require.Len(t, roots, 1)

	assert.Equal(t, text, roots[0].Render(), spew.Sdump(roots[0].ToDict()))
}

func TestParse_StampsPhysicalLines(t *testing.T) {
	text := "source$s1\n\n    act$a1/t/2021\n        person$Ana/f/p1\n"

	roots, err := Parse(strings.NewReader(text), NewRegistry(), nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)

	act := roots[0].Children()[0]
	person := act.Children()[0]
	assert.Equal(t, 1, roots[0].Line)
	assert.Equal(t, 3, act.Line)
	assert.Equal(t, 4, person.Line)
	assert.Equal(t, 3, person.Level)
	assert.Equal(t, "a1", person.Parent.ID())
	assert.Equal(t, "Joaquym", mustParseOne(t, "person$Joaquim%Joaquym/m").Get("name").Original)
}

func mustParseOne(t *testing.T, line string) *Group {
	t.Helper()
	roots, err := Parse(strings.NewReader(line), NewRegistry(), nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	return roots[0]
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"unknown shape", "baptism$b1", ErrUnknownShape},
		{"missing dollar", "source s1", ErrSyntax},
		{"skipped level", "source$s1\n        person$Ana/f", ErrSyntax},
		{"unterminated quote", "source$s1/obs=\"\"\"open", ErrSyntax},
		{"schema", "source$s1\n    person$Ana/f", ErrSchemaViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.text), NewRegistry(), nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
