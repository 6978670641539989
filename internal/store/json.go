// JSON record structures of the import feed and export files. Every line of
// a feed is one record; the kind field says which structure it holds.
package store

import (
	"github.com/mesh-intelligence/timelink/pkg/kleio"
	"github.com/mesh-intelligence/timelink/pkg/types"
)

// Record kinds.
const (
	kindClass     = "class"
	kindAttribute = "attribute"
	kindGroup     = "group"
)

// recordKind reads only the discriminator of a record.
type recordKind struct {
	Kind string `json:"kind"`
}

// classJSON represents a class and its attributes.
type classJSON struct {
	Kind       string          `json:"kind"`
	ID         string          `json:"id"`
	Super      string          `json:"super,omitempty"`
	Table      string          `json:"table,omitempty"`
	Group      string          `json:"group,omitempty"`
	Attributes []attributeJSON `json:"attributes,omitempty"`
}

// attributeJSON represents one class attribute, inline in a class record or
// standalone with kind "attribute".
type attributeJSON struct {
	Kind          string `json:"kind,omitempty"`
	Class         string `json:"class,omitempty"`
	Name          string `json:"name"`
	Column        string `json:"column,omitempty"`
	SemanticClass string `json:"semantic_class,omitempty"`
	Type          string `json:"type,omitempty"`
	Size          int    `json:"size,omitempty"`
	Precision     int    `json:"precision,omitempty"`
	PrimaryKey    int    `json:"primary_key,omitempty"`
}

// groupJSON represents one group, without its children; nesting is carried
// by parent_id.
type groupJSON struct {
	Kind     string        `json:"kind"`
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	ShapeID  string        `json:"shape_id,omitempty"`
	Order    int           `json:"order"`
	Level    int           `json:"level"`
	Line     int           `json:"line"`
	ParentID string        `json:"parent_id,omitempty"`
	Elements []elementJSON `json:"elements"`
}

// elementJSON represents one element of a group.
type elementJSON struct {
	Name          string `json:"name"`
	SemanticClass string `json:"semantic_class,omitempty"`
	Core          string `json:"core"`
	Comment       string `json:"comment,omitempty"`
	Original      string `json:"original,omitempty"`
}

func (c classJSON) mapping() (types.ClassMapping, []types.ClassAttribute) {
	class := types.ClassMapping{ID: c.ID, TableName: c.Table, GroupName: c.Group, SuperClass: c.Super}
	attrs := make([]types.ClassAttribute, 0, len(c.Attributes))
	for _, a := range c.Attributes {
		a.Class = c.ID
		attrs = append(attrs, a.attribute())
	}
	return class, attrs
}

func (a attributeJSON) attribute() types.ClassAttribute {
	return types.ClassAttribute{
		ClassID:             a.Class,
		Name:                a.Name,
		ColumnName:          a.Column,
		ColumnSemanticClass: a.SemanticClass,
		ColumnType:          a.Type,
		ColumnSize:          a.Size,
		ColumnPrecision:     a.Precision,
		PrimaryKey:          a.PrimaryKey,
	}
}

func toClassJSON(c types.ClassMapping, attrs []types.ClassAttribute) classJSON {
	out := classJSON{Kind: kindClass, ID: c.ID, Super: c.SuperClass, Table: c.TableName, Group: c.GroupName}
	for _, a := range attrs {
		out.Attributes = append(out.Attributes, attributeJSON{
			Name:          a.Name,
			Column:        a.ColumnName,
			SemanticClass: a.ColumnSemanticClass,
			Type:          a.ColumnType,
			Size:          a.ColumnSize,
			Precision:     a.ColumnPrecision,
			PrimaryKey:    a.PrimaryKey,
		})
	}
	return out
}

func toGroupJSON(g *kleio.Group, parentID string) groupJSON {
	out := groupJSON{
		Kind:     kindGroup,
		ID:       g.ID(),
		Name:     g.Name,
		ShapeID:  g.ShapeID,
		Order:    g.Order,
		Level:    g.Level,
		Line:     g.Line,
		ParentID: parentID,
		Elements: []elementJSON{},
	}
	for _, e := range g.Elements() {
		out.Elements = append(out.Elements, elementJSON{
			Name:          e.Name,
			SemanticClass: e.SemanticClass(),
			Core:          e.Core,
			Comment:       e.Comment,
			Original:      e.Original,
		})
	}
	return out
}
