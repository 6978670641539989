package types

import "time"

// Entity is one stored record: the row in the entities table plus the
// columns of every concrete table along its class chain.
type Entity struct {
	ID        string
	ShapeID   string
	ParentID  string // Empty for top-level entities.
	Order     int
	Level     int
	Line      int
	GroupName string
	UpdatedAt time.Time
	IndexedAt *time.Time

	// Columns holds the values of the concrete tables, keyed by column name.
	Columns map[string]any

	// Type is the most specific known entity type; the generic entity type
	// when the class is not mapped.
	Type *EntityType
}

// Column returns the value of a concrete column, or nil.
func (e *Entity) Column(name string) any {
	if e.Columns == nil {
		return nil
	}
	return e.Columns[name]
}
