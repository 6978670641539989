package types

// Root of the class hierarchy. Every super chain ends at EntityClass, whose
// own super class is the RootClass sentinel.
const (
	RootClass     = "root"
	EntityClass   = "entity"
	EntitiesTable = "entities"

	// MaxHierarchyDepth bounds super chains; longer chains are treated as
	// cycles.
	MaxHierarchyDepth = 16
)

// Column types understood when synthesizing tables from class attributes.
const (
	ColumnVarchar = "varchar"
	ColumnChar    = "char"
	ColumnText    = "text"
	ColumnNumeric = "numeric"
)

// ClassMapping binds a storage class to its table, the group name it is
// imported from and its immediate super class.
type ClassMapping struct {
	ID         string `json:"id"`
	TableName  string `json:"table_name"`
	GroupName  string `json:"group_name"`
	SuperClass string `json:"super_class"`
}

// IsRoot reports whether the class is the top of the hierarchy.
func (c ClassMapping) IsRoot() bool {
	return c.SuperClass == "" || c.SuperClass == RootClass
}

// ClassAttribute describes one column of a class's table and the element
// semantic class that fills it.
type ClassAttribute struct {
	ClassID             string `json:"class_id"`
	Name                string `json:"name"`
	ColumnName          string `json:"column_name"`
	ColumnSemanticClass string `json:"column_semantic_class"`
	ColumnType          string `json:"column_type"`
	ColumnSize          int    `json:"column_size"`
	ColumnPrecision     int    `json:"column_precision"`
	PrimaryKey          int    `json:"primary_key"`
}

// Column returns the column name, defaulting to the attribute name.
func (a ClassAttribute) Column() string {
	if a.ColumnName != "" {
		return a.ColumnName
	}
	return a.Name
}

// Semantic returns the element class, defaulting to the attribute name.
func (a ClassAttribute) Semantic() string {
	if a.ColumnSemanticClass != "" {
		return a.ColumnSemanticClass
	}
	return a.Name
}
