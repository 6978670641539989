package store

// dbFileName is the SQLite database file inside DataDir.
const dbFileName = "timelink.db"

// Metadata DDL. Statements are portable between SQLite and PostgreSQL and
// safe to run on every attach.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS classes (
    id VARCHAR(64) PRIMARY KEY,
    table_name VARCHAR(128) NOT NULL,
    group_name VARCHAR(128),
    super_class VARCHAR(64) NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS class_attributes (
    class_id VARCHAR(64) NOT NULL,
    name VARCHAR(128) NOT NULL,
    column_name VARCHAR(128) NOT NULL,
    column_semantic_class VARCHAR(128),
    column_type VARCHAR(32),
    column_size INTEGER NOT NULL DEFAULT 0,
    column_precision INTEGER NOT NULL DEFAULT 0,
    primary_key INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (class_id, name),
    FOREIGN KEY (class_id) REFERENCES classes(id) ON DELETE CASCADE
)`,
	`CREATE TABLE IF NOT EXISTS entities (
    id VARCHAR(64) PRIMARY KEY,
    shape_id VARCHAR(64) REFERENCES classes(id),
    parent_id VARCHAR(64) REFERENCES entities(id),
    "order" INTEGER,
    "level" INTEGER,
    "line" INTEGER,
    group_name VARCHAR(128),
    updated_at TEXT NOT NULL,
    indexed_at TEXT
)`,
	`CREATE INDEX IF NOT EXISTS idx_entities_parent ON entities (parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_entities_shape ON entities (shape_id)`,
	`CREATE INDEX IF NOT EXISTS idx_entities_group ON entities (group_name)`,
}

// entityColumns are the columns of the root entities table, in select order.
const entityColumns = `id, shape_id, parent_id, "order", "level", "line", group_name, updated_at, indexed_at`
