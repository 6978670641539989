package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/timelink/pkg/types"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dialect hides the differences between the supported databases: how to
// connect, how placeholders are written, how column types are spelled and
// how an existing table is introspected.
type dialect interface {
	name() string
	driver() string
	dsn(cfg types.Config) string
	maxOpenConns() int
	rebind(query string) string
	columnType(c types.Column) string
	tableExists(ctx context.Context, q querier, table string) (bool, error)
	columns(ctx context.Context, q querier, table string) ([]types.Column, error)
}

func dialectFor(backend string) (dialect, error) {
	switch backend {
	case types.BackendSQLite:
		return sqliteDialect{}, nil
	case types.BackendPostgres:
		return postgresDialect{}, nil
	}
	return nil, types.ErrBackendUnknown
}

// quoteIdent quotes an identifier; table and column names come from class
// declarations and may collide with reserved words such as "order".
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var sizedType = regexp.MustCompile(`\((\d+)`)

// kindOf maps a declared SQL type to a column kind and size.
func kindOf(sqlType string) (types.ColumnKind, int) {
	t := strings.ToLower(sqlType)
	size := 0
	if m := sizedType.FindStringSubmatch(t); m != nil {
		size, _ = strconv.Atoi(m[1])
	}
	switch {
	case strings.Contains(t, "int"):
		return types.KindInteger, 0
	case strings.Contains(t, "real"), strings.Contains(t, "floa"), strings.Contains(t, "doub"),
		strings.Contains(t, "numeric"), strings.Contains(t, "decimal"):
		return types.KindFloat, 0
	}
	return types.KindString, size
}

// --- sqlite ---

type sqliteDialect struct{}

func (sqliteDialect) name() string   { return types.BackendSQLite }
func (sqliteDialect) driver() string { return "sqlite" }

func (sqliteDialect) dsn(cfg types.Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	return "file:" + filepath.Join(dataDir, dbFileName) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// SQLite allows a single writer; one connection also keeps pragmas in force.
func (sqliteDialect) maxOpenConns() int { return 1 }

func (sqliteDialect) rebind(query string) string { return query }

func (sqliteDialect) columnType(c types.Column) string {
	switch c.Kind {
	case types.KindInteger:
		return "INTEGER"
	case types.KindFloat:
		return "REAL"
	}
	if c.Size > 0 {
		return fmt.Sprintf("VARCHAR(%d)", c.Size)
	}
	return "TEXT"
}

func (d sqliteDialect) tableExists(ctx context.Context, q querier, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", table, err)
	}
	return n > 0, nil
}

func (d sqliteDialect) columns(ctx context.Context, q querier, table string) ([]types.Column, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	var cols []types.Column
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning table_info %s: %w", table, err)
		}
		kind, size := kindOf(typ)
		cols = append(cols, types.Column{
			Name:       name,
			Kind:       kind,
			Size:       size,
			PrimaryKey: pk,
			Nullable:   notNull == 0 && pk == 0,
		})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fks, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("foreign_key_list %s: %w", table, err)
	}
	defer fks.Close()
	for fks.Next() {
		var (
			id, seq                          int
			refTable, from                   string
			to, onUpdate, onDelete, matching sql.NullString
		)
		if err := fks.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &matching); err != nil {
			return nil, fmt.Errorf("scanning foreign_key_list %s: %w", table, err)
		}
		for i := range cols {
			if cols[i].Name == from {
				cols[i].References = refTable + "." + to.String
			}
		}
	}
	return cols, fks.Err()
}

// --- postgres ---

type postgresDialect struct{}

func (postgresDialect) name() string   { return types.BackendPostgres }
func (postgresDialect) driver() string { return "pgx" }

func (postgresDialect) dsn(cfg types.Config) string { return cfg.DSN }

func (postgresDialect) maxOpenConns() int { return 0 }

// rebind rewrites ? placeholders as $1, $2, ...
func (postgresDialect) rebind(query string) string {
	var (
		b      strings.Builder
		n      int
		quoted bool
	)
	for _, r := range query {
		switch {
		case r == '\'':
			quoted = !quoted
		case r == '?' && !quoted:
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (postgresDialect) columnType(c types.Column) string {
	switch c.Kind {
	case types.KindInteger:
		return "INTEGER"
	case types.KindFloat:
		return "DOUBLE PRECISION"
	}
	if c.Size > 0 {
		return fmt.Sprintf("VARCHAR(%d)", c.Size)
	}
	return "TEXT"
}

func (postgresDialect) tableExists(ctx context.Context, q querier, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_name = $1`, table,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking table %s: %w", table, err)
	}
	return n > 0, nil
}

const pgColumnsQuery = `
SELECT c.column_name, c.data_type, COALESCE(c.character_maximum_length, 0), c.is_nullable
FROM information_schema.columns c
WHERE c.table_schema = current_schema() AND c.table_name = $1
ORDER BY c.ordinal_position`

const pgKeysQuery = `
SELECT kcu.column_name, tc.constraint_type, kcu.ordinal_position,
       COALESCE(ccu.table_name, ''), COALESCE(ccu.column_name, '')
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
LEFT JOIN information_schema.constraint_column_usage ccu
  ON tc.constraint_type = 'FOREIGN KEY'
 AND tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
WHERE tc.table_schema = current_schema() AND tc.table_name = $1
  AND tc.constraint_type IN ('PRIMARY KEY', 'FOREIGN KEY')`

func (postgresDialect) columns(ctx context.Context, q querier, table string) ([]types.Column, error) {
	rows, err := q.QueryContext(ctx, pgColumnsQuery, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	var cols []types.Column
	for rows.Next() {
		var (
			name, dataType, nullable string
			size                     int
		)
		if err := rows.Scan(&name, &dataType, &size, &nullable); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning columns of %s: %w", table, err)
		}
		kind, _ := kindOf(dataType)
		if kind != types.KindString {
			size = 0
		}
		cols = append(cols, types.Column{Name: name, Kind: kind, Size: size, Nullable: nullable == "YES"})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	keys, err := q.QueryContext(ctx, pgKeysQuery, table)
	if err != nil {
		return nil, fmt.Errorf("keys of %s: %w", table, err)
	}
	defer keys.Close()
	for keys.Next() {
		var (
			column, kind, refTable, refColumn string
			ordinal                           int
		)
		if err := keys.Scan(&column, &kind, &ordinal, &refTable, &refColumn); err != nil {
			return nil, fmt.Errorf("scanning keys of %s: %w", table, err)
		}
		for i := range cols {
			if cols[i].Name != column {
				continue
			}
			if kind == "PRIMARY KEY" {
				cols[i].PrimaryKey = ordinal
				cols[i].Nullable = false
			} else {
				cols[i].References = refTable + "." + refColumn
			}
		}
	}
	return cols, keys.Err()
}
