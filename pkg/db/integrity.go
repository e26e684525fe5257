package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ForeignKeyViolation is one row reported by PRAGMA foreign_key_check.
type ForeignKeyViolation struct {
	Table  string        `db:"table"`
	RowID  sql.NullInt64 `db:"rowid"`
	Parent string        `db:"parent"`
	FKID   int64         `db:"fkid"`
}

// ForeignKey describes one column of a foreign key declared on a table.
type ForeignKey struct {
	Table    string         `db:"table"`
	From     string         `db:"from"`
	To       sql.NullString `db:"to"`
	OnDelete string         `db:"on_delete"`
}

// ForeignKeyCheck returns every row whose foreign key points at a missing parent.
func ForeignKeyCheck(ctx context.Context, q sqlx.QueryerContext) ([]ForeignKeyViolation, error) {
	var violations []ForeignKeyViolation
	if err := sqlx.SelectContext(ctx, q, &violations, `PRAGMA foreign_key_check;`); err != nil {
		return nil, fmt.Errorf("failed to run foreign key check: %w", err)
	}
	return violations, nil
}

// ForeignKeys lists the foreign keys declared on table.
func ForeignKeys(ctx context.Context, q sqlx.QueryerContext, table string) ([]ForeignKey, error) {
	var fks []ForeignKey
	query := `SELECT "table", "from", "to", on_delete FROM pragma_foreign_key_list(?);`
	if err := sqlx.SelectContext(ctx, q, &fks, query, table); err != nil {
		return nil, fmt.Errorf("failed to list foreign keys of %s: %w", table, err)
	}
	return fks, nil
}

// Tables lists user tables in the main schema.
func Tables(ctx context.Context, q sqlx.QueryerContext) ([]string, error) {
	var names []string
	query := `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name;`
	if err := sqlx.SelectContext(ctx, q, &names, query); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return names, nil
}
