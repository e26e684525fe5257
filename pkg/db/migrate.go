package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// GetComponentSchemaVersion retrieves the schema version recorded for a component.
// Returns 0 if the component is not recorded or the versions table does not exist yet.
func GetComponentSchemaVersion(ctx context.Context, q sqlx.QueryerContext, component string) (int64, error) {
	var version int64
	err := sqlx.GetContext(ctx, q, &version, `SELECT version FROM keep_versions WHERE component = ?;`, component)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		if strings.Contains(err.Error(), "no such table") && strings.Contains(err.Error(), "keep_versions") {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read version for component '%s': %w", component, err)
	}
	return version, nil
}

// ComponentVersion is one row of the versions table.
type ComponentVersion struct {
	Component string  `db:"component"`
	Version   int64   `db:"version"`
	CreatedAt float64 `db:"created_at"`
}

// ListComponentVersions returns every recorded component, ordered by name.
func ListComponentVersions(ctx context.Context, q sqlx.QueryerContext) ([]ComponentVersion, error) {
	var versions []ComponentVersion
	err := sqlx.SelectContext(ctx, q, &versions, `SELECT component, version, created_at FROM keep_versions ORDER BY component;`)
	if err != nil {
		return nil, fmt.Errorf("failed to list component versions: %w", err)
	}
	return versions, nil
}

// InstallComponent executes a component's schema and records its version.
func InstallComponent(ctx context.Context, ext sqlx.ExtContext, component, schema string, version int64) error {
	if _, err := ext.ExecContext(ctx, versionsSchema); err != nil {
		return fmt.Errorf("failed to create versions table: %w", err)
	}
	if _, err := ext.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema for component %s: %w", component, err)
	}

	upsertVersionSQL := `
INSERT INTO keep_versions (component, version) VALUES (?, ?)
ON CONFLICT(component) DO UPDATE SET version = excluded.version, created_at = ` + unixNowSQL + `;`
	if _, err := ext.ExecContext(ctx, upsertVersionSQL, component, version); err != nil {
		return fmt.Errorf("failed to record version %d for component %s: %w", version, component, err)
	}
	return nil
}

// UpgradeComponent brings a component to target. A component at version 0 is installed,
// one already at target is left alone, and any other version is an error because
// automatic migration between versions is not supported. installed reports whether
// the schema was executed.
func UpgradeComponent(ctx context.Context, ext sqlx.ExtContext, component, schema string, target int64) (installed bool, err error) {
	current, err := GetComponentSchemaVersion(ctx, ext, component)
	if err != nil {
		return false, err
	}

	switch {
	case current == 0:
		if err := InstallComponent(ctx, ext, component, schema, target); err != nil {
			return false, fmt.Errorf("failed to initialize component %s: %w", component, err)
		}
		return true, nil
	case current == target:
		return false, nil
	case current < target:
		return false, fmt.Errorf("component %s has schema version %d, which is older than the supported version %d. Automatic migration from this older version is not yet supported", component, current, target)
	default:
		return false, fmt.Errorf("component %s has schema version %d, which is newer than the supported version %d. Please upgrade the application", component, current, target)
	}
}
