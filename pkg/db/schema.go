package db

const (
	// CoreComponent is the component name the items table is versioned under.
	CoreComponent = "items"
	// CoreSchemaVersion is the highest items schema version this code supports.
	CoreSchemaVersion int64 = 1

	// unixNowSQL evaluates to the current time as fractional unix seconds.
	unixNowSQL = `((julianday('now') - 2440587.5) * 86400.0)`

	versionsSchema = `
CREATE TABLE IF NOT EXISTS keep_versions (
    component TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    created_at REAL NOT NULL DEFAULT ` + unixNowSQL + `
);
`

	// CoreSchemaV1 defines version 1 of the items table. Extensions attach to it by
	// foreign key only and never redefine it.
	CoreSchemaV1 = `
CREATE TABLE IF NOT EXISTS items (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL CHECK (title <> ''),
    body TEXT,
    is_archived INTEGER NOT NULL DEFAULT 0 CHECK (is_archived IN (0, 1)),
    archived_status_changed_at REAL,
    created_at REAL NOT NULL DEFAULT ` + unixNowSQL + `,
    changed_at REAL NOT NULL DEFAULT ` + unixNowSQL + `
);

CREATE INDEX IF NOT EXISTS idx_items_is_archived ON items(is_archived);
`
)
