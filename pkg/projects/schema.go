package projects

// SchemaVersion is the version of the projects component schema.
const SchemaVersion int64 = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE CHECK (name <> ''),
    body TEXT,
    created_at REAL NOT NULL,
    changed_at REAL NOT NULL
);

-- An item belongs to at most one project.
CREATE TABLE IF NOT EXISTS project_items (
    project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
    item_id INTEGER NOT NULL UNIQUE REFERENCES items(id) ON DELETE CASCADE,
    created_at REAL NOT NULL,
    PRIMARY KEY (project_id, item_id)
);
`

type extension struct{}

func (extension) Name() string         { return "projects" }
func (extension) SchemaVersion() int64 { return SchemaVersion }
func (extension) Schema() string       { return schemaV1 }
