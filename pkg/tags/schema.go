package tags

// SchemaVersion is the version of the tags component schema.
const SchemaVersion int64 = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS tags (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE CHECK (name <> ''),
    created_at REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS item_tags (
    item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    tag_id TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    created_at REAL NOT NULL,
    PRIMARY KEY (item_id, tag_id)
);

CREATE INDEX IF NOT EXISTS idx_item_tags_tag_id ON item_tags(tag_id);

-- Every item with its tag names as a JSON array, '[]' when untagged.
CREATE VIEW IF NOT EXISTS tagged AS
SELECT
    i.id,
    i.title,
    i.body,
    i.is_archived,
    i.archived_status_changed_at,
    i.created_at,
    i.changed_at,
    (
        SELECT json_group_array(n.name)
        FROM (
            SELECT t.name
            FROM item_tags it
            JOIN tags t ON t.id = it.tag_id
            WHERE it.item_id = i.id
            ORDER BY t.name
        ) n
    ) AS tags
FROM items i;
`

// extension registers the tags schema with an item store.
type extension struct{}

func (extension) Name() string         { return "tags" }
func (extension) SchemaVersion() int64 { return SchemaVersion }
func (extension) Schema() string       { return schemaV1 }
