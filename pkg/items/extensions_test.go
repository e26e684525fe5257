package items

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unowned-ai/keep/pkg/db"
)

type testExtension struct {
	name    string
	version int64
	schema  string
}

func (e testExtension) Name() string         { return e.name }
func (e testExtension) SchemaVersion() int64 { return e.version }
func (e testExtension) Schema() string       { return e.schema }

var notesExtension = testExtension{
	name:    "notes",
	version: 1,
	schema: `
CREATE TABLE IF NOT EXISTS notes (
    id INTEGER PRIMARY KEY,
    item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    text TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_notes_item_text ON notes(item_id, text);
`,
}

func tableExists(t *testing.T, s *Store, name string) bool {
	t.Helper()
	tables, err := db.Tables(context.Background(), s.db)
	require.NoError(t, err)
	for _, table := range tables {
		if table == name {
			return true
		}
	}
	return false
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	h, err := s.Register(ctx, notesExtension)
	require.NoError(t, err)
	assert.Equal(t, "notes", h.Name())
	assert.Equal(t, []string{"notes"}, s.Extensions())
	assert.Equal(t, []Reference{{Table: "notes", Column: "item_id"}}, s.references())

	version, err := db.GetComponentSchemaVersion(ctx, s.db, "notes")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	_, err = s.Register(ctx, notesExtension)
	assert.ErrorIs(t, err, db.ErrExtensionContract)
}

func TestRegister_RejectsNonCascadingReference(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	cases := map[string]string{
		"no action": `CREATE TABLE bad (item_id INTEGER REFERENCES items(id));`,
		"set null":  `CREATE TABLE bad (item_id INTEGER REFERENCES items(id) ON DELETE SET NULL);`,
		"restrict":  `CREATE TABLE bad (item_id INTEGER REFERENCES items(id) ON DELETE RESTRICT);`,
		"wrong col": `CREATE TABLE bad (title TEXT REFERENCES items(title) ON DELETE CASCADE);`,
	}
	for name, schema := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Register(ctx, testExtension{name: "bad", version: 1, schema: schema})
			assert.ErrorIs(t, err, db.ErrExtensionContract)

			// The whole installation rolled back.
			assert.False(t, tableExists(t, s, "bad"))
			version, err := db.GetComponentSchemaVersion(ctx, s.db, "bad")
			require.NoError(t, err)
			assert.Equal(t, int64(0), version)
			assert.Empty(t, s.Extensions())
		})
	}
}

func TestRegister_RejectsCoreChanges(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	fragments := []string{
		`ALTER TABLE items ADD COLUMN priority INTEGER;`,
		`DROP TABLE items;`,
		`DROP TABLE IF EXISTS "items";`,
		`CREATE TABLE IF NOT EXISTS items (id INTEGER PRIMARY KEY);`,
		`CREATE TRIGGER touch AFTER UPDATE ON items BEGIN SELECT 1; END;`,
		`CREATE TABLE log (id INTEGER PRIMARY KEY);
		 CREATE TRIGGER wipe AFTER INSERT ON log BEGIN UPDATE items SET title = 'x'; END;`,
		`CREATE TRIGGER t AFTER INSERT ON "main"."items" BEGIN SELECT 1; END;`,
		`CREATE TRIGGER t AFTER INSERT ON main . items BEGIN SELECT 1; END;`,
		`CREATE TRIGGER t AFTER INSERT ON/**/items BEGIN SELECT 1; END;`,
		`ALTER TABLE "main".items RENAME TO gone;`,
		`CREATE TABLE log (id INTEGER PRIMARY KEY);
		 CREATE TRIGGER wipe AFTER INSERT ON log BEGIN DELETE FROM "main"."items"; END;`,
	}
	for _, fragment := range fragments {
		_, err := s.Register(ctx, testExtension{name: "sneaky", version: 1, schema: fragment})
		assert.ErrorIs(t, err, db.ErrExtensionContract, fragment)
	}
	assert.False(t, tableExists(t, s, "log"))

	for _, name := range []string{"", "items", "keep_versions"} {
		_, err := s.Register(ctx, testExtension{name: name, version: 1, schema: notesExtension.schema})
		assert.ErrorIs(t, err, db.ErrExtensionContract)
	}
	_, err := s.Register(ctx, testExtension{name: "notes", version: 0, schema: notesExtension.schema})
	assert.ErrorIs(t, err, db.ErrExtensionContract)
}

func TestRegister_AllowsSimilarTableNames(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Register(ctx, testExtension{name: "archive", version: 1, schema: `
CREATE TABLE IF NOT EXISTS items_archive (
    item_id INTEGER PRIMARY KEY REFERENCES items(id) ON DELETE CASCADE
);`})
	require.NoError(t, err)
	assert.True(t, tableExists(t, s, "items_archive"))
}

func TestHandle_GuardsItems(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	h, err := s.Register(ctx, notesExtension)
	require.NoError(t, err)

	item, err := s.Create(ctx, "Protected", nil)
	require.NoError(t, err)

	writes := []string{
		`UPDATE items SET title = 'hijacked' WHERE id = 1`,
		`update "items" set is_archived = 1`,
		`DELETE FROM items WHERE id = 1`,
		`INSERT INTO items (title) VALUES ('smuggled')`,
		`INSERT OR REPLACE INTO items (id, title) VALUES (1, 'swap')`,
		`REPLACE INTO main.items (id, title) VALUES (1, 'swap')`,
		`UPDATE "main"."items" SET title = 'x'`,
		`UPDATE/**/items SET title = 'x'`,
		`UPDATE main . items SET title = 'x'`,
		"UPDATE `main`.[items] SET title = 'x'",
		"UPDATE -- note\n items SET title = 'x'",
		`UPDATE OR IGNORE 'items' SET title = 'x'`,
		`DELETE FROM keep.items`,
	}
	for _, stmt := range writes {
		err := h.Update(ctx, func(tx *Tx) error {
			_, err := tx.ExecContext(ctx, stmt)
			return err
		})
		assert.ErrorIs(t, err, db.ErrExtensionContract, stmt)
	}

	err = h.View(ctx, func(q Queryer) error {
		var n int
		return q.GetContext(ctx, &n, `DELETE FROM items RETURNING id`)
	})
	assert.ErrorIs(t, err, db.ErrExtensionContract)

	got, err := s.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item, got)
}

func TestHandle_ViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	h, err := s.Register(ctx, notesExtension)
	require.NoError(t, err)

	item, err := s.Create(ctx, "Read only", nil)
	require.NoError(t, err)

	writes := []string{
		`INSERT INTO notes (item_id, text) VALUES (?, 'sneaked') RETURNING id`,
		`REPLACE INTO notes (item_id, text) VALUES (?, 'sneaked') RETURNING id`,
		`WITH x AS (SELECT ? AS id) INSERT INTO notes (item_id, text) SELECT id, 'sneaked' FROM x RETURNING id`,
		`DELETE FROM notes WHERE item_id = ? RETURNING id`,
		`UPDATE notes SET text = 'x' WHERE item_id = ? RETURNING id`,
	}
	for _, stmt := range writes {
		err := h.View(ctx, func(q Queryer) error {
			var id int64
			return q.GetContext(ctx, &id, stmt, item.ID)
		})
		assert.ErrorIs(t, err, db.ErrExtensionContract, stmt)
	}

	var n int
	require.NoError(t, h.View(ctx, func(q Queryer) error {
		return q.GetContext(ctx, &n, `SELECT COUNT(*) FROM notes WHERE item_id = ?`, item.ID)
	}))
	assert.Equal(t, 0, n)

	// Writes to its own tables still go through Update.
	err = h.Update(ctx, func(tx *Tx) error {
		var id int64
		return tx.GetContext(ctx, &id, `INSERT INTO notes (item_id, text) VALUES (?, 'ok') RETURNING id`, item.ID)
	})
	require.NoError(t, err)
}

func TestHandle_Item(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	h, err := s.Register(ctx, notesExtension)
	require.NoError(t, err)

	item, err := s.Create(ctx, "Visible", nil)
	require.NoError(t, err)

	got, err := h.Item(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item, got)
	assert.NotNil(t, h.Logger())

	_, err = h.Item(ctx, 404)
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestNormalizeSQL(t *testing.T) {
	cases := map[string]string{
		`UPDATE "main"."items" SET x = 1`:       `update main.items set x = 1`,
		"UPDATE/**/items\n\tSET x = 1 -- tail": `update items set x = 1`,
		`DELETE FROM main . [items]`:            `delete from main.items`,
		"SELECT 1 /* unterminated":              `select 1`,
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeSQL(in), in)
	}
}

func TestHandle_ReadsAndWritesOwnTables(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	h, err := s.Register(ctx, notesExtension)
	require.NoError(t, err)

	item, err := s.Create(ctx, "Annotated", nil)
	require.NoError(t, err)

	err = h.Update(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO notes (item_id, text) VALUES (?, ?)`, item.ID, "remember")
		return err
	})
	require.NoError(t, err)

	err = h.Update(ctx, func(tx *Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO notes (item_id, text) VALUES (?, ?)`, item.ID, "remember")
		return err
	})
	assert.ErrorIs(t, err, db.ErrUniqueness)

	err = h.Update(ctx, func(tx *Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO notes (item_id, text) VALUES (?, ?)`, item.ID, "kept?"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO notes (item_id, text) VALUES (?, ?)`, 404, "orphan")
		return err
	})
	assert.ErrorIs(t, err, db.ErrReferentialIntegrity)

	var texts []string
	err = h.View(ctx, func(q Queryer) error {
		return q.SelectContext(ctx, &texts, `SELECT text FROM notes ORDER BY id`)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"remember"}, texts)
}

func TestHardDelete_CascadesExtensionRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	h, err := s.Register(ctx, notesExtension)
	require.NoError(t, err)

	keep, err := s.Create(ctx, "Keep", nil)
	require.NoError(t, err)
	drop, err := s.Create(ctx, "Drop", nil)
	require.NoError(t, err)

	err = h.Update(ctx, func(tx *Tx) error {
		for i, id := range []int64{keep.ID, drop.ID, drop.ID} {
			if _, err := tx.ExecContext(ctx, `INSERT INTO notes (item_id, text) VALUES (?, ?)`, id, string(rune('a'+i))); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, s.HardDelete(ctx, drop.ID))

	var remaining []int64
	require.NoError(t, h.View(ctx, func(q Queryer) error {
		return q.SelectContext(ctx, &remaining, `SELECT item_id FROM notes`)
	}))
	assert.Equal(t, []int64{keep.ID}, remaining)

	violations, err := s.CheckIntegrity(ctx)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestRegister_ExistingInstallation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := s.Register(ctx, notesExtension)
	require.NoError(t, err)

	// A second store over the same database sees the extension as already installed.
	again, err := New(ctx, s.db)
	require.NoError(t, err)
	_, err = again.Register(ctx, notesExtension)
	require.NoError(t, err)
	assert.Equal(t, []Reference{{Table: "notes", Column: "item_id"}}, again.references())

	newer := notesExtension
	newer.version = 2
	third, err := New(ctx, s.db)
	require.NoError(t, err)
	_, err = third.Register(ctx, newer)
	assert.Error(t, err)
}
