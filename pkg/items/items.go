package items

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/unowned-ai/keep/pkg/db"
)

const (
	createItemStatement = `
	INSERT INTO items (title, body, is_archived, archived_status_changed_at, created_at, changed_at)
	VALUES (?, ?, 0, NULL, ?, ?)
	`

	getItemStatement = `
	SELECT ` + Columns + `
	FROM items
	WHERE id = ?
	`

	listItemsStatement = `
	SELECT ` + Columns + `
	FROM items
	WHERE (? OR is_archived = 0)
	ORDER BY id
	LIMIT ? OFFSET ?
	`

	hardDeleteItemStatement = `
	DELETE FROM items
	WHERE id = ?
	`

	purgeArchivedStatement = `
	DELETE FROM items
	WHERE is_archived = 1 AND archived_status_changed_at < ?
	`
)

// Store owns the items table. It is safe for concurrent use.
type Store struct {
	db         *sqlx.DB
	logger     *slog.Logger
	now        func() time.Time
	maxRetries int

	mu         sync.RWMutex
	extensions []*registration
}

// New installs (or verifies) the items schema on conn and returns a store over it.
func New(ctx context.Context, conn *sqlx.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:         conn,
		logger:     discardLogger(),
		now:        time.Now,
		maxRetries: db.DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}

	var installed bool
	err := db.InTx(ctx, conn, s.maxRetries, "install items schema", func(tx *sqlx.Tx) error {
		var err error
		installed, err = db.UpgradeComponent(ctx, tx, db.CoreComponent, db.CoreSchemaV1, db.CoreSchemaVersion)
		return err
	})
	if err != nil {
		return nil, err
	}
	if installed {
		s.logger.Info("component installed", "component", db.CoreComponent, "version", db.CoreSchemaVersion)
	}
	return s, nil
}

// Logger returns the store's logger.
func (s *Store) Logger() *slog.Logger {
	return s.logger
}

// Create inserts a new, unarchived item.
func (s *Store) Create(ctx context.Context, title string, body *string) (Item, error) {
	const op = "create item"
	if strings.TrimSpace(title) == "" {
		return Item{}, db.E(db.ErrValidation, op, "title must not be empty")
	}

	var item Item
	err := db.InTx(ctx, s.db, s.maxRetries, op, func(tx *sqlx.Tx) error {
		now := ToUnix(s.clock())
		res, err := tx.ExecContext(ctx, createItemStatement, title, nullString(body), now, now)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		row, err := getRow(ctx, tx, id)
		if err != nil {
			return err
		}
		item = row.Item()
		return nil
	})
	if err != nil {
		return Item{}, err
	}

	s.logger.Debug("item created", "id", item.ID)
	return item, nil
}

// Get returns the item with id.
func (s *Store) Get(ctx context.Context, id int64) (Item, error) {
	row, err := getRow(ctx, s.db, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, db.E(db.ErrNotFound, "get item", "item %d does not exist", id)
		}
		return Item{}, db.Classify("get item", err)
	}
	return row.Item(), nil
}

// List returns items ordered by id. Archived items are skipped unless requested.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Item, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var rows []Row
	err := s.db.SelectContext(ctx, &rows, listItemsStatement, filter.IncludeArchived, limit, offset)
	if err != nil {
		return nil, db.Classify("list items", err)
	}

	out := make([]Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Item())
	}
	return out, nil
}

// Update applies a partial update. Timestamp fields in u are ignored.
func (s *Store) Update(ctx context.Context, id int64, u ItemUpdate) (Item, error) {
	return s.mutate(ctx, "update item", id, mutation{
		title:     u.Title,
		body:      u.Body,
		clearBody: u.ClearBody,
		archived:  u.IsArchived,
	})
}

// SetArchived changes only the archive flag.
func (s *Store) SetArchived(ctx context.Context, id int64, archived bool) (Item, error) {
	return s.mutate(ctx, "set archived", id, mutation{archived: &archived})
}

// HardDelete removes the item. Rows of registered extensions that reference it are
// removed by their cascading foreign keys in the same transaction.
func (s *Store) HardDelete(ctx context.Context, id int64) error {
	const op = "hard delete item"
	refs := s.references()
	cascades := make(map[string]int64, len(refs))

	err := db.InTx(ctx, s.db, s.maxRetries, op, func(tx *sqlx.Tx) error {
		for _, ref := range refs {
			var n int64
			query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ?`, quoteIdent(ref.Table), quoteIdent(ref.Column))
			if err := tx.GetContext(ctx, &n, query, id); err != nil {
				return fmt.Errorf("failed to count %s rows: %w", ref.Table, err)
			}
			if n > 0 {
				cascades[ref.Table] += n
			}
		}

		res, err := tx.ExecContext(ctx, hardDeleteItemStatement, id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return db.E(db.ErrNotFound, op, "item %d does not exist", id)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("item hard deleted", "id", id, "cascaded", cascades)
	return nil
}

// PurgeArchived hard-deletes archived items whose archive state last changed before
// the cutoff and returns how many were removed.
func (s *Store) PurgeArchived(ctx context.Context, before time.Time) (int64, error) {
	var purged int64
	err := db.InTx(ctx, s.db, s.maxRetries, "purge archived items", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, purgeArchivedStatement, ToUnix(before))
		if err != nil {
			return err
		}
		purged, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("archived items purged", "count", purged, "before", before)
	return purged, nil
}

// CheckIntegrity reports rows whose foreign keys reference missing parents. A healthy
// database returns nothing; violations only appear if something wrote to the file
// with enforcement disabled.
func (s *Store) CheckIntegrity(ctx context.Context) ([]db.ForeignKeyViolation, error) {
	violations, err := db.ForeignKeyCheck(ctx, s.db)
	if err != nil {
		return nil, db.Classify("check integrity", err)
	}
	return violations, nil
}

func getRow(ctx context.Context, q sqlx.QueryerContext, id int64) (Row, error) {
	var row Row
	err := sqlx.GetContext(ctx, q, &row, getItemStatement, id)
	return row, err
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
