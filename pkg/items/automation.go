package items

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/unowned-ai/keep/pkg/db"
)

const updateItemStatement = `
	UPDATE items
	SET title = ?, body = ?, is_archived = ?, archived_status_changed_at = ?, changed_at = ?
	WHERE id = ?
	`

// mutation is a change to an existing item. Nil fields are left alone.
type mutation struct {
	title     *string
	body      *string
	clearBody bool
	archived  *bool
}

// mutate is the only code path that writes an existing item row. Inside one
// transaction it applies m, stamps changed_at and, when the archive flag actually
// flips, archived_status_changed_at.
func (s *Store) mutate(ctx context.Context, op string, id int64, m mutation) (Item, error) {
	if m.title != nil && strings.TrimSpace(*m.title) == "" {
		return Item{}, db.E(db.ErrValidation, op, "title must not be empty")
	}

	var (
		item    Item
		flipped bool
	)
	err := db.InTx(ctx, s.db, s.maxRetries, op, func(tx *sqlx.Tx) error {
		prev, err := getRow(ctx, tx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return db.E(db.ErrNotFound, op, "item %d does not exist", id)
			}
			return err
		}

		next := prev
		if m.title != nil {
			next.Title = *m.title
		}
		if m.clearBody {
			next.Body = sql.NullString{}
		} else if m.body != nil {
			next.Body = nullString(m.body)
		}

		now := s.stampAfter(prev.ChangedAt)
		next.ChangedAt = now
		flipped = m.archived != nil && *m.archived != prev.IsArchived
		if flipped {
			next.IsArchived = *m.archived
			next.ArchivedStatusChangedAt = sql.NullFloat64{Float64: now, Valid: true}
		}

		_, err = tx.ExecContext(ctx, updateItemStatement,
			next.Title,
			next.Body,
			next.IsArchived,
			next.ArchivedStatusChangedAt,
			next.ChangedAt,
			id,
		)
		if err != nil {
			return err
		}
		item = next.Item()
		return nil
	})
	if err != nil {
		return Item{}, err
	}

	if flipped {
		s.logger.Debug("item archived state changed", "id", id, "is_archived", item.IsArchived)
	} else {
		s.logger.Debug("item updated", "id", id)
	}
	return item, nil
}

// clock returns the current time truncated to the stored precision.
func (s *Store) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// stampAfter returns now as unix seconds, forced strictly past prev so that
// changed_at never goes backwards and every flip gets a new archive stamp.
func (s *Store) stampAfter(prev float64) float64 {
	now := s.clock().UnixMicro()
	floor := int64(math.Round(prev * 1e6))
	if now <= floor {
		now = floor + 1
	}
	return float64(now) / 1e6
}
