package items

import (
	"database/sql"
	"math"
	"time"
)

// Item is a single tracked record. Timestamps are UTC with microsecond precision.
type Item struct {
	ID                      int64      `json:"id"`
	Title                   string     `json:"title"`
	Body                    *string    `json:"body,omitempty"`
	IsArchived              bool       `json:"is_archived"`
	CreatedAt               time.Time  `json:"created_at"`
	ChangedAt               time.Time  `json:"changed_at"`
	ArchivedStatusChangedAt *time.Time `json:"archived_status_changed_at,omitempty"`
}

// ItemUpdate describes a partial update. Nil fields are left alone. ClearBody sets
// the body to NULL and wins over Body.
//
// The timestamp fields exist so callers can round-trip an Item through an update;
// they are always ignored because timestamps are maintained by the store.
type ItemUpdate struct {
	Title      *string
	Body       *string
	ClearBody  bool
	IsArchived *bool

	CreatedAt               *time.Time
	ChangedAt               *time.Time
	ArchivedStatusChangedAt *time.Time
}

// ListFilter narrows List. A zero Limit means no limit.
type ListFilter struct {
	IncludeArchived bool
	Limit           int
	Offset          int
}

// Row is the storage shape of an item. Extensions that join against items can embed
// it in their own scan targets and call Item to convert.
type Row struct {
	ID                      int64           `db:"id"`
	Title                   string          `db:"title"`
	Body                    sql.NullString  `db:"body"`
	IsArchived              bool            `db:"is_archived"`
	ArchivedStatusChangedAt sql.NullFloat64 `db:"archived_status_changed_at"`
	CreatedAt               float64         `db:"created_at"`
	ChangedAt               float64         `db:"changed_at"`
}

// Item converts the row.
func (r Row) Item() Item {
	item := Item{
		ID:         r.ID,
		Title:      r.Title,
		IsArchived: r.IsArchived,
		CreatedAt:  FromUnix(r.CreatedAt),
		ChangedAt:  FromUnix(r.ChangedAt),
	}
	if r.Body.Valid {
		body := r.Body.String
		item.Body = &body
	}
	if r.ArchivedStatusChangedAt.Valid {
		t := FromUnix(r.ArchivedStatusChangedAt.Float64)
		item.ArchivedStatusChangedAt = &t
	}
	return item
}

// Columns is the column list matching Row, for use in extension queries.
const Columns = "id, title, body, is_archived, archived_status_changed_at, created_at, changed_at"

// ToUnix converts t to fractional unix seconds at microsecond precision.
func ToUnix(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

// FromUnix converts fractional unix seconds back to a UTC time.
func FromUnix(f float64) time.Time {
	return time.UnixMicro(int64(math.Round(f * 1e6))).UTC()
}
