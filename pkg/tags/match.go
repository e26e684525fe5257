package tags

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/unowned-ai/keep/pkg/items"
)

// matchTagsStatement counts, per item, how many of the query tags it carries.
// Ties are broken by the most recently changed item.
const matchTagsStatement = `
	SELECT ` + items.Columns + `, m.match_count
	FROM items
	JOIN (
		SELECT it.item_id, COUNT(*) AS match_count
		FROM item_tags it
		JOIN tags t ON t.id = it.tag_id
		WHERE t.name IN (?)
		GROUP BY it.item_id
	) m ON m.item_id = items.id
	WHERE (? OR is_archived = 0)
	ORDER BY m.match_count DESC, changed_at DESC, id ASC
	`

// MatchedItem holds an item and the number of query tags it carries.
type MatchedItem struct {
	Item       items.Item `json:"item"`
	MatchCount int        `json:"match_count"`
}

type matchRow struct {
	items.Row
	MatchCount int `db:"match_count"`
}

// MatchTags ranks items by the number of the given tags they carry, best match first.
// Items without any of the tags are left out. Duplicate and blank names are ignored.
func (t *Tags) MatchTags(ctx context.Context, names []string, includeArchived bool) ([]MatchedItem, error) {
	seen := make(map[string]struct{}, len(names))
	query := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if _, dup := seen[n]; n == "" || dup {
			continue
		}
		seen[n] = struct{}{}
		query = append(query, n)
	}
	if len(query) == 0 {
		return []MatchedItem{}, nil
	}

	statement, args, err := sqlx.In(matchTagsStatement, query, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("failed to expand tag match query: %w", err)
	}

	var rows []matchRow
	err = t.h.View(ctx, func(q items.Queryer) error {
		return q.SelectContext(ctx, &rows, statement, args...)
	})
	if err != nil {
		return nil, err
	}

	out := make([]MatchedItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, MatchedItem{Item: r.Row.Item(), MatchCount: r.MatchCount})
	}
	return out, nil
}
