package tags

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unowned-ai/keep/pkg/db"
	"github.com/unowned-ai/keep/pkg/items"
)

const (
	createTagStatement = `
	INSERT INTO tags (id, name, created_at)
	VALUES (?, ?, ?)
	`

	getTagStatement = `
	SELECT id, name, created_at
	FROM tags
	WHERE name = ?
	`

	listTagsStatement = `
	SELECT id, name, created_at
	FROM tags
	ORDER BY name ASC
	`

	deleteTagStatement = `
	DELETE FROM tags
	WHERE name = ?
	`

	tagItemStatement = `
	INSERT INTO item_tags (item_id, tag_id, created_at)
	VALUES (?, ?, ?)
	`

	untagItemStatement = `
	DELETE FROM item_tags
	WHERE item_id = ? AND tag_id = (SELECT id FROM tags WHERE name = ?)
	`

	tagsForItemStatement = `
	SELECT t.name
	FROM item_tags it
	JOIN tags t ON t.id = it.tag_id
	WHERE it.item_id = ?
	ORDER BY t.name ASC
	`

	taggedStatement = `
	SELECT ` + items.Columns + `, tags
	FROM tagged
	WHERE (? OR is_archived = 0)
	  AND (? = '' OR id IN (
	      SELECT it.item_id
	      FROM item_tags it
	      JOIN tags t ON t.id = it.tag_id
	      WHERE t.name = ?
	  ))
	ORDER BY id
	`
)

// Tag is a label that can be attached to any number of items.
type Tag struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type tagRow struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	CreatedAt float64   `db:"created_at"`
}

func (r tagRow) tag() Tag {
	return Tag{ID: r.ID, Name: r.Name, CreatedAt: items.FromUnix(r.CreatedAt)}
}

// TaggedItem is an item together with the names of all its tags.
type TaggedItem struct {
	Item items.Item `json:"item"`
	Tags []string   `json:"tags"`
}

// TaggedFilter narrows Tagged. An empty Tag matches every item.
type TaggedFilter struct {
	IncludeArchived bool
	Tag             string
}

type taggedRow struct {
	items.Row
	Tags sql.NullString `db:"tags"`
}

// Tags is the tag extension.
type Tags struct {
	h *items.Handle
}

// New registers the tags extension with store.
func New(ctx context.Context, store *items.Store) (*Tags, error) {
	h, err := store.Register(ctx, extension{})
	if err != nil {
		return nil, err
	}
	return &Tags{h: h}, nil
}

// CreateTag creates a tag with no items.
func (t *Tags) CreateTag(ctx context.Context, name string) (Tag, error) {
	const op = "create tag"
	name, err := validName(op, name)
	if err != nil {
		return Tag{}, err
	}

	var tag Tag
	err = t.h.Update(ctx, func(tx *items.Tx) error {
		var err error
		tag, err = t.insertTag(ctx, tx, name)
		return err
	})
	if err != nil {
		if errors.Is(err, db.ErrUniqueness) {
			return Tag{}, &db.Error{Kind: db.ErrUniqueness, Op: op, Message: fmt.Sprintf("tag %q already exists", name), Err: err}
		}
		return Tag{}, err
	}
	t.h.Logger().Debug("tag created", "name", tag.Name, "id", tag.ID)
	return tag, nil
}

// GetTag returns the tag called name.
func (t *Tags) GetTag(ctx context.Context, name string) (Tag, error) {
	const op = "get tag"
	var row tagRow
	err := t.h.View(ctx, func(q items.Queryer) error {
		return q.GetContext(ctx, &row, getTagStatement, name)
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Tag{}, db.E(db.ErrNotFound, op, "tag %q does not exist", name)
		}
		return Tag{}, err
	}
	return row.tag(), nil
}

// ListTags returns all tags ordered by name.
func (t *Tags) ListTags(ctx context.Context) ([]Tag, error) {
	var rows []tagRow
	err := t.h.View(ctx, func(q items.Queryer) error {
		return q.SelectContext(ctx, &rows, listTagsStatement)
	})
	if err != nil {
		return nil, err
	}

	tags := make([]Tag, 0, len(rows))
	for _, r := range rows {
		tags = append(tags, r.tag())
	}
	return tags, nil
}

// DeleteTag removes the tag and detaches it from every item. The items stay.
func (t *Tags) DeleteTag(ctx context.Context, name string) error {
	const op = "delete tag"
	err := t.h.Update(ctx, func(tx *items.Tx) error {
		res, err := tx.ExecContext(ctx, deleteTagStatement, name)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return db.E(db.ErrNotFound, op, "tag %q does not exist", name)
		}
		return nil
	})
	if err != nil {
		return err
	}
	t.h.Logger().Debug("tag deleted", "name", name)
	return nil
}

// TagItem attaches the tag called name to an item, creating the tag if needed.
// Tagging a missing item fails with ErrReferentialIntegrity and creates nothing;
// tagging an item twice with the same tag fails with ErrUniqueness.
func (t *Tags) TagItem(ctx context.Context, itemID int64, name string) (Tag, error) {
	const op = "tag item"
	name, err := validName(op, name)
	if err != nil {
		return Tag{}, err
	}

	var tag Tag
	err = t.h.Update(ctx, func(tx *items.Tx) error {
		var row tagRow
		err := tx.GetContext(ctx, &row, getTagStatement, name)
		switch {
		case err == nil:
			tag = row.tag()
		case errors.Is(err, sql.ErrNoRows):
			if tag, err = t.insertTag(ctx, tx, name); err != nil {
				return err
			}
		default:
			return err
		}

		_, err = tx.ExecContext(ctx, tagItemStatement, itemID, tag.ID, items.ToUnix(t.h.Now()))
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, db.ErrUniqueness):
			return Tag{}, &db.Error{Kind: db.ErrUniqueness, Op: op, Message: fmt.Sprintf("item %d is already tagged %q", itemID, name), Err: err}
		case errors.Is(err, db.ErrReferentialIntegrity):
			return Tag{}, &db.Error{Kind: db.ErrReferentialIntegrity, Op: op, Message: fmt.Sprintf("item %d does not exist", itemID), Err: err}
		}
		return Tag{}, err
	}
	t.h.Logger().Debug("item tagged", "item_id", itemID, "tag", name)
	return tag, nil
}

// UntagItem detaches a tag from an item. Neither the tag nor the item is removed.
func (t *Tags) UntagItem(ctx context.Context, itemID int64, name string) error {
	const op = "untag item"
	err := t.h.Update(ctx, func(tx *items.Tx) error {
		res, err := tx.ExecContext(ctx, untagItemStatement, itemID, name)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return db.E(db.ErrNotFound, op, "item %d is not tagged %q", itemID, name)
		}
		return nil
	})
	if err != nil {
		return err
	}
	t.h.Logger().Debug("item untagged", "item_id", itemID, "tag", name)
	return nil
}

// TagsForItem returns the tag names of an item, ordered by name.
func (t *Tags) TagsForItem(ctx context.Context, itemID int64) ([]string, error) {
	if _, err := t.h.Item(ctx, itemID); err != nil {
		return nil, err
	}

	names := []string{}
	err := t.h.View(ctx, func(q items.Queryer) error {
		return q.SelectContext(ctx, &names, tagsForItemStatement, itemID)
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Tagged returns items paired with all their tags. Untagged items are included
// with an empty tag list unless filter.Tag restricts the result to one tag.
func (t *Tags) Tagged(ctx context.Context, filter TaggedFilter) ([]TaggedItem, error) {
	var rows []taggedRow
	err := t.h.View(ctx, func(q items.Queryer) error {
		return q.SelectContext(ctx, &rows, taggedStatement, filter.IncludeArchived, filter.Tag, filter.Tag)
	})
	if err != nil {
		return nil, err
	}

	out := make([]TaggedItem, 0, len(rows))
	for _, r := range rows {
		names := []string{}
		if r.Tags.Valid && r.Tags.String != "" {
			if err := json.Unmarshal([]byte(r.Tags.String), &names); err != nil {
				return nil, fmt.Errorf("failed to decode tags of item %d: %w", r.ID, err)
			}
		}
		out = append(out, TaggedItem{Item: r.Row.Item(), Tags: names})
	}
	return out, nil
}

func (t *Tags) insertTag(ctx context.Context, tx *items.Tx, name string) (Tag, error) {
	tag := Tag{ID: uuid.New(), Name: name, CreatedAt: t.h.Now()}
	_, err := tx.ExecContext(ctx, createTagStatement, tag.ID, tag.Name, items.ToUnix(tag.CreatedAt))
	return tag, err
}

func validName(op, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", db.E(db.ErrValidation, op, "tag name must not be empty")
	}
	return name, nil
}
