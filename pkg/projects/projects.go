package projects

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unowned-ai/keep/pkg/db"
	"github.com/unowned-ai/keep/pkg/items"
)

const (
	projectColumns = "id, name, body, created_at, changed_at"

	createProjectStatement = `
	INSERT INTO projects (id, name, body, created_at, changed_at)
	VALUES (?, ?, ?, ?, ?)
	`

	getProjectStatement = `
	SELECT ` + projectColumns + `
	FROM projects
	WHERE name = ?
	`

	listProjectsStatement = `
	SELECT ` + projectColumns + `
	FROM projects
	ORDER BY name ASC
	`

	updateProjectStatement = `
	UPDATE projects
	SET name = ?, body = ?, changed_at = ?
	WHERE id = ?
	`

	deleteProjectStatement = `
	DELETE FROM projects
	WHERE name = ?
	`

	addItemStatement = `
	INSERT INTO project_items (project_id, item_id, created_at)
	VALUES (?, ?, ?)
	`

	removeItemStatement = `
	DELETE FROM project_items
	WHERE project_id = ? AND item_id = ?
	`

	projectForItemStatement = `
	SELECT p.id, p.name, p.body, p.created_at, p.changed_at
	FROM projects p
	JOIN project_items pi ON pi.project_id = p.id
	WHERE pi.item_id = ?
	`

	projectItemsStatement = `
	SELECT i.id, i.title, i.body, i.is_archived, i.archived_status_changed_at, i.created_at, i.changed_at
	FROM items i
	JOIN project_items pi ON pi.item_id = i.id
	WHERE pi.project_id = ? AND (? OR i.is_archived = 0)
	ORDER BY i.id
	LIMIT ? OFFSET ?
	`
)

// Project groups items. An item is in at most one project.
type Project struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Body      *string   `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ChangedAt time.Time `json:"changed_at"`
}

// ProjectUpdate is a partial update. ClearBody wins over Body.
type ProjectUpdate struct {
	Name      *string
	Body      *string
	ClearBody bool
}

type projectRow struct {
	ID        uuid.UUID      `db:"id"`
	Name      string         `db:"name"`
	Body      sql.NullString `db:"body"`
	CreatedAt float64        `db:"created_at"`
	ChangedAt float64        `db:"changed_at"`
}

func (r projectRow) project() Project {
	p := Project{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: items.FromUnix(r.CreatedAt),
		ChangedAt: items.FromUnix(r.ChangedAt),
	}
	if r.Body.Valid {
		body := r.Body.String
		p.Body = &body
	}
	return p
}

// Projects is the project extension.
type Projects struct {
	h *items.Handle
}

// New registers the projects extension with store.
func New(ctx context.Context, store *items.Store) (*Projects, error) {
	h, err := store.Register(ctx, extension{})
	if err != nil {
		return nil, err
	}
	return &Projects{h: h}, nil
}

// CreateProject creates an empty project.
func (p *Projects) CreateProject(ctx context.Context, name string, body *string) (Project, error) {
	const op = "create project"
	name, err := validName(op, name)
	if err != nil {
		return Project{}, err
	}

	now := p.h.Now()
	project := Project{ID: uuid.New(), Name: name, Body: body, CreatedAt: now, ChangedAt: now}
	err = p.h.Update(ctx, func(tx *items.Tx) error {
		_, err := tx.ExecContext(ctx, createProjectStatement,
			project.ID,
			project.Name,
			nullString(body),
			items.ToUnix(now),
			items.ToUnix(now),
		)
		return err
	})
	if err != nil {
		if errors.Is(err, db.ErrUniqueness) {
			return Project{}, &db.Error{Kind: db.ErrUniqueness, Op: op, Message: fmt.Sprintf("project %q already exists", name), Err: err}
		}
		return Project{}, err
	}
	p.h.Logger().Debug("project created", "name", name, "id", project.ID)
	return project, nil
}

// GetProject returns the project called name.
func (p *Projects) GetProject(ctx context.Context, name string) (Project, error) {
	var row projectRow
	err := p.h.View(ctx, func(q items.Queryer) error {
		return q.GetContext(ctx, &row, getProjectStatement, name)
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return Project{}, db.E(db.ErrNotFound, "get project", "project %q does not exist", name)
		}
		return Project{}, err
	}
	return row.project(), nil
}

// ListProjects returns all projects ordered by name.
func (p *Projects) ListProjects(ctx context.Context) ([]Project, error) {
	var rows []projectRow
	err := p.h.View(ctx, func(q items.Queryer) error {
		return q.SelectContext(ctx, &rows, listProjectsStatement)
	})
	if err != nil {
		return nil, err
	}

	out := make([]Project, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.project())
	}
	return out, nil
}

// UpdateProject renames a project or changes its body.
func (p *Projects) UpdateProject(ctx context.Context, name string, u ProjectUpdate) (Project, error) {
	const op = "update project"
	if u.Name != nil {
		newName, err := validName(op, *u.Name)
		if err != nil {
			return Project{}, err
		}
		u.Name = &newName
	}

	var project Project
	err := p.h.Update(ctx, func(tx *items.Tx) error {
		row, err := lookup(ctx, tx, op, name)
		if err != nil {
			return err
		}
		if u.Name != nil {
			row.Name = *u.Name
		}
		if u.ClearBody {
			row.Body = sql.NullString{}
		} else if u.Body != nil {
			row.Body = nullString(u.Body)
		}
		row.ChangedAt = stampAfter(p.h.Now(), row.ChangedAt)

		if _, err := tx.ExecContext(ctx, updateProjectStatement, row.Name, row.Body, row.ChangedAt, row.ID); err != nil {
			return err
		}
		project = row.project()
		return nil
	})
	if err != nil {
		if errors.Is(err, db.ErrUniqueness) && u.Name != nil {
			return Project{}, &db.Error{Kind: db.ErrUniqueness, Op: op, Message: fmt.Sprintf("project %q already exists", *u.Name), Err: err}
		}
		return Project{}, err
	}
	p.h.Logger().Debug("project updated", "name", project.Name, "id", project.ID)
	return project, nil
}

// DeleteProject removes the project and its memberships. The items stay.
func (p *Projects) DeleteProject(ctx context.Context, name string) error {
	const op = "delete project"
	err := p.h.Update(ctx, func(tx *items.Tx) error {
		res, err := tx.ExecContext(ctx, deleteProjectStatement, name)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return db.E(db.ErrNotFound, op, "project %q does not exist", name)
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.h.Logger().Debug("project deleted", "name", name)
	return nil
}

// AddItem puts an item into a project. A missing item or project fails with
// ErrReferentialIntegrity; an item already in a project fails with ErrUniqueness.
func (p *Projects) AddItem(ctx context.Context, project string, itemID int64) error {
	const op = "add item to project"
	err := p.h.Update(ctx, func(tx *items.Tx) error {
		row, err := lookup(ctx, tx, op, project)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return db.E(db.ErrReferentialIntegrity, op, "project %q does not exist", project)
			}
			return err
		}
		_, err = tx.ExecContext(ctx, addItemStatement, row.ID, itemID, items.ToUnix(p.h.Now()))
		return err
	})
	if err != nil {
		var de *db.Error
		if errors.As(err, &de) && de.Message != "" {
			return err
		}
		switch {
		case errors.Is(err, db.ErrUniqueness):
			return &db.Error{Kind: db.ErrUniqueness, Op: op, Message: fmt.Sprintf("item %d already belongs to a project", itemID), Err: err}
		case errors.Is(err, db.ErrReferentialIntegrity):
			return &db.Error{Kind: db.ErrReferentialIntegrity, Op: op, Message: fmt.Sprintf("item %d does not exist", itemID), Err: err}
		}
		return err
	}
	p.h.Logger().Debug("item added to project", "item_id", itemID, "project", project)
	return nil
}

// RemoveItem takes an item out of a project. The item itself stays.
func (p *Projects) RemoveItem(ctx context.Context, project string, itemID int64) error {
	const op = "remove item from project"
	err := p.h.Update(ctx, func(tx *items.Tx) error {
		row, err := lookup(ctx, tx, op, project)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, removeItemStatement, row.ID, itemID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return db.E(db.ErrNotFound, op, "item %d is not in project %q", itemID, project)
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.h.Logger().Debug("item removed from project", "item_id", itemID, "project", project)
	return nil
}

// ProjectForItem returns the project an item belongs to, or nil if it has none.
func (p *Projects) ProjectForItem(ctx context.Context, itemID int64) (*Project, error) {
	if _, err := p.h.Item(ctx, itemID); err != nil {
		return nil, err
	}

	var rows []projectRow
	err := p.h.View(ctx, func(q items.Queryer) error {
		return q.SelectContext(ctx, &rows, projectForItemStatement, itemID)
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	project := rows[0].project()
	return &project, nil
}

// Items returns the items of a project ordered by id.
func (p *Projects) Items(ctx context.Context, name string, filter items.ListFilter) ([]items.Item, error) {
	project, err := p.GetProject(ctx, name)
	if err != nil {
		return nil, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := max(filter.Offset, 0)

	var rows []items.Row
	err = p.h.View(ctx, func(q items.Queryer) error {
		return q.SelectContext(ctx, &rows, projectItemsStatement, project.ID, filter.IncludeArchived, limit, offset)
	})
	if err != nil {
		return nil, err
	}

	out := make([]items.Item, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Item())
	}
	return out, nil
}

func lookup(ctx context.Context, tx *items.Tx, op, name string) (projectRow, error) {
	var row projectRow
	err := tx.GetContext(ctx, &row, getProjectStatement, name)
	if errors.Is(err, sql.ErrNoRows) {
		return row, db.E(db.ErrNotFound, op, "project %q does not exist", name)
	}
	return row, err
}

// stampAfter keeps changed_at moving forward even if the clock does not.
func stampAfter(now time.Time, prev float64) float64 {
	next := items.ToUnix(now)
	if next <= prev {
		return items.ToUnix(items.FromUnix(prev).Add(time.Microsecond))
	}
	return next
}

func validName(op, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", db.E(db.ErrValidation, op, "project name must not be empty")
	}
	return name, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
