package projects

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unowned-ai/keep/pkg/db"
	"github.com/unowned-ai/keep/pkg/items"
	"github.com/unowned-ai/keep/pkg/tags"
)

func newTestStore(t *testing.T) (*items.Store, *Projects) {
	t.Helper()
	conn, err := db.OpenDBConnection(filepath.Join(t.TempDir(), "keep.db"), db.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ctx := context.Background()
	store, err := items.New(ctx, conn)
	require.NoError(t, err)
	projects, err := New(ctx, store)
	require.NoError(t, err)
	return store, projects
}

func countRows(t *testing.T, h *items.Handle, table string) int {
	t.Helper()
	var n int
	require.NoError(t, h.View(context.Background(), func(q items.Queryer) error {
		return q.GetContext(context.Background(), &n, "SELECT COUNT(*) FROM "+table)
	}))
	return n
}

func ptr[T any](v T) *T { return &v }

func TestProjectCRUD(t *testing.T) {
	ctx := context.Background()
	_, projects := newTestStore(t)

	created, err := projects.CreateProject(ctx, "Test Project", ptr("Project description"))
	require.NoError(t, err)
	assert.Equal(t, "Test Project", created.Name)
	assert.Equal(t, "Project description", *created.Body)

	_, err = projects.CreateProject(ctx, "Test Project", nil)
	assert.ErrorIs(t, err, db.ErrUniqueness)
	_, err = projects.CreateProject(ctx, "", nil)
	assert.ErrorIs(t, err, db.ErrValidation)

	got, err := projects.GetProject(ctx, "Test Project")
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = projects.GetProject(ctx, "Missing")
	assert.ErrorIs(t, err, db.ErrNotFound)

	_, err = projects.CreateProject(ctx, "Another", nil)
	require.NoError(t, err)
	all, err := projects.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Another", all[0].Name)

	renamed, err := projects.UpdateProject(ctx, "Test Project", ProjectUpdate{Name: ptr("Renamed"), ClearBody: true})
	require.NoError(t, err)
	assert.Equal(t, created.ID, renamed.ID)
	assert.Nil(t, renamed.Body)
	assert.True(t, renamed.ChangedAt.After(created.ChangedAt))
	assert.Equal(t, created.CreatedAt, renamed.CreatedAt)

	_, err = projects.UpdateProject(ctx, "Renamed", ProjectUpdate{Name: ptr("Another")})
	assert.ErrorIs(t, err, db.ErrUniqueness)
	_, err = projects.UpdateProject(ctx, "Test Project", ProjectUpdate{Body: ptr("x")})
	assert.ErrorIs(t, err, db.ErrNotFound)
	_, err = projects.UpdateProject(ctx, "Renamed", ProjectUpdate{Name: ptr(" ")})
	assert.ErrorIs(t, err, db.ErrValidation)

	require.NoError(t, projects.DeleteProject(ctx, "Renamed"))
	assert.ErrorIs(t, projects.DeleteProject(ctx, "Renamed"), db.ErrNotFound)
}

func TestAssigningItemsToProjects(t *testing.T) {
	ctx := context.Background()
	store, projects := newTestStore(t)

	var ids []int64
	for _, title := range []string{"Item 1", "Item 2", "Item 3"} {
		item, err := store.Create(ctx, title, nil)
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}
	project, err := projects.CreateProject(ctx, "Test Project", nil)
	require.NoError(t, err)

	require.NoError(t, projects.AddItem(ctx, "Test Project", ids[0]))
	require.NoError(t, projects.AddItem(ctx, "Test Project", ids[1]))

	members, err := projects.Items(ctx, "Test Project", items.ListFilter{})
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "Item 1", members[0].Title)
	assert.Equal(t, "Item 2", members[1].Title)

	_, err = store.SetArchived(ctx, ids[1], true)
	require.NoError(t, err)
	members, err = projects.Items(ctx, "Test Project", items.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, members, 1)
	members, err = projects.Items(ctx, "Test Project", items.ListFilter{IncludeArchived: true, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, ids[1], members[0].ID)

	owner, err := projects.ProjectForItem(ctx, ids[0])
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, project.ID, owner.ID)

	none, err := projects.ProjectForItem(ctx, ids[2])
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = projects.ProjectForItem(ctx, 999)
	assert.ErrorIs(t, err, db.ErrNotFound)

	_, err = projects.Items(ctx, "Missing", items.ListFilter{})
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestAddItem_Errors(t *testing.T) {
	ctx := context.Background()
	store, projects := newTestStore(t)

	item, err := store.Create(ctx, "Item 1", nil)
	require.NoError(t, err)
	_, err = projects.CreateProject(ctx, "Project 1", nil)
	require.NoError(t, err)
	_, err = projects.CreateProject(ctx, "Project 2", nil)
	require.NoError(t, err)

	require.NoError(t, projects.AddItem(ctx, "Project 1", item.ID))

	err = projects.AddItem(ctx, "Project 2", item.ID)
	assert.ErrorIs(t, err, db.ErrUniqueness)
	err = projects.AddItem(ctx, "Project 1", item.ID)
	assert.ErrorIs(t, err, db.ErrUniqueness)

	err = projects.AddItem(ctx, "Project 1", 404)
	assert.ErrorIs(t, err, db.ErrReferentialIntegrity)
	err = projects.AddItem(ctx, "Nope", item.ID)
	assert.ErrorIs(t, err, db.ErrReferentialIntegrity)

	assert.Equal(t, 1, countRows(t, projects.h, "project_items"))
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	store, projects := newTestStore(t)

	item, err := store.Create(ctx, "Member", nil)
	require.NoError(t, err)
	_, err = projects.CreateProject(ctx, "Home", nil)
	require.NoError(t, err)
	require.NoError(t, projects.AddItem(ctx, "Home", item.ID))

	require.NoError(t, projects.RemoveItem(ctx, "Home", item.ID))
	assert.ErrorIs(t, projects.RemoveItem(ctx, "Home", item.ID), db.ErrNotFound)
	assert.ErrorIs(t, projects.RemoveItem(ctx, "Away", item.ID), db.ErrNotFound)

	_, err = store.Get(ctx, item.ID)
	require.NoError(t, err)

	// Once removed it can join another project.
	_, err = projects.CreateProject(ctx, "Work", nil)
	require.NoError(t, err)
	require.NoError(t, projects.AddItem(ctx, "Work", item.ID))
}

func TestCascadeDeleteProject(t *testing.T) {
	ctx := context.Background()
	store, projects := newTestStore(t)

	item, err := store.Create(ctx, "Item 1", ptr("Body 1"))
	require.NoError(t, err)
	_, err = projects.CreateProject(ctx, "Test Project", nil)
	require.NoError(t, err)
	require.NoError(t, projects.AddItem(ctx, "Test Project", item.ID))

	require.NoError(t, projects.DeleteProject(ctx, "Test Project"))

	assert.Equal(t, 0, countRows(t, projects.h, "project_items"))
	got, err := store.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item, got)
}

func TestCascadeDeleteItem(t *testing.T) {
	ctx := context.Background()
	store, projects := newTestStore(t)

	item, err := store.Create(ctx, "Item 1", nil)
	require.NoError(t, err)
	_, err = projects.CreateProject(ctx, "Test Project", nil)
	require.NoError(t, err)
	require.NoError(t, projects.AddItem(ctx, "Test Project", item.ID))

	require.NoError(t, store.HardDelete(ctx, item.ID))

	assert.Equal(t, 0, countRows(t, projects.h, "project_items"))
	_, err = projects.GetProject(ctx, "Test Project")
	require.NoError(t, err)
}

func TestHardDelete_CascadesAcrossExtensions(t *testing.T) {
	ctx := context.Background()
	store, projects := newTestStore(t)
	tagger, err := tags.New(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, []string{"projects", "tags"}, store.Extensions())

	item, err := store.Create(ctx, "Well connected", nil)
	require.NoError(t, err)
	other, err := store.Create(ctx, "Bystander", nil)
	require.NoError(t, err)

	_, err = tagger.TagItem(ctx, item.ID, "one")
	require.NoError(t, err)
	_, err = tagger.TagItem(ctx, item.ID, "two")
	require.NoError(t, err)
	_, err = tagger.TagItem(ctx, other.ID, "one")
	require.NoError(t, err)
	_, err = projects.CreateProject(ctx, "Hub", nil)
	require.NoError(t, err)
	require.NoError(t, projects.AddItem(ctx, "Hub", item.ID))

	require.NoError(t, store.HardDelete(ctx, item.ID))

	assert.Equal(t, 1, countRows(t, projects.h, "item_tags"))
	assert.Equal(t, 0, countRows(t, projects.h, "project_items"))
	assert.Equal(t, 2, countRows(t, projects.h, "tags"))
	assert.Equal(t, 1, countRows(t, projects.h, "projects"))

	violations, err := store.CheckIntegrity(ctx)
	require.NoError(t, err)
	assert.Empty(t, violations)
}
