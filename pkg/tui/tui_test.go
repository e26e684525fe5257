package tui

import (
	"context"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	keep "github.com/unowned-ai/keep/pkg"
	"github.com/unowned-ai/keep/pkg/db"
)

func newTestStores(t *testing.T) *keep.Stores {
	t.Helper()
	conn, err := db.OpenDBConnection(filepath.Join(t.TempDir(), "keep.db"), db.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	stores, err := keep.Open(context.Background(), conn)
	require.NoError(t, err)
	return stores
}

// drain runs commands synchronously, feeding each message back into the model.
func drain(t *testing.T, m model, cmd tea.Cmd) model {
	t.Helper()
	for i := 0; cmd != nil && i < 10; i++ {
		next, c := m.Update(cmd())
		m = next.(model)
		cmd = c
	}
	return m
}

func press(t *testing.T, m model, keys ...string) model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "up":
			msg = tea.KeyMsg{Type: tea.KeyUp}
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "right":
			msg = tea.KeyMsg{Type: tea.KeyRight}
		case "left":
			msg = tea.KeyMsg{Type: tea.KeyLeft}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, cmd := m.Update(msg)
		m = next.(model)
		// Text input commands only drive cursor blinking.
		if !m.itemCreating {
			m = drain(t, m, cmd)
		}
	}
	return m
}

func seed(t *testing.T, stores *keep.Stores) {
	t.Helper()
	ctx := context.Background()
	_, err := stores.Projects.CreateProject(ctx, "Home", nil)
	require.NoError(t, err)

	milk, err := stores.Items.Create(ctx, "Buy milk", nil)
	require.NoError(t, err)
	_, err = stores.Items.Create(ctx, "Call mom", nil)
	require.NoError(t, err)

	require.NoError(t, stores.Projects.AddItem(ctx, "Home", milk.ID))
	_, err = stores.Tags.TagItem(ctx, milk.ID, "groceries")
	require.NoError(t, err)
}

func startModel(t *testing.T, stores *keep.Stores) model {
	t.Helper()
	m := initModel(stores, "keep.db")
	next, _ := m.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	return drain(t, next.(model), listProjects(stores))
}

func TestModelNavigation(t *testing.T) {
	stores := newTestStores(t)
	seed(t, stores)
	m := startModel(t, stores)

	require.Len(t, m.projects, 1)
	assert.Len(t, m.items, 2, "all items are listed first")

	m = press(t, m, "down")
	assert.Equal(t, "Home", m.selectedProject())
	require.Len(t, m.items, 1)
	assert.Equal(t, "Buy milk", m.items[0].Title)

	m = press(t, m, "right")
	assert.Equal(t, 1, m.columnFocus)
	assert.Equal(t, "Buy milk", m.currentItem.item.Title)
	assert.Equal(t, []string{"groceries"}, m.currentItem.tags)
	require.NotNil(t, m.currentItem.project)
	assert.Equal(t, "Home", m.currentItem.project.Name)

	view := m.View()
	assert.Contains(t, view, "All items")
	assert.Contains(t, view, "groceries")

	m = press(t, m, "left", "up")
	assert.Equal(t, 0, m.columnFocus)
	assert.Equal(t, "", m.selectedProject())
	assert.Len(t, m.items, 2)
}

func TestModelArchiveToggle(t *testing.T) {
	stores := newTestStores(t)
	seed(t, stores)
	m := startModel(t, stores)

	m = press(t, m, "right", "a")
	assert.Len(t, m.items, 1, "archived item is hidden")

	item, err := stores.Items.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, item.IsArchived)

	m = press(t, m, "v")
	assert.True(t, m.showArchived)
	require.Len(t, m.items, 2)

	m.itemCursor = 0
	m = press(t, m, "a")
	item, err = stores.Items.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, item.IsArchived)
}

func TestModelCreateItem(t *testing.T) {
	stores := newTestStores(t)
	seed(t, stores)
	m := startModel(t, stores)
	m = press(t, m, "down")

	m = press(t, m, "n", "enter")
	assert.True(t, m.itemCreating)
	assert.Equal(t, "Title cannot be empty", m.itemCreatingError)

	m = press(t, m, "Walk dog", "enter", "twice", "enter")
	assert.False(t, m.itemCreating)
	require.Len(t, m.items, 2)
	assert.Equal(t, "Walk dog", m.items[1].Title)
	require.NotNil(t, m.items[1].Body)
	assert.Equal(t, "twice", *m.items[1].Body)

	project, err := stores.Projects.ProjectForItem(context.Background(), m.items[1].ID)
	require.NoError(t, err)
	require.NotNil(t, project)
	assert.Equal(t, "Home", project.Name)
}

func TestModelCreateCancel(t *testing.T) {
	stores := newTestStores(t)
	m := startModel(t, stores)

	m = press(t, m, "n", "abc", "esc")
	assert.False(t, m.itemCreating)
	assert.Empty(t, m.itemTitleInput.Value())
	assert.Empty(t, m.items)
}

func TestModelDeleteItem(t *testing.T) {
	stores := newTestStores(t)
	seed(t, stores)
	m := startModel(t, stores)
	m = press(t, m, "right")

	// "No" is preselected.
	m = press(t, m, "d", "enter")
	assert.Len(t, m.items, 2)

	m = press(t, m, "d", "up", "enter")
	require.Len(t, m.items, 1)
	assert.Equal(t, "Call mom", m.items[0].Title)

	tags, err := stores.Tags.ListTags(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 1, "tags survive item deletion")
}

func TestModelQuit(t *testing.T) {
	m := initModel(newTestStores(t), "keep.db")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.True(t, next.(model).quitting)
	assert.Contains(t, next.(model).View(), "Bye")
}
