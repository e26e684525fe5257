package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	keep "github.com/unowned-ai/keep/pkg"
	"github.com/unowned-ai/keep/pkg/items"
	"github.com/unowned-ai/keep/pkg/projects"
)

type projectsMsg []projects.Project

type itemsMsg []items.Item

type itemDetailsMsg struct {
	item    items.Item
	tags    []string
	project *projects.Project
}

// itemChangedMsg reports a mutation; the item list is reloaded in response.
type itemChangedMsg struct {
	id int64
}

// List projects from the database and return tea data
func listProjects(stores *keep.Stores) tea.Cmd {
	return func() tea.Msg {
		list, err := stores.Projects.ListProjects(context.Background())
		if err != nil {
			return err
		}
		return projectsMsg(list)
	}
}

// List items, all of them or those of one project
func listItems(stores *keep.Stores, project string, includeArchived bool) tea.Cmd {
	return func() tea.Msg {
		filter := items.ListFilter{IncludeArchived: includeArchived}
		var (
			list []items.Item
			err  error
		)
		if project == "" {
			list, err = stores.Items.List(context.Background(), filter)
		} else {
			list, err = stores.Projects.Items(context.Background(), project, filter)
		}
		if err != nil {
			return err
		}
		return itemsMsg(list)
	}
}

// Get a combined message with the item, its tags and its project
func getItemDetails(stores *keep.Stores, id int64) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		item, err := stores.Items.Get(ctx, id)
		if err != nil {
			return err
		}
		names, err := stores.Tags.TagsForItem(ctx, id)
		if err != nil {
			return err
		}
		project, err := stores.Projects.ProjectForItem(ctx, id)
		if err != nil {
			return err
		}
		return itemDetailsMsg{item: item, tags: names, project: project}
	}
}

// Create an item, placing it into project when one is selected
func createItem(stores *keep.Stores, project, title, body string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		var bodyPtr *string
		if body != "" {
			bodyPtr = &body
		}
		item, err := stores.Items.Create(ctx, title, bodyPtr)
		if err != nil {
			return err
		}
		if project != "" {
			if err := stores.Projects.AddItem(ctx, project, item.ID); err != nil {
				return err
			}
		}
		return itemChangedMsg{id: item.ID}
	}
}

func setArchived(stores *keep.Stores, id int64, archived bool) tea.Cmd {
	return func() tea.Msg {
		if _, err := stores.Items.SetArchived(context.Background(), id, archived); err != nil {
			return err
		}
		return itemChangedMsg{id: id}
	}
}

func hardDelete(stores *keep.Stores, id int64) tea.Cmd {
	return func() tea.Msg {
		if err := stores.Items.HardDelete(context.Background(), id); err != nil {
			return err
		}
		return itemChangedMsg{id: id}
	}
}

// Get database file path
func getDbFile(stores *keep.Stores) string {
	var seq int
	var name, file string
	err := stores.DB.QueryRow(`PRAGMA database_list`).Scan(&seq, &name, &file)
	if err != nil {
		return ""
	}
	return file
}
