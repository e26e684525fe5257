package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	keep "github.com/unowned-ai/keep/pkg"
	"github.com/unowned-ai/keep/pkg/items"
	"github.com/unowned-ai/keep/pkg/projects"
	"github.com/unowned-ai/keep/pkg/tags"
)

// itemView is an item with its extension data, as returned by get_item.
type itemView struct {
	items.Item
	Tags    []string `json:"tags"`
	Project *string  `json:"project,omitempty"`
}

// RegisterPingTool registers the simple ping tool.
func RegisterPingTool(s *server.MCPServer) {
	pingTool := mcp.NewTool("ping",
		mcp.WithDescription("Responds with 'pong' to check if the keep MCP server is alive."),
	)
	s.AddTool(pingTool, pingHandler)
}

func pingHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("pong_keep"), nil
}

// RegisterCreateItemTool registers the create_item tool.
func RegisterCreateItemTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("create_item",
		mcp.WithDescription("Creates a new item."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title of the item. Must not be empty.")),
		mcp.WithString("body", mcp.Description("Optional free-form body.")),
	)
	s.AddTool(tool, createItemHandler(svc))
}

func createItemHandler(svc *keep.Stores) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, errResult := requiredString(request, "title")
		if errResult != nil {
			return errResult, nil
		}
		body, _ := optionalString(request, "body")

		item, err := svc.Items.Create(ctx, title, body)
		if err != nil {
			return errorResult("create item", err)
		}
		return jsonResult(item)
	}
}

// RegisterGetItemTool registers the get_item tool.
func RegisterGetItemTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("get_item",
		mcp.WithDescription("Retrieves an item by id, including its tags and project."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Id of the item.")),
	)
	s.AddTool(tool, getItemHandler(svc))
}

func getItemHandler(svc *keep.Stores) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := requiredID(request, "id")
		if errResult != nil {
			return errResult, nil
		}

		item, err := svc.Items.Get(ctx, id)
		if err != nil {
			return errorResult("get item", err)
		}
		view := itemView{Item: item, Tags: []string{}}
		if svc.Tags != nil {
			if view.Tags, err = svc.Tags.TagsForItem(ctx, id); err != nil {
				return errorResult("get item tags", err)
			}
		}
		if svc.Projects != nil {
			project, err := svc.Projects.ProjectForItem(ctx, id)
			if err != nil {
				return errorResult("get item project", err)
			}
			if project != nil {
				view.Project = &project.Name
			}
		}
		return jsonResult(view)
	}
}

// RegisterListItemsTool registers the list_items tool.
func RegisterListItemsTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("list_items",
		mcp.WithDescription("Lists items ordered by id."),
		mcp.WithBoolean("include_archived", mcp.Description("Include archived items. Defaults to false.")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of items to return. 0 means no limit.")),
		mcp.WithNumber("offset", mcp.Description("Number of items to skip.")),
	)
	s.AddTool(tool, listItemsHandler(svc))
}

func listItemsHandler(svc *keep.Stores) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := svc.Items.List(ctx, items.ListFilter{
			IncludeArchived: boolArg(request, "include_archived", false),
			Limit:           intArg(request, "limit", 0),
			Offset:          intArg(request, "offset", 0),
		})
		if err != nil {
			return errorResult("list items", err)
		}
		return jsonResult(list)
	}
}

// RegisterUpdateItemTool registers the update_item tool.
func RegisterUpdateItemTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("update_item",
		mcp.WithDescription("Updates an item's title or body. Timestamps are maintained automatically."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Id of the item to update.")),
		mcp.WithString("title", mcp.Description("Optional new title.")),
		mcp.WithString("body", mcp.Description("Optional new body.")),
		mcp.WithBoolean("clear_body", mcp.Description("Remove the body entirely.")),
	)
	s.AddTool(tool, updateItemHandler(svc))
}

func updateItemHandler(svc *keep.Stores) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := requiredID(request, "id")
		if errResult != nil {
			return errResult, nil
		}
		var u items.ItemUpdate
		u.Title, _ = optionalString(request, "title")
		u.Body, _ = optionalString(request, "body")
		u.ClearBody = boolArg(request, "clear_body", false)
		if u.Title == nil && u.Body == nil && !u.ClearBody {
			return mcp.NewToolResultError("At least one of 'title', 'body' or 'clear_body' must be provided."), nil
		}

		item, err := svc.Items.Update(ctx, id, u)
		if err != nil {
			return errorResult("update item", err)
		}
		return jsonResult(item)
	}
}

// RegisterArchiveItemTool registers the archive_item tool.
func RegisterArchiveItemTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("archive_item",
		mcp.WithDescription("Archives or unarchives an item."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Id of the item.")),
		mcp.WithBoolean("archived", mcp.Description("Target archive state. Defaults to true.")),
	)
	s.AddTool(tool, archiveItemHandler(svc))
}

func archiveItemHandler(svc *keep.Stores) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := requiredID(request, "id")
		if errResult != nil {
			return errResult, nil
		}
		item, err := svc.Items.SetArchived(ctx, id, boolArg(request, "archived", true))
		if err != nil {
			return errorResult("archive item", err)
		}
		return jsonResult(item)
	}
}

// RegisterDeleteItemTool registers the delete_item tool.
func RegisterDeleteItemTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("delete_item",
		mcp.WithDescription("Permanently deletes an item together with its tags and project membership."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Id of the item.")),
	)
	s.AddTool(tool, deleteItemHandler(svc))
}

func deleteItemHandler(svc *keep.Stores) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := requiredID(request, "id")
		if errResult != nil {
			return errResult, nil
		}
		if err := svc.Items.HardDelete(ctx, id); err != nil {
			return errorResult("delete item", err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Item %d deleted.", id)), nil
	}
}

// RegisterPurgeArchivedTool registers the purge_archived tool.
func RegisterPurgeArchivedTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("purge_archived",
		mcp.WithDescription("Permanently deletes items archived longer ago than older_than."),
		mcp.WithString("older_than", mcp.Required(), mcp.Description("Go duration such as '720h'.")),
	)
	s.AddTool(tool, purgeArchivedHandler(svc))
}

func purgeArchivedHandler(svc *keep.Stores) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, errResult := requiredString(request, "older_than")
		if errResult != nil {
			return errResult, nil
		}
		age, err := time.ParseDuration(raw)
		if err != nil || age < 0 {
			return mcp.NewToolResultError(fmt.Sprintf("'older_than' must be a non-negative duration: %q", raw)), nil
		}
		n, err := svc.Items.PurgeArchived(ctx, time.Now().Add(-age))
		if err != nil {
			return errorResult("purge archived items", err)
		}
		return jsonResult(map[string]int64{"purged": n})
	}
}

// RegisterCreateTagTool registers the create_tag tool.
func RegisterCreateTagTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("create_tag",
		mcp.WithDescription("Creates a tag without attaching it to any item."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Unique tag name.")),
	)
	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, errResult := requiredString(request, "name")
		if errResult != nil {
			return errResult, nil
		}
		tag, err := svc.Tags.CreateTag(ctx, name)
		if err != nil {
			return errorResult("create tag", err)
		}
		return jsonResult(tag)
	})
}

// RegisterListTagsTool registers the list_tags tool.
func RegisterListTagsTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("list_tags",
		mcp.WithDescription("Lists all tags."),
	)
	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := svc.Tags.ListTags(ctx)
		if err != nil {
			return errorResult("list tags", err)
		}
		return jsonResult(list)
	})
}

// RegisterDeleteTagTool registers the delete_tag tool.
func RegisterDeleteTagTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("delete_tag",
		mcp.WithDescription("Deletes a tag and detaches it from all items. Items are kept."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Tag name.")),
	)
	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, errResult := requiredString(request, "name")
		if errResult != nil {
			return errResult, nil
		}
		if err := svc.Tags.DeleteTag(ctx, name); err != nil {
			return errorResult("delete tag", err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Tag '%s' deleted.", name)), nil
	})
}

// RegisterTagItemTool registers the tag_item tool.
func RegisterTagItemTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("tag_item",
		mcp.WithDescription("Attaches a tag to an item, creating the tag if it does not exist."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Id of the item.")),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag name.")),
	)
	s.AddTool(tool, tagItemHandler(svc))
}

func tagItemHandler(svc *keep.Stores) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := requiredID(request, "id")
		if errResult != nil {
			return errResult, nil
		}
		name, errResult := requiredString(request, "tag")
		if errResult != nil {
			return errResult, nil
		}
		tag, err := svc.Tags.TagItem(ctx, id, name)
		if err != nil {
			return errorResult("tag item", err)
		}
		return jsonResult(tag)
	}
}

// RegisterUntagItemTool registers the untag_item tool.
func RegisterUntagItemTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("untag_item",
		mcp.WithDescription("Detaches a tag from an item."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Id of the item.")),
		mcp.WithString("tag", mcp.Required(), mcp.Description("Tag name.")),
	)
	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, errResult := requiredID(request, "id")
		if errResult != nil {
			return errResult, nil
		}
		name, errResult := requiredString(request, "tag")
		if errResult != nil {
			return errResult, nil
		}
		if err := svc.Tags.UntagItem(ctx, id, name); err != nil {
			return errorResult("untag item", err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Tag '%s' removed from item %d.", name, id)), nil
	})
}

// RegisterTaggedTool registers the tagged tool.
func RegisterTaggedTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("tagged",
		mcp.WithDescription("Lists items with all their tags. With 'tag', only items carrying that tag."),
		mcp.WithString("tag", mcp.Description("Optional tag to filter by.")),
		mcp.WithBoolean("include_archived", mcp.Description("Include archived items. Defaults to false.")),
	)
	s.AddTool(tool, taggedHandler(svc))
}

func taggedHandler(svc *keep.Stores) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		filter := tags.TaggedFilter{IncludeArchived: boolArg(request, "include_archived", false)}
		if tag, ok := optionalString(request, "tag"); ok {
			filter.Tag = *tag
		}
		list, err := svc.Tags.Tagged(ctx, filter)
		if err != nil {
			return errorResult("list tagged items", err)
		}
		return jsonResult(list)
	}
}

// RegisterMatchTagsTool registers the match_tags tool.
func RegisterMatchTagsTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("match_tags",
		mcp.WithDescription("Ranks items by how many of the given tags they carry, best match first."),
		mcp.WithString("tags", mcp.Required(), mcp.Description("Comma-separated list of tags to match.")),
		mcp.WithBoolean("include_archived", mcp.Description("Include archived items. Defaults to false.")),
	)
	s.AddTool(tool, matchTagsHandler(svc))
}

func matchTagsHandler(svc *keep.Stores) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		tagsStr, errResult := requiredString(request, "tags")
		if errResult != nil {
			return errResult, nil
		}
		list, err := svc.Tags.MatchTags(ctx, strings.Split(tagsStr, ","), boolArg(request, "include_archived", false))
		if err != nil {
			return errorResult("match tags", err)
		}
		return jsonResult(list)
	}
}

// RegisterCreateProjectTool registers the create_project tool.
func RegisterCreateProjectTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("create_project",
		mcp.WithDescription("Creates a new project."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Unique project name.")),
		mcp.WithString("body", mcp.Description("Optional description.")),
	)
	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, errResult := requiredString(request, "name")
		if errResult != nil {
			return errResult, nil
		}
		body, _ := optionalString(request, "body")
		project, err := svc.Projects.CreateProject(ctx, name, body)
		if err != nil {
			return errorResult("create project", err)
		}
		return jsonResult(project)
	})
}

// RegisterListProjectsTool registers the list_projects tool.
func RegisterListProjectsTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("list_projects",
		mcp.WithDescription("Lists all projects."),
	)
	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := svc.Projects.ListProjects(ctx)
		if err != nil {
			return errorResult("list projects", err)
		}
		return jsonResult(list)
	})
}

// RegisterUpdateProjectTool registers the update_project tool.
func RegisterUpdateProjectTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("update_project",
		mcp.WithDescription("Renames a project or changes its description."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Current project name.")),
		mcp.WithString("new_name", mcp.Description("Optional new name.")),
		mcp.WithString("body", mcp.Description("Optional new description.")),
	)
	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, errResult := requiredString(request, "name")
		if errResult != nil {
			return errResult, nil
		}
		var u projects.ProjectUpdate
		u.Name, _ = optionalString(request, "new_name")
		u.Body, _ = optionalString(request, "body")
		if u.Name == nil && u.Body == nil {
			return mcp.NewToolResultError("At least one of 'new_name' or 'body' must be provided."), nil
		}
		project, err := svc.Projects.UpdateProject(ctx, name, u)
		if err != nil {
			return errorResult("update project", err)
		}
		return jsonResult(project)
	})
}

// RegisterDeleteProjectTool registers the delete_project tool.
func RegisterDeleteProjectTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("delete_project",
		mcp.WithDescription("Deletes a project. Its items are kept."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Project name.")),
	)
	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, errResult := requiredString(request, "name")
		if errResult != nil {
			return errResult, nil
		}
		if err := svc.Projects.DeleteProject(ctx, name); err != nil {
			return errorResult("delete project", err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Project '%s' deleted.", name)), nil
	})
}

// RegisterAddToProjectTool registers the add_to_project tool.
func RegisterAddToProjectTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("add_to_project",
		mcp.WithDescription("Puts an item into a project. An item can belong to one project only."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name.")),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Id of the item.")),
	)
	s.AddTool(tool, addToProjectHandler(svc))
}

func addToProjectHandler(svc *keep.Stores) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project, errResult := requiredString(request, "project")
		if errResult != nil {
			return errResult, nil
		}
		id, errResult := requiredID(request, "id")
		if errResult != nil {
			return errResult, nil
		}
		if err := svc.Projects.AddItem(ctx, project, id); err != nil {
			return errorResult("add item to project", err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Item %d added to project '%s'.", id, project)), nil
	}
}

// RegisterRemoveFromProjectTool registers the remove_from_project tool.
func RegisterRemoveFromProjectTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("remove_from_project",
		mcp.WithDescription("Takes an item out of a project."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name.")),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Id of the item.")),
	)
	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project, errResult := requiredString(request, "project")
		if errResult != nil {
			return errResult, nil
		}
		id, errResult := requiredID(request, "id")
		if errResult != nil {
			return errResult, nil
		}
		if err := svc.Projects.RemoveItem(ctx, project, id); err != nil {
			return errorResult("remove item from project", err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("Item %d removed from project '%s'.", id, project)), nil
	})
}

// RegisterProjectItemsTool registers the project_items tool.
func RegisterProjectItemsTool(s *server.MCPServer, svc *keep.Stores) {
	tool := mcp.NewTool("project_items",
		mcp.WithDescription("Lists the items of a project."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Project name.")),
		mcp.WithBoolean("include_archived", mcp.Description("Include archived items. Defaults to false.")),
	)
	s.AddTool(tool, projectItemsHandler(svc))
}

func projectItemsHandler(svc *keep.Stores) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, errResult := requiredString(request, "name")
		if errResult != nil {
			return errResult, nil
		}
		list, err := svc.Projects.Items(ctx, name, items.ListFilter{IncludeArchived: boolArg(request, "include_archived", false)})
		if err != nil {
			return errorResult("list project items", err)
		}
		return jsonResult(list)
	}
}
