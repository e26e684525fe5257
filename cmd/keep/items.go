package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/unowned-ai/keep/pkg/items"
)

var (
	includeArchivedFlag bool
	limitFlag           int
	offsetFlag          int
	olderThanFlag       time.Duration
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Manage items",
	Long:  `Create, list, update, archive and delete items.`,
}

var createItemCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new item",
	Long:  `Create a new item with a title and an optional body, tags and project.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		project, _ := cmd.Flags().GetString("project")
		tagsStr, _ := cmd.Flags().GetString("tags")

		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		ctx := cmd.Context()
		item, err := stores.Items.Create(ctx, title, flagString(cmd, "body"))
		if err != nil {
			return fmt.Errorf("failed to create item: %w", err)
		}

		var lastTaggingError error
		for _, name := range strings.Split(tagsStr, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			if _, err := stores.Tags.TagItem(ctx, item.ID, name); err != nil {
				lastTaggingError = fmt.Errorf("failed to apply tag '%s': %w", name, err)
				cmd.PrintErrln(lastTaggingError)
			}
		}
		if project != "" {
			if err := stores.Projects.AddItem(ctx, project, item.ID); err != nil {
				return fmt.Errorf("item %d created, but adding it to project '%s' failed: %w", item.ID, project, err)
			}
		}

		names, err := stores.Tags.TagsForItem(ctx, item.ID)
		if err != nil {
			return err
		}
		p, err := stores.Projects.ProjectForItem(ctx, item.ID)
		if err != nil {
			return err
		}
		printItem(cmd.OutOrStdout(), item, names, p)

		if lastTaggingError != nil {
			return fmt.Errorf("item created, but some tags failed to apply: %w", lastTaggingError)
		}
		return nil
	},
}

var getItemCmd = &cobra.Command{
	Use:   "get [item-id]",
	Short: "Get an item by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		ctx := cmd.Context()
		item, err := stores.Items.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get item: %w", err)
		}
		names, err := stores.Tags.TagsForItem(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get tags for item: %w", err)
		}
		project, err := stores.Projects.ProjectForItem(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get project for item: %w", err)
		}
		printItem(cmd.OutOrStdout(), item, names, project)
		return nil
	},
}

var listItemsCmd = &cobra.Command{
	Use:   "list",
	Short: "List items",
	Long:  `List items ordered by ID. Archived items are hidden unless --archived is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		list, err := stores.Items.List(cmd.Context(), items.ListFilter{
			IncludeArchived: includeArchivedFlag,
			Limit:           limitFlag,
			Offset:          offsetFlag,
		})
		if err != nil {
			return fmt.Errorf("failed to list items: %w", err)
		}
		printItems(cmd.OutOrStdout(), list)
		return nil
	},
}

var updateItemCmd = &cobra.Command{
	Use:   "update [item-id]",
	Short: "Update an item",
	Long:  `Update the title or body of an item. Only the flags given are changed.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		clearBody, _ := cmd.Flags().GetBool("clear-body")

		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		item, err := stores.Items.Update(cmd.Context(), id, items.ItemUpdate{
			Title:     flagString(cmd, "title"),
			Body:      flagString(cmd, "body"),
			ClearBody: clearBody,
		})
		if err != nil {
			return fmt.Errorf("failed to update item: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Item updated successfully!")
		printItem(cmd.OutOrStdout(), item, nil, nil)
		return nil
	},
}

func archiveCmd(use, short string, archived bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [item-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			stores, closeFn, err := openStores(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			item, err := stores.Items.SetArchived(cmd.Context(), id, archived)
			if err != nil {
				return fmt.Errorf("failed to %s item: %w", use, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Item %d archived: %t\n", item.ID, item.IsArchived)
			return nil
		},
	}
}

var deleteItemCmd = &cobra.Command{
	Use:   "delete [item-id]",
	Short: "Permanently delete an item",
	Long:  `Delete an item together with its tag and project links. This cannot be undone; use 'archive' to hide an item instead.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := stores.Items.HardDelete(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete item: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Item %d deleted.\n", id)
		return nil
	},
}

var purgeItemsCmd = &cobra.Command{
	Use:   "purge",
	Short: "Permanently delete archived items",
	Long: `Delete every archived item whose archive status changed before now minus --older-than.
Tag and project links of the purged items are removed as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		n, err := stores.Items.PurgeArchived(cmd.Context(), time.Now().Add(-olderThanFlag))
		if err != nil {
			return fmt.Errorf("failed to purge items: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %d archived item(s).\n", n)
		return nil
	},
}

func initItemsCmd() {
	createItemCmd.Flags().String("title", "", "Title of the item (required)")
	createItemCmd.Flags().String("body", "", "Body of the item")
	createItemCmd.Flags().String("tags", "", "Comma-separated list of tags for the item")
	createItemCmd.Flags().String("project", "", "Project to add the item to")
	createItemCmd.MarkFlagRequired("title")

	listItemsCmd.Flags().BoolVar(&includeArchivedFlag, "archived", false, "Include archived items")
	listItemsCmd.Flags().IntVar(&limitFlag, "limit", 0, "Maximum number of items (0 means no limit)")
	listItemsCmd.Flags().IntVar(&offsetFlag, "offset", 0, "Number of items to skip")

	updateItemCmd.Flags().String("title", "", "New title for the item")
	updateItemCmd.Flags().String("body", "", "New body for the item")
	updateItemCmd.Flags().Bool("clear-body", false, "Remove the body of the item")
	updateItemCmd.MarkFlagsMutuallyExclusive("body", "clear-body")

	purgeItemsCmd.Flags().DurationVar(&olderThanFlag, "older-than", 0, "Only purge items archived at least this long ago (e.g. 720h)")

	itemsCmd.AddCommand(
		createItemCmd,
		getItemCmd,
		listItemsCmd,
		updateItemCmd,
		archiveCmd("archive", "Archive an item", true),
		archiveCmd("unarchive", "Restore an archived item", false),
		deleteItemCmd,
		purgeItemsCmd,
	)
}
