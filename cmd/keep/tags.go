package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unowned-ai/keep/pkg/tags"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Manage tags",
	Long:  `Create, list and delete tags, and attach them to items.`,
}

var createTagCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		tag, err := stores.Tags.CreateTag(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to create tag: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Tag created: %s (%s)\n", tag.Name, tag.ID)
		return nil
	},
}

var listTagsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		list, err := stores.Tags.ListTags(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list tags: %w", err)
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tags found.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Name | ID | Created At")
		fmt.Fprintln(cmd.OutOrStdout(), "------------------------------------------------------------")
		for _, t := range list {
			fmt.Fprintf(cmd.OutOrStdout(), "%s | %s | %s\n", t.Name, t.ID, formatTime(t.CreatedAt))
		}
		return nil
	},
}

var deleteTagCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a tag and detach it from all items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := stores.Tags.DeleteTag(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete tag: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Tag %s deleted.\n", args[0])
		return nil
	},
}

var addTagsCmd = &cobra.Command{
	Use:   "add [item-id] [tag...]",
	Short: "Tag an item, creating missing tags",
	Args:  cobra.MinimumNArgs(2),
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

		for _, name := range args[1:] {
			if _, err := stores.Tags.TagItem(cmd.Context(), id, name); err != nil {
				return fmt.Errorf("failed to apply tag '%s': %w", name, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Successfully added tags: %s\n", strings.Join(args[1:], ", "))
		return nil
	},
}

var removeTagsCmd = &cobra.Command{
	Use:   "remove [item-id] [tag...]",
	Short: "Remove tags from an item",
	Args:  cobra.MinimumNArgs(2),
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

		for _, name := range args[1:] {
			if err := stores.Tags.UntagItem(cmd.Context(), id, name); err != nil {
				return fmt.Errorf("failed to remove tag '%s': %w", name, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Successfully removed tags: %s\n", strings.Join(args[1:], ", "))
		return nil
	},
}

var matchTagsCmd = &cobra.Command{
	Use:   "match [tag...]",
	Short: "Rank items by the number of given tags they carry",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archived, _ := cmd.Flags().GetBool("archived")

		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		list, err := stores.Tags.MatchTags(cmd.Context(), args, archived)
		if err != nil {
			return fmt.Errorf("failed to match tags: %w", err)
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No items found.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Matches | ID | Title | Archived")
		fmt.Fprintln(cmd.OutOrStdout(), "------------------------------------------------------------")
		for _, m := range list {
			fmt.Fprintf(cmd.OutOrStdout(), "%d | %d | %s | %t\n", m.MatchCount, m.Item.ID, m.Item.Title, m.Item.IsArchived)
		}
		return nil
	},
}

var taggedCmd = &cobra.Command{
	Use:   "tagged",
	Short: "List items together with their tags",
	Long:  `List items with their tags, optionally only those carrying --tag.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, _ := cmd.Flags().GetString("tag")
		archived, _ := cmd.Flags().GetBool("archived")

		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		list, err := stores.Tags.Tagged(cmd.Context(), tags.TaggedFilter{
			IncludeArchived: archived,
			Tag:             tag,
		})
		if err != nil {
			return fmt.Errorf("failed to list tagged items: %w", err)
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No items found.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "ID | Title | Archived | Tags")
		fmt.Fprintln(cmd.OutOrStdout(), "------------------------------------------------------------")
		for _, t := range list {
			names := "none"
			if len(t.Tags) > 0 {
				names = strings.Join(t.Tags, ", ")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d | %s | %t | %s\n", t.Item.ID, t.Item.Title, t.Item.IsArchived, names)
		}
		return nil
	},
}

func initTagsCmd() {
	taggedCmd.Flags().String("tag", "", "Only list items carrying this tag")
	taggedCmd.Flags().Bool("archived", false, "Include archived items")
	matchTagsCmd.Flags().Bool("archived", false, "Include archived items")

	tagsCmd.AddCommand(
		createTagCmd,
		listTagsCmd,
		deleteTagCmd,
		addTagsCmd,
		removeTagsCmd,
		matchTagsCmd,
	)
}
