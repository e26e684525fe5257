package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unowned-ai/keep/pkg/items"
	"github.com/unowned-ai/keep/pkg/projects"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage projects",
	Long:  `Create, list, update and delete projects, and assign items to them. An item belongs to at most one project.`,
}

var createProjectCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		p, err := stores.Projects.CreateProject(cmd.Context(), args[0], flagString(cmd, "body"))
		if err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Project created: %s (%s)\n", p.Name, p.ID)
		return nil
	},
}

var listProjectsCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		list, err := stores.Projects.ListProjects(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list projects: %w", err)
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No projects found.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Name | Body | Created At | Changed At")
		fmt.Fprintln(cmd.OutOrStdout(), "------------------------------------------------------------")
		for _, p := range list {
			body := ""
			if p.Body != nil {
				body = *p.Body
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s | %s | %s | %s\n", p.Name, body, formatTime(p.CreatedAt), formatTime(p.ChangedAt))
		}
		return nil
	},
}

var updateProjectCmd = &cobra.Command{
	Use:   "update [name]",
	Short: "Rename a project or change its body",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clearBody, _ := cmd.Flags().GetBool("clear-body")

		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		p, err := stores.Projects.UpdateProject(cmd.Context(), args[0], projects.ProjectUpdate{
			Name:      flagString(cmd, "name"),
			Body:      flagString(cmd, "body"),
			ClearBody: clearBody,
		})
		if err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Project updated: %s\n", p.Name)
		return nil
	},
}

var deleteProjectCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a project",
	Long:  `Delete a project. Its items are kept and become unassigned.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := stores.Projects.DeleteProject(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Project %s deleted.\n", args[0])
		return nil
	},
}

var addToProjectCmd = &cobra.Command{
	Use:   "add [project] [item-id]",
	Short: "Assign an item to a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[1])
		if err != nil {
			return err
		}

		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := stores.Projects.AddItem(cmd.Context(), args[0], id); err != nil {
			return fmt.Errorf("failed to add item to project: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Item %d added to %s.\n", id, args[0])
		return nil
	},
}

var removeFromProjectCmd = &cobra.Command{
	Use:   "remove [project] [item-id]",
	Short: "Remove an item from a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[1])
		if err != nil {
			return err
		}

		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := stores.Projects.RemoveItem(cmd.Context(), args[0], id); err != nil {
			return fmt.Errorf("failed to remove item from project: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Item %d removed from %s.\n", id, args[0])
		return nil
	},
}

var projectItemsCmd = &cobra.Command{
	Use:   "items [project]",
	Short: "List the items of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		archived, _ := cmd.Flags().GetBool("archived")

		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		list, err := stores.Projects.Items(cmd.Context(), args[0], items.ListFilter{IncludeArchived: archived})
		if err != nil {
			return fmt.Errorf("failed to list project items: %w", err)
		}
		printItems(cmd.OutOrStdout(), list)
		return nil
	},
}

func initProjectsCmd() {
	createProjectCmd.Flags().String("body", "", "Description of the project")

	updateProjectCmd.Flags().String("name", "", "New name for the project")
	updateProjectCmd.Flags().String("body", "", "New body for the project")
	updateProjectCmd.Flags().Bool("clear-body", false, "Remove the body of the project")
	updateProjectCmd.MarkFlagsMutuallyExclusive("body", "clear-body")

	projectItemsCmd.Flags().Bool("archived", false, "Include archived items")

	projectsCmd.AddCommand(
		createProjectCmd,
		listProjectsCmd,
		updateProjectCmd,
		deleteProjectCmd,
		addToProjectCmd,
		removeFromProjectCmd,
		projectItemsCmd,
	)
}
