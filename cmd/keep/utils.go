package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/unowned-ai/keep/pkg/items"
	"github.com/unowned-ai/keep/pkg/projects"
)

// formatUnix converts a Unix timestamp (float64, seconds since epoch)
// to a human-readable string in RFC3339 format.
func formatUnix(timestamp float64) string {
	return formatTime(items.FromUnix(timestamp))
}

func formatTime(t time.Time) string {
	return t.Local().Format(time.RFC3339)
}

// parseID parses a positive item id.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item ID %q: must be a positive integer", s)
	}
	return id, nil
}

// flagString returns the flag value only when it was set on the command line.
func flagString(cmd *cobra.Command, name string) *string {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, _ := cmd.Flags().GetString(name)
	return &v
}

func printItem(w io.Writer, item items.Item, tags []string, project *projects.Project) {
	fmt.Fprintln(w, "Item Details:")
	fmt.Fprintf(w, "ID:          %d\n", item.ID)
	fmt.Fprintf(w, "Title:       %s\n", item.Title)
	fmt.Fprintf(w, "Archived:    %t\n", item.IsArchived)
	if len(tags) > 0 {
		fmt.Fprintf(w, "Tags:        %s\n", strings.Join(tags, ", "))
	}
	if project != nil {
		fmt.Fprintf(w, "Project:     %s\n", project.Name)
	}
	fmt.Fprintf(w, "Created At:  %s\n", formatTime(item.CreatedAt))
	fmt.Fprintf(w, "Changed At:  %s\n", formatTime(item.ChangedAt))
	if item.ArchivedStatusChangedAt != nil {
		fmt.Fprintf(w, "Archive Status Changed At: %s\n", formatTime(*item.ArchivedStatusChangedAt))
	}
	if item.Body != nil {
		fmt.Fprintln(w, "\nBody:")
		fmt.Fprintln(w, "------------------------------------------------------------")
		fmt.Fprintln(w, *item.Body)
		fmt.Fprintln(w, "------------------------------------------------------------")
	}
}

func printItems(w io.Writer, list []items.Item) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No items found.")
		return
	}
	fmt.Fprintln(w, "ID | Title | Archived | Created At | Changed At")
	fmt.Fprintln(w, "------------------------------------------------------------")
	for _, i := range list {
		fmt.Fprintf(w, "%d | %s | %t | %s | %s\n",
			i.ID, i.Title, i.IsArchived, formatTime(i.CreatedAt), formatTime(i.ChangedAt))
	}
}
