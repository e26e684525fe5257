//go:build tui

package main

import (
	"github.com/spf13/cobra"

	"github.com/unowned-ai/keep/pkg/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Show terminal UI",
	Long:  `Display an interactive terminal UI for browsing projects and items.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		return tui.ShowTUI(stores, "")
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
