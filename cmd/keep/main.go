package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	keep "github.com/unowned-ai/keep/pkg"
	"github.com/unowned-ai/keep/pkg/config"
	pkgdb "github.com/unowned-ai/keep/pkg/db"
	"github.com/unowned-ai/keep/pkg/items"
	"github.com/unowned-ai/keep/pkg/utils"
)

var (
	dbPath     string
	configPath string
	walMode    bool
	syncMode   string
	driverName string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "keep",
	Short:         "A small SQLite store for items, tags and projects.",
	Version:       fmt.Sprintf("v%s", keep.Version),
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var completionShells = []string{"bash", "zsh", "fish", "powershell"}

var completionCmd = &cobra.Command{
	Use:   fmt.Sprintf("completion %s", strings.Join(completionShells, "|")),
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for keep.

The command prints a completion script to stdout. You can source it in your shell
or install it to the appropriate location for your shell to enable completions permanently.

Examples:

  Bash (current shell):
    $ source <(keep completion bash)

  Zsh:
    $ keep completion zsh > "${fpath[1]}/_keep"

  Fish:
    $ keep completion fish > ~/.config/fish/completions/keep.fish

  PowerShell:
    PS> keep completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             completionShells,
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(cmd.OutOrStdout())
		case "zsh":
			return rootCmd.GenZshCompletion(cmd.OutOrStdout())
		case "fish":
			return rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(cmd.OutOrStdout())
		default:
			return fmt.Errorf("unsupported shell: %s", args[0])
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of keep",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), keep.Version)
	},
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the keep database",
}

var dbUpgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Install or verify every component schema",
	Long: `Opens the database, installs missing component schemas (items, tags, projects)
and verifies the versions of the installed ones. A version mismatch is reported as an error;
migrations between versions are not performed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		versions, err := pkgdb.ListComponentVersions(cmd.Context(), stores.DB)
		if err != nil {
			return fmt.Errorf("failed to list component versions: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Component | Version | Installed At")
		fmt.Fprintln(cmd.OutOrStdout(), "------------------------------------------------------------")
		for _, v := range versions {
			fmt.Fprintf(cmd.OutOrStdout(), "%s | %d | %s\n", v.Component, v.Version, formatUnix(v.CreatedAt))
		}
		return nil
	},
}

var dbCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report rows that violate foreign keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		stores, closeFn, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		violations, err := stores.Items.CheckIntegrity(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to check integrity: %w", err)
		}
		if len(violations) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No foreign key violations found.")
			return nil
		}
		for _, v := range violations {
			fmt.Fprintf(cmd.OutOrStdout(), "%s rowid=%d references missing %s (fk %d)\n",
				v.Table, v.RowID.Int64, v.Parent, v.FKID)
		}
		return fmt.Errorf("%d foreign key violation(s)", len(violations))
	},
}

// loadConfig reads the config file and lets explicitly set flags win over it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database.Path = dbPath
	}
	if flags.Changed("wal") {
		cfg.Database.WAL = walMode
	}
	if flags.Changed("sync") {
		cfg.Database.Sync = syncMode
	}
	if flags.Changed("driver") {
		cfg.Database.Driver = driverName
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	return cfg, cfg.Validate()
}

// openStores opens the configured database and registers all extensions.
// The returned function checkpoints and closes the connection.
func openStores(cmd *cobra.Command) (*keep.Stores, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.Log.NewLogger(os.Stderr)

	path, err := utils.ResolveAndEnsureDBPath(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}

	conn, err := pkgdb.OpenDBConnection(path, cfg.Database.Options())
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("database opened", "path", path, "driver", cfg.Database.Driver, "wal", cfg.Database.WAL)

	stores, err := keep.Open(cmd.Context(), conn,
		items.WithLogger(logger),
		items.WithMaxRetries(cfg.Database.MaxRetries),
	)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return stores, func() {
		if err := pkgdb.Close(conn, logger); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}, nil
}

func initCmd() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the database file (uses a system-specific default if not provided)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&walMode, "wal", true, "Enable SQLite WAL (Write-Ahead Logging) mode")
	rootCmd.PersistentFlags().StringVar(&syncMode, "sync", "NORMAL", "SQLite synchronous pragma (OFF, NORMAL, FULL, EXTRA)")
	rootCmd.PersistentFlags().StringVar(&driverName, "driver", pkgdb.DriverCGO, "SQLite driver: sqlite3 (cgo) or sqlite (pure Go)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	dbCmd.AddCommand(dbUpgradeCmd, dbCheckCmd)

	initItemsCmd()
	initTagsCmd()
	initProjectsCmd()
	rootCmd.AddCommand(completionCmd, versionCmd, dbCmd, itemsCmd, tagsCmd, taggedCmd, projectsCmd, mcpCmd)
}

func main() {
	initCmd()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
