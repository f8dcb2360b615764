package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/halcyard/webwrap/internal/allowlist"
	"github.com/halcyard/webwrap/internal/config"
	"github.com/halcyard/webwrap/internal/shell"
	"github.com/halcyard/webwrap/internal/storage"
	"github.com/halcyard/webwrap/internal/webview"
)

//nolint:gochecknoglobals // Cobra requires package-level vars for flag bindings in current structure.
var (
	// Version metadata populated at build time via -ldflags.
	releaseVersion = "dev"
	commit         = "none"
	date           = "unknown"

	// Used for flags.
	configPath string
	verbose    bool
	resume     bool
	probeURL   string

	rootCmd = &cobra.Command{
		Use:   "webwrap",
		Short: "A single-screen terminal shell that wraps one fixed website.",
		Long: `webwrap presents one website inside an embedded text viewer: a single
screen with a loading-progress bar, an offline fallback with automatic
reconnect, a refresh gesture, and history-first back navigation where a
double press of esc exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			st, err := storage.NewOrExistingStorage(cfg.Storage.Path)
			if err != nil {
				return fmt.Errorf("open state file: %w", err)
			}

			return shell.Run(cmd.Context(), cfg, st, resume)
		},
	}
)

//nolint:gochecknoinits // Cobra command wiring performed in init in current structure.
func init() {
	// Route logs to stderr; stdout belongs to the screen.
	logrus.SetOutput(os.Stderr)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable detailed logging output")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "Start at the last visited address instead of the target")
	rootCmd.Flags().StringVar(&probeURL, "offline-probe", "", "Override the reachability probe address")

	allowCmd.AddCommand(allowAddCmd)
	allowCmd.AddCommand(allowListCmd)
	allowCmd.AddCommand(allowRemoveCmd)
	rootCmd.AddCommand(allowCmd)

	cacheClearCmd.Flags().Bool("expired", false, "Remove only entries past the max age")
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	rootCmd.AddCommand(cacheCmd)

	// Built-in version flag: set version string and a custom template.
	rootCmd.Version = releaseVersion
	rootCmd.Annotations = map[string]string{"commit": commit, "date": date}
	rootCmd.SetVersionTemplate("{{printf \"%s %s\\ncommit: %s\\ndate: %s\\n\" .DisplayName .Version (index .Annotations \"commit\") (index .Annotations \"date\")}}")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

// loadConfig loads configuration and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if probeURL != "" {
		cfg.Netwatch.ProbeURL = probeURL
	}
	return cfg, nil
}

//nolint:gochecknoglobals // Cobra command is defined at package scope in current structure.
var allowCmd = &cobra.Command{
	Use:   "allow",
	Short: "Manage the navigation allowlist",
	Long:  "View, add, or remove hosts the viewer may navigate to beyond the target host. A leading '*.' covers the whole subdomain tree.",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := newKeeper()
		if err != nil {
			return err
		}
		k.View(os.Stdout)
		return nil
	},
}

//nolint:gochecknoglobals // Cobra command is defined at package scope in current structure.
var allowAddCmd = &cobra.Command{
	Use:   "add [HOST]",
	Short: "Add a host to the navigation allowlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := newKeeper()
		if err != nil {
			return err
		}
		return k.Add(args[0])
	},
}

//nolint:gochecknoglobals // Cobra command is defined at package scope in current structure.
var allowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the allowed hosts",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := newKeeper()
		if err != nil {
			return err
		}
		k.View(os.Stdout)
		return nil
	},
}

//nolint:gochecknoglobals // Cobra command is defined at package scope in current structure.
var allowRemoveCmd = &cobra.Command{
	Use:   "remove [HOST]",
	Short: "Remove a host from the navigation allowlist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := newKeeper()
		if err != nil {
			return err
		}
		return k.Remove(args[0])
	},
}

func newKeeper() (*allowlist.Keeper, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return allowlist.NewKeeper(cfg.Storage.Path)
}

//nolint:gochecknoglobals // Cobra command is defined at package scope in current structure.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the page cache",
}

//nolint:gochecknoglobals // Cobra command is defined at package scope in current structure.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached pages",
	Long:  "Remove all cached pages, or only expired ones with --expired.",
	RunE: func(cmd *cobra.Command, args []string) error {
		expiredOnly, err := cmd.Flags().GetBool("expired")
		if err != nil {
			return err
		}
		cache, err := newCache()
		if err != nil {
			return err
		}
		removed, err := cache.Sweep(expiredOnly)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Removed %d cached page(s)\n", removed)
		return nil
	},
}

//nolint:gochecknoglobals // Cobra command is defined at package scope in current structure.
var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show page cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := newCache()
		if err != nil {
			return err
		}
		stats, err := cache.Stats()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Entries:  %d\n", stats.Entries)
		fmt.Fprintf(os.Stdout, "Expired:  %d\n", stats.Expired)
		fmt.Fprintf(os.Stdout, "Size:     %d bytes\n", stats.TotalBytes)
		fmt.Fprintf(os.Stdout, "Location: %s\n", cache.Dir())
		return nil
	},
}

func newCache() (*webview.Cache, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return webview.NewCache(cfg.Viewer.CacheDir, cfg.Viewer.CacheMaxAge), nil
}

func main() {
	Execute()
}
