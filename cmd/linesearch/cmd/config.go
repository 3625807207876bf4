package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/linesearch/internal/config"
	"github.com/Aman-CERP/linesearch/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the linesearch configuration.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/linesearch/config.yaml)
  3. Project config (.linesearch.yaml) or --config
  4. Environment variables (LINESEARCH_*)
  5. Command flags`,
		Example: `  # Create the user config with defaults
  linesearch config init

  # Show the effective configuration
  linesearch config show

  # Undo the last 'config init --force'
  linesearch config restore`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force bool
		path  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the defaults",
		Long: `Write the default configuration to the user config file, or to
--path. An existing file is kept unless --force is given, in which case
it is backed up first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				path = config.GetUserConfigPath()
			}
			return runConfigInit(cmd, path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file (after a backup)")
	cmd.Flags().StringVar(&path, "path", "", "Write here instead of the user config path")

	return cmd
}

func runConfigInit(cmd *cobra.Command, path string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.Statusf("📁", "Location: %s", path)
			out.Status("💡", "Use --force to overwrite it (a backup is kept)")
			return nil
		}
		backup, err := config.Backup(path)
		if err != nil {
			return err
		}
		out.Statusf("💾", "Backup: %s", backup)
	}

	if err := config.NewConfig().WriteYAML(path); err != nil {
		return err
	}

	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", path)
	out.Status("📋", "Set corpus.path, then run 'linesearch serve'")
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, source)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, defaults")

	return cmd
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool, source string) error {
	var (
		cfg  *config.Config
		desc string
	)
	switch source {
	case "merged":
		var err error
		if cfg, err = loadConfig(); err != nil {
			return err
		}
		desc = "merged (defaults + user + project + env)"
	case "defaults":
		cfg = config.NewConfig()
		desc = "defaults"
	default:
		return fmt.Errorf("invalid source: %s (use: merged, defaults)", source)
	}

	if jsonOutput {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	out := output.New(cmd.OutOrStdout())
	out.Statusf("📋", "Configuration source: %s", desc)
	out.Newline()
	_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
	return err
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	var (
		path string
		list bool
	)

	cmd := &cobra.Command{
		Use:   "restore [backup]",
		Short: "Restore a configuration backup",
		Long: `Replace the configuration file with a backup, the newest by default.
The file being replaced is itself backed up.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = config.GetUserConfigPath()
			}
			out := output.New(cmd.OutOrStdout())

			backups, err := config.ListBackups(path)
			if err != nil {
				return err
			}
			if list {
				if len(backups) == 0 {
					out.Status("", "No backups")
				}
				for _, b := range backups {
					out.Status("", b)
				}
				return nil
			}

			var chosen string
			switch {
			case len(args) == 1:
				chosen = args[0]
			case len(backups) > 0:
				chosen = backups[0]
			default:
				return fmt.Errorf("no backups of %s", path)
			}

			if err := config.Restore(path, chosen); err != nil {
				return err
			}
			out.Successf("Restored %s", path)
			out.Statusf("💾", "From: %s", chosen)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Config file to restore (default: user config)")
	cmd.Flags().BoolVar(&list, "list", false, "List backups, newest first")

	return cmd
}
