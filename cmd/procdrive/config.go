// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/procdrive/procdrive/internal/config"

	"github.com/spf13/cobra"
)

const (
	formatText = "text"
	formatCUE  = "cue"
	formatTOML = "toml"
)

// newConfigCommand creates the `procdrive config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage procdrive configuration",
		Long: `Manage procdrive configuration.

Configuration is stored in:
  - Linux: ~/.config/procdrive/config.cue
  - macOS: ~/Library/Application Support/procdrive/config.cue
  - Windows: %APPDATA%\procdrive\config.cue

Every key can be overridden with a PROCDRIVE_* environment variable,
e.g. PROCDRIVE_LAUNCHER=pty or PROCDRIVE_PROCESS_DISABLE_COLORS=true.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(app.stdout, app.cfg, app.cfgPath, format)
		},
	}
	showCmd.Flags().StringVar(&format, "format", formatText, "output format (text, cue, toml)")
	cfgCmd.AddCommand(showCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("Configuration file:"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigFilePath()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, path)
			return nil
		},
	})

	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config, source, format string) error {
	switch format {
	case formatCUE:
		fmt.Fprint(w, config.GenerateCUE(cfg))
		return nil
	case formatTOML:
		out, err := config.ExportTOML(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(w, out)
		return nil
	case formatText:
	default:
		return fmt.Errorf("unknown format %q (valid: text, cue, toml)", format)
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	value := func(key string, v any) {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render(key), valueStyle.Render(fmt.Sprint(v)))
	}

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)
	if source != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), source)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	value("launcher", cfg.Launcher)
	value("log_level", cfg.LogLevel)
	value("timeout", cfg.Timeout)
	value("process.inherit_env", cfg.Process.InheritEnv)
	value("process.disable_colors", cfg.Process.DisableColors)
	value("process.spawn_on_host", cfg.Process.SpawnOnHost)
	value("output.prefix_program_name", cfg.Output.PrefixProgramName)
	value("output.quiet", cfg.Output.Quiet)
	value("ui.color_scheme", cfg.UI.ColorScheme)
	value("ui.verbose", cfg.UI.Verbose)
	return nil
}
