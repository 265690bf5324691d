package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/0xmhha/hikelog/pkg/config"
)

// newConfigCmd creates the config command group.
func newConfigCmd(opts *globalOptions) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long:  "Display the effective configuration. Use --format json for JSON; YAML otherwise.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.format == "json" {
				data, err := json.MarshalIndent(cfg, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal config: %w", err)
				}
				_, _ = fmt.Fprintln(out, string(data))
				return nil
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}

			_, _ = fmt.Fprintln(out, "# Current Configuration")
			_, _ = fmt.Fprintln(out, "# Source:", configSource(opts))
			_, _ = fmt.Fprintln(out)
			_, _ = fmt.Fprint(out, string(data))
			return nil
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, "Configuration file search paths (in order of precedence):")
			_, _ = fmt.Fprintln(out)

			for i, p := range configSearchPaths() {
				exists := "not found"
				if _, err := os.Stat(p); err == nil {
					exists = "found"
				}
				_, _ = fmt.Fprintf(out, "  %d. %s [%s]\n", i+1, p, exists)
			}

			_, _ = fmt.Fprintln(out)
			_, _ = fmt.Fprintln(out, "Active configuration:", configSource(opts))
			return nil
		},
	}

	var force bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Reset the configuration file to defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := configTarget(opts)

			if _, err := os.Stat(target); err == nil && !force {
				prompt := fmt.Sprintf("Configuration file already exists at %s. Overwrite?", target)
				if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Reset cancelled.")
					return nil
				}
			}

			if err := config.Save(config.Default(), target); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration reset to defaults at: %s\n", target)
			return nil
		},
	}
	reset.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompt")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file if none exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := configTarget(opts)

			if _, err := os.Stat(target); err == nil {
				return fmt.Errorf("configuration file already exists at %s (use config reset to overwrite)", target)
			}

			if err := config.Save(config.Default(), target); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to: %s\n", target)
			return nil
		},
	}

	cfgCmd.AddCommand(show, path, reset, initCmd)
	return cfgCmd
}

// configSearchPaths lists the files config.Load looks for.
func configSearchPaths() []string {
	return []string{
		"./config.yaml",
		config.DefaultConfigPath(),
	}
}

// configTarget is the file reset and init write to.
func configTarget(opts *globalOptions) string {
	if opts.configPath != "" {
		return opts.configPath
	}
	return config.DefaultConfigPath()
}

// configSource returns the path of the active configuration file.
func configSource(opts *globalOptions) string {
	if opts.configPath != "" {
		return opts.configPath
	}

	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return "defaults (no config file found)"
}
