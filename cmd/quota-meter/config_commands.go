package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xmhha/quota-meter/pkg/config"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management (show, path, init)",
	}

	cmd.AddCommand(
		newConfigShowCmd(opts),
		newConfigPathCmd(opts),
		newConfigInitCmd(opts),
	)
	return cmd
}

func newConfigShowCmd(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				data, err := json.MarshalIndent(cfg, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal config: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			case "yaml", "":
				data, err := config.Marshal(cfg)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "# Current Configuration")
				fmt.Fprintln(out, "# Source:", configSource(opts.configPath))
				fmt.Fprintln(out)
				fmt.Fprint(out, string(data))
				return nil
			default:
				return fmt.Errorf("%w: unknown format %q (yaml, json)", errUsage, format)
			}
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "output format (yaml, json)")
	return cmd
}

func newConfigPathCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file search paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Configuration file search paths (in order of precedence):")
			fmt.Fprintln(out)
			for i, p := range configCandidates(opts.configPath) {
				status := "not found"
				if _, err := os.Stat(p); err == nil {
					status = "found"
				}
				fmt.Fprintf(out, "  %d. %s [%s]\n", i+1, p, status)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Active configuration:", configSource(opts.configPath))
			return nil
		},
	}
}

func newConfigInitCmd(opts *rootOptions) *cobra.Command {
	var (
		force  bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := output
			if path == "" {
				path = opts.configPath
			}
			if path == "" {
				path = config.DefaultConfigPath()
			}

			out := cmd.OutOrStdout()
			if _, err := os.Stat(path); err == nil && !force {
				fmt.Fprintf(out, "Configuration file already exists at: %s\n", path)
				if !confirm(cmd.InOrStdin(), out, "Overwrite? [y/N]: ") {
					fmt.Fprintln(out, "Init cancelled.")
					return nil
				}
			}

			if err := config.Save(config.Default(), path); err != nil {
				return err
			}

			fmt.Fprintf(out, "Default configuration written to: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite without confirmation")
	cmd.Flags().StringVar(&output, "output", "", "output path (default: ~/.config/quota-meter/config.yaml)")
	return cmd
}

// configCandidates lists the files Load considers, in order.
func configCandidates(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	return []string{"./config.yaml", config.DefaultConfigPath()}
}

// configSource returns the path of the active configuration file.
func configSource(explicit string) string {
	if p := config.NewLoader(explicit).Path(); p != "" {
		return p
	}
	return "defaults (no config file found)"
}

// confirm prompts on out and reports whether the answer read from in is yes.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
