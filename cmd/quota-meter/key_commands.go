package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/0xmhha/quota-meter/pkg/logger"
)

func newKeyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Session key management (set, check, path)",
		Long: `Manage the session key used by the web strategy.

The key is the value of the "sessionKey" cookie on claude.ai. A pasted
"sessionKey=..." pair or a quoted value is accepted.`,
	}

	cmd.AddCommand(
		newKeySetCmd(opts),
		newKeyCheckCmd(opts),
		newKeyPathCmd(opts),
	)
	return cmd
}

func newKeySetCmd(opts *rootOptions) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "set [key]",
		Short: "Store the session key",
		Long: `Store the session key, replacing any previous one.

With --stdin the key is read from standard input; when standard input is
a terminal the key is read without echo.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.loadApp()
			if err != nil {
				return err
			}

			var raw string
			switch {
			case len(args) == 1 && fromStdin:
				return fmt.Errorf("%w: pass the key as an argument or with --stdin, not both", errUsage)
			case len(args) == 1:
				raw = args[0]
			case fromStdin:
				raw, err = readKey(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("%w: a key argument or --stdin is required", errUsage)
			}

			result := a.service.SaveCredential(raw)
			if !result.Success {
				return errors.New(result.Error)
			}

			a.log.Debug("session key stored", "key", logger.Mask(strings.TrimSpace(raw)))
			fmt.Fprintf(cmd.OutOrStdout(), "Session key saved to %s\n", a.creds.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the key from standard input")
	return cmd
}

// readKey reads one line from in, without echo when in is a terminal.
func readKey(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(interface{ Fd() uintptr }); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Session key: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read key: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return line, nil
}

func newKeyCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report whether a usable session key is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.loadApp()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.service.CheckCredential() {
				fmt.Fprintf(out, "Session key: found (%s)\n", a.creds.Path())
				return nil
			}

			fmt.Fprintf(out, "Session key: not found or invalid (%s)\n", a.creds.Path())
			_, loadErr := a.creds.Load()
			return loadErr
		},
	}
}

func newKeyPathCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the session key file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.loadApp()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.creds.Path())
			return nil
		},
	}
}
