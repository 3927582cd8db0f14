package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/works-s/postsmith/internal/credential"
)

func newCredentialCmd(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Save, clear or check the Anthropic API key",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set",
			Short: "Save an API key read from stdin",
			Long: `Save an API key. The key is read from the first line of stdin so it
stays out of shell history:

  postctl credential set < key.txt`,
			Args: cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				key, err := readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
				status, err := a.vault.Save(cmd.Context(), key)
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), status)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete the saved API key",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				status, err := a.vault.Clear(cmd.Context())
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), status)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show which API key would be used",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				status, err := a.vault.Status(cmd.Context())
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), status)
				return nil
			}),
		},
	)

	return cmd
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// printStatus shows the fingerprint only, never the key.
func printStatus(w io.Writer, s credential.Status) {
	if !s.Configured {
		fmt.Fprintln(w, "not configured")
		return
	}
	fmt.Fprintf(w, "configured (%s) fingerprint %s\n", s.Source, s.Fingerprint)
}
