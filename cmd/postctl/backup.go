package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/works-s/postsmith/internal/backup"
)

func newBackupCmd(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive, validate and restore history and schedule",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create",
			Short: "Write a new backup archive",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				res, err := a.backups.Create(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				heading(out, res.ID)
				fmt.Fprintf(out, "path:     %s\n", res.Path)
				fmt.Fprintf(out, "records:  %d history, %d scheduled\n", res.Counts.History, res.Counts.Schedule)
				fmt.Fprintf(out, "checksum: %s\n", dimStyle.Render(res.Checksum))
				return nil
			}),
		},
		&cobra.Command{
			Use:     "list",
			Aliases: []string{"ls"},
			Short:   "List backups, newest first",
			Args:    cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				items, err := a.backups.List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, dimStyle.Render("バックアップはありません"))
					return nil
				}
				rows := make([][]string, len(items))
				for i, b := range items {
					rows[i] = []string{b.ID, b.CreatedAt.Local().Format("2006-01-02 15:04"), strconv.FormatInt(b.Size, 10)}
				}
				renderTable(out, []string{"ID", "作成日時", "バイト"}, rows)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "validate <id|path>",
			Short: "Check a backup's manifest and checksums",
			Args:  cobra.ExactArgs(1),
			RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
				path, err := resolveBackup(cmd, a, args[0])
				if err != nil {
					return err
				}
				res, err := a.restores.Validate(cmd.Context(), path)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, w := range res.Warnings {
					fmt.Fprintln(out, warnStyle.Render("warning: "+w))
				}
				for _, e := range res.Errors {
					fmt.Fprintln(out, errorStyle.Render("error: "+e))
				}
				if !res.Valid {
					return fmt.Errorf("%s is not a usable backup", path)
				}
				fmt.Fprintf(out, "ok: %d history, %d scheduled\n", res.ExpectedCounts.History, res.ExpectedCounts.Schedule)
				return nil
			}),
		},
		newBackupRestoreCmd(withApp),
		newBackupImportCmd(withApp),
		&cobra.Command{
			Use:     "rm <id>",
			Aliases: []string{"delete"},
			Short:   "Delete a backup",
			Args:    cobra.ExactArgs(1),
			RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
				if err := a.backups.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
				return nil
			}),
		},
	)

	return cmd
}

// restoreFlags are shared by restore and import.
type restoreFlags struct {
	mode   string
	dryRun bool
	force  bool
}

func (f *restoreFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mode, "mode", string(backup.RestoreModeMerge), "full replaces everything, merge keeps existing records")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Read and count without writing")
	cmd.Flags().BoolVar(&f.force, "force", false, "Required with --mode full")
}

func (f *restoreFlags) options() (backup.RestoreOptions, error) {
	opts := backup.RestoreOptions{Mode: backup.RestoreMode(f.mode), DryRun: f.dryRun}
	if !opts.Mode.Valid() {
		return opts, fmt.Errorf("unknown mode %q (want full or merge)", f.mode)
	}
	if opts.Mode == backup.RestoreModeFull && !opts.DryRun && !f.force {
		return opts, errors.New("--mode full replaces all history and schedule; add --force")
	}
	return opts, nil
}

func newBackupRestoreCmd(withApp appRunner) *cobra.Command {
	var flags restoreFlags

	cmd := &cobra.Command{
		Use:   "restore <id|path>",
		Short: "Restore history and schedule from a backup",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			path, err := resolveBackup(cmd, a, args[0])
			if err != nil {
				return err
			}
			res, err := a.restores.Restore(cmd.Context(), path, opts)
			if err != nil {
				return err
			}
			printRestore(cmd.OutOrStdout(), res)
			return nil
		}),
	}
	flags.bind(cmd)
	return cmd
}

func newBackupImportCmd(withApp appRunner) *cobra.Command {
	var flags restoreFlags

	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Import history and schedule saved by the browser app",
		Long: `Import a JSON dump of the browser app's localStorage, for example the
output of JSON.stringify(localStorage) in the developer console. Only
cleaningPostHistory and scheduledPosts are read; a saved API key is ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			res, err := a.restores.ImportBrowser(cmd.Context(), r, opts)
			if err != nil {
				return err
			}
			printRestore(cmd.OutOrStdout(), res)
			return nil
		}),
	}
	flags.bind(cmd)
	return cmd
}

// resolveBackup accepts a backup id or a path to an archive.
func resolveBackup(cmd *cobra.Command, a *app, arg string) (string, error) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return arg, nil
	}
	b, err := a.backups.Get(cmd.Context(), arg)
	if err != nil {
		return "", fmt.Errorf("%s: %w", arg, err)
	}
	return b.Path, nil
}

func printRestore(w io.Writer, res *backup.RestoreResult) {
	if res.DryRun {
		heading(w, "dry run")
	}
	renderTable(w, []string{"", "履歴", "予定"}, [][]string{
		{"read", strconv.Itoa(res.Read.History), strconv.Itoa(res.Read.Schedule)},
		{"skipped", strconv.Itoa(res.Skipped.History), strconv.Itoa(res.Skipped.Schedule)},
		{"total", strconv.Itoa(res.Total.History), strconv.Itoa(res.Total.Schedule)},
	})
	for _, e := range res.Errors {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("%s line %d: %s", e.Entry, e.Line, e.Error)))
	}
}
