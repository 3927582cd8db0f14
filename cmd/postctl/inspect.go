package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/works-s/postsmith/internal/store"
)

func newInspectCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show what the record store holds",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			heading(out, "=== Store Inspection ===")
			fmt.Fprintf(out, "backend: %s\ndata path: %s\n", a.cfg.Store.Backend, a.cfg.Data.BasePath)

			if err := a.blobs.Ping(ctx); err != nil {
				return fmt.Errorf("store unreachable: %w", err)
			}

			stamper, _ := a.blobs.(store.Stamper)
			rows := make([][]string, 0, 3)
			for _, key := range []string{store.KeyHistory, store.KeySchedule, store.KeyCredential} {
				raw, ok, err := a.blobs.Get(ctx, key)
				if err != nil {
					return err
				}
				size, updated := "-", "-"
				if ok {
					size = strconv.Itoa(len(raw))
				}
				if stamper != nil {
					if at, found, err := stamper.UpdatedAt(ctx, key); err == nil && found {
						updated = at.Local().Format("2006-01-02 15:04:05")
					}
				}
				rows = append(rows, []string{key, size, updated})
			}
			renderTable(out, []string{"key", "bytes", "updated"}, rows)

			history, schedule, err := a.records.Counts(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "history items: %d\nscheduled posts: %d\n", history, schedule)

			status, err := a.vault.Status(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(out, "credential: ")
			printStatus(out, status)
			return nil
		}),
	}
}
