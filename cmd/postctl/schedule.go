package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/works-s/postsmith/internal/domain"
	"github.com/works-s/postsmith/internal/hashtag"
	"github.com/works-s/postsmith/internal/service"
)

func newScheduleCmd(withApp appRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage the posting schedule",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List scheduled posts in date and time order",
			Args:  cobra.NoArgs,
			RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
				items, err := a.schedule.List(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, dimStyle.Render("予定はありません"))
					return nil
				}
				renderTable(out, []string{"ID", "日付", "時刻", "投稿", "ハッシュタグ"}, scheduleRows(items))
				return nil
			}),
		},
		newScheduleAddCmd(withApp),
		&cobra.Command{
			Use:     "rm <id>",
			Aliases: []string{"remove"},
			Short:   "Remove a scheduled post",
			Args:    cobra.ExactArgs(1),
			RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := a.schedule.Remove(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d\n", id)
				return nil
			}),
		},
		newScheduleExportCmd(withApp),
	)

	return cmd
}

func newScheduleAddCmd(withApp appRunner) *cobra.Command {
	var (
		in          service.ScheduleInput
		fromHistory int64
		index       int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Schedule a post for a date and time",
		Long: `Schedule a post. Give the text with --post, or pick a post from a saved
generation with --from-history and --index; that post keeps the generation's
hashtags and categories.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			ctx := cmd.Context()

			if fromHistory != 0 {
				item, err := a.history.Get(ctx, fromHistory)
				if err != nil {
					return err
				}
				if index < 0 || index >= len(item.Posts) {
					return fmt.Errorf("--index %d is out of range (0-%d)", index, len(item.Posts)-1)
				}
				in.Post = item.Posts[index].Text
				in.Hashtags = item.Hashtags
				in.Season, in.Purpose, in.Tone = item.Season, item.Purpose, item.Tone
			}

			sp, err := a.schedule.Add(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scheduled %d for %s %s\n", sp.ID, sp.Date, sp.Time)
			return nil
		}),
	}

	f := cmd.Flags()
	f.StringVar(&in.Post, "post", "", "Post text")
	f.StringVar(&in.Date, "date", "", "Date as YYYY-MM-DD")
	f.StringVar(&in.Time, "time", "", "Time as HH:MM")
	f.StringSliceVar(&in.Hashtags, "hashtag", nil, "Hashtag to attach (repeatable)")
	f.Int64Var(&fromHistory, "from-history", 0, "History id to take the post from")
	f.IntVar(&index, "index", 0, "Zero-based post index within --from-history")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("time")
	cmd.MarkFlagsMutuallyExclusive("post", "from-history")
	return cmd
}

func newScheduleExportCmd(withApp appRunner) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the schedule to an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			artifact, err := a.workspace.ExportSchedule(cmd.Context())
			if err != nil {
				return err
			}
			return writeArtifact(cmd, artifact, out)
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default: the generated file name)")
	return cmd
}

func scheduleRows(items []domain.ScheduledPost) [][]string {
	rows := make([][]string, 0, len(items))
	for _, sp := range items {
		rows = append(rows, []string{
			strconv.FormatInt(sp.ID, 10),
			sp.Date,
			sp.Time,
			sp.Post,
			hashtag.Line(sp.Hashtags),
		})
	}
	return rows
}

// writeArtifact saves a rendered file and reports where it went.
func writeArtifact(cmd *cobra.Command, a service.Artifact, path string) error {
	if path == "" {
		path = a.Filename
	}
	if path == "-" {
		_, err := cmd.OutOrStdout().Write(a.Data)
		return err
	}
	if err := os.WriteFile(path, a.Data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(a.Data))
	return nil
}
