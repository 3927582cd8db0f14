package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/works-s/postsmith/internal/catalog"
	"github.com/works-s/postsmith/internal/domain"
	"github.com/works-s/postsmith/internal/prompt"
	"github.com/works-s/postsmith/internal/service"
)

const excerptRunes = 30

func newHistoryCmd(withApp appRunner) *cobra.Command {
	var (
		q   service.HistoryQuery
		all bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved generations, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			items, err := a.history.List(cmd.Context(), q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, dimStyle.Render("履歴はありません"))
				return nil
			}
			if all {
				for _, it := range items {
					printItem(out, it)
					fmt.Fprintln(out)
				}
				return nil
			}
			renderTable(out, []string{"ID", "日時", "季節", "目的", "トーン", "投稿1"}, historyRows(items))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&q.Q, "query", "q", "", "Text to search for in posts and hashtags")
	cmd.Flags().StringVar(&q.Season, "season", "", "Only this season")
	cmd.Flags().StringVar(&q.Purpose, "purpose", "", "Only this purpose")
	cmd.Flags().StringVar(&q.Tone, "tone", "", "Only this tone")
	cmd.Flags().BoolVar(&all, "full", false, "Print every post instead of a table")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print one history item",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			item, err := a.history.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			printItem(cmd.OutOrStdout(), item)
			return nil
		}),
	})

	return cmd
}

func historyRows(items []domain.HistoryItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		first := ""
		if len(it.Posts) > 0 {
			first = strings.ReplaceAll(prompt.Excerpt(it.Posts[0].Text, excerptRunes), "\n", " ")
		}
		rows = append(rows, []string{
			strconv.FormatInt(it.ID, 10),
			it.Date.Local().Format("2006-01-02 15:04"),
			catalog.Label(catalog.KindSeason, it.Season),
			catalog.Label(catalog.KindPurpose, it.Purpose),
			catalog.Label(catalog.KindTone, it.Tone),
			first,
		})
	}
	return rows
}

func newAnalyticsCmd(withApp appRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Count history items per season, purpose and tone",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			stats, err := a.history.Analytics(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			heading(out, fmt.Sprintf("生成回数: %d", stats.Total))
			renderTable(out, []string{"季節", "件数"}, countRows(catalog.Seasons(), stats.BySeason))
			renderTable(out, []string{"目的", "件数"}, countRows(catalog.Purposes(), stats.ByPurpose))
			renderTable(out, []string{"トーン", "件数"}, countRows(catalog.Tones(), stats.ByTone))
			return nil
		}),
	}
}

// countRows lists every catalog entry, including those with no items.
func countRows(entries []catalog.Entry, counts map[string]int) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Label, strconv.Itoa(counts[e.ID])})
	}
	return rows
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
