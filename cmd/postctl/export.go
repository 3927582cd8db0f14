package main

import (
	"github.com/spf13/cobra"

	"github.com/works-s/postsmith/internal/export"
)

func newExportCmd(withApp appRunner) *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export <history-id>",
		Short: "Write a saved generation to a text file or Excel workbook",
		Long: `Write a saved generation to a file. The text format matches what the
browser app exported: one 【パターン N】 section per post with the
recommended hashtags and character count. Use --out - for stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			artifact, err := a.history.Export(cmd.Context(), id, f)
			if err != nil {
				return err
			}
			return writeArtifact(cmd, artifact, out)
		}),
	}
	cmd.Flags().StringVarP(&format, "format", "f", "txt", "File format: txt or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output path (default: the generated file name)")
	return cmd
}
