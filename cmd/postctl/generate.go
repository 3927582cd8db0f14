package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/works-s/postsmith/internal/domain"
	"github.com/works-s/postsmith/internal/hashtag"
)

func newGenerateCmd(withApp appRunner) *cobra.Command {
	var (
		sel    selectionFlags
		apiKey string
		image  int
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate three posts and save them to history",
		Long: `Generate three post variants for the selection, save them to history and
print them. The API key comes from --api-key, the saved key, or
ANTHROPIC_API_KEY, in that order.`,
		Args: cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			ctx := cmd.Context()

			key, _, err := a.vault.Resolve(ctx, apiKey)
			if err != nil {
				return err
			}

			item, err := a.generation.Generate(ctx, key, sel.selection(time.Now()))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printItem(out, item)

			if image >= 0 {
				if image >= len(item.Posts) {
					return fmt.Errorf("--image-for %d is out of range (0-%d)", image, len(item.Posts)-1)
				}
				text, err := a.generation.ImagePrompt(ctx, key, item.Posts[image].Text)
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				heading(out, fmt.Sprintf("画像プロンプト (パターン %d)", image+1))
				fmt.Fprintln(out, text)
				fmt.Fprintln(out, dimStyle.Render(domain.ImagePromptNote))
			}
			return nil
		}),
	}
	sel.bind(cmd)
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for this run only (not saved)")
	cmd.Flags().IntVar(&image, "image-for", -1, "Also build an image prompt for this zero-based post index")
	return cmd
}

// printItem writes every post of a history item with its length and the hashtag line.
func printItem(w io.Writer, item domain.HistoryItem) {
	heading(w, fmt.Sprintf("履歴 #%d  %s / %s / %s", item.ID, item.Season, item.Purpose, item.Tone))
	for i, p := range item.Posts {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "%s  %s\n", headingStyle.Render(fmt.Sprintf("【パターン %d】", i+1)), lengthBadge(p))
		fmt.Fprintln(w, p.Text)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, hashtag.Line(item.Hashtags))
}
