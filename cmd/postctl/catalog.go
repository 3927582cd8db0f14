package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/works-s/postsmith/internal/catalog"
	"github.com/works-s/postsmith/internal/config"
	"github.com/works-s/postsmith/internal/domain"
	"github.com/works-s/postsmith/internal/hashtag"
	"github.com/works-s/postsmith/internal/prompt"
)

// selectionFlags binds --season, --purpose and --tone.
type selectionFlags struct {
	season  string
	purpose string
	tone    string
}

func (f *selectionFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.season, "season", "", "Season: spring, summer, autumn, winter (default: current season)")
	cmd.Flags().StringVar(&f.purpose, "purpose", "", "Purpose: booking, trust, local, value, service")
	cmd.Flags().StringVar(&f.tone, "tone", "", "Tone: family, local, professional, gratitude")
}

func (f *selectionFlags) selection(now time.Time) domain.Selection {
	season := f.season
	if season == "" {
		season = catalog.CurrentSeason(now)
	}
	return domain.Selection{Season: season, Purpose: f.purpose, Tone: f.tone}
}

func checkID(kind catalog.Kind, id string) error {
	if id == "" {
		return nil
	}
	if _, ok := catalog.Lookup(kind, id); !ok {
		return fmt.Errorf("unknown %s %q (choose from %v)", kind, id, catalog.IDs(kind))
	}
	return nil
}

func newHashtagsCmd() *cobra.Command {
	var sel selectionFlags

	cmd := &cobra.Command{
		Use:   "hashtags",
		Short: "Print the recommended hashtags for a season and purpose",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := sel.selection(time.Now())
			if err := checkID(catalog.KindSeason, s.Season); err != nil {
				return err
			}
			if err := checkID(catalog.KindPurpose, s.Purpose); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hashtag.Line(hashtag.Derive(s.Season, s.Purpose)))
			return nil
		},
	}
	sel.bind(cmd)
	return cmd
}

func newPromptCmd(opts *globalOptions) *cobra.Command {
	var (
		sel   selectionFlags
		image string
	)

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the prompts that would be sent for a selection",
		Long: `Print the system and user prompts for a selection, or with --image the
image prompt request for a post text. Nothing is sent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if image != "" {
				fmt.Fprintln(out, prompt.ImagePrompt(image))
				return nil
			}

			s := sel.selection(time.Now())
			for kind, id := range map[catalog.Kind]string{
				catalog.KindSeason:  s.Season,
				catalog.KindPurpose: s.Purpose,
				catalog.KindTone:    s.Tone,
			} {
				if err := checkID(kind, id); err != nil {
					return err
				}
			}
			if !s.Complete() {
				return fmt.Errorf("--purpose and --tone are required")
			}

			cfg, err := config.Load(opts.configArgs())
			if err != nil {
				return err
			}
			src, err := loadBrand(cfg)
			if err != nil {
				return err
			}

			p := prompt.NewBuilder(src).PostPrompts(s)
			heading(out, "# system")
			fmt.Fprintln(out, p.System)
			fmt.Fprintln(out)
			heading(out, "# user")
			fmt.Fprintln(out, p.User)
			return nil
		},
	}
	sel.bind(cmd)
	cmd.Flags().StringVar(&image, "image", "", "Post text to build an image prompt request for")
	return cmd
}
