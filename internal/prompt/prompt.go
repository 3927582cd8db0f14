// Package prompt builds the instructions sent to the text generation capability.
package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/works-s/postsmith/internal/brand"
	"github.com/works-s/postsmith/internal/catalog"
	"github.com/works-s/postsmith/internal/domain"
)

// ImageExcerptLength is how many characters of a post go into the image prompt.
const ImageExcerptLength = 200

// Prompts is a system and user prompt pair.
type Prompts struct {
	System string
	User   string
}

// Builder renders prompts from the current brand profile.
type Builder struct {
	brand   brand.Source
	printer *message.Printer
}

// NewBuilder creates a Builder.
func NewBuilder(src brand.Source) *Builder {
	return &Builder{
		brand:   src,
		printer: message.NewPrinter(language.Japanese),
	}
}

// PostPrompts renders the prompts for one batch. Unknown ids render as empty labels.
func (b *Builder) PostPrompts(sel domain.Selection) Prompts {
	p := b.brand.Current()
	return Prompts{
		System: b.system(p),
		User:   user(p, sel),
	}
}

func (b *Builder) system(p brand.Profile) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "あなたは%sを営む%s「%s」の%s投稿を作成する専門家です。\n\n",
		p.Occupation, p.Persona, p.Proprietor, p.Platform)

	sb.WriteString("# 事業者プロフィール\n")
	if p.BusinessReading != "" {
		fmt.Fprintf(&sb, "- 会社名: %s（%s）\n", p.BusinessName, p.BusinessReading)
	} else {
		fmt.Fprintf(&sb, "- 会社名: %s\n", p.BusinessName)
	}
	if p.ProprietorAge != "" {
		fmt.Fprintf(&sb, "- 代表: %s（%s）\n", p.Proprietor, p.ProprietorAge)
	} else {
		fmt.Fprintf(&sb, "- 代表: %s\n", p.Proprietor)
	}
	if p.Family != "" {
		fmt.Fprintf(&sb, "- 家族構成: %s\n", p.Family)
	}
	if p.ServiceArea != "" {
		fmt.Fprintf(&sb, "- 対応エリア: %s\n", p.ServiceArea)
	}
	if len(p.PriceTiers) > 0 {
		tiers := make([]string, len(p.PriceTiers))
		for i, t := range p.PriceTiers {
			tiers[i] = b.printer.Sprintf("%s %d円", t.Name, t.Yen)
		}
		fmt.Fprintf(&sb, "- 価格帯: %s\n", strings.Join(tiers, "、"))
	}
	if len(p.Strengths) > 0 {
		fmt.Fprintf(&sb, "- 強み: %s\n", strings.Join(p.Strengths, "、"))
	}

	if len(p.BrandMessages) > 0 || p.Values != "" {
		sb.WriteString("\n# ブランドメッセージ\n")
		for _, m := range p.BrandMessages {
			fmt.Fprintf(&sb, "- 「%s」\n", m)
		}
		if p.Values != "" {
			fmt.Fprintf(&sb, "- %s\n", p.Values)
		}
	}

	fmt.Fprintf(&sb, "\n上記の例を参考に、指定された条件で%dつの投稿を生成してください。\n", p.PostCount)
	sb.WriteString("各投稿は完全に異なる内容、異なる切り口にしてください。\n")
	sb.WriteString("JSONフォーマットで返してください：\n")
	sb.WriteString("{\n  \"posts\": [\n")
	for i := 1; i <= p.PostCount; i++ {
		fmt.Fprintf(&sb, "    {\"text\": \"投稿%dの内容\"}", i)
		if i < p.PostCount {
			sb.WriteByte(',')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("  ]\n}")

	return sb.String()
}

func user(p brand.Profile, sel domain.Selection) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "以下の条件で%s投稿を%dつ生成してください：\n\n", p.Platform, p.PostCount)
	fmt.Fprintf(&sb, "- 季節: %s\n", catalog.Label(catalog.KindSeason, sel.Season))
	fmt.Fprintf(&sb, "- 投稿目的: %s\n", catalog.Label(catalog.KindPurpose, sel.Purpose))
	fmt.Fprintf(&sb, "- トーン: %s\n\n", catalog.Label(catalog.KindTone, sel.Tone))
	fmt.Fprintf(&sb, "必ず%dつの異なる投稿を生成し、JSON形式で返してください。", p.PostCount)
	return sb.String()
}

// ImagePrompt renders the user prompt asking for a short English image prompt.
// It is sent with an empty system prompt.
func ImagePrompt(postText string) string {
	scene := "エアコンクリーニングのイメージ画像を生成してください。以下の投稿内容に合った、温かみのあるプロフェッショナルな画像:\n\n" +
		"投稿内容: " + Excerpt(postText, ImageExcerptLength) + "\n\n" +
		"画像の要素:\n" +
		"- エアコンのクリーニング作業\n" +
		"- 清潔感\n" +
		"- プロフェッショナル\n" +
		"- 長野県の自然（山、空など）を背景に\n" +
		"- 明るく爽やかな雰囲気\n" +
		"- 写真風のリアルなスタイル"

	return "画像生成プロンプトを最適化してください。以下の要件に基づいて、DALL-E や Midjourney 用の英語プロンプトを作成してください:\n\n" +
		scene +
		"\n\n短く簡潔な英語のプロンプトのみを返してください。"
}

// Excerpt returns at most n characters of s.
func Excerpt(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
