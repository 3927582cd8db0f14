// Package export renders batches and the schedule as downloadable files.
package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/works-s/postsmith/internal/catalog"
	"github.com/works-s/postsmith/internal/domain"
	"github.com/works-s/postsmith/internal/hashtag"
)

// Content types of the artifacts.
const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

const divider = "━━━━━━━━━━━━━━━━━━━━"

// Format is an export file format.
type Format string

// Supported formats.
const (
	FormatText Format = "txt"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "txt" and "xlsx". Empty means txt.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return ContentTypeXLSX
	}
	return ContentTypeText
}

// Filename names a batch export made on day now.
func Filename(now time.Time, f Format) string {
	return "threads投稿_" + now.Format(domain.DateLayout) + "." + string(f)
}

// ScheduleFilename names a schedule export made on day now.
func ScheduleFilename(now time.Time) string {
	return "投稿スケジュール_" + now.Format(domain.DateLayout) + ".xlsx"
}

// CopyText is what goes on the clipboard for one post.
func CopyText(post domain.Post, hashtags []string) string {
	return post.Text + "\n\n" + hashtag.Line(hashtags)
}

// Text renders one section per post, numbered from 1.
func Text(posts []domain.Post, hashtags []string) string {
	tags := hashtag.Line(hashtags)
	sections := make([]string, len(posts))
	for i, p := range posts {
		var b strings.Builder
		fmt.Fprintf(&b, "【パターン %d】\n", i+1)
		b.WriteString(p.Text)
		b.WriteString("\n\n推奨ハッシュタグ:\n")
		b.WriteString(tags)
		fmt.Fprintf(&b, "\n\n文字数: %d文字\n", p.Length())
		b.WriteString(divider)
		b.WriteString("\n")
		sections[i] = b.String()
	}
	return strings.Join(sections, "\n\n")
}

// BatchWorkbook renders a batch as a one-sheet workbook.
func BatchWorkbook(sel domain.Selection, posts []domain.Post, hashtags []string) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	const sheet = "投稿"
	if err := xl.SetSheetName(xl.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := []string{"パターン", "投稿", "文字数", "判定", "ハッシュタグ", "季節", "目的", "トーン"}
	if err := xl.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	tags := hashtag.Line(hashtags)
	for i, p := range posts {
		row := []any{
			i + 1,
			p.Text,
			p.Length(),
			string(p.Level()),
			tags,
			label(catalog.KindSeason, sel.Season),
			label(catalog.KindPurpose, sel.Purpose),
			label(catalog.KindTone, sel.Tone),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := xl.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	_ = xl.SetColWidth(sheet, "B", "B", 80)
	_ = xl.SetColWidth(sheet, "E", "E", 60)

	return write(xl)
}

// ScheduleWorkbook renders scheduled posts in the order given.
func ScheduleWorkbook(items []domain.ScheduledPost) ([]byte, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	const sheet = "スケジュール"
	if err := xl.SetSheetName(xl.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := []string{"ID", "日付", "時刻", "投稿", "ハッシュタグ", "季節", "目的", "トーン"}
	if err := xl.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, it := range items {
		row := []any{
			strconv.FormatInt(it.ID, 10),
			it.Date,
			it.Time,
			it.Post,
			hashtag.Line(it.Hashtags),
			label(catalog.KindSeason, it.Season),
			label(catalog.KindPurpose, it.Purpose),
			label(catalog.KindTone, it.Tone),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := xl.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	_ = xl.SetColWidth(sheet, "D", "D", 80)

	return write(xl)
}

func write(xl *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := xl.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// label returns the display label for id, or id itself when unknown.
func label(kind catalog.Kind, id string) string {
	if id == "" {
		return ""
	}
	if e, ok := catalog.Lookup(kind, id); ok {
		return e.Label
	}
	return id
}
