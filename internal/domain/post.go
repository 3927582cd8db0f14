// Package domain holds posts, history items and scheduled posts.
package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Character thresholds shown next to each post.
const (
	WarnLength    = 400
	TooLongLength = 500
)

// LengthLevel classifies a post by character count.
type LengthLevel string

// Length levels.
const (
	LengthOK      LengthLevel = "ok"
	LengthWarning LengthLevel = "warning"
	LengthTooLong LengthLevel = "too_long"
)

// Post is one generated social post.
type Post struct {
	Text string `json:"text"`
}

// CharCount counts user-perceived characters of the NFC form, so a kana with a
// combining voiced mark counts once.
func CharCount(text string) int {
	return utf8.RuneCountInString(norm.NFC.String(text))
}

// Length returns the post's character count.
func (p Post) Length() int {
	return CharCount(p.Text)
}

// Level reports whether the post is within length, near it, or over.
func (p Post) Level() LengthLevel {
	switch n := p.Length(); {
	case n > TooLongLength:
		return LengthTooLong
	case n > WarnLength:
		return LengthWarning
	default:
		return LengthOK
	}
}

// Selection is the season, purpose and tone a batch is generated for.
type Selection struct {
	Season  string `json:"season" validate:"required,season"`
	Purpose string `json:"purpose" validate:"required,purpose"`
	Tone    string `json:"tone" validate:"required,tone"`
}

// Complete reports whether all three categories are chosen.
func (s Selection) Complete() bool {
	return s.Season != "" && s.Purpose != "" && s.Tone != ""
}

// HistoryItem records one successful generation. The JSON shape matches the
// records the browser app kept under cleaningPostHistory.
type HistoryItem struct {
	ID       int64     `json:"id"`
	Date     time.Time `json:"date"`
	Season   string    `json:"season"`
	Purpose  string    `json:"purpose"`
	Tone     string    `json:"tone"`
	Posts    []Post    `json:"posts"`
	Hashtags []string  `json:"hashtags"`
}

// Selection returns the categories the item was generated for.
func (h HistoryItem) Selection() Selection {
	return Selection{Season: h.Season, Purpose: h.Purpose, Tone: h.Tone}
}

// Schedule date and time layouts. Both are zero padded so they also sort lexically.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ScheduledPost is a post planned for a future date and time.
type ScheduledPost struct {
	ID       int64    `json:"id"`
	Post     string   `json:"post"`
	Date     string   `json:"date"`
	Time     string   `json:"time"`
	Hashtags []string `json:"hashtags"`
	Season   string   `json:"season"`
	Purpose  string   `json:"purpose"`
	Tone     string   `json:"tone"`
}

// At parses the scheduled date and time in loc.
func (s ScheduledPost) At(loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, s.Date+" "+s.Time, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse schedule %q %q: %w", s.Date, s.Time, err)
	}
	return t, nil
}

// Layouts accepted from imported records, which were typed in by hand.
var (
	looseDateLayouts = []string{"2006-1-2", "2006/1/2"}
	looseTimeLayouts = []string{"15:4", "3:4PM", "3:4 PM"}
)

// Normalize rewrites Date and Time in the zero-padded layouts. It reports
// false, leaving s unchanged, when either does not parse.
func (s ScheduledPost) Normalize() (ScheduledPost, bool) {
	d, ok := parseAny(looseDateLayouts, s.Date)
	if !ok {
		return s, false
	}
	t, ok := parseAny(looseTimeLayouts, s.Time)
	if !ok {
		return s, false
	}
	s.Date = d.Format(DateLayout)
	s.Time = t.Format(TimeLayout)
	return s, true
}

func parseAny(layouts []string, v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ImagePrompt is the English prompt derived from one post of the current batch.
type ImagePrompt struct {
	Index  int    `json:"index"`
	Prompt string `json:"prompt"`
	Note   string `json:"note"`
}

// ImagePromptNote tells the user where the prompt is meant to go.
const ImagePromptNote = "※ このプロンプトを画像生成AIに入力してください（DALL-E、Midjourney等）"

// Analytics counts history items per category.
type Analytics struct {
	Total     int            `json:"total"`
	BySeason  map[string]int `json:"by_season"`
	ByPurpose map[string]int `json:"by_purpose"`
	ByTone    map[string]int `json:"by_tone"`
}

// Tally builds analytics from history items.
func Tally(items []HistoryItem) Analytics {
	a := Analytics{
		Total:     len(items),
		BySeason:  make(map[string]int),
		ByPurpose: make(map[string]int),
		ByTone:    make(map[string]int),
	}
	for _, it := range items {
		a.BySeason[it.Season]++
		a.ByPurpose[it.Purpose]++
		a.ByTone[it.Tone]++
	}
	return a
}
