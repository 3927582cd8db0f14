// Package catalog holds the fixed post categories: seasons, purposes and tones.
package catalog

import "time"

// Kind names one of the three enumerations.
type Kind string

// Enumeration kinds.
const (
	KindSeason  Kind = "season"
	KindPurpose Kind = "purpose"
	KindTone    Kind = "tone"
)

// Entry is one selectable category value with its display metadata.
type Entry struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Emoji       string `json:"emoji,omitempty"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description"`
}

var seasons = []Entry{
	{ID: "spring", Label: "春（3〜5月）", Emoji: "🌸", Description: "早期予約訴求"},
	{ID: "summer", Label: "夏（6〜8月）", Emoji: "☀️", Description: "繁忙期対応"},
	{ID: "autumn", Label: "秋（9〜11月）", Emoji: "🍂", Description: "暖房前メンテ"},
	{ID: "winter", Label: "冬（12〜2月）", Emoji: "⛄", Description: "閑散期需要喚起"},
}

var purposes = []Entry{
	{ID: "booking", Label: "予約促進", Icon: "calendar", Description: "早期予約・希望日確保"},
	{ID: "trust", Label: "信頼構築", Icon: "heart", Description: "ブランドストーリー"},
	{ID: "local", Label: "地域密着", Icon: "home", Description: "長野県への愛着"},
	{ID: "value", Label: "価値提案", Icon: "trending-up", Description: "大手との差別化"},
	{ID: "service", Label: "サービス訴求", Icon: "wind", Description: "技術・効果アピール"},
}

var tones = []Entry{
	{ID: "family", Label: "家族愛", Emoji: "👨‍👩‍👧", Description: "子どもとの時間"},
	{ID: "local", Label: "地元愛", Emoji: "⛰️", Description: "長野への想い"},
	{ID: "professional", Label: "プロ意識", Emoji: "💪", Description: "技術へのこだわり"},
	{ID: "gratitude", Label: "感謝", Emoji: "🙏", Description: "お客様への感謝"},
}

// Seasons returns the seasons in display order.
func Seasons() []Entry { return clone(seasons) }

// Purposes returns the purposes in display order.
func Purposes() []Entry { return clone(purposes) }

// Tones returns the tones in display order.
func Tones() []Entry { return clone(tones) }

// Season looks up a season by id.
func Season(id string) (Entry, bool) { return find(seasons, id) }

// Purpose looks up a purpose by id.
func Purpose(id string) (Entry, bool) { return find(purposes, id) }

// Tone looks up a tone by id.
func Tone(id string) (Entry, bool) { return find(tones, id) }

// Lookup finds an entry of the given kind. Unknown kinds and ids report false.
func Lookup(kind Kind, id string) (Entry, bool) {
	switch kind {
	case KindSeason:
		return Season(id)
	case KindPurpose:
		return Purpose(id)
	case KindTone:
		return Tone(id)
	default:
		return Entry{}, false
	}
}

// Label returns the display label, or "" when the id is unknown.
func Label(kind Kind, id string) string {
	e, _ := Lookup(kind, id)
	return e.Label
}

// IDs returns the ids of a kind in display order.
func IDs(kind Kind) []string {
	var list []Entry
	switch kind {
	case KindSeason:
		list = seasons
	case KindPurpose:
		list = purposes
	case KindTone:
		list = tones
	}
	ids := make([]string, len(list))
	for i, e := range list {
		ids[i] = e.ID
	}
	return ids
}

// CurrentSeason maps a date to its season: Mar-May spring, Jun-Aug summer,
// Sep-Nov autumn, otherwise winter.
func CurrentSeason(t time.Time) string {
	switch m := t.Month(); {
	case m >= time.March && m <= time.May:
		return "spring"
	case m >= time.June && m <= time.August:
		return "summer"
	case m >= time.September && m <= time.November:
		return "autumn"
	default:
		return "winter"
	}
}

func find(list []Entry, id string) (Entry, bool) {
	for _, e := range list {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

func clone(list []Entry) []Entry {
	out := make([]Entry, len(list))
	copy(out, list)
	return out
}
