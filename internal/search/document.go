// Package search provides full-text search over generation history using Bleve.
package search

import (
	"strconv"
	"strings"

	"github.com/works-s/postsmith/internal/domain"
)

// HistoryDocument is the indexed form of one history item.
type HistoryDocument struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Hashtags  []string `json:"hashtags"`
	Season    string   `json:"season"`
	Purpose   string   `json:"purpose"`
	Tone      string   `json:"tone"`
	CreatedAt int64    `json:"created_at"` // Unix millis
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *HistoryDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"text":       d.Text,
		"season":     d.Season,
		"purpose":    d.Purpose,
		"tone":       d.Tone,
		"created_at": d.CreatedAt,
	}
	if len(d.Hashtags) > 0 {
		m["hashtags"] = d.Hashtags
	}
	return m
}

// HistoryToDocument converts a history item. All posts of the batch go into
// one text field.
func HistoryToDocument(item domain.HistoryItem) *HistoryDocument {
	texts := make([]string, len(item.Posts))
	for i, p := range item.Posts {
		texts[i] = p.Text
	}
	return &HistoryDocument{
		ID:        docID(item.ID),
		Text:      strings.Join(texts, "\n\n"),
		Hashtags:  item.Hashtags,
		Season:    item.Season,
		Purpose:   item.Purpose,
		Tone:      item.Tone,
		CreatedAt: item.Date.UnixMilli(),
	}
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}
