package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnumerationsAreOrdered(t *testing.T) {
	assert.Equal(t, []string{"spring", "summer", "autumn", "winter"}, IDs(KindSeason))
	assert.Equal(t, []string{"booking", "trust", "local", "value", "service"}, IDs(KindPurpose))
	assert.Equal(t, []string{"family", "local", "professional", "gratitude"}, IDs(KindTone))
}

func TestLookup(t *testing.T) {
	e, ok := Lookup(KindSeason, "autumn")
	assert.True(t, ok)
	assert.Equal(t, "秋（9〜11月）", e.Label)
	assert.Equal(t, "暖房前メンテ", e.Description)

	e, ok = Purpose("value")
	assert.True(t, ok)
	assert.Equal(t, "価値提案", e.Label)

	e, ok = Tone("gratitude")
	assert.True(t, ok)
	assert.Equal(t, "🙏", e.Emoji)
}

func TestLookup_SameIDAcrossKinds(t *testing.T) {
	// "local" exists as both a purpose and a tone with different labels.
	assert.Equal(t, "地域密着", Label(KindPurpose, "local"))
	assert.Equal(t, "地元愛", Label(KindTone, "local"))
}

func TestLookup_Unknown(t *testing.T) {
	_, ok := Season("monsoon")
	assert.False(t, ok)

	_, ok = Lookup(Kind("color"), "spring")
	assert.False(t, ok)

	assert.Empty(t, Label(KindTone, ""))
	assert.Empty(t, IDs(Kind("color")))
}

func TestAccessorsReturnCopies(t *testing.T) {
	s := Seasons()
	s[0].Label = "changed"

	assert.Equal(t, "春（3〜5月）", Label(KindSeason, "spring"))
}

func TestCurrentSeason(t *testing.T) {
	tests := []struct {
		month time.Month
		want  string
	}{
		{time.January, "winter"},
		{time.February, "winter"},
		{time.March, "spring"},
		{time.May, "spring"},
		{time.June, "summer"},
		{time.August, "summer"},
		{time.September, "autumn"},
		{time.November, "autumn"},
		{time.December, "winter"},
	}

	for _, tt := range tests {
		t.Run(tt.month.String(), func(t *testing.T) {
			d := time.Date(2026, tt.month, 15, 12, 0, 0, 0, time.UTC)
			assert.Equal(t, tt.want, CurrentSeason(d))
		})
	}
}
