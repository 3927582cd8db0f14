package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/works-s/postsmith/internal/domain"
)

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		err  error
	}{
		{"bare object", `{"posts":[]}`, `{"posts":[]}`, nil},
		{"prose around", "はい、どうぞ。\n{\"posts\":[]}\n以上です。", `{"posts":[]}`, nil},
		{"nested braces take widest span", `x {"a":{"b":1}} y`, `{"a":{"b":1}}`, nil},
		{"two objects span both", `{"a":1} and {"b":2}`, `{"a":1} and {"b":2}`, nil},
		{"no braces", "申し訳ありません", "", ErrNoJSONObject},
		{"only opening", "{ unfinished", "", ErrNoJSONObject},
		{"closing before opening", "} {", "", ErrNoJSONObject},
		{"empty", "", "", ErrNoJSONObject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractObject(tt.text)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPosts_PrefixAndSuffix(t *testing.T) {
	posts, err := Posts(`prefix {"posts":[{"text":"A"},{"text":"B"},{"text":"C"}]} suffix`)
	require.NoError(t, err)
	assert.Equal(t, []domain.Post{{Text: "A"}, {Text: "B"}, {Text: "C"}}, posts)
}

func TestParsePosts_MissingFieldIsEmpty(t *testing.T) {
	for _, raw := range []string{`{}`, `{"other":1}`, `{"posts":null}`} {
		t.Run(raw, func(t *testing.T) {
			posts, err := ParsePosts(raw)
			require.NoError(t, err)
			assert.NotNil(t, posts)
			assert.Empty(t, posts)
		})
	}
}

func TestParsePosts_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"syntax error", `{"posts":[{"text":"A"},]}`},
		{"posts not array", `{"posts":"A"}`},
		{"entry not object", `{"posts":["A"]}`},
		{"entry without text", `{"posts":[{"body":"A"}]}`},
		{"text not string", `{"posts":[{"text":3}]}`},
		{"top level array", `[{"text":"A"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePosts(tt.raw)
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestParsePosts_KeepsNewlinesAndEmoji(t *testing.T) {
	posts, err := ParsePosts(`{"posts":[{"text":"春のエアコン掃除🌸\n予約受付中"}]}`)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "春のエアコン掃除🌸\n予約受付中", posts[0].Text)
}

func TestImagePrompt(t *testing.T) {
	got, ok := ImagePrompt("  bright clean living room, air conditioner  \n")
	assert.True(t, ok)
	assert.Equal(t, "bright clean living room, air conditioner", got)

	_, ok = ImagePrompt(" \n\t")
	assert.False(t, ok)
}
