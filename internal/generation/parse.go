// Package generation turns free-form capability output into posts.
//
// Parsing runs in two stages. ExtractObject finds the widest brace-delimited
// span in the text, and ParsePosts decodes that span against the fixed
// {"posts":[{"text":...}]} shape. Each stage fails with its own error.
package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/works-s/postsmith/internal/domain"
)

var (
	// ErrNoJSONObject means the text holds no '{' ... '}' span.
	ErrNoJSONObject = errors.New("no JSON object in response text")
	// ErrMalformedResponse means the span is not valid JSON of the expected shape.
	ErrMalformedResponse = errors.New("malformed generation response")
)

// ExtractObject returns the span from the first '{' to the last '}'.
// Nested objects and prose on either side are tolerated.
func ExtractObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end < start {
		return "", ErrNoJSONObject
	}
	return text[start : end+1], nil
}

type postsEnvelope struct {
	Posts *json.RawMessage `json:"posts"`
}

type postEntry struct {
	Text *string `json:"text"`
}

// ParsePosts decodes an extracted object. A missing or null posts field yields
// an empty list. A non-array, or an entry without string text, is malformed.
func ParsePosts(raw string) ([]domain.Post, error) {
	var env postsEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if env.Posts == nil {
		return []domain.Post{}, nil
	}

	var entries []postEntry
	if err := json.Unmarshal(*env.Posts, &entries); err != nil {
		return nil, fmt.Errorf("%w: posts: %v", ErrMalformedResponse, err)
	}

	posts := make([]domain.Post, 0, len(entries))
	for i, e := range entries {
		if e.Text == nil {
			return nil, fmt.Errorf("%w: posts[%d] has no text", ErrMalformedResponse, i)
		}
		posts = append(posts, domain.Post{Text: *e.Text})
	}
	return posts, nil
}

// Posts runs both stages on a capability's text output.
func Posts(text string) ([]domain.Post, error) {
	raw, err := ExtractObject(text)
	if err != nil {
		return nil, err
	}
	return ParsePosts(raw)
}

// ImagePrompt trims the capability's text output. Blank output reports false.
func ImagePrompt(text string) (string, bool) {
	p := strings.TrimSpace(text)
	return p, p != ""
}
