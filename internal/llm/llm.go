// Package llm is the client side of the text generation capability.
package llm

import (
	"context"
	"errors"
)

// Mode tags what a request is for. It selects the output budget.
type Mode string

// Modes.
const (
	ModePost  Mode = "post"
	ModeImage Mode = "image"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModePost || m == ModeImage
}

// Request is one call to the capability. Credential is a secret and must not be logged.
type Request struct {
	Credential   string
	SystemPrompt string
	UserPrompt   string
	Mode         Mode
}

// ContentBlock is one typed block of a response.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Response is the capability's answer.
type Response struct {
	Content []ContentBlock `json:"content"`
}

// Capability generates text from prompts.
type Capability interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// ErrNoCredential is returned before any network call when the credential is empty.
var ErrNoCredential = errors.New("llm: credential is empty")

// FirstText returns the text of the first block typed "text".
func FirstText(resp *Response) (string, bool) {
	if resp == nil {
		return "", false
	}
	for _, b := range resp.Content {
		if b.Type == "text" {
			return b.Text, true
		}
	}
	return "", false
}
