// Package id creates short, URL-safe identifiers for generated batches.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// PrefixBatch marks generated post batches.
const PrefixBatch = "batch"

// Lowercase without look-alikes (0/o, 1/l), so an id read aloud or typed
// from a screenshot survives.
const (
	alphabet = "23456789abcdefghijkmnpqrstuvwxyz"
	length   = 12
)

// Generate returns prefix-xxxxxxxxxxxx, e.g. "batch-k3m9x2p7qa4d".
func Generate(prefix string) (string, error) {
	s, err := gonanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return prefix + "-" + s, nil
}
