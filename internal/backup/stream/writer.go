// Package stream provides JSONL streaming to and from zip archives.
package stream

import (
	"archive/zip"
	"encoding/hex"
	"encoding/json"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

// Writer streams records as JSONL into one zip entry and hashes what it writes.
type Writer struct {
	enc   *json.Encoder
	sum   hash.Hash
	count int
}

// NewWriter creates a JSONL writer for a path within the zip.
func NewWriter(zw *zip.Writer, path string) (*Writer, error) {
	w, err := zw.Create(path)
	if err != nil {
		return nil, err
	}

	sum, err := blake2b.New256(nil)
	if err != nil {
		return nil, err
	}

	enc := json.NewEncoder(io.MultiWriter(w, sum))
	enc.SetEscapeHTML(false)

	return &Writer{enc: enc, sum: sum}, nil
}

// Write encodes a single record as a JSON line.
func (w *Writer) Write(record any) error {
	// Encode terminates each value with a newline.
	if err := w.enc.Encode(record); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns records written so far.
func (w *Writer) Count() int {
	return w.count
}

// Checksum returns the hex blake2b-256 of the bytes written so far.
func (w *Writer) Checksum() string {
	return hex.EncodeToString(w.sum.Sum(nil))
}
