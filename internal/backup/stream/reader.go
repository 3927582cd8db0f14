package stream

import (
	"archive/zip"
	"bufio"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"iter"

	"golang.org/x/crypto/blake2b"
)

// maxLine bounds a single JSONL record. A history item with five posts is a few KB.
const maxLine = 1 << 20

// ErrFileNotFound indicates a file was not found in the backup archive.
var ErrFileNotFound = errors.New("file not found in backup")

// LineError reports a record that failed to decode.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// OpenFile finds and opens a file from a zip archive.
func OpenFile(zr *zip.Reader, path string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == path {
			return f.Open()
		}
	}
	return nil, ErrFileNotFound
}

// Reader streams records from a JSONL file, hashing every byte it consumes.
type Reader[T any] struct {
	rc      io.ReadCloser
	sum     hash.Hash
	scanner *bufio.Scanner
}

// NewReader creates a streaming reader for type T.
func NewReader[T any](rc io.ReadCloser) *Reader[T] {
	// blake2b.New256 only fails for keys longer than 64 bytes.
	sum, _ := blake2b.New256(nil)
	scanner := bufio.NewScanner(io.TeeReader(rc, sum))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Reader[T]{
		rc:      rc,
		sum:     sum,
		scanner: scanner,
	}
}

// All returns an iterator over all records in the file. Decode failures are
// yielded as *LineError and iteration continues with the next line.
func (r *Reader[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer r.rc.Close()

		line := 0
		for r.scanner.Scan() {
			line++
			raw := r.scanner.Bytes()
			if len(raw) == 0 {
				continue
			}

			var record T
			if err := json.Unmarshal(raw, &record); err != nil {
				var zero T
				if !yield(zero, &LineError{Line: line, Err: err}) {
					return
				}
				continue
			}
			if !yield(record, nil) {
				return
			}
		}

		if err := r.scanner.Err(); err != nil {
			var zero T
			yield(zero, err)
		}
	}
}

// Checksum returns the hex blake2b-256 of the bytes read so far. After All
// has been fully consumed it covers the whole entry.
func (r *Reader[T]) Checksum() string {
	return hex.EncodeToString(r.sum.Sum(nil))
}
