// Package store persists the history and schedule collections.
//
// Records keep each collection as one JSON blob behind a BlobStore, the same
// get/set shape the browser app used. Backends live in this package (Badger,
// memory) and in the sqlite and rediskv subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/works-s/postsmith/internal/domain"
)

// Blob keys. The names match the original browser storage keys so exported
// data can be moved between the two.
const (
	KeyHistory    = "cleaningPostHistory"
	KeySchedule   = "scheduledPosts"
	KeyCredential = "anthropicApiKey"
)

// ErrClosed is returned by backends after Close.
var ErrClosed = errors.New("store: closed")

// BlobStore is a string key/value store. Get reports false for a missing key.
type BlobStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Pinger is implemented by backends that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stamper is implemented by backends that record when each key was written.
type Stamper interface {
	UpdatedAt(ctx context.Context, key string) (time.Time, bool, error)
}

// EventEmitter is the interface for emitting SSE events.
// Records uses this to broadcast changes without depending on SSE implementation details.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// HistoryIndexer keeps a search index in step with the history collection.
type HistoryIndexer interface {
	IndexHistory(ctx context.Context, item domain.HistoryItem) error
	DeleteHistory(ctx context.Context, id int64) error
}

// NoopIndexer is a no-op implementation of HistoryIndexer.
type NoopIndexer struct{}

// IndexHistory is a no-op.
func (NoopIndexer) IndexHistory(context.Context, domain.HistoryItem) error { return nil }

// DeleteHistory is a no-op.
func (NoopIndexer) DeleteHistory(context.Context, int64) error { return nil }
