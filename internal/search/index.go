package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/works-s/postsmith/internal/domain"
	"github.com/works-s/postsmith/internal/store"
)

// HistoryIndex wraps a Bleve index of history items.
//
// All public methods are safe for concurrent use. The mutex keeps a rebuild
// from racing with writes.
type HistoryIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the history index.
type Options struct {
	DataPath string       // Directory for index storage. Empty keeps the index in memory.
	Logger   *slog.Logger // Uses discard if nil
}

// mappingVersion is bumped whenever the mapping changes, forcing a rebuild on startup.
const mappingVersion = "1"

var _ store.HistoryIndexer = (*HistoryIndex)(nil)

// NewHistoryIndex opens or creates the index. An index with a missing or
// outdated version file, or one that fails to open, is removed and recreated
// empty. The caller should then Rebuild it from stored history.
func NewHistoryIndex(opts Options) (*HistoryIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if opts.DataPath == "" {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &HistoryIndex{index: index, logger: logger}, nil
	}

	indexPath := filepath.Join(opts.DataPath, "history.bleve")
	versionPath := filepath.Join(opts.DataPath, "history.version")

	var index bleve.Index
	needsRebuild := false

	if _, statErr := os.Stat(indexPath); statErr == nil {
		existingVersion, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil:
			logger.Info("history index has no version file, rebuilding", "new_version", mappingVersion)
			needsRebuild = true
		case string(existingVersion) != mappingVersion:
			logger.Info("history index mapping version changed, rebuilding",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		default:
			var err error
			if index, err = bleve.Open(indexPath); err != nil {
				logger.Warn("failed to open history index, recreating", "path", indexPath, "error", err)
				needsRebuild = true
			}
		}
	}

	if needsRebuild {
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("remove old index: %w", err)
		}
	}

	if index == nil {
		var err error
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write history index version file", "error", err)
		}
		logger.Info("created history index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened history index", "path", indexPath)
	}

	return &HistoryIndex{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

// Close closes the index and releases resources.
func (s *HistoryIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexHistory adds or replaces one history item.
func (s *HistoryIndex) IndexHistory(_ context.Context, item domain.HistoryItem) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := HistoryToDocument(item)
	return s.index.Index(doc.ID, doc.ToMap())
}

// DeleteHistory removes one history item.
func (s *HistoryIndex) DeleteHistory(_ context.Context, id int64) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(docID(id))
}

// DocumentCount returns the number of indexed items.
func (s *HistoryIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the index and indexes items in one batch.
// It holds the exclusive lock for the whole operation.
func (s *HistoryIndex) Rebuild(ctx context.Context, items []domain.HistoryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	var (
		index bleve.Index
		err   error
	)
	if s.path == "" {
		index, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		if err = os.RemoveAll(s.path); err != nil {
			return fmt.Errorf("remove index: %w", err)
		}
		index, err = bleve.New(s.path, buildIndexMapping())
	}
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	s.index = index

	if err := ctx.Err(); err != nil {
		return err
	}

	batch := index.NewBatch()
	for _, item := range items {
		doc := HistoryToDocument(item)
		if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.ID, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	s.logger.Info("rebuilt history index", "path", s.path, "items", len(items))
	return nil
}
