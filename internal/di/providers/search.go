package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/works-s/postsmith/internal/config"
	"github.com/works-s/postsmith/internal/search"
	"github.com/works-s/postsmith/internal/store"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.HistoryIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve history index and wires it into records.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)
	records := do.MustInvoke[*store.Records](i)

	index, err := search.NewHistoryIndex(search.Options{
		DataPath: cfg.Data.BasePath,
		Logger:   log.Logger.Logger,
	})
	if err != nil {
		return nil, err
	}

	records.SetIndexer(index)

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{HistoryIndex: index}, nil
}

// RebuildSearchIndex re-reads history into the index. The history blob is the
// source of truth, so this runs on every boot.
func RebuildSearchIndex(i do.Injector) error {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	records := do.MustInvoke[*store.Records](i)
	log := do.MustInvoke[*LoggerHandle](i)

	ctx := context.Background()
	items, err := records.History(ctx)
	if err != nil {
		return err
	}
	if err := indexHandle.Rebuild(ctx, items); err != nil {
		return err
	}

	log.Info("Search index rebuilt from history", "items", len(items))
	return nil
}
