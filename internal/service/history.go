package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/works-s/postsmith/internal/domain"
	domainerrors "github.com/works-s/postsmith/internal/errors"
	"github.com/works-s/postsmith/internal/export"
	"github.com/works-s/postsmith/internal/store"
)

// HistorySearcher finds history ids matching a free-text query.
type HistorySearcher interface {
	Search(ctx context.Context, query string, limit int) ([]int64, error)
	Rebuild(ctx context.Context, items []domain.HistoryItem) error
}

// HistoryQuery filters the history list. Empty fields match everything.
type HistoryQuery struct {
	Q       string
	Season  string
	Purpose string
	Tone    string
}

// HistoryService reads generation history.
type HistoryService struct {
	records  *store.Records
	searcher HistorySearcher
	logger   *slog.Logger
}

// NewHistoryService creates a new history service. searcher may be nil, in
// which case text queries fall back to substring matching.
func NewHistoryService(records *store.Records, searcher HistorySearcher, logger *slog.Logger) *HistoryService {
	return &HistoryService{
		records:  records,
		searcher: searcher,
		logger:   logger,
	}
}

// List returns history newest first, filtered by q.
func (s *HistoryService) List(ctx context.Context, q HistoryQuery) ([]domain.HistoryItem, error) {
	items, err := s.records.History(ctx)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(q.Q)
	var hits map[int64]bool
	if text != "" && s.searcher != nil {
		ids, err := s.searcher.Search(ctx, text, store.HistoryLimit)
		if err != nil {
			s.logger.Warn("history search failed, using substring match", "error", err)
		} else {
			hits = make(map[int64]bool, len(ids))
			for _, id := range ids {
				hits[id] = true
			}
		}
	}

	out := make([]domain.HistoryItem, 0, len(items))
	for _, it := range items {
		if !matchCategory(q.Season, it.Season) || !matchCategory(q.Purpose, it.Purpose) || !matchCategory(q.Tone, it.Tone) {
			continue
		}
		if text != "" {
			if hits != nil {
				if !hits[it.ID] {
					continue
				}
			} else if !containsText(it, text) {
				continue
			}
		}
		out = append(out, it)
	}
	return out, nil
}

// Get returns one history item.
func (s *HistoryService) Get(ctx context.Context, id int64) (domain.HistoryItem, error) {
	items, err := s.records.History(ctx)
	if err != nil {
		return domain.HistoryItem{}, err
	}
	for _, it := range items {
		if it.ID == id {
			return it, nil
		}
	}
	return domain.HistoryItem{}, notFoundHistory(id)
}

// Export renders one history item in format f. The file is named for the
// day the item was generated.
func (s *HistoryService) Export(ctx context.Context, id int64, f export.Format) (Artifact, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return Artifact{}, err
	}
	if len(item.Posts) == 0 {
		return Artifact{}, domainerrors.NotFound(MsgNothingToExport)
	}
	return renderBatch(export.Filename(item.Date, f), f, item.Selection(), item.Posts, item.Hashtags)
}

// Analytics counts history per season, purpose and tone.
func (s *HistoryService) Analytics(ctx context.Context) (domain.Analytics, error) {
	items, err := s.records.History(ctx)
	if err != nil {
		return domain.Analytics{}, err
	}
	return domain.Tally(items), nil
}

// RebuildIndex reindexes the stored history from scratch.
func (s *HistoryService) RebuildIndex(ctx context.Context) (int, error) {
	if s.searcher == nil {
		return 0, nil
	}
	items, err := s.records.History(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.searcher.Rebuild(ctx, items); err != nil {
		return 0, err
	}
	s.logger.Info("history index rebuilt", "items", len(items))
	return len(items), nil
}

func matchCategory(want, got string) bool {
	return want == "" || want == got
}

func containsText(it domain.HistoryItem, text string) bool {
	for _, p := range it.Posts {
		if strings.Contains(p.Text, text) {
			return true
		}
	}
	for _, h := range it.Hashtags {
		if strings.Contains(h, text) {
			return true
		}
	}
	return false
}

func notFoundHistory(id int64) error {
	return domainerrors.NotFoundf("history item %d not found", id)
}
