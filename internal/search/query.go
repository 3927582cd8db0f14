package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Search returns ids of history items matching q, best match first.
// Text must contain every bigram of q. A query starting with # also matches
// hashtags exactly.
func (s *HistoryIndex) Search(ctx context.Context, q string, limit int) ([]int64, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	req := bleve.NewSearchRequestOptions(buildQuery(q), limit, 0, false)
	result, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}

	ids := make([]int64, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			s.logger.Warn("skipping unparseable history hit", "id", hit.ID)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func buildQuery(q string) query.Query {
	textMatch := bleve.NewMatchQuery(q)
	textMatch.SetField("text")
	textMatch.SetOperator(query.MatchQueryOperatorAnd)

	queries := []query.Query{textMatch}

	if strings.HasPrefix(q, "#") {
		tagQuery := bleve.NewTermQuery(q)
		tagQuery.SetField("hashtags")
		tagQuery.SetBoost(2.0)
		queries = append(queries, tagQuery)
	}

	for _, field := range []string{"season", "purpose", "tone"} {
		tq := bleve.NewTermQuery(q)
		tq.SetField(field)
		queries = append(queries, tq)
	}

	return bleve.NewDisjunctionQuery(queries...)
}
