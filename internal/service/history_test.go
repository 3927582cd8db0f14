package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/works-s/postsmith/internal/domain"
	domainerrors "github.com/works-s/postsmith/internal/errors"
	"github.com/works-s/postsmith/internal/export"
)

type stubSearcher struct {
	ids     []int64
	err     error
	rebuilt int
}

func (s *stubSearcher) Search(context.Context, string, int) ([]int64, error) {
	return s.ids, s.err
}

func (s *stubSearcher) Rebuild(_ context.Context, items []domain.HistoryItem) error {
	s.rebuilt = len(items)
	return nil
}

func seedHistory(t *testing.T, f *fixture) []domain.HistoryItem {
	t.Helper()
	ctx := context.Background()
	_, err := f.records.AppendHistory(ctx, testSelection,
		[]domain.Post{{Text: "夏のエアコン掃除"}}, []string{"#夏"})
	require.NoError(t, err)
	_, err = f.records.AppendHistory(ctx, domain.Selection{Season: "winter", Purpose: "trust", Tone: "gratitude"},
		[]domain.Post{{Text: "冬もお任せください"}}, []string{"#冬"})
	require.NoError(t, err)
	return history(t, f.records)
}

func TestHistoryList_FiltersByCategory(t *testing.T) {
	f := newFixture(t, "")
	seedHistory(t, f)

	items, err := f.history.List(context.Background(), HistoryQuery{Season: "winter"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "gratitude", items[0].Tone)
}

func TestHistoryList_SubstringFallback(t *testing.T) {
	f := newFixture(t, "")
	seedHistory(t, f)

	items, err := f.history.List(context.Background(), HistoryQuery{Q: "エアコン"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "summer", items[0].Season)
}

func TestHistoryList_UsesSearcherAndKeepsOrder(t *testing.T) {
	f := newFixture(t, "")
	all := seedHistory(t, f)
	searcher := &stubSearcher{ids: []int64{all[1].ID, all[0].ID}}
	f.history = NewHistoryService(f.records, searcher, discardLogger())

	items, err := f.history.List(context.Background(), HistoryQuery{Q: "anything"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, all[0].ID, items[0].ID)
}

func TestHistoryList_SearcherErrorFallsBack(t *testing.T) {
	f := newFixture(t, "")
	seedHistory(t, f)
	f.history = NewHistoryService(f.records, &stubSearcher{err: errors.New("index closed")}, discardLogger())

	items, err := f.history.List(context.Background(), HistoryQuery{Q: "冬"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestHistoryGet(t *testing.T) {
	f := newFixture(t, "")
	all := seedHistory(t, f)

	item, err := f.history.Get(context.Background(), all[1].ID)
	require.NoError(t, err)
	assert.Equal(t, all[1], item)

	_, err = f.history.Get(context.Background(), 42)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestHistoryAnalytics(t *testing.T) {
	f := newFixture(t, "")
	seedHistory(t, f)

	a, err := f.history.Analytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, a.Total)
	assert.Equal(t, 1, a.BySeason["summer"])
	assert.Equal(t, 1, a.ByTone["gratitude"])
}

func TestHistoryRebuildIndex(t *testing.T) {
	f := newFixture(t, "")
	seedHistory(t, f)
	searcher := &stubSearcher{}
	f.history = NewHistoryService(f.records, searcher, discardLogger())

	n, err := f.history.RebuildIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, searcher.rebuilt)
}

func TestHistoryExport_NamedForGenerationDay(t *testing.T) {
	f := newFixture(t, "")
	items := seedHistory(t, f)
	winter := items[0]

	a, err := f.history.Export(context.Background(), winter.ID, export.FormatText)
	require.NoError(t, err)

	assert.Equal(t, export.Filename(winter.Date, export.FormatText), a.Filename)
	assert.Contains(t, string(a.Data), "冬もお任せください")
	assert.Contains(t, string(a.Data), "#冬")
}

func TestHistoryExport_UnknownID(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.history.Export(context.Background(), 42, export.FormatXLSX)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}
