package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/works-s/postsmith/internal/domain"
	domainerrors "github.com/works-s/postsmith/internal/errors"
	"github.com/works-s/postsmith/internal/export"
	"github.com/works-s/postsmith/internal/service"
)

func (s *Server) registerHistoryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listHistory",
		Method:      http.MethodGet,
		Path:        "/api/v1/history",
		Summary:     "List history",
		Description: "Returns up to fifty past generations, newest first, optionally filtered",
		Tags:        []string{"History"},
	}, s.handleListHistory)

	huma.Register(s.api, huma.Operation{
		OperationID: "getHistoryItem",
		Method:      http.MethodGet,
		Path:        "/api/v1/history/{id}",
		Summary:     "Get history item",
		Tags:        []string{"History"},
	}, s.handleGetHistoryItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "exportHistoryItem",
		Method:      http.MethodGet,
		Path:        "/api/v1/history/{id}/export",
		Summary:     "Export history item",
		Description: "Downloads a past batch as text or an Excel workbook",
		Tags:        []string{"History"},
	}, s.handleExportHistoryItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "reindexHistory",
		Method:      http.MethodPost,
		Path:        "/api/v1/history/reindex",
		Summary:     "Rebuild history index",
		Description: "Rebuilds the full-text index from stored history",
		Tags:        []string{"History"},
	}, s.handleReindexHistory)

	huma.Register(s.api, huma.Operation{
		OperationID: "getAnalytics",
		Method:      http.MethodGet,
		Path:        "/api/v1/analytics",
		Summary:     "Get analytics",
		Description: "Counts history items per season, purpose and tone",
		Tags:        []string{"History"},
	}, s.handleGetAnalytics)
}

// ListHistoryInput filters the history list.
type ListHistoryInput struct {
	Q       string `query:"q" maxLength:"200" doc:"Full-text query over post text and hashtags"`
	Season  string `query:"season" enum:"spring,summer,autumn,winter" doc:"Season id"`
	Purpose string `query:"purpose" enum:"booking,trust,local,value,service" doc:"Purpose id"`
	Tone    string `query:"tone" enum:"family,local,professional,gratitude" doc:"Tone id"`
}

// ListHistoryResponse contains history items.
type ListHistoryResponse struct {
	Items []domain.HistoryItem `json:"items"`
	Total int                  `json:"total"`
}

// ListHistoryOutput wraps the history list for Huma.
type ListHistoryOutput struct {
	Body ListHistoryResponse
}

// GetHistoryItemInput addresses one history item.
type GetHistoryItemInput struct {
	ID int64 `path:"id" doc:"History item id"`
}

// HistoryItemOutput wraps a history item for Huma.
type HistoryItemOutput struct {
	Body domain.HistoryItem
}

// ReindexResponse reports how many items were indexed.
type ReindexResponse struct {
	Indexed int `json:"indexed"`
}

// ReindexOutput wraps the reindex response for Huma.
type ReindexOutput struct {
	Body ReindexResponse
}

// AnalyticsOutput wraps analytics for Huma.
type AnalyticsOutput struct {
	Body domain.Analytics
}

func (s *Server) handleListHistory(ctx context.Context, input *ListHistoryInput) (*ListHistoryOutput, error) {
	items, err := s.services.History.List(ctx, service.HistoryQuery{
		Q:       input.Q,
		Season:  input.Season,
		Purpose: input.Purpose,
		Tone:    input.Tone,
	})
	if err != nil {
		return nil, err
	}
	return &ListHistoryOutput{Body: ListHistoryResponse{Items: items, Total: len(items)}}, nil
}

func (s *Server) handleGetHistoryItem(ctx context.Context, input *GetHistoryItemInput) (*HistoryItemOutput, error) {
	item, err := s.services.History.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &HistoryItemOutput{Body: item}, nil
}

// ExportHistoryItemInput addresses one history item and a format.
type ExportHistoryItemInput struct {
	ID     int64  `path:"id"`
	Format string `query:"format" enum:"txt,xlsx" default:"txt" doc:"File format"`
}

func (s *Server) handleExportHistoryItem(ctx context.Context, input *ExportHistoryItemInput) (*DownloadOutput, error) {
	f, err := export.ParseFormat(input.Format)
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}
	a, err := s.services.History.Export(ctx, input.ID, f)
	if err != nil {
		return nil, err
	}
	return download(a), nil
}

func (s *Server) handleReindexHistory(ctx context.Context, _ *struct{}) (*ReindexOutput, error) {
	n, err := s.services.History.RebuildIndex(ctx)
	if err != nil {
		return nil, err
	}
	return &ReindexOutput{Body: ReindexResponse{Indexed: n}}, nil
}

func (s *Server) handleGetAnalytics(ctx context.Context, _ *struct{}) (*AnalyticsOutput, error) {
	a, err := s.services.History.Analytics(ctx)
	if err != nil {
		return nil, err
	}
	return &AnalyticsOutput{Body: a}, nil
}
