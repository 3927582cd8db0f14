package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/works-s/postsmith/internal/domain"
	"github.com/works-s/postsmith/internal/service"
)

func (s *Server) registerScheduleRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listSchedule",
		Method:      http.MethodGet,
		Path:        "/api/v1/schedule",
		Summary:     "List scheduled posts",
		Description: "Returns scheduled posts in date and time order",
		Tags:        []string{"Schedule"},
	}, s.handleListSchedule)

	huma.Register(s.api, huma.Operation{
		OperationID:   "addSchedule",
		Method:        http.MethodPost,
		Path:          "/api/v1/schedule",
		Summary:       "Schedule a post",
		Tags:          []string{"Schedule"},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddSchedule)

	huma.Register(s.api, huma.Operation{
		OperationID:   "scheduleBatchPost",
		Method:        http.MethodPost,
		Path:          "/api/v1/workspace/posts/{index}/schedule",
		Summary:       "Schedule a batch post",
		Description:   "Schedules one post of the current batch with the batch's hashtags",
		Tags:          []string{"Schedule"},
		DefaultStatus: http.StatusCreated,
	}, s.handleScheduleBatchPost)

	huma.Register(s.api, huma.Operation{
		OperationID:   "removeSchedule",
		Method:        http.MethodDelete,
		Path:          "/api/v1/schedule/{id}",
		Summary:       "Remove a scheduled post",
		Tags:          []string{"Schedule"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleRemoveSchedule)

	huma.Register(s.api, huma.Operation{
		OperationID: "exportSchedule",
		Method:      http.MethodGet,
		Path:        "/api/v1/schedule/export",
		Summary:     "Export schedule",
		Description: "Downloads the schedule as a workbook",
		Tags:        []string{"Schedule"},
	}, s.handleExportSchedule)
}

// ListScheduleResponse contains scheduled posts.
type ListScheduleResponse struct {
	Items []domain.ScheduledPost `json:"items"`
}

// ListScheduleOutput wraps the schedule for Huma.
type ListScheduleOutput struct {
	Body ListScheduleResponse
}

// AddScheduleInput wraps a hand-written schedule entry for Huma.
type AddScheduleInput struct {
	Body service.ScheduleInput
}

// ScheduleBatchPostInput wraps a batch post slot for Huma.
type ScheduleBatchPostInput struct {
	Index int `path:"index" minimum:"0" doc:"Zero-based post index"`
	Body  service.SlotInput
}

// ScheduledPostOutput wraps a scheduled post for Huma.
type ScheduledPostOutput struct {
	Body domain.ScheduledPost
}

// RemoveScheduleInput addresses one scheduled post.
type RemoveScheduleInput struct {
	ID int64 `path:"id" doc:"Scheduled post id"`
}

func (s *Server) handleListSchedule(ctx context.Context, _ *struct{}) (*ListScheduleOutput, error) {
	items, err := s.services.Schedule.List(ctx)
	if err != nil {
		return nil, err
	}
	return &ListScheduleOutput{Body: ListScheduleResponse{Items: items}}, nil
}

func (s *Server) handleAddSchedule(ctx context.Context, input *AddScheduleInput) (*ScheduledPostOutput, error) {
	sp, err := s.services.Schedule.Add(ctx, input.Body)
	if err != nil {
		return nil, err
	}
	return &ScheduledPostOutput{Body: sp}, nil
}

func (s *Server) handleScheduleBatchPost(ctx context.Context, input *ScheduleBatchPostInput) (*ScheduledPostOutput, error) {
	sp, err := s.services.Schedule.AddFromBatch(ctx, input.Index, input.Body)
	if err != nil {
		return nil, err
	}
	return &ScheduledPostOutput{Body: sp}, nil
}

func (s *Server) handleRemoveSchedule(ctx context.Context, input *RemoveScheduleInput) (*struct{}, error) {
	if err := s.services.Schedule.Remove(ctx, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleExportSchedule(ctx context.Context, _ *struct{}) (*DownloadOutput, error) {
	a, err := s.services.Workspace.ExportSchedule(ctx)
	if err != nil {
		return nil, err
	}
	return download(a), nil
}
