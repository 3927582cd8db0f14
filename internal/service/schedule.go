package service

import (
	"context"
	"log/slog"

	"github.com/works-s/postsmith/internal/domain"
	"github.com/works-s/postsmith/internal/store"
	"github.com/works-s/postsmith/internal/validation"
	"github.com/works-s/postsmith/internal/workspace"
)

// ScheduleInput is a post to plan by hand.
type ScheduleInput struct {
	Post     string   `json:"post" validate:"required,max=2000"`
	Date     string   `json:"date" validate:"required,isodate"`
	Time     string   `json:"time" validate:"required,hhmm"`
	Hashtags []string `json:"hashtags,omitempty"`
	Season   string   `json:"season,omitempty" validate:"omitempty,season"`
	Purpose  string   `json:"purpose,omitempty" validate:"omitempty,purpose"`
	Tone     string   `json:"tone,omitempty" validate:"omitempty,tone"`
}

// SlotInput is the date and time for scheduling a post of the current batch.
type SlotInput struct {
	Date string `json:"date" validate:"required,isodate"`
	Time string `json:"time" validate:"required,hhmm"`
}

// ScheduleService manages the scheduled post list.
type ScheduleService struct {
	records   *store.Records
	workspace *workspace.Workspace
	validator *validation.Validator
	logger    *slog.Logger
}

// NewScheduleService creates a new schedule service.
func NewScheduleService(records *store.Records, ws *workspace.Workspace, validator *validation.Validator, logger *slog.Logger) *ScheduleService {
	return &ScheduleService{
		records:   records,
		workspace: ws,
		validator: validator,
		logger:    logger,
	}
}

// List returns scheduled posts in ascending date and time order.
func (s *ScheduleService) List(ctx context.Context) ([]domain.ScheduledPost, error) {
	return s.records.Schedule(ctx)
}

// Add schedules a post given by hand.
func (s *ScheduleService) Add(ctx context.Context, in ScheduleInput) (domain.ScheduledPost, error) {
	if err := s.validator.Validate(in); err != nil {
		return domain.ScheduledPost{}, err
	}
	hashtags := in.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	return s.records.AddScheduled(ctx, domain.ScheduledPost{
		Post:     in.Post,
		Date:     in.Date,
		Time:     in.Time,
		Hashtags: hashtags,
		Season:   in.Season,
		Purpose:  in.Purpose,
		Tone:     in.Tone,
	})
}

// AddFromBatch schedules post index of the current batch, carrying the
// batch's hashtags and selection.
func (s *ScheduleService) AddFromBatch(ctx context.Context, index int, slot SlotInput) (domain.ScheduledPost, error) {
	if err := s.validator.Validate(slot); err != nil {
		return domain.ScheduledPost{}, err
	}
	post, batch, err := s.workspace.Post(index)
	if err != nil {
		return domain.ScheduledPost{}, err
	}

	scheduled, err := s.records.AddScheduled(ctx, domain.ScheduledPost{
		Post:     post.Text,
		Date:     slot.Date,
		Time:     slot.Time,
		Hashtags: append([]string(nil), batch.Hashtags...),
		Season:   batch.Selection.Season,
		Purpose:  batch.Selection.Purpose,
		Tone:     batch.Selection.Tone,
	})
	if err != nil {
		return domain.ScheduledPost{}, err
	}
	s.logger.Debug("batch post scheduled", "batch_id", batch.ID, "index", index, "schedule_id", scheduled.ID)
	return scheduled, nil
}

// Remove deletes a scheduled post.
func (s *ScheduleService) Remove(ctx context.Context, id int64) error {
	return s.records.RemoveScheduled(ctx, id)
}
