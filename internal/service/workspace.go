package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/works-s/postsmith/internal/domain"
	domainerrors "github.com/works-s/postsmith/internal/errors"
	"github.com/works-s/postsmith/internal/export"
	"github.com/works-s/postsmith/internal/store"
	"github.com/works-s/postsmith/internal/validation"
	"github.com/works-s/postsmith/internal/workspace"
)

// Export messages.
const (
	MsgNothingToExport = "エクスポートする投稿がありません"
	MsgCopyFailed      = "コピーに失敗しました"
)

// SelectionInput is a possibly partial selection. Unset fields are cleared.
type SelectionInput struct {
	Season  string `json:"season,omitempty" validate:"omitempty,season"`
	Purpose string `json:"purpose,omitempty" validate:"omitempty,purpose"`
	Tone    string `json:"tone,omitempty" validate:"omitempty,tone"`
}

// Artifact is a rendered download.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// WorkspaceService exposes the in-progress workspace.
type WorkspaceService struct {
	workspace *workspace.Workspace
	records   *store.Records
	validator *validation.Validator
	now       func() time.Time
	logger    *slog.Logger
}

// NewWorkspaceService creates a new workspace service.
func NewWorkspaceService(ws *workspace.Workspace, records *store.Records, validator *validation.Validator, logger *slog.Logger) *WorkspaceService {
	return &WorkspaceService{
		workspace: ws,
		records:   records,
		validator: validator,
		now:       time.Now,
		logger:    logger,
	}
}

// Snapshot returns the current workspace state.
func (s *WorkspaceService) Snapshot() workspace.Snapshot {
	return s.workspace.Snapshot()
}

// Select replaces the selection.
func (s *WorkspaceService) Select(in SelectionInput) (workspace.Snapshot, error) {
	if err := s.validator.Validate(in); err != nil {
		return workspace.Snapshot{}, err
	}
	return s.workspace.Select(domain.Selection(in)), nil
}

// Reset clears the batch and image prompts and reselects the current season.
func (s *WorkspaceService) Reset() workspace.Snapshot {
	return s.workspace.Reset()
}

// CopyText returns the clipboard text for post index of the current batch.
func (s *WorkspaceService) CopyText(index int) (string, error) {
	post, batch, err := s.workspace.Post(index)
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			return "", domainerrors.NotFound(MsgCopyFailed).WithCause(err)
		}
		return "", err
	}
	return export.CopyText(post, batch.Hashtags), nil
}

// Export renders the current batch in format f.
func (s *WorkspaceService) Export(f export.Format) (Artifact, error) {
	batch, ok := s.workspace.Batch()
	if !ok || len(batch.Posts) == 0 {
		return Artifact{}, domainerrors.NotFound(MsgNothingToExport)
	}

	return renderBatch(export.Filename(s.now(), f), f, batch.Selection, batch.Posts, batch.Hashtags)
}

func renderBatch(name string, f export.Format, sel domain.Selection, posts []domain.Post, hashtags []string) (Artifact, error) {
	if f == export.FormatXLSX {
		data, err := export.BatchWorkbook(sel, posts, hashtags)
		if err != nil {
			return Artifact{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to render workbook")
		}
		return Artifact{Filename: name, ContentType: f.ContentType(), Data: data}, nil
	}
	return Artifact{Filename: name, ContentType: f.ContentType(), Data: []byte(export.Text(posts, hashtags))}, nil
}

// ExportSchedule renders the schedule as a workbook.
func (s *WorkspaceService) ExportSchedule(ctx context.Context) (Artifact, error) {
	items, err := s.records.Schedule(ctx)
	if err != nil {
		return Artifact{}, err
	}
	data, err := export.ScheduleWorkbook(items)
	if err != nil {
		return Artifact{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to render workbook")
	}
	return Artifact{
		Filename:    export.ScheduleFilename(s.now()),
		ContentType: export.ContentTypeXLSX,
		Data:        data,
	}, nil
}
