package api

import (
	"context"
	"mime"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/works-s/postsmith/internal/domain"
	domainerrors "github.com/works-s/postsmith/internal/errors"
	"github.com/works-s/postsmith/internal/export"
	"github.com/works-s/postsmith/internal/service"
	"github.com/works-s/postsmith/internal/workspace"
)

func (s *Server) registerWorkspaceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getWorkspace",
		Method:      http.MethodGet,
		Path:        "/api/v1/workspace",
		Summary:     "Get workspace",
		Description: "Returns the current selection, batch, image prompts and busy flags",
		Tags:        []string{"Workspace"},
	}, s.handleGetWorkspace)

	huma.Register(s.api, huma.Operation{
		OperationID: "setSelection",
		Method:      http.MethodPut,
		Path:        "/api/v1/workspace/selection",
		Summary:     "Set selection",
		Description: "Replaces the season, purpose and tone selection",
		Tags:        []string{"Workspace"},
	}, s.handleSetSelection)

	huma.Register(s.api, huma.Operation{
		OperationID: "resetWorkspace",
		Method:      http.MethodPost,
		Path:        "/api/v1/workspace/reset",
		Summary:     "Reset workspace",
		Description: "Clears the batch and image prompts and reselects the current season",
		Tags:        []string{"Workspace"},
	}, s.handleResetWorkspace)

	huma.Register(s.api, huma.Operation{
		OperationID: "generateBatch",
		Method:      http.MethodPost,
		Path:        "/api/v1/workspace/generate",
		Summary:     "Generate posts",
		Description: "Generates three posts for the current selection and records them in history",
		Tags:        []string{"Workspace"},
		Middlewares: huma.Middlewares{s.rateLimited},
	}, s.handleGenerateBatch)

	huma.Register(s.api, huma.Operation{
		OperationID: "generateImagePrompt",
		Method:      http.MethodPost,
		Path:        "/api/v1/workspace/posts/{index}/image-prompt",
		Summary:     "Generate image prompt",
		Description: "Generates an English image prompt for one post of the current batch",
		Tags:        []string{"Workspace"},
		Middlewares: huma.Middlewares{s.rateLimited},
	}, s.handleGenerateImagePrompt)

	huma.Register(s.api, huma.Operation{
		OperationID: "copyPost",
		Method:      http.MethodGet,
		Path:        "/api/v1/workspace/posts/{index}/copy",
		Summary:     "Get copy text",
		Description: "Returns the post text followed by its hashtags, ready for the clipboard",
		Tags:        []string{"Workspace"},
	}, s.handleCopyPost)

	huma.Register(s.api, huma.Operation{
		OperationID: "exportBatch",
		Method:      http.MethodGet,
		Path:        "/api/v1/workspace/export",
		Summary:     "Export batch",
		Description: "Downloads the current batch as text or a workbook",
		Tags:        []string{"Workspace"},
	}, s.handleExportBatch)
}

// WorkspaceOutput wraps a workspace snapshot for Huma.
type WorkspaceOutput struct {
	Body workspace.Snapshot
}

// SelectionInput wraps a selection update for Huma.
type SelectionInput struct {
	Body service.SelectionInput
}

// GenerateInput carries an optional credential override.
type GenerateInput struct {
	APIKey string `header:"X-API-Key" doc:"Overrides the stored API key for this request"`
}

// BatchOutput wraps a generated batch for Huma.
type BatchOutput struct {
	Body BatchResponse
}

// PostView is a post with its length check.
type PostView struct {
	Text   string             `json:"text"`
	Length int                `json:"length" doc:"Characters after NFC normalization"`
	Level  domain.LengthLevel `json:"level" enum:"ok,warning,too_long"`
}

// BatchResponse is a batch with per-post length checks.
type BatchResponse struct {
	ID        string           `json:"id"`
	HistoryID int64            `json:"history_id"`
	Selection domain.Selection `json:"selection"`
	Posts     []PostView       `json:"posts"`
	Hashtags  []string         `json:"hashtags"`
}

// PostIndexInput addresses one post of the current batch.
type PostIndexInput struct {
	APIKey string `header:"X-API-Key" doc:"Overrides the stored API key for this request"`
	Index  int    `path:"index" minimum:"0" doc:"Zero-based post index"`
}

// ImagePromptOutput wraps an image prompt for Huma.
type ImagePromptOutput struct {
	Body domain.ImagePrompt
}

// CopyResponse is the clipboard text for one post.
type CopyResponse struct {
	Text string `json:"text"`
}

// CopyOutput wraps the copy text for Huma.
type CopyOutput struct {
	Body CopyResponse
}

// ExportInput selects the export format.
type ExportInput struct {
	Format string `query:"format" enum:"txt,xlsx" default:"txt" doc:"File format"`
}

// DownloadOutput is a file download.
type DownloadOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

func (s *Server) handleGetWorkspace(_ context.Context, _ *struct{}) (*WorkspaceOutput, error) {
	return &WorkspaceOutput{Body: s.services.Workspace.Snapshot()}, nil
}

func (s *Server) handleSetSelection(_ context.Context, input *SelectionInput) (*WorkspaceOutput, error) {
	snap, err := s.services.Workspace.Select(input.Body)
	if err != nil {
		return nil, err
	}
	return &WorkspaceOutput{Body: snap}, nil
}

func (s *Server) handleResetWorkspace(_ context.Context, _ *struct{}) (*WorkspaceOutput, error) {
	return &WorkspaceOutput{Body: s.services.Workspace.Reset()}, nil
}

func (s *Server) handleGenerateBatch(ctx context.Context, input *GenerateInput) (*BatchOutput, error) {
	batch, err := s.services.Generation.GenerateForWorkspace(ctx, input.APIKey)
	if err != nil {
		return nil, err
	}
	return &BatchOutput{Body: batchResponse(batch)}, nil
}

func (s *Server) handleGenerateImagePrompt(ctx context.Context, input *PostIndexInput) (*ImagePromptOutput, error) {
	ip, err := s.services.Generation.ImagePromptForPost(ctx, input.APIKey, input.Index)
	if err != nil {
		return nil, err
	}
	return &ImagePromptOutput{Body: ip}, nil
}

func (s *Server) handleCopyPost(_ context.Context, input *PostIndexInput) (*CopyOutput, error) {
	text, err := s.services.Workspace.CopyText(input.Index)
	if err != nil {
		return nil, err
	}
	return &CopyOutput{Body: CopyResponse{Text: text}}, nil
}

func (s *Server) handleExportBatch(_ context.Context, input *ExportInput) (*DownloadOutput, error) {
	f, err := export.ParseFormat(input.Format)
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}
	a, err := s.services.Workspace.Export(f)
	if err != nil {
		return nil, err
	}
	return download(a), nil
}

func download(a service.Artifact) *DownloadOutput {
	return &DownloadOutput{
		ContentType:        a.ContentType,
		ContentDisposition: mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}),
		Body:               a.Data,
	}
}

func batchResponse(b workspace.Batch) BatchResponse {
	posts := make([]PostView, len(b.Posts))
	for i, p := range b.Posts {
		posts[i] = PostView{Text: p.Text, Length: p.Length(), Level: p.Level()}
	}
	return BatchResponse{
		ID:        b.ID,
		HistoryID: b.HistoryID,
		Selection: b.Selection,
		Posts:     posts,
		Hashtags:  b.Hashtags,
	}
}
