// Package service orchestrates generation, records and the workspace.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/works-s/postsmith/internal/credential"
	"github.com/works-s/postsmith/internal/domain"
	domainerrors "github.com/works-s/postsmith/internal/errors"
	"github.com/works-s/postsmith/internal/generation"
	"github.com/works-s/postsmith/internal/hashtag"
	"github.com/works-s/postsmith/internal/llm"
	"github.com/works-s/postsmith/internal/metrics"
	"github.com/works-s/postsmith/internal/prompt"
	"github.com/works-s/postsmith/internal/store"
	"github.com/works-s/postsmith/internal/validation"
	"github.com/works-s/postsmith/internal/workspace"
)

// User-facing messages. Generation failures share one notice regardless of cause.
const (
	MsgGenerationFailed   = "投稿の生成中にエラーが発生しました。もう一度お試しください。"
	MsgImagePromptFailed  = "画像プロンプトの生成に失敗しました"
	MsgMissingCredential  = "APIキーが設定されていません"
	MsgIncompleteSelected = "すべての項目を選択してください"
	MsgNoImagePrompt      = "画像プロンプトを取得できませんでした"
)

// CredentialResolver picks the API key for a call.
type CredentialResolver interface {
	Resolve(ctx context.Context, override string) (string, credential.Source, error)
}

// GenerationService runs the post and image prompt flows.
type GenerationService struct {
	capability  llm.Capability
	prompts     *prompt.Builder
	records     *store.Records
	workspace   *workspace.Workspace
	credentials CredentialResolver
	validator   *validation.Validator
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewGenerationService creates a new generation service. m may be nil.
func NewGenerationService(
	capability llm.Capability,
	prompts *prompt.Builder,
	records *store.Records,
	ws *workspace.Workspace,
	credentials CredentialResolver,
	validator *validation.Validator,
	m *metrics.Metrics,
	logger *slog.Logger,
) *GenerationService {
	return &GenerationService{
		capability:  capability,
		prompts:     prompts,
		records:     records,
		workspace:   ws,
		credentials: credentials,
		validator:   validator,
		metrics:     m,
		logger:      logger,
	}
}

// Generate produces one batch of posts for sel and records it in history
// before returning. On any failure nothing is recorded.
func (s *GenerationService) Generate(ctx context.Context, apiKey string, sel domain.Selection) (domain.HistoryItem, error) {
	if apiKey == "" {
		s.metrics.ObserveGeneration(string(llm.ModePost), metrics.OutcomeMissingCredential, 0)
		return domain.HistoryItem{}, domainerrors.MissingCredential(MsgMissingCredential)
	}
	if err := s.validateSelection(sel); err != nil {
		return domain.HistoryItem{}, err
	}

	p := s.prompts.PostPrompts(sel)
	text, elapsed, err := s.complete(ctx, llm.Request{
		Credential:   apiKey,
		SystemPrompt: p.System,
		UserPrompt:   p.User,
		Mode:         llm.ModePost,
	})
	if err != nil {
		return domain.HistoryItem{}, s.failPosts(err, elapsed)
	}

	posts, err := generation.Posts(text)
	if err != nil {
		return domain.HistoryItem{}, s.failPosts(err, elapsed)
	}

	item, err := s.records.AppendHistory(ctx, sel, posts, hashtag.Derive(sel.Season, sel.Purpose))
	if err != nil {
		s.metrics.ObserveGeneration(string(llm.ModePost), metrics.OutcomePersistence, elapsed)
		return domain.HistoryItem{}, err
	}

	s.metrics.ObserveGeneration(string(llm.ModePost), metrics.OutcomeSuccess, elapsed)
	s.logger.Info("posts generated",
		"history_id", item.ID,
		"season", sel.Season,
		"purpose", sel.Purpose,
		"tone", sel.Tone,
		"posts", len(posts),
		"duration", elapsed)
	return item, nil
}

// GenerateForWorkspace generates for the workspace selection and installs the
// result as the current batch. Only one runs at a time.
func (s *GenerationService) GenerateForWorkspace(ctx context.Context, override string) (workspace.Batch, error) {
	apiKey, err := s.resolve(ctx, override)
	if err != nil {
		return workspace.Batch{}, err
	}

	sel, err := s.workspace.Begin(workspace.TaskPosts)
	if err != nil {
		return workspace.Batch{}, err
	}
	defer s.workspace.End(workspace.TaskPosts)

	item, err := s.Generate(ctx, apiKey, sel)
	if err != nil {
		return workspace.Batch{}, err
	}
	return s.workspace.SetBatch(item.ID, sel, item.Posts, item.Hashtags)
}

// ImagePrompt asks for a short English image prompt describing postText.
// The trimmed text of the reply is used as is.
func (s *GenerationService) ImagePrompt(ctx context.Context, apiKey, postText string) (string, error) {
	if apiKey == "" {
		s.metrics.ObserveGeneration(string(llm.ModeImage), metrics.OutcomeMissingCredential, 0)
		return "", domainerrors.MissingCredential(MsgMissingCredential)
	}

	text, elapsed, err := s.complete(ctx, llm.Request{
		Credential: apiKey,
		UserPrompt: prompt.ImagePrompt(postText),
		Mode:       llm.ModeImage,
	})
	if err != nil {
		if domainerrors.Is(err, domainerrors.ErrNoOutputExtracted) {
			s.metrics.ObserveGeneration(string(llm.ModeImage), metrics.OutcomeNoOutput, elapsed)
			return "", err
		}
		s.metrics.ObserveGeneration(string(llm.ModeImage), metrics.OutcomeFailed, elapsed)
		s.logger.Warn("image prompt generation failed", "error", err)
		return "", domainerrors.GenerationFailed(MsgImagePromptFailed, err)
	}

	out, ok := generation.ImagePrompt(text)
	if !ok {
		s.metrics.ObserveGeneration(string(llm.ModeImage), metrics.OutcomeNoOutput, elapsed)
		return "", domainerrors.NoOutputExtracted(MsgNoImagePrompt)
	}

	s.metrics.ObserveGeneration(string(llm.ModeImage), metrics.OutcomeSuccess, elapsed)
	return out, nil
}

// ImagePromptForPost builds the image prompt for the post at index in the
// current batch and stores it there, replacing any earlier prompt.
func (s *GenerationService) ImagePromptForPost(ctx context.Context, override string, index int) (domain.ImagePrompt, error) {
	apiKey, err := s.resolve(ctx, override)
	if err != nil {
		return domain.ImagePrompt{}, err
	}

	post, batch, err := s.workspace.Post(index)
	if err != nil {
		return domain.ImagePrompt{}, err
	}

	if _, err := s.workspace.Begin(workspace.TaskImagePrompt); err != nil {
		return domain.ImagePrompt{}, err
	}
	defer s.workspace.End(workspace.TaskImagePrompt)

	text, err := s.ImagePrompt(ctx, apiKey, post.Text)
	if err != nil {
		return domain.ImagePrompt{}, err
	}
	return s.workspace.SetImagePrompt(batch.ID, index, text)
}

// Proxy forwards one raw request to the capability, filling in the stored
// credential when the request carries none.
func (s *GenerationService) Proxy(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if !req.Mode.Valid() {
		return nil, domainerrors.Validationf("mode must be %q or %q", llm.ModePost, llm.ModeImage)
	}
	apiKey, err := s.resolve(ctx, req.Credential)
	if err != nil {
		return nil, err
	}
	req.Credential = apiKey

	start := time.Now()
	resp, err := s.capability.Complete(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveGeneration(string(req.Mode), metrics.OutcomeFailed, elapsed)
		s.logger.Warn("proxied generation failed", "mode", req.Mode, "error", err)
		return nil, domainerrors.GenerationFailed(MsgGenerationFailed, err)
	}
	s.metrics.ObserveGeneration(string(req.Mode), metrics.OutcomeSuccess, elapsed)
	return resp, nil
}

// complete calls the capability and returns the first text block.
func (s *GenerationService) complete(ctx context.Context, req llm.Request) (string, time.Duration, error) {
	start := time.Now()
	resp, err := s.capability.Complete(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		return "", elapsed, err
	}
	text, ok := llm.FirstText(resp)
	if !ok {
		return "", elapsed, domainerrors.NoOutputExtracted("応答にテキストが含まれていません")
	}
	return text, elapsed, nil
}

// failPosts logs the real cause and returns the single user-facing error.
func (s *GenerationService) failPosts(err error, elapsed time.Duration) error {
	if domainerrors.Is(err, domainerrors.ErrNoOutputExtracted) {
		s.metrics.ObserveGeneration(string(llm.ModePost), metrics.OutcomeNoOutput, elapsed)
		s.logger.Warn("post generation failed", "stage", "no_text", "error", err)
		return domainerrors.GenerationFailed(MsgGenerationFailed, err)
	}

	s.metrics.ObserveGeneration(string(llm.ModePost), metrics.OutcomeFailed, elapsed)
	stage := "capability"
	switch {
	case errors.Is(err, generation.ErrNoJSONObject):
		stage = "extract"
	case errors.Is(err, generation.ErrMalformedResponse):
		stage = "parse"
	}
	s.logger.Warn("post generation failed", "stage", stage, "error", err)
	return domainerrors.GenerationFailed(MsgGenerationFailed, err)
}

func (s *GenerationService) resolve(ctx context.Context, override string) (string, error) {
	apiKey, src, err := s.credentials.Resolve(ctx, override)
	if err != nil {
		return "", err
	}
	if apiKey == "" {
		return "", domainerrors.MissingCredential(MsgMissingCredential)
	}
	s.logger.Debug("credential resolved", "source", src, "fingerprint", credential.Fingerprint(apiKey))
	return apiKey, nil
}

func (s *GenerationService) validateSelection(sel domain.Selection) error {
	if !sel.Complete() {
		return domainerrors.Validation(MsgIncompleteSelected)
	}
	if err := s.validator.Validate(sel); err != nil {
		var domainErr *domainerrors.Error
		if errors.As(err, &domainErr) {
			return domainerrors.ValidationWithDetails(MsgIncompleteSelected, domainErr.Details)
		}
		return err
	}
	return nil
}
