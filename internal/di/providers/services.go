package providers

import (
	"github.com/samber/do/v2"

	"github.com/works-s/postsmith/internal/config"
	"github.com/works-s/postsmith/internal/credential"
	"github.com/works-s/postsmith/internal/llm"
	"github.com/works-s/postsmith/internal/metrics"
	"github.com/works-s/postsmith/internal/prompt"
	"github.com/works-s/postsmith/internal/ratelimit"
	"github.com/works-s/postsmith/internal/service"
	"github.com/works-s/postsmith/internal/store"
	"github.com/works-s/postsmith/internal/validation"
	"github.com/works-s/postsmith/internal/workspace"
)

// ProvideCapability provides the Anthropic-backed text generation capability.
func ProvideCapability(i do.Injector) (llm.Capability, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return llm.NewAnthropicClient(llm.AnthropicConfig{
		BaseURL:        cfg.Anthropic.BaseURL,
		Model:          cfg.Anthropic.Model,
		Timeout:        cfg.Anthropic.Timeout,
		PostMaxTokens:  cfg.Anthropic.PostMaxTokens,
		ImageMaxTokens: cfg.Anthropic.ImageMaxTokens,
	}), nil
}

// ProvideValidator provides the shared request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideWorkspace provides the single-user workspace state.
func ProvideWorkspace(i do.Injector) (*workspace.Workspace, error) {
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	return workspace.New(workspace.WithEmitter(sseHandle.Manager)), nil
}

// RateLimiterHandle wraps the generation rate limiter so its sweeper stops on shutdown.
type RateLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideRateLimiter provides the per-client limiter for generation endpoints.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return &RateLimiterHandle{KeyedRateLimiter: ratelimit.PerMinute(cfg.Server.GenerateRatePerMinute)}, nil
}

// ProvideGenerationService provides the generation service.
func ProvideGenerationService(i do.Injector) (*service.GenerationService, error) {
	capability := do.MustInvoke[llm.Capability](i)
	brandHandle := do.MustInvoke[*BrandHandle](i)
	records := do.MustInvoke[*store.Records](i)
	ws := do.MustInvoke[*workspace.Workspace](i)
	vault := do.MustInvoke[*credential.Vault](i)
	v := do.MustInvoke[*validation.Validator](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return service.NewGenerationService(capability, prompt.NewBuilder(brandHandle),
		records, ws, vault, v, m, log.Logger.Logger), nil
}

// ProvideWorkspaceService provides the workspace service.
func ProvideWorkspaceService(i do.Injector) (*service.WorkspaceService, error) {
	ws := do.MustInvoke[*workspace.Workspace](i)
	records := do.MustInvoke[*store.Records](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return service.NewWorkspaceService(ws, records, v, log.Logger.Logger), nil
}

// ProvideScheduleService provides the schedule service.
func ProvideScheduleService(i do.Injector) (*service.ScheduleService, error) {
	records := do.MustInvoke[*store.Records](i)
	ws := do.MustInvoke[*workspace.Workspace](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return service.NewScheduleService(records, ws, v, log.Logger.Logger), nil
}

// ProvideHistoryService provides the history service.
func ProvideHistoryService(i do.Injector) (*service.HistoryService, error) {
	records := do.MustInvoke[*store.Records](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return service.NewHistoryService(records, indexHandle.HistoryIndex, log.Logger.Logger), nil
}
