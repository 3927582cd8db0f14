package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/works-s/postsmith/internal/brand"
	"github.com/works-s/postsmith/internal/credential"
	"github.com/works-s/postsmith/internal/domain"
	domainerrors "github.com/works-s/postsmith/internal/errors"
	"github.com/works-s/postsmith/internal/llm"
	"github.com/works-s/postsmith/internal/metrics"
	"github.com/works-s/postsmith/internal/prompt"
	"github.com/works-s/postsmith/internal/store"
	"github.com/works-s/postsmith/internal/validation"
	"github.com/works-s/postsmith/internal/workspace"
)

var testSelection = domain.Selection{Season: "summer", Purpose: "booking", Tone: "family"}

const threePosts = `{"posts":[{"text":"A"},{"text":"B"},{"text":"C"}]}`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeCapability answers every call with reply, or fails with err.
// A non-nil content replaces the single text block.
type fakeCapability struct {
	mu       sync.Mutex
	reply    string
	content  []llm.ContentBlock
	err      error
	calls    atomic.Int32
	requests []llm.Request
	block    chan struct{}
}

func (f *fakeCapability) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.content != nil {
		return &llm.Response{Content: f.content}, nil
	}
	return &llm.Response{Content: []llm.ContentBlock{{Type: "text", Text: f.reply}}}, nil
}

func (f *fakeCapability) lastRequest() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

// staticKey resolves overrides first and then a fixed key.
type staticKey string

func (k staticKey) Resolve(_ context.Context, override string) (string, credential.Source, error) {
	if override != "" {
		return override, credential.SourceRequest, nil
	}
	if k == "" {
		return "", credential.SourceNone, nil
	}
	return string(k), credential.SourceStored, nil
}

type fixture struct {
	capability *fakeCapability
	records    *store.Records
	workspace  *workspace.Workspace
	metrics    *metrics.Metrics
	gen        *GenerationService
	schedule   *ScheduleService
	history    *HistoryService
}

func newFixture(t *testing.T, key string) *fixture {
	t.Helper()
	f := &fixture{
		capability: &fakeCapability{reply: threePosts},
		records:    store.NewRecords(store.NewMemoryStore(), discardLogger()),
		workspace:  workspace.New(),
		metrics:    metrics.New(),
	}
	v := validation.New()
	f.gen = NewGenerationService(f.capability, prompt.NewBuilder(brand.Static(brand.Default())),
		f.records, f.workspace, staticKey(key), v, f.metrics, discardLogger())
	f.schedule = NewScheduleService(f.records, f.workspace, v, discardLogger())
	f.history = NewHistoryService(f.records, nil, discardLogger())
	return f
}

func history(t *testing.T, r *store.Records) []domain.HistoryItem {
	t.Helper()
	items, err := r.History(context.Background())
	require.NoError(t, err)
	return items
}

func TestGenerate_EmptyCredentialMakesNoCall(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.gen.Generate(context.Background(), "", testSelection)

	assert.True(t, domainerrors.Is(err, domainerrors.ErrMissingCredential))
	assert.Equal(t, int32(0), f.capability.calls.Load())
	assert.Empty(t, history(t, f.records))
}

func TestGenerate_IncompleteSelection(t *testing.T) {
	f := newFixture(t, "sk-test")

	_, err := f.gen.Generate(context.Background(), "sk-test", domain.Selection{Season: "summer"})

	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
	assert.Equal(t, MsgIncompleteSelected, err.(*domainerrors.Error).Message)
	assert.Equal(t, int32(0), f.capability.calls.Load())
}

func TestGenerate_UnknownCategoryCarriesDetails(t *testing.T) {
	f := newFixture(t, "sk-test")

	_, err := f.gen.Generate(context.Background(), "sk-test",
		domain.Selection{Season: "monsoon", Purpose: "booking", Tone: "family"})

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
	assert.Contains(t, domainErr.Details, "season")
}

func TestGenerate_ExtractsObjectFromSurroundingText(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.capability.reply = "Here you go:\n" + threePosts + "\nEnjoy!"

	item, err := f.gen.Generate(context.Background(), "sk-test", testSelection)
	require.NoError(t, err)

	assert.Equal(t, []domain.Post{{Text: "A"}, {Text: "B"}, {Text: "C"}}, item.Posts)
	assert.Equal(t, testSelection, item.Selection())
	assert.Contains(t, item.Hashtags, "#エアコンクリーニング")

	req := f.capability.lastRequest()
	assert.Equal(t, llm.ModePost, req.Mode)
	assert.Equal(t, "sk-test", req.Credential)
	assert.NotEmpty(t, req.SystemPrompt)

	stored := history(t, f.records)
	require.Len(t, stored, 1)
	assert.Equal(t, item.ID, stored[0].ID)
}

func TestGenerate_NoJSONLeavesHistoryUnchanged(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.capability.reply = "I cannot help with that."

	_, err := f.gen.Generate(context.Background(), "sk-test", testSelection)

	assert.True(t, domainerrors.Is(err, domainerrors.ErrGenerationFailed))
	assert.Equal(t, MsgGenerationFailed, err.(*domainerrors.Error).Message)
	assert.Empty(t, history(t, f.records))
}

func TestGenerate_ReplyWithoutTextIsGenericFailure(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.capability.content = []llm.ContentBlock{{Type: "tool_use"}}

	_, err := f.gen.Generate(context.Background(), "sk-test", testSelection)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeGenerationFailed, domainErr.Code)
	assert.Equal(t, MsgGenerationFailed, domainErr.Message)
	assert.True(t, domainErr.Code.Retryable())
	assert.Empty(t, history(t, f.records))
}

func TestGenerate_CapabilityErrorDoesNotLeakKey(t *testing.T) {
	f := newFixture(t, "sk-secret")
	f.capability.err = &llm.StatusError{StatusCode: 529, Type: "overloaded_error", Message: "Overloaded"}

	_, err := f.gen.Generate(context.Background(), "sk-secret", testSelection)

	assert.True(t, domainerrors.Is(err, domainerrors.ErrGenerationFailed))
	assert.NotContains(t, err.Error(), "sk-secret")
	var statusErr *llm.StatusError
	assert.ErrorAs(t, err, &statusErr)
}

func TestGenerate_HistoryCappedAtLimit(t *testing.T) {
	f := newFixture(t, "sk-test")

	for range store.HistoryLimit + 1 {
		_, err := f.gen.Generate(context.Background(), "sk-test", testSelection)
		require.NoError(t, err)
	}

	items := history(t, f.records)
	assert.Len(t, items, store.HistoryLimit)
	assert.Greater(t, items[0].ID, items[len(items)-1].ID)
}

func TestGenerateForWorkspace_InstallsBatch(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.workspace.Select(testSelection)

	batch, err := f.gen.GenerateForWorkspace(context.Background(), "")
	require.NoError(t, err)

	assert.Len(t, batch.Posts, 3)
	assert.Equal(t, testSelection, batch.Selection)
	assert.Equal(t, history(t, f.records)[0].ID, batch.HistoryID)
	assert.False(t, f.workspace.Snapshot().Generating)
}

func TestGenerateForWorkspace_MissingCredentialBeforeBusy(t *testing.T) {
	f := newFixture(t, "")
	f.workspace.Select(testSelection)

	_, err := f.gen.GenerateForWorkspace(context.Background(), "")

	assert.True(t, domainerrors.Is(err, domainerrors.ErrMissingCredential))
	assert.False(t, f.workspace.Snapshot().Generating)
}

func TestGenerateForWorkspace_RejectsConcurrentRun(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.workspace.Select(testSelection)
	f.capability.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.gen.GenerateForWorkspace(context.Background(), "")
		done <- err
	}()

	require.Eventually(t, func() bool { return f.workspace.Snapshot().Generating }, time.Second, 5*time.Millisecond)

	_, err := f.gen.GenerateForWorkspace(context.Background(), "")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrBusy))

	close(f.capability.block)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), f.capability.calls.Load())
}

func TestImagePrompt_TrimsAndUsesImageMode(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.capability.reply = "  A bright living room with a freshly cleaned air conditioner.  \n"

	out, err := f.gen.ImagePrompt(context.Background(), "sk-test", "エアコンをきれいに")
	require.NoError(t, err)

	assert.Equal(t, "A bright living room with a freshly cleaned air conditioner.", out)
	req := f.capability.lastRequest()
	assert.Equal(t, llm.ModeImage, req.Mode)
	assert.Empty(t, req.SystemPrompt)
	assert.Contains(t, req.UserPrompt, "エアコンをきれいに")
}

func TestImagePrompt_BlankReply(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.capability.reply = "   "

	_, err := f.gen.ImagePrompt(context.Background(), "sk-test", "text")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNoOutputExtracted))
}

func TestImagePrompt_Failure(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.capability.err = errors.New("connection reset")

	_, err := f.gen.ImagePrompt(context.Background(), "sk-test", "text")

	assert.True(t, domainerrors.Is(err, domainerrors.ErrGenerationFailed))
	assert.Equal(t, MsgImagePromptFailed, err.(*domainerrors.Error).Message)
}

func TestImagePromptForPost(t *testing.T) {
	f := newFixture(t, "sk-test")
	f.workspace.Select(testSelection)
	_, err := f.gen.GenerateForWorkspace(context.Background(), "")
	require.NoError(t, err)

	f.capability.reply = "prompt for B"
	ip, err := f.gen.ImagePromptForPost(context.Background(), "", 1)
	require.NoError(t, err)

	assert.Equal(t, 1, ip.Index)
	assert.Equal(t, "prompt for B", ip.Prompt)
	assert.Contains(t, f.capability.lastRequest().UserPrompt, "B")
	assert.Len(t, f.workspace.Snapshot().ImagePrompts, 1)

	_, err = f.gen.ImagePromptForPost(context.Background(), "", 7)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestProxy_FillsStoredCredential(t *testing.T) {
	f := newFixture(t, "sk-stored")

	resp, err := f.gen.Proxy(context.Background(), llm.Request{UserPrompt: "hi", Mode: llm.ModeImage})
	require.NoError(t, err)

	text, ok := llm.FirstText(resp)
	assert.True(t, ok)
	assert.Equal(t, threePosts, text)
	assert.Equal(t, "sk-stored", f.capability.lastRequest().Credential)
}

func TestProxy_RejectsUnknownMode(t *testing.T) {
	f := newFixture(t, "sk-stored")

	_, err := f.gen.Proxy(context.Background(), llm.Request{UserPrompt: "hi", Mode: "chat"})

	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
	assert.Equal(t, int32(0), f.capability.calls.Load())
}
