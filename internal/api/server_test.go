package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/works-s/postsmith/internal/backup"
	"github.com/works-s/postsmith/internal/brand"
	"github.com/works-s/postsmith/internal/credential"
	"github.com/works-s/postsmith/internal/domain"
	domainerrors "github.com/works-s/postsmith/internal/errors"
	"github.com/works-s/postsmith/internal/llm"
	"github.com/works-s/postsmith/internal/metrics"
	"github.com/works-s/postsmith/internal/prompt"
	"github.com/works-s/postsmith/internal/ratelimit"
	"github.com/works-s/postsmith/internal/search"
	"github.com/works-s/postsmith/internal/service"
	"github.com/works-s/postsmith/internal/sse"
	"github.com/works-s/postsmith/internal/store"
	"github.com/works-s/postsmith/internal/validation"
	"github.com/works-s/postsmith/internal/workspace"
)

const threePosts = `{"posts":[{"text":"夏のエアコン掃除"},{"text":"B"},{"text":"C"}]}`

type scriptedCapability struct {
	reply string
	err   error
	calls atomic.Int32
	keys  []string
}

func (c *scriptedCapability) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.calls.Add(1)
	c.keys = append(c.keys, req.Credential)
	if c.err != nil {
		return nil, c.err
	}
	return &llm.Response{Content: []llm.ContentBlock{{Type: "text", Text: c.reply}}}, nil
}

type testServer struct {
	*Server
	api        humatest.TestAPI
	capability *scriptedCapability
	records    *store.Records
	vault      *credential.Vault
}

func setupTestServer(t *testing.T, ratePerMinute int) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	blobs := store.NewMemoryStore()
	key, err := credential.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)

	index, err := search.NewHistoryIndex(search.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	sseManager := sse.NewManager(logger)
	m := metrics.New()
	records := store.NewRecords(blobs, logger,
		store.WithIndexer(index),
		store.WithEmitter(sseManager),
		store.WithCountObserver(m.SetRecordCount),
	)
	ws := workspace.New(workspace.WithEmitter(sseManager))
	vault := credential.NewVault(blobs, key, "", logger)
	v := validation.New()
	capability := &scriptedCapability{reply: threePosts}

	limiter := ratelimit.PerMinute(ratePerMinute)
	t.Cleanup(limiter.Stop)

	services := &Services{
		Generation: service.NewGenerationService(capability, prompt.NewBuilder(brand.Static(brand.Default())),
			records, ws, vault, v, m, logger),
		Workspace:  service.NewWorkspaceService(ws, records, v, logger),
		Schedule:   service.NewScheduleService(records, ws, v, logger),
		History:    service.NewHistoryService(records, index, logger),
		Credential: vault,
		Backups:    backup.NewBackupService(records, filepath.Join(t.TempDir(), "backups"), logger),
		Restores:   backup.NewRestoreService(records, logger),
	}

	s := NewServer(services, Deps{
		Store:      blobs,
		Index:      index,
		SSEManager: sseManager,
		Metrics:    m,
		Limiter:    limiter,
		Logger:     logger,
	})

	return &testServer{
		Server:     s,
		api:        humatest.Wrap(t, s.API()),
		capability: capability,
		records:    records,
		vault:      vault,
	}
}

func decode[T any](t *testing.T, body io.Reader) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(body).Decode(&v))
	return v
}

func (ts *testServer) saveKey(t *testing.T) {
	t.Helper()
	resp := ts.api.Put("/api/v1/credential", map[string]any{"api_key": "sk-ant-test"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func (ts *testServer) selectAll(t *testing.T) {
	t.Helper()
	resp := ts.api.Put("/api/v1/workspace/selection", map[string]any{
		"season": "summer", "purpose": "booking", "tone": "family",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t, 10)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	body := decode[HealthResponse](t, resp.Body)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "healthy", body.Components["store"].Status)
	assert.Equal(t, "0 indexed", body.Components["search"].Message)
	assert.Equal(t, "0 open tabs", body.Components["sse"].Message)
	assert.Equal(t, "no API key, generation disabled", body.Components["credential"].Message)

	ts.saveKey(t)
	body = decode[HealthResponse](t, ts.api.Get("/health").Body)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "key from stored", body.Components["credential"].Message)
	assert.NotContains(t, body.Components["credential"].Message, "sk-ant")
}

func TestWorstStatus(t *testing.T) {
	assert.Equal(t, "healthy", worstStatus(nil))
	assert.Equal(t, "degraded", worstStatus(map[string]ComponentHealth{
		"a": {Status: "healthy"}, "b": {Status: "degraded"},
	}))
	assert.Equal(t, "unhealthy", worstStatus(map[string]ComponentHealth{
		"a": {Status: "unhealthy"}, "b": {Status: "degraded"},
	}))
}

func TestCatalogAndHashtags(t *testing.T) {
	ts := setupTestServer(t, 10)

	resp := ts.api.Get("/api/v1/catalog")
	require.Equal(t, http.StatusOK, resp.Code)
	cat := decode[CatalogResponse](t, resp.Body)
	assert.Len(t, cat.Seasons, 4)
	assert.Len(t, cat.Purposes, 5)
	assert.NotEmpty(t, cat.CurrentSeason)

	resp = ts.api.Get("/api/v1/hashtags?season=winter&purpose=trust")
	require.Equal(t, http.StatusOK, resp.Code)
	tags := decode[HashtagsResponse](t, resp.Body)
	assert.Contains(t, tags.Hashtags, "#冬のエアコン")
	assert.True(t, strings.HasPrefix(tags.Line, "#エアコンクリーニング #長野県"))

	resp = ts.api.Get("/api/v1/hashtags?season=monsoon")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCredential_StatusNeverRevealsKey(t *testing.T) {
	ts := setupTestServer(t, 10)

	resp := ts.api.Get("/api/v1/credential")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[credential.Status](t, resp.Body).Configured)

	resp = ts.api.Put("/api/v1/credential", map[string]any{"api_key": "sk-ant-secret"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.NotContains(t, resp.Body.String(), "sk-ant-secret")

	resp = ts.api.Put("/api/v1/credential", map[string]any{"api_key": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.api.Delete("/api/v1/credential")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[credential.Status](t, resp.Body).Configured)
}

func TestGenerate_MissingCredential(t *testing.T) {
	ts := setupTestServer(t, 10)
	ts.selectAll(t)

	resp := ts.api.Post("/api/v1/workspace/generate")

	require.Equal(t, http.StatusBadRequest, resp.Code)
	apiErr := decode[APIError](t, resp.Body)
	assert.Equal(t, string(domainerrors.CodeMissingCredential), apiErr.Code)
	assert.Equal(t, service.MsgMissingCredential, apiErr.Message)
	assert.Equal(t, int32(0), ts.capability.calls.Load())
}

func TestGenerate_FullFlow(t *testing.T) {
	ts := setupTestServer(t, 10)
	ts.saveKey(t)
	ts.selectAll(t)

	resp := ts.api.Post("/api/v1/workspace/generate")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	batch := decode[BatchResponse](t, resp.Body)
	require.Len(t, batch.Posts, 3)
	assert.Equal(t, domain.LengthOK, batch.Posts[0].Level)
	assert.Equal(t, "sk-ant-test", ts.capability.keys[0])

	resp = ts.api.Get("/api/v1/history")
	require.Equal(t, http.StatusOK, resp.Code)
	list := decode[ListHistoryResponse](t, resp.Body)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, batch.HistoryID, list.Items[0].ID)

	resp = ts.api.Get("/api/v1/history?q=エアコン")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, decode[ListHistoryResponse](t, resp.Body).Total)

	resp = ts.api.Get("/api/v1/workspace/posts/1/copy")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, strings.HasPrefix(decode[CopyResponse](t, resp.Body).Text, "B\n\n#エアコンクリーニング"))

	resp = ts.api.Get("/api/v1/workspace/export")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 3, strings.Count(resp.Body.String(), "【パターン"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "attachment")

	resp = ts.api.Get("/api/v1/analytics")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, decode[domain.Analytics](t, resp.Body).BySeason["summer"])
}

func TestGenerate_HeaderOverridesStoredKey(t *testing.T) {
	ts := setupTestServer(t, 10)
	ts.saveKey(t)
	ts.selectAll(t)

	resp := ts.api.Post("/api/v1/workspace/generate", "X-API-Key: sk-ant-override")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "sk-ant-override", ts.capability.keys[0])
}

func TestGenerate_UnparseableReply(t *testing.T) {
	ts := setupTestServer(t, 10)
	ts.saveKey(t)
	ts.selectAll(t)
	ts.capability.reply = "no json here"

	resp := ts.api.Post("/api/v1/workspace/generate")

	require.Equal(t, http.StatusBadGateway, resp.Code)
	apiErr := decode[APIError](t, resp.Body)
	assert.Equal(t, service.MsgGenerationFailed, apiErr.Message)
	assert.True(t, apiErr.Retryable)

	items, err := ts.records.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestGenerate_RateLimited(t *testing.T) {
	ts := setupTestServer(t, 1)
	ts.saveKey(t)
	ts.selectAll(t)

	resp := ts.api.Post("/api/v1/workspace/generate")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Post("/api/v1/workspace/generate")
	assert.Equal(t, http.StatusTooManyRequests, resp.Code)
	apiErr := decode[APIError](t, resp.Body)
	assert.Equal(t, codeRateLimited, apiErr.Code)
	assert.Equal(t, "60", resp.Header().Get("Retry-After"))
	assert.True(t, apiErr.Retryable)
	assert.Equal(t, int32(1), ts.capability.calls.Load())
}

func TestExport_NothingToExport(t *testing.T) {
	ts := setupTestServer(t, 10)

	resp := ts.api.Get("/api/v1/workspace/export?format=xlsx")

	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, service.MsgNothingToExport, decode[APIError](t, resp.Body).Message)
}

func TestImagePrompt(t *testing.T) {
	ts := setupTestServer(t, 10)
	ts.saveKey(t)
	ts.selectAll(t)
	require.Equal(t, http.StatusOK, ts.api.Post("/api/v1/workspace/generate").Code)

	ts.capability.reply = "A technician cleaning an air conditioner, mountains outside."
	resp := ts.api.Post("/api/v1/workspace/posts/0/image-prompt")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, ts.capability.reply, decode[domain.ImagePrompt](t, resp.Body).Prompt)

	resp = ts.api.Post("/api/v1/workspace/posts/5/image-prompt")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSchedule_CRUD(t *testing.T) {
	ts := setupTestServer(t, 10)

	resp := ts.api.Post("/api/v1/schedule", map[string]any{
		"post": "来週の投稿", "date": "2026-11-02", "time": "07:30",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	added := decode[domain.ScheduledPost](t, resp.Body)

	resp = ts.api.Post("/api/v1/schedule", map[string]any{
		"post": "x", "date": "2026-11-02", "time": "7:30",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.api.Get("/api/v1/schedule")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[ListScheduleResponse](t, resp.Body).Items, 1)

	resp = ts.api.Get("/api/v1/schedule/export")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Type"), "spreadsheetml")

	resp = ts.api.Delete("/api/v1/schedule/" + jsonNumber(added.ID))
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.api.Delete("/api/v1/schedule/" + jsonNumber(added.ID))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestScheduleBatchPost(t *testing.T) {
	ts := setupTestServer(t, 10)
	ts.saveKey(t)
	ts.selectAll(t)
	require.Equal(t, http.StatusOK, ts.api.Post("/api/v1/workspace/generate").Code)

	resp := ts.api.Post("/api/v1/workspace/posts/2/schedule", map[string]any{
		"date": "2026-11-05", "time": "12:00",
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	sp := decode[domain.ScheduledPost](t, resp.Body)
	assert.Equal(t, "C", sp.Post)
	assert.Equal(t, "summer", sp.Season)
	assert.NotEmpty(t, sp.Hashtags)
}

func TestProxy(t *testing.T) {
	ts := setupTestServer(t, 10)
	ts.capability.reply = "hello"

	resp := ts.api.Post("/api/generate", map[string]any{
		"apiKey": "sk-ant-inline", "userPrompt": "hi", "mode": "image",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	out := decode[llm.Response](t, resp.Body)
	text, ok := llm.FirstText(&out)
	assert.True(t, ok)
	assert.Equal(t, "hello", text)
	assert.Equal(t, "sk-ant-inline", ts.capability.keys[0])

	resp = ts.api.Post("/api/generate", map[string]any{"userPrompt": "hi", "mode": "image"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t, 10)
	ts.api.Get("/health")

	resp := ts.api.Get("/metrics")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "postsmith_http_requests_total")
}

func jsonNumber(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestHistoryExport(t *testing.T) {
	ts := setupTestServer(t, 10)
	ts.saveKey(t)
	ts.selectAll(t)
	require.Equal(t, http.StatusOK, ts.api.Post("/api/v1/workspace/generate").Code)

	items, err := ts.records.History(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	resp := ts.api.Get("/api/v1/history/" + jsonNumber(items[0].ID) + "/export?format=xlsx")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Disposition"), ".xlsx")

	resp = ts.api.Get("/api/v1/history/1/export")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestBackup_CreateRestoreDelete(t *testing.T) {
	ts := setupTestServer(t, 10)
	ctx := context.Background()

	_, err := ts.records.AddScheduled(ctx, domain.ScheduledPost{Post: "残す投稿", Date: "2026-11-02", Time: "07:30"})
	require.NoError(t, err)

	resp := ts.api.Post("/api/v1/backups")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	created := decode[BackupResponse](t, resp.Body)
	require.NotNil(t, created.Counts)
	assert.Equal(t, 1, created.Counts.Schedule)

	resp = ts.api.Get("/api/v1/backups")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[[]BackupResponse](t, resp.Body), 1)

	resp = ts.api.Get("/api/v1/backups/" + created.ID + "/validate")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.True(t, decode[backup.ValidationResult](t, resp.Body).Valid)

	resp = ts.api.Get("/api/v1/backups/" + created.ID + "/download")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/zip", resp.Header().Get("Content-Type"))

	_, err = ts.records.AddScheduled(ctx, domain.ScheduledPost{Post: "消える投稿", Date: "2026-11-03", Time: "07:30"})
	require.NoError(t, err)

	resp = ts.api.Post("/api/v1/backups/" + created.ID + "/restore?mode=full")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.api.Post("/api/v1/backups/" + created.ID + "/restore?mode=full&confirm=true")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, 1, decode[backup.RestoreResult](t, resp.Body).Total.Schedule)

	sched, err := ts.records.Schedule(ctx)
	require.NoError(t, err)
	require.Len(t, sched, 1)
	assert.Equal(t, "残す投稿", sched[0].Post)

	assert.Equal(t, http.StatusNoContent, ts.api.Delete("/api/v1/backups/"+created.ID).Code)
	assert.Equal(t, http.StatusNotFound, ts.api.Delete("/api/v1/backups/"+created.ID).Code)
	assert.Equal(t, http.StatusNotFound, ts.api.Post("/api/v1/backups/missing/restore").Code)
}

func TestImportBrowser(t *testing.T) {
	ts := setupTestServer(t, 10)

	dump := `{"scheduledPosts":"[{\"id\":1717200000500,\"post\":\"予約受付中\",\"date\":\"2024-06-10\",\"time\":\"09:00\"}]"}`
	resp := ts.api.Post("/api/v1/import/browser", "Content-Type: application/json", strings.NewReader(dump))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, 1, decode[backup.RestoreResult](t, resp.Body).Total.Schedule)

	resp = ts.api.Post("/api/v1/import/browser", "Content-Type: application/json",
		strings.NewReader(`{"cleaningPostHistory":"not an array"}`))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestNewAPIError_HumaValidationBecomes400(t *testing.T) {
	err := newAPIError(http.StatusUnprocessableEntity, "validation failed",
		&huma.ErrorDetail{Location: "body.season", Message: "expected one of spring, summer"},
		&huma.ErrorDetail{Location: "body.season", Message: "required"},
		&huma.ErrorDetail{Message: "unexpected property"},
	)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.GetStatus())
	assert.Equal(t, string(domainerrors.CodeValidation), apiErr.Code)
	assert.Equal(t, map[string]string{
		"body.season": "expected one of spring, summer; required",
		"request":     "unexpected property",
	}, apiErr.Fields)
}

func TestNewAPIError_DomainErrorWins(t *testing.T) {
	err := newAPIError(http.StatusInternalServerError, "ignored",
		domainerrors.Busy("生成中です"))

	assert.Equal(t, http.StatusConflict, err.GetStatus())
	apiErr := err.(*APIError)
	assert.Equal(t, "生成中です", apiErr.Message)
	assert.True(t, apiErr.Retryable)
	assert.Nil(t, apiErr.Fields)
}
