package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/works-s/postsmith/internal/config"
	domainerrors "github.com/works-s/postsmith/internal/errors"
	"github.com/works-s/postsmith/internal/llm"
)

type cliCapability struct {
	reply string
	calls atomic.Int32
}

func (c *cliCapability) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	c.calls.Add(1)
	reply := c.reply
	if req.Mode == llm.ModeImage {
		reply = "A bright living room with a freshly cleaned air conditioner."
	}
	return &llm.Response{Content: []llm.ContentBlock{{Type: "text", Text: reply}}}, nil
}

type cli struct {
	dir        string
	capability *cliCapability
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("ENV", "development")
	t.Setenv("BACKUP_DIR", "")
	return &cli{
		dir:        t.TempDir(),
		capability: &cliCapability{reply: `{"posts":[{"text":"春の予約受付中です"},{"text":"二つ目"},{"text":"三つ目"}]}`},
	}
}

func (c *cli) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmdWith(func(*config.Config) llm.Capability { return c.capability })

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{
		"--env-file", filepath.Join(c.dir, "missing.env"),
		"--data-path", c.dir,
		"--store", "sqlite",
	}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func (c *cli) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := c.run(t, "", args...)
	require.NoError(t, err, out)
	return out
}

func TestHashtags(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun(t, "hashtags", "--season", "spring", "--purpose", "booking")
	assert.Equal(t, "#エアコンクリーニング #長野県 #ワークスS #春のエアコンクリーニング #早期予約 #予約受付中 #お早めに #長野市 #松本市\n", out)

	_, err := c.run(t, "", "hashtags", "--season", "rainy")
	assert.ErrorContains(t, err, "unknown season")
}

func TestPrompt(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun(t, "prompt", "--season", "winter", "--purpose", "trust", "--tone", "gratitude")
	assert.Contains(t, out, "# system")
	assert.Contains(t, out, "# user")

	_, err := c.run(t, "", "prompt", "--purpose", "trust")
	assert.Error(t, err)

	out = c.mustRun(t, "prompt", "--image", "夏のエアコン掃除")
	assert.Contains(t, out, "夏のエアコン掃除")
	assert.Equal(t, int32(0), c.capability.calls.Load())
}

func TestGenerate_MissingCredentialMakesNoCall(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "", "generate", "--purpose", "booking", "--tone", "family")

	assert.True(t, domainerrors.Is(err, domainerrors.ErrMissingCredential))
	assert.Equal(t, int32(0), c.capability.calls.Load())
}

func TestCredential_StatusShowsFingerprintOnly(t *testing.T) {
	c := newCLI(t)

	out, err := c.run(t, "sk-ant-cli-secret\n", "credential", "set")
	require.NoError(t, err)
	assert.Contains(t, out, "configured (stored) fingerprint")
	assert.NotContains(t, out, "sk-ant-cli-secret")

	out = c.mustRun(t, "credential", "status")
	assert.Contains(t, out, "fingerprint")

	out = c.mustRun(t, "credential", "clear")
	assert.Equal(t, "not configured\n", out)
}

func TestGenerateThenHistoryExportAndSchedule(t *testing.T) {
	c := newCLI(t)
	_, err := c.run(t, "sk-ant-cli\n", "credential", "set")
	require.NoError(t, err)

	out := c.mustRun(t, "generate", "--season", "spring", "--purpose", "booking", "--tone", "family", "--image-for", "0")
	assert.Contains(t, out, "春の予約受付中です")
	assert.Contains(t, out, "【パターン 3】")
	assert.Contains(t, out, "A bright living room")
	assert.Equal(t, int32(2), c.capability.calls.Load())

	out = c.mustRun(t, "history", "-q", "予約")
	assert.Contains(t, out, "春の予約受付中です")

	out = c.mustRun(t, "history", "--season", "winter")
	assert.Contains(t, out, "履歴はありません")

	out = c.mustRun(t, "analytics")
	assert.Contains(t, out, "生成回数: 1")

	id := historyID(t, c)

	path := filepath.Join(c.dir, "out.txt")
	c.mustRun(t, "export", id, "--out", path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(data), "【パターン"))
	assert.Contains(t, string(data), "推奨ハッシュタグ:")

	out = c.mustRun(t, "schedule", "add", "--from-history", id, "--index", "1", "--date", "2026-11-03", "--time", "09:00")
	assert.Contains(t, out, "for 2026-11-03 09:00")

	out = c.mustRun(t, "schedule", "list")
	assert.Contains(t, out, "二つ目")
	assert.Contains(t, out, "#予約受付中")
}

func TestSchedule_AddValidatesAndRemoves(t *testing.T) {
	c := newCLI(t)

	_, err := c.run(t, "", "schedule", "add", "--post", "x", "--date", "2026/11/03", "--time", "09:00")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))

	out := c.mustRun(t, "schedule", "add", "--post", "手動の投稿", "--date", "2026-11-03", "--time", "09:00")
	fields := strings.Fields(out)
	require.GreaterOrEqual(t, len(fields), 2)
	id := fields[1]

	out = c.mustRun(t, "schedule", "rm", id)
	assert.Equal(t, "removed "+id+"\n", out)

	_, err = c.run(t, "", "schedule", "rm", id)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	out = c.mustRun(t, "schedule", "list")
	assert.Contains(t, out, "予定はありません")
}

func TestInspect(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun(t, "inspect")
	assert.Contains(t, out, "backend: sqlite")
	assert.Contains(t, out, "history items: 0")
	assert.Contains(t, out, "credential: not configured")
}

// historyID returns the id of the newest history item.
func historyID(t *testing.T, c *cli) string {
	t.Helper()
	out := c.mustRun(t, "history", "--full")
	line := strings.SplitN(out, "\n", 2)[0]
	idx := strings.Index(line, "#")
	require.GreaterOrEqual(t, idx, 0, line)
	return strings.Fields(line[idx+1:])[0]
}

func TestBackup_CreateRestoreAndImport(t *testing.T) {
	c := newCLI(t)

	c.mustRun(t, "schedule", "add", "--post", "残す投稿", "--date", "2026-11-02", "--time", "07:30")
	out := c.mustRun(t, "backup", "create")
	assert.Contains(t, out, "1 scheduled")

	entries, err := os.ReadDir(filepath.Join(c.dir, "backups"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	archive := filepath.Join(c.dir, "backups", entries[0].Name())

	out = c.mustRun(t, "backup", "validate", archive)
	assert.Contains(t, out, "ok: 0 history, 1 scheduled")

	c.mustRun(t, "schedule", "add", "--post", "消える投稿", "--date", "2026-11-03", "--time", "07:30")

	_, err = c.run(t, "", "backup", "restore", archive, "--mode", "full")
	assert.ErrorContains(t, err, "--force")

	c.mustRun(t, "backup", "restore", archive, "--mode", "full", "--force")
	out = c.mustRun(t, "schedule", "list")
	assert.Contains(t, out, "残す投稿")
	assert.NotContains(t, out, "消える投稿")

	dump := `{"anthropicApiKey":"sk-ant-browser","scheduledPosts":"[{\"id\":1717200000500,\"post\":\"ブラウザの予定\",\"date\":\"2024-06-10\",\"time\":\"09:00\"}]"}`
	out, err = c.run(t, dump, "backup", "import", "-")
	require.NoError(t, err, out)

	out = c.mustRun(t, "schedule", "list")
	assert.Contains(t, out, "ブラウザの予定")
	assert.Contains(t, out, "残す投稿")

	out = c.mustRun(t, "credential", "status")
	assert.NotContains(t, out, "sk-ant-browser")
}
