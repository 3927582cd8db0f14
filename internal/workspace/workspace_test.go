package workspace

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/works-s/postsmith/internal/domain"
	domainerrors "github.com/works-s/postsmith/internal/errors"
	"github.com/works-s/postsmith/internal/sse"
)

func clockAt(month time.Month) func() time.Time {
	t := time.Date(2026, month, 10, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

type captureEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (c *captureEmitter) Emit(event any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event.(sse.Event))
}

func (c *captureEmitter) reasons() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Data.(sse.WorkspaceChangedEventData).Reason
	}
	return out
}

var fullSelection = domain.Selection{Season: "autumn", Purpose: "value", Tone: "gratitude"}

func TestNew_PreselectsSeason(t *testing.T) {
	w := New(WithClock(clockAt(time.October)))

	snap := w.Snapshot()
	assert.Equal(t, domain.Selection{Season: "autumn"}, snap.Selection)
	assert.Nil(t, snap.Batch)
	assert.False(t, snap.Generating)
}

func TestReset_ClearsEverythingButSeason(t *testing.T) {
	w := New(WithClock(clockAt(time.January)))
	w.Select(fullSelection)
	b, err := w.SetBatch(1, fullSelection, []domain.Post{{Text: "A"}}, []string{"#x"})
	require.NoError(t, err)
	_, err = w.SetImagePrompt(b.ID, 0, "prompt")
	require.NoError(t, err)

	snap := w.Reset()

	assert.Equal(t, domain.Selection{Season: "winter"}, snap.Selection)
	assert.Nil(t, snap.Batch)
	assert.Empty(t, snap.ImagePrompts)
}

func TestBegin_BusyWhileInFlight(t *testing.T) {
	w := New()
	w.Select(fullSelection)

	sel, err := w.Begin(TaskPosts)
	require.NoError(t, err)
	assert.Equal(t, fullSelection, sel)
	assert.True(t, w.Snapshot().Generating)

	_, err = w.Begin(TaskPosts)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrBusy))

	// The image flow has its own flag.
	_, err = w.Begin(TaskImagePrompt)
	require.NoError(t, err)

	w.End(TaskPosts)
	w.End(TaskPosts)
	assert.False(t, w.Snapshot().Generating)
	assert.True(t, w.Snapshot().ImageBusy)

	_, err = w.Begin(TaskPosts)
	assert.NoError(t, err)
}

func TestBegin_OnlyOneConcurrentWinner(t *testing.T) {
	w := New()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := w.Begin(TaskPosts); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestSetBatch_ReplacesImagePrompts(t *testing.T) {
	w := New()
	first, err := w.SetBatch(1, fullSelection, []domain.Post{{Text: "A"}, {Text: "B"}}, nil)
	require.NoError(t, err)
	assert.Contains(t, first.ID, "batch-")

	_, err = w.SetImagePrompt(first.ID, 1, "old")
	require.NoError(t, err)

	second, err := w.SetBatch(2, fullSelection, []domain.Post{{Text: "C"}}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Empty(t, w.Snapshot().ImagePrompts)

	// A late prompt for the replaced batch is refused.
	_, err = w.SetImagePrompt(first.ID, 0, "late")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrConflict))
}

func TestSetImagePrompt_OverwritesByIndex(t *testing.T) {
	w := New()
	b, err := w.SetBatch(1, fullSelection, []domain.Post{{Text: "A"}, {Text: "B"}, {Text: "C"}}, nil)
	require.NoError(t, err)

	_, err = w.SetImagePrompt(b.ID, 2, "first")
	require.NoError(t, err)
	_, err = w.SetImagePrompt(b.ID, 0, "zero")
	require.NoError(t, err)
	got, err := w.SetImagePrompt(b.ID, 2, "second")
	require.NoError(t, err)
	assert.Equal(t, domain.ImagePromptNote, got.Note)

	prompts := w.Snapshot().ImagePrompts
	require.Len(t, prompts, 2)
	assert.Equal(t, 0, prompts[0].Index)
	assert.Equal(t, "second", prompts[1].Prompt)

	_, err = w.SetImagePrompt(b.ID, 3, "out of range")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestPost(t *testing.T) {
	w := New()

	_, _, err := w.Post(0)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	_, err = w.SetBatch(1, fullSelection, []domain.Post{{Text: "A"}}, []string{"#x"})
	require.NoError(t, err)

	p, b, err := w.Post(0)
	require.NoError(t, err)
	assert.Equal(t, "A", p.Text)
	assert.Equal(t, []string{"#x"}, b.Hashtags)

	_, _, err = w.Post(-1)
	assert.Error(t, err)
}

func TestBatch_ReturnsCopy(t *testing.T) {
	w := New()
	_, err := w.SetBatch(1, fullSelection, []domain.Post{{Text: "A"}}, []string{"#x"})
	require.NoError(t, err)

	b, ok := w.Batch()
	require.True(t, ok)
	b.Posts[0].Text = "mutated"

	again, _ := w.Batch()
	assert.Equal(t, "A", again.Posts[0].Text)
}

func TestEmitsWorkspaceEvents(t *testing.T) {
	em := &captureEmitter{}
	w := New(WithEmitter(em))

	w.Select(fullSelection)
	_, _ = w.Begin(TaskPosts)
	_, _ = w.SetBatch(1, fullSelection, []domain.Post{{Text: "A"}}, nil)
	w.End(TaskPosts)
	w.Reset()

	assert.Equal(t, []string{"selection", "busy", "batch", "idle", "reset"}, em.reasons())
}
