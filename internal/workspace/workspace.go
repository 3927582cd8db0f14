// Package workspace holds the state of the single editing session: the
// current selection, the last generated batch, image prompts per post and
// the busy flags that keep one generation in flight at a time.
package workspace

import (
	"slices"
	"sync"
	"time"

	"github.com/works-s/postsmith/internal/catalog"
	"github.com/works-s/postsmith/internal/domain"
	domainerrors "github.com/works-s/postsmith/internal/errors"
	"github.com/works-s/postsmith/internal/id"
	"github.com/works-s/postsmith/internal/sse"
)

// Task names one of the two generation flows guarded by a busy flag.
type Task string

// Tasks.
const (
	TaskPosts       Task = "posts"
	TaskImagePrompt Task = "image_prompt"
)

// Batch is the result of one successful generation.
type Batch struct {
	ID        string           `json:"id"`
	HistoryID int64            `json:"history_id"`
	CreatedAt time.Time        `json:"created_at"`
	Selection domain.Selection `json:"selection"`
	Posts     []domain.Post    `json:"posts"`
	Hashtags  []string         `json:"hashtags"`
}

// Snapshot is a copy of the workspace state.
type Snapshot struct {
	Selection    domain.Selection     `json:"selection"`
	Batch        *Batch               `json:"batch,omitempty"`
	ImagePrompts []domain.ImagePrompt `json:"image_prompts"`
	Generating   bool                 `json:"generating"`
	ImageBusy    bool                 `json:"image_busy"`
}

// Emitter receives workspace change events.
type Emitter interface {
	Emit(event any)
}

type noopEmitter struct{}

func (noopEmitter) Emit(any) {}

// Workspace is safe for concurrent use.
type Workspace struct {
	mu      sync.Mutex
	sel     domain.Selection
	batch   *Batch
	images  map[int]string
	busy    map[Task]bool
	now     func() time.Time
	emitter Emitter
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Workspace) { w.now = now }
}

// WithEmitter sets where change events go.
func WithEmitter(e Emitter) Option {
	return func(w *Workspace) { w.emitter = e }
}

// New creates a workspace with the season preselected from the clock.
func New(opts ...Option) *Workspace {
	w := &Workspace{
		images:  make(map[int]string),
		busy:    make(map[Task]bool),
		now:     time.Now,
		emitter: noopEmitter{},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.sel = domain.Selection{Season: catalog.CurrentSeason(w.now())}
	return w
}

// Select replaces the current selection. Empty fields mean "not chosen".
func (w *Workspace) Select(sel domain.Selection) Snapshot {
	w.mu.Lock()
	w.sel = sel
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.notify("selection", snap)
	return snap
}

// Reset clears the selection, batch and image prompts, then preselects the current season.
func (w *Workspace) Reset() Snapshot {
	w.mu.Lock()
	w.sel = domain.Selection{Season: catalog.CurrentSeason(w.now())}
	w.batch = nil
	clear(w.images)
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.notify("reset", snap)
	return snap
}

// Begin marks task as in flight and returns the selection to use.
// A second Begin for the same task fails with Busy until End is called.
func (w *Workspace) Begin(task Task) (domain.Selection, error) {
	w.mu.Lock()
	if w.busy[task] {
		w.mu.Unlock()
		if task == TaskPosts {
			return domain.Selection{}, domainerrors.Busy("投稿を生成中です。完了までお待ちください。")
		}
		return domain.Selection{}, domainerrors.Busy("画像プロンプトを生成中です。完了までお待ちください。")
	}
	w.busy[task] = true
	sel := w.sel
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.notify("busy", snap)
	return sel, nil
}

// End clears the busy flag for task.
func (w *Workspace) End(task Task) {
	w.mu.Lock()
	if !w.busy[task] {
		w.mu.Unlock()
		return
	}
	delete(w.busy, task)
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.notify("idle", snap)
}

// SetBatch installs a freshly generated batch and drops image prompts made
// for the previous one. It returns the batch with its id filled in.
func (w *Workspace) SetBatch(historyID int64, sel domain.Selection, posts []domain.Post, hashtags []string) (Batch, error) {
	batchID, err := id.Generate(id.PrefixBatch)
	if err != nil {
		return Batch{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create batch id")
	}

	b := &Batch{
		ID:        batchID,
		HistoryID: historyID,
		CreatedAt: w.now(),
		Selection: sel,
		Posts:     slices.Clone(posts),
		Hashtags:  slices.Clone(hashtags),
	}

	w.mu.Lock()
	w.batch = b
	clear(w.images)
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.notify("batch", snap)
	return cloneBatch(b), nil
}

// Post returns the post at index in the current batch, plus the batch.
func (w *Workspace) Post(index int) (domain.Post, Batch, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.batch == nil {
		return domain.Post{}, Batch{}, domainerrors.NotFound("生成された投稿がありません")
	}
	if index < 0 || index >= len(w.batch.Posts) {
		return domain.Post{}, Batch{}, domainerrors.NotFoundf("post %d not found in current batch", index)
	}
	return w.batch.Posts[index], cloneBatch(w.batch), nil
}

// Batch returns the current batch, if any.
func (w *Workspace) Batch() (Batch, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.batch == nil {
		return Batch{}, false
	}
	return cloneBatch(w.batch), true
}

// SetImagePrompt stores prompt for the post at index, replacing any earlier
// one. batchID must still be the current batch; a prompt for a replaced
// batch is rejected with Conflict.
func (w *Workspace) SetImagePrompt(batchID string, index int, prompt string) (domain.ImagePrompt, error) {
	w.mu.Lock()
	if w.batch == nil || w.batch.ID != batchID {
		w.mu.Unlock()
		return domain.ImagePrompt{}, domainerrors.Conflict("投稿が再生成されたため、画像プロンプトを破棄しました")
	}
	if index < 0 || index >= len(w.batch.Posts) {
		w.mu.Unlock()
		return domain.ImagePrompt{}, domainerrors.NotFoundf("post %d not found in current batch", index)
	}
	w.images[index] = prompt
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.notify("image_prompt", snap)
	return domain.ImagePrompt{Index: index, Prompt: prompt, Note: domain.ImagePromptNote}, nil
}

// Snapshot returns a copy of the current state.
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workspace) snapshotLocked() Snapshot {
	snap := Snapshot{
		Selection:    w.sel,
		ImagePrompts: make([]domain.ImagePrompt, 0, len(w.images)),
		Generating:   w.busy[TaskPosts],
		ImageBusy:    w.busy[TaskImagePrompt],
	}
	if w.batch != nil {
		b := cloneBatch(w.batch)
		snap.Batch = &b
	}
	for idx, p := range w.images {
		snap.ImagePrompts = append(snap.ImagePrompts, domain.ImagePrompt{Index: idx, Prompt: p, Note: domain.ImagePromptNote})
	}
	slices.SortFunc(snap.ImagePrompts, func(a, b domain.ImagePrompt) int { return a.Index - b.Index })
	return snap
}

func (w *Workspace) notify(reason string, snap Snapshot) {
	data := sse.WorkspaceChangedEventData{
		Reason:    reason,
		Selection: snap.Selection,
		Busy:      snap.Generating || snap.ImageBusy,
	}
	if snap.Batch != nil {
		data.BatchID = snap.Batch.ID
	}
	w.emitter.Emit(sse.NewWorkspaceChangedEvent(data))
}

func cloneBatch(b *Batch) Batch {
	out := *b
	out.Posts = slices.Clone(b.Posts)
	out.Hashtags = slices.Clone(b.Hashtags)
	return out
}
