package store

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/works-s/postsmith/internal/domain"
	domainerrors "github.com/works-s/postsmith/internal/errors"
	"github.com/works-s/postsmith/internal/sse"
)

// HistoryLimit is the number of history items kept. Older items are evicted.
const HistoryLimit = 50

// Collection names reported to the count observer.
const (
	CollectionHistory  = "history"
	CollectionSchedule = "schedule"
)

// Records owns the history and schedule collections.
// Every operation reads the current blob, so the BlobStore stays the only source of truth.
type Records struct {
	mu      sync.Mutex
	blobs   BlobStore
	logger  *slog.Logger
	emitter EventEmitter
	indexer HistoryIndexer
	now     func() time.Time
	loc     *time.Location
	counted func(collection string, n int)

	lastHistoryID  int64
	lastScheduleID int64
}

// RecordsOption configures Records.
type RecordsOption func(*Records)

// WithEmitter sets the SSE emitter.
func WithEmitter(e EventEmitter) RecordsOption {
	return func(r *Records) { r.emitter = e }
}

// WithIndexer sets the history search indexer.
func WithIndexer(ix HistoryIndexer) RecordsOption {
	return func(r *Records) { r.indexer = ix }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) RecordsOption {
	return func(r *Records) { r.now = now }
}

// WithCountObserver is called with a collection name and its new size after every write.
func WithCountObserver(fn func(collection string, n int)) RecordsOption {
	return func(r *Records) { r.counted = fn }
}

// WithLocation sets the zone schedule dates and times are read in.
func WithLocation(loc *time.Location) RecordsOption {
	return func(r *Records) { r.loc = loc }
}

// NewRecords creates Records over blobs.
func NewRecords(blobs BlobStore, logger *slog.Logger, opts ...RecordsOption) *Records {
	r := &Records{
		blobs:   blobs,
		logger:  logger,
		emitter: NoopEmitter{},
		indexer: NoopIndexer{},
		now:     time.Now,
		loc:     time.Local,
		counted: func(string, int) {},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetIndexer sets the search indexer after construction, since the index is
// rebuilt from Records at startup.
func (r *Records) SetIndexer(ix HistoryIndexer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexer = ix
}

// Counts reports the size of both collections, for gauges at startup.
func (r *Records) Counts(ctx context.Context) (history, schedule int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, err := r.loadHistory(ctx)
	if err != nil {
		return 0, 0, err
	}
	s, err := r.loadSchedule(ctx)
	if err != nil {
		return 0, 0, err
	}
	return len(h), len(s), nil
}

// History returns history items, newest first.
func (r *Records) History(ctx context.Context) ([]domain.HistoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadHistory(ctx)
}

// AppendHistory records a generated batch at the front of the history and
// evicts anything past HistoryLimit. Nothing changes if the write fails.
func (r *Records) AppendHistory(ctx context.Context, sel domain.Selection, posts []domain.Post, hashtags []string) (domain.HistoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.loadHistory(ctx)
	if err != nil {
		return domain.HistoryItem{}, err
	}

	now := r.now()
	id := r.nextID(now, r.lastHistoryID, maxHistoryID(items))
	item := domain.HistoryItem{
		ID:       id,
		Date:     now,
		Season:   sel.Season,
		Purpose:  sel.Purpose,
		Tone:     sel.Tone,
		Posts:    slices.Clone(posts),
		Hashtags: slices.Clone(hashtags),
	}

	next := make([]domain.HistoryItem, 0, min(len(items)+1, HistoryLimit))
	next = append(next, item)
	next = append(next, items...)
	var evicted []domain.HistoryItem
	if len(next) > HistoryLimit {
		evicted = next[HistoryLimit:]
		next = next[:HistoryLimit]
	}

	if err := r.save(ctx, KeyHistory, next); err != nil {
		return domain.HistoryItem{}, err
	}
	r.lastHistoryID = id
	r.counted(CollectionHistory, len(next))

	if err := r.indexer.IndexHistory(ctx, item); err != nil {
		r.logger.Warn("failed to index history item", "id", id, "error", err)
	}
	for _, old := range evicted {
		if err := r.indexer.DeleteHistory(ctx, old.ID); err != nil {
			r.logger.Warn("failed to drop evicted history item from index", "id", old.ID, "error", err)
		}
	}
	r.emitter.Emit(sse.NewHistoryAppendedEvent(item, len(next)))

	r.logger.Info("history appended",
		"id", id,
		"posts", len(posts),
		"total", len(next),
		"evicted", len(evicted))

	return item, nil
}

// Schedule returns scheduled posts in ascending date and time order.
func (r *Records) Schedule(ctx context.Context) ([]domain.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadSchedule(ctx)
}

// AddScheduled assigns an id to post, inserts it and re-sorts the schedule.
func (r *Records) AddScheduled(ctx context.Context, post domain.ScheduledPost) (domain.ScheduledPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.loadSchedule(ctx)
	if err != nil {
		return domain.ScheduledPost{}, err
	}

	post.ID = r.nextID(r.now(), r.lastScheduleID, maxScheduleID(items))
	post.Hashtags = slices.Clone(post.Hashtags)

	next := append(slices.Clone(items), post)
	r.sortSchedule(next)

	if err := r.save(ctx, KeySchedule, next); err != nil {
		return domain.ScheduledPost{}, err
	}
	r.lastScheduleID = post.ID
	r.counted(CollectionSchedule, len(next))

	r.emitter.Emit(sse.NewScheduleAddedEvent(post))
	r.logger.Info("post scheduled", "id", post.ID, "date", post.Date, "time", post.Time)

	return post, nil
}

// RemoveScheduled deletes the scheduled post with id. The order of the rest is kept.
func (r *Records) RemoveScheduled(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items, err := r.loadSchedule(ctx)
	if err != nil {
		return err
	}

	idx := slices.IndexFunc(items, func(p domain.ScheduledPost) bool { return p.ID == id })
	if idx < 0 {
		return domainerrors.NotFoundf("scheduled post %d not found", id)
	}
	next := slices.Delete(slices.Clone(items), idx, idx+1)

	if err := r.save(ctx, KeySchedule, next); err != nil {
		return err
	}
	r.counted(CollectionSchedule, len(next))

	r.emitter.Emit(sse.NewScheduleRemovedEvent(id))
	r.logger.Info("scheduled post removed", "id", id)
	return nil
}

// RestoreResult counts what Restore kept from the incoming records.
type RestoreResult struct {
	History         int
	Schedule        int
	SkippedHistory  int
	SkippedSchedule int
}

// Restore writes incoming history and schedule. With replace, the incoming
// records become the collections. Otherwise they are merged by id and
// existing records win. History is re-sorted newest first and capped at
// HistoryLimit. Incoming schedule dates and times are rewritten zero padded
// and the schedule is re-sorted by date and time.
func (r *Records) Restore(ctx context.Context, history []domain.HistoryItem, schedule []domain.ScheduledPost, replace bool) (RestoreResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	curHistory, err := r.loadHistory(ctx)
	if err != nil {
		return RestoreResult{}, err
	}
	curSchedule, err := r.loadSchedule(ctx)
	if err != nil {
		return RestoreResult{}, err
	}

	var res RestoreResult
	nextHistory := []domain.HistoryItem{}
	nextSchedule := []domain.ScheduledPost{}
	if !replace {
		nextHistory = append(nextHistory, curHistory...)
		nextSchedule = append(nextSchedule, curSchedule...)
	}

	seenHistory := make(map[int64]bool, len(nextHistory)+len(history))
	for _, it := range nextHistory {
		seenHistory[it.ID] = true
	}
	for _, it := range history {
		if it.ID <= 0 || seenHistory[it.ID] {
			res.SkippedHistory++
			continue
		}
		seenHistory[it.ID] = true
		nextHistory = append(nextHistory, it)
	}

	seenSchedule := make(map[int64]bool, len(nextSchedule)+len(schedule))
	for _, sp := range nextSchedule {
		seenSchedule[sp.ID] = true
	}
	for _, sp := range schedule {
		if sp.ID <= 0 || seenSchedule[sp.ID] {
			res.SkippedSchedule++
			continue
		}
		seenSchedule[sp.ID] = true
		if padded, ok := sp.Normalize(); ok {
			sp = padded
		} else {
			r.logger.Warn("restored schedule entry has an unreadable date or time",
				"id", sp.ID, "date", sp.Date, "time", sp.Time)
		}
		nextSchedule = append(nextSchedule, sp)
	}

	slices.SortStableFunc(nextHistory, func(a, b domain.HistoryItem) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	if len(nextHistory) > HistoryLimit {
		res.SkippedHistory += len(nextHistory) - HistoryLimit
		nextHistory = nextHistory[:HistoryLimit]
	}
	r.sortSchedule(nextSchedule)

	// Schedule first: if the history write then fails, the history blob is untouched.
	if err := r.save(ctx, KeySchedule, nextSchedule); err != nil {
		return RestoreResult{}, err
	}
	if err := r.save(ctx, KeyHistory, nextHistory); err != nil {
		return RestoreResult{}, err
	}

	r.lastHistoryID = max(r.lastHistoryID, maxHistoryID(nextHistory))
	r.lastScheduleID = max(r.lastScheduleID, maxScheduleID(nextSchedule))
	r.counted(CollectionHistory, len(nextHistory))
	r.counted(CollectionSchedule, len(nextSchedule))

	kept := make(map[int64]bool, len(nextHistory))
	for _, it := range nextHistory {
		kept[it.ID] = true
		if err := r.indexer.IndexHistory(ctx, it); err != nil {
			r.logger.Warn("failed to index restored history item", "id", it.ID, "error", err)
		}
	}
	for _, old := range curHistory {
		if kept[old.ID] {
			continue
		}
		if err := r.indexer.DeleteHistory(ctx, old.ID); err != nil {
			r.logger.Warn("failed to drop replaced history item from index", "id", old.ID, "error", err)
		}
	}

	res.History = len(nextHistory)
	res.Schedule = len(nextSchedule)
	r.emitter.Emit(sse.NewRecordsRestoredEvent(res.History, res.Schedule))

	r.logger.Info("records restored",
		"replace", replace,
		"history", res.History,
		"schedule", res.Schedule,
		"skipped_history", res.SkippedHistory,
		"skipped_schedule", res.SkippedSchedule)

	return res, nil
}

func (r *Records) loadHistory(ctx context.Context) ([]domain.HistoryItem, error) {
	var items []domain.HistoryItem
	if err := r.load(ctx, KeyHistory, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.HistoryItem{}
	}
	return items, nil
}

func (r *Records) loadSchedule(ctx context.Context) ([]domain.ScheduledPost, error) {
	var items []domain.ScheduledPost
	if err := r.load(ctx, KeySchedule, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.ScheduledPost{}
	}
	return items, nil
}

// load decodes the blob at key into dest. A missing key leaves dest untouched.
func (r *Records) load(ctx context.Context, key string, dest any) error {
	raw, ok, err := r.blobs.Get(ctx, key)
	if err != nil {
		return domainerrors.PersistenceUnavailable(fmt.Errorf("read %s: %w", key, err))
	}
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return domainerrors.PersistenceUnavailable(fmt.Errorf("decode %s: %w", key, err))
	}
	return nil
}

func (r *Records) save(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return domainerrors.PersistenceUnavailable(fmt.Errorf("encode %s: %w", key, err))
	}
	if err := r.blobs.Set(ctx, key, string(data)); err != nil {
		r.logger.Error("failed to persist records", "key", key, "error", err)
		return domainerrors.PersistenceUnavailable(fmt.Errorf("write %s: %w", key, err))
	}
	return nil
}

// nextID returns the current Unix millisecond, bumped past every id already issued.
func (r *Records) nextID(now time.Time, last, maxExisting int64) int64 {
	return max(now.UnixMilli(), last+1, maxExisting+1)
}

// sortSchedule orders by parsed date and time. Entries that do not parse go
// last, in their existing order.
func (r *Records) sortSchedule(items []domain.ScheduledPost) {
	slices.SortStableFunc(items, func(a, b domain.ScheduledPost) int {
		ta, errA := a.At(r.loc)
		tb, errB := b.At(r.loc)
		switch {
		case errA != nil && errB != nil:
			return 0
		case errA != nil:
			return 1
		case errB != nil:
			return -1
		}
		return ta.Compare(tb)
	})
}

func maxHistoryID(items []domain.HistoryItem) int64 {
	var m int64
	for _, it := range items {
		m = max(m, it.ID)
	}
	return m
}

func maxScheduleID(items []domain.ScheduledPost) int64 {
	var m int64
	for _, it := range items {
		m = max(m, it.ID)
	}
	return m
}
