package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/works-s/postsmith/internal/domain"
)

// localStorage keys used by the browser version of the generator.
const (
	browserHistoryKey  = "cleaningPostHistory"
	browserScheduleKey = "scheduledPosts"
)

// maxBrowserExport bounds an uploaded localStorage dump.
const maxBrowserExport = 8 << 20

type browserExport struct {
	History  json.RawMessage `json:"cleaningPostHistory"`
	Schedule json.RawMessage `json:"scheduledPosts"`
}

// ImportBrowser imports a dump of the browser app's localStorage. Values may
// be arrays or the JSON-encoded strings localStorage holds. Other keys,
// including a saved API key, are ignored.
func (s *RestoreService) ImportBrowser(ctx context.Context, r io.Reader, opts RestoreOptions) (*RestoreResult, error) {
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, opts.Mode)
	}

	start := time.Now()

	data, err := io.ReadAll(io.LimitReader(r, maxBrowserExport+1))
	if err != nil {
		return nil, fmt.Errorf("read browser export: %w", err)
	}
	if len(data) > maxBrowserExport {
		return nil, fmt.Errorf("%w: browser export larger than %d bytes", ErrInvalidManifest, maxBrowserExport)
	}

	var dump browserExport
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	var history []domain.HistoryItem
	if err := decodeStorageValue(dump.History, &history); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, browserHistoryKey, err)
	}
	var schedule []domain.ScheduledPost
	if err := decodeStorageValue(dump.Schedule, &schedule); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, browserScheduleKey, err)
	}

	result := &RestoreResult{}
	if err := s.apply(ctx, history, schedule, opts, result); err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)

	s.logger.Info("browser export imported",
		"mode", opts.Mode,
		"history", result.Read.History,
		"schedule", result.Read.Schedule,
		"skipped_history", result.Skipped.History,
		"skipped_schedule", result.Skipped.Schedule,
		"dry_run", result.DryRun)

	return result, nil
}

// decodeStorageValue accepts a JSON array or a string that holds one.
// Missing and null values decode to nothing.
func decodeStorageValue(raw json.RawMessage, dest any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return err
		}
		if inner == "" {
			return nil
		}
		raw = json.RawMessage(inner)
	}
	return json.Unmarshal(raw, dest)
}
