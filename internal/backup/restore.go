package backup

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/works-s/postsmith/internal/backup/stream"
	"github.com/works-s/postsmith/internal/domain"
)

// RestoreService restores records from backups.
type RestoreService struct {
	records Records
	logger  *slog.Logger
}

// NewRestoreService creates a RestoreService.
func NewRestoreService(records Records, logger *slog.Logger) *RestoreService {
	return &RestoreService{
		records: records,
		logger:  logger,
	}
}

// Restore restores from a backup file. A checksum mismatch aborts before
// anything is written.
func (s *RestoreService) Restore(ctx context.Context, path string, opts RestoreOptions) (*RestoreResult, error) {
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, opts.Mode)
	}

	start := time.Now()
	s.logger.Info("starting restore", "path", path, "mode", opts.Mode, "dry_run", opts.DryRun)

	zr, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return nil, fmt.Errorf("%w: %v", ErrCorruptedBackup, err)
		}
		return nil, fmt.Errorf("open backup: %w", err)
	}
	defer zr.Close()

	manifest, err := readManifest(&zr.Reader)
	if err != nil {
		return nil, err
	}
	if manifest.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %s (want %s)", ErrVersionMismatch, manifest.Version, FormatVersion)
	}

	result := &RestoreResult{}

	history, sum, errs, err := readEntries[domain.HistoryItem](&zr.Reader, historyFile)
	if err != nil {
		return nil, err
	}
	if want := manifest.Checksums[historyFile]; want != "" && want != sum {
		return nil, fmt.Errorf("%w: %s checksum mismatch", ErrCorruptedBackup, historyFile)
	}
	result.Errors = append(result.Errors, errs...)

	schedule, sum, errs, err := readEntries[domain.ScheduledPost](&zr.Reader, scheduleFile)
	if err != nil {
		return nil, err
	}
	if want := manifest.Checksums[scheduleFile]; want != "" && want != sum {
		return nil, fmt.Errorf("%w: %s checksum mismatch", ErrCorruptedBackup, scheduleFile)
	}
	result.Errors = append(result.Errors, errs...)

	if err := s.apply(ctx, history, schedule, opts, result); err != nil {
		return nil, err
	}
	result.Duration = time.Since(start)

	s.logger.Info("restore complete",
		"read_history", result.Read.History,
		"read_schedule", result.Read.Schedule,
		"skipped_history", result.Skipped.History,
		"skipped_schedule", result.Skipped.Schedule,
		"errors", len(result.Errors),
		"dry_run", result.DryRun,
		"duration", result.Duration)

	return result, nil
}

// apply hands decoded records to the store, or only counts them on a dry run.
func (s *RestoreService) apply(ctx context.Context, history []domain.HistoryItem, schedule []domain.ScheduledPost, opts RestoreOptions, result *RestoreResult) error {
	result.Read = Counts{History: len(history), Schedule: len(schedule)}
	result.DryRun = opts.DryRun
	if opts.DryRun {
		return nil
	}

	res, err := s.records.Restore(ctx, history, schedule, opts.Mode == RestoreModeFull)
	if err != nil {
		return err
	}
	result.Skipped = Counts{History: res.SkippedHistory, Schedule: res.SkippedSchedule}
	result.Total = Counts{History: res.History, Schedule: res.Schedule}
	return nil
}

// Validate checks a backup without importing. Problems are reported in the
// result; the error return is reserved for context cancellation.
func (s *RestoreService) Validate(ctx context.Context, path string) (*ValidationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return &ValidationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("failed to open backup: %v", err)},
		}, nil
	}
	defer zr.Close()

	result := &ValidationResult{Valid: true}

	manifest, err := readManifest(&zr.Reader)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result, nil
	}

	result.Manifest = manifest
	result.ExpectedCounts = manifest.Counts

	if manifest.Version != FormatVersion {
		result.Valid = false
		result.Errors = append(result.Errors,
			fmt.Sprintf("unsupported version %s (want %s)", manifest.Version, FormatVersion))
	}

	check := func(name string, got, want int, sum string, errs []RestoreError, err error) {
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, err.Error())
			return
		}
		if expected := manifest.Checksums[name]; expected == "" {
			result.Warnings = append(result.Warnings, fmt.Sprintf("no checksum recorded for %s", name))
		} else if expected != sum {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("%s checksum mismatch", name))
		}
		if got != want {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s holds %d records, manifest says %d", name, got, want))
		}
		for _, e := range errs {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s line %d: %s", e.Entry, e.Line, e.Error))
		}
	}

	history, sum, errs, err := readEntries[domain.HistoryItem](&zr.Reader, historyFile)
	check(historyFile, len(history), manifest.Counts.History, sum, errs, err)

	schedule, sum, errs, err := readEntries[domain.ScheduledPost](&zr.Reader, scheduleFile)
	check(scheduleFile, len(schedule), manifest.Counts.Schedule, sum, errs, err)

	return result, nil
}

func readManifest(zr *zip.Reader) (*Manifest, error) {
	rc, err := stream.OpenFile(zr, manifestFile)
	if err != nil {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidManifest, manifestFile)
	}
	defer rc.Close()

	var manifest Manifest
	if err := json.NewDecoder(rc).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	return &manifest, nil
}

// readEntries decodes one JSONL entry. Bad lines are collected, not fatal.
func readEntries[T any](zr *zip.Reader, name string) ([]T, string, []RestoreError, error) {
	rc, err := stream.OpenFile(zr, name)
	if err != nil {
		return nil, "", nil, fmt.Errorf("%w: missing %s", ErrCorruptedBackup, name)
	}

	reader := stream.NewReader[T](rc)
	var (
		records []T
		errs    []RestoreError
	)
	for record, err := range reader.All() {
		if err != nil {
			var le *stream.LineError
			if !errors.As(err, &le) {
				return nil, "", nil, fmt.Errorf("read %s: %w", name, err)
			}
			errs = append(errs, RestoreError{Entry: name, Line: le.Line, Error: le.Err.Error()})
			continue
		}
		records = append(records, record)
	}
	return records, reader.Checksum(), errs, nil
}
