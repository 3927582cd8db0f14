package backup

import (
	"archive/zip"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/works-s/postsmith/internal/backup/stream"
	"github.com/works-s/postsmith/internal/domain"
	"github.com/works-s/postsmith/internal/store"
)

// Suffix marks backup archives in the backup directory.
const Suffix = ".postsmith.zip"

// Records is the slice of the record store that backups need.
type Records interface {
	History(ctx context.Context) ([]domain.HistoryItem, error)
	Schedule(ctx context.Context) ([]domain.ScheduledPost, error)
	Restore(ctx context.Context, history []domain.HistoryItem, schedule []domain.ScheduledPost, replace bool) (store.RestoreResult, error)
}

// BackupService manages backup creation and listing.
type BackupService struct {
	records   Records
	backupDir string
	logger    *slog.Logger
	now       func() time.Time
}

// NewBackupService creates a BackupService.
func NewBackupService(records Records, backupDir string, logger *slog.Logger) *BackupService {
	return &BackupService{
		records:   records,
		backupDir: backupDir,
		logger:    logger,
		now:       time.Now,
	}
}

// Create writes a new backup archive of both collections.
func (s *BackupService) Create(ctx context.Context) (*BackupResult, error) {
	start := time.Now()

	if err := os.MkdirAll(s.backupDir, 0o750); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	history, err := s.records.History(ctx)
	if err != nil {
		return nil, err
	}
	schedule, err := s.records.Schedule(ctx)
	if err != nil {
		return nil, err
	}

	created := s.now()
	id := "backup-" + created.Format("2006-01-02-150405")
	path := s.GetPath(id)
	if _, err := os.Stat(path); err == nil {
		// Two backups in the same second.
		id = fmt.Sprintf("%s-%03d", id, created.Nanosecond()/int(time.Millisecond))
		path = s.GetPath(id)
	}

	s.logger.Info("creating backup", "output", path, "history", len(history), "schedule", len(schedule))

	// Write to a temp file and rename so List never sees a partial archive.
	tmp, err := os.CreateTemp(s.backupDir, ".backup-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	sum, err := blake2b.New256(nil)
	if err != nil {
		_ = tmp.Close()
		return nil, err
	}

	manifest := Manifest{
		Version:   FormatVersion,
		CreatedAt: created.UTC(),
		Counts:    Counts{History: len(history), Schedule: len(schedule)},
		Checksums: map[string]string{},
	}

	zw := zip.NewWriter(io.MultiWriter(tmp, sum))
	if err := writeEntries(zw, historyFile, history, manifest.Checksums); err != nil {
		_ = tmp.Close()
		return nil, err
	}
	if err := writeEntries(zw, scheduleFile, schedule, manifest.Checksums); err != nil {
		_ = tmp.Close()
		return nil, err
	}
	if err := writeManifest(zw, manifest); err != nil {
		_ = tmp.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("finish archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("move archive into place: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	result := &BackupResult{
		ID:       id,
		Path:     path,
		Size:     info.Size(),
		Counts:   manifest.Counts,
		Duration: time.Since(start),
		Checksum: hex.EncodeToString(sum.Sum(nil)),
	}

	s.logger.Info("backup complete",
		"path", result.Path,
		"size", result.Size,
		"duration", result.Duration,
		"checksum", result.Checksum)

	return result, nil
}

func writeEntries[T any](zw *zip.Writer, name string, records []T, checksums map[string]string) error {
	w, err := stream.NewWriter(zw, name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	for _, r := range records {
		if err := w.Write(r); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	checksums[name] = w.Checksum()
	return nil
}

func writeManifest(zw *zip.Writer, m Manifest) error {
	w, err := zw.Create(manifestFile)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// List returns all available backups, newest first.
func (s *BackupService) List(_ context.Context) ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Suffix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		backups = append(backups, BackupInfo{
			ID:        strings.TrimSuffix(entry.Name(), Suffix),
			Path:      filepath.Join(s.backupDir, entry.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		if backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].ID > backups[j].ID
		}
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})

	return backups, nil
}

// Get returns a backup by ID.
func (s *BackupService) Get(_ context.Context, id string) (*BackupInfo, error) {
	if !validID(id) {
		return nil, ErrBackupNotFound
	}
	path := s.GetPath(id)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBackupNotFound
		}
		return nil, err
	}

	return &BackupInfo{
		ID:        id,
		Path:      path,
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}, nil
}

// Delete removes a backup.
func (s *BackupService) Delete(ctx context.Context, id string) error {
	info, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := os.Remove(info.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrBackupNotFound
		}
		return err
	}
	s.logger.Info("backup deleted", "id", id)
	return nil
}

// GetPath returns the file path for a backup ID.
func (s *BackupService) GetPath(id string) string {
	return filepath.Join(s.backupDir, id+Suffix)
}

// validID rejects ids that would escape the backup directory.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && filepath.Base(id) == id && !strings.ContainsAny(id, `/\`)
}
