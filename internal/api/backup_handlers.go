package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/works-s/postsmith/internal/backup"
	domainerrors "github.com/works-s/postsmith/internal/errors"
)

func (s *Server) registerBackupRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createBackup",
		Method:        http.MethodPost,
		Path:          "/api/v1/backups",
		Summary:       "Create backup",
		Description:   "Archives history and schedule into a zip file",
		Tags:          []string{"Backup"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateBackup)

	huma.Register(s.api, huma.Operation{
		OperationID: "listBackups",
		Method:      http.MethodGet,
		Path:        "/api/v1/backups",
		Summary:     "List backups",
		Tags:        []string{"Backup"},
	}, s.handleListBackups)

	huma.Register(s.api, huma.Operation{
		OperationID: "downloadBackup",
		Method:      http.MethodGet,
		Path:        "/api/v1/backups/{id}/download",
		Summary:     "Download backup",
		Tags:        []string{"Backup"},
	}, s.handleDownloadBackup)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteBackup",
		Method:        http.MethodDelete,
		Path:          "/api/v1/backups/{id}",
		Summary:       "Delete backup",
		Tags:          []string{"Backup"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteBackup)

	huma.Register(s.api, huma.Operation{
		OperationID: "validateBackup",
		Method:      http.MethodGet,
		Path:        "/api/v1/backups/{id}/validate",
		Summary:     "Validate backup",
		Description: "Checks manifest, version and checksums without restoring",
		Tags:        []string{"Backup"},
	}, s.handleValidateBackup)

	huma.Register(s.api, huma.Operation{
		OperationID: "restoreBackup",
		Method:      http.MethodPost,
		Path:        "/api/v1/backups/{id}/restore",
		Summary:     "Restore from backup",
		Description: "Replaces (full) or merges into (merge) history and schedule",
		Tags:        []string{"Backup"},
	}, s.handleRestoreBackup)

	huma.Register(s.api, huma.Operation{
		OperationID: "importBrowser",
		Method:      http.MethodPost,
		Path:        "/api/v1/import/browser",
		Summary:     "Import browser data",
		Description: "Imports cleaningPostHistory and scheduledPosts from a localStorage dump",
		Tags:        []string{"Backup"},
	}, s.handleImportBrowser)
}

// BackupResponse represents a backup in API responses.
type BackupResponse struct {
	ID        string         `json:"id" doc:"Backup identifier"`
	Size      int64          `json:"size" doc:"Archive size in bytes"`
	CreatedAt time.Time      `json:"createdAt"`
	Counts    *backup.Counts `json:"counts,omitempty"`
	Checksum  string         `json:"checksum,omitempty" doc:"blake2b-256 of the archive"`
}

// BackupOutput wraps one backup for Huma.
type BackupOutput struct {
	Body BackupResponse
}

// ListBackupsOutput wraps the backup list for Huma.
type ListBackupsOutput struct {
	Body []BackupResponse
}

// BackupIDInput addresses one backup.
type BackupIDInput struct {
	ID string `path:"id" maxLength:"80" doc:"Backup identifier"`
}

// ValidateBackupOutput wraps a validation report for Huma.
type ValidateBackupOutput struct {
	Body backup.ValidationResult
}

// RestoreBackupInput selects the backup and how to apply it.
type RestoreBackupInput struct {
	ID     string `path:"id" maxLength:"80"`
	Mode    string `query:"mode" enum:"full,merge" default:"merge" doc:"full replaces both collections"`
	DryRun  bool   `query:"dryRun" doc:"Read and count without writing"`
	Confirm bool   `query:"confirm" doc:"Required for mode=full"`
}

// ImportBrowserInput carries a localStorage dump.
type ImportBrowserInput struct {
	Mode    string `query:"mode" enum:"full,merge" default:"merge"`
	DryRun  bool   `query:"dryRun"`
	Confirm bool   `query:"confirm" doc:"Required for mode=full"`
	RawBody []byte
}

// RestoreOutput wraps a restore report for Huma.
type RestoreOutput struct {
	Body backup.RestoreResult
}

func (s *Server) handleCreateBackup(ctx context.Context, _ *struct{}) (*BackupOutput, error) {
	result, err := s.services.Backups.Create(ctx)
	if err != nil {
		return nil, backupError(err)
	}
	return &BackupOutput{Body: BackupResponse{
		ID:        result.ID,
		Size:      result.Size,
		CreatedAt: time.Now().UTC(),
		Counts:    &result.Counts,
		Checksum:  result.Checksum,
	}}, nil
}

func (s *Server) handleListBackups(ctx context.Context, _ *struct{}) (*ListBackupsOutput, error) {
	backups, err := s.services.Backups.List(ctx)
	if err != nil {
		return nil, backupError(err)
	}
	out := make([]BackupResponse, len(backups))
	for i, b := range backups {
		out[i] = BackupResponse{ID: b.ID, Size: b.Size, CreatedAt: b.CreatedAt.UTC()}
	}
	return &ListBackupsOutput{Body: out}, nil
}

func (s *Server) handleDownloadBackup(ctx context.Context, input *BackupIDInput) (*huma.StreamResponse, error) {
	b, err := s.services.Backups.Get(ctx, input.ID)
	if err != nil {
		return nil, backupError(err)
	}

	f, err := os.Open(b.Path)
	if err != nil {
		return nil, backupError(err)
	}

	return &huma.StreamResponse{
		Body: func(hctx huma.Context) {
			defer f.Close()
			hctx.SetHeader("Content-Type", "application/zip")
			hctx.SetHeader("Content-Disposition",
				mime.FormatMediaType("attachment", map[string]string{"filename": b.ID + backup.Suffix}))
			if _, err := io.Copy(hctx.BodyWriter(), f); err != nil {
				s.logger.Warn("backup download interrupted", "id", b.ID, "error", err)
			}
		},
	}, nil
}

func (s *Server) handleDeleteBackup(ctx context.Context, input *BackupIDInput) (*struct{}, error) {
	if err := s.services.Backups.Delete(ctx, input.ID); err != nil {
		return nil, backupError(err)
	}
	return nil, nil
}

func (s *Server) handleValidateBackup(ctx context.Context, input *BackupIDInput) (*ValidateBackupOutput, error) {
	b, err := s.services.Backups.Get(ctx, input.ID)
	if err != nil {
		return nil, backupError(err)
	}
	result, err := s.services.Restores.Validate(ctx, b.Path)
	if err != nil {
		return nil, backupError(err)
	}
	return &ValidateBackupOutput{Body: *result}, nil
}

func (s *Server) handleRestoreBackup(ctx context.Context, input *RestoreBackupInput) (*RestoreOutput, error) {
	if err := confirmFull(input.Mode, input.DryRun, input.Confirm); err != nil {
		return nil, err
	}
	b, err := s.services.Backups.Get(ctx, input.ID)
	if err != nil {
		return nil, backupError(err)
	}
	result, err := s.services.Restores.Restore(ctx, b.Path, backup.RestoreOptions{
		Mode:   backup.RestoreMode(input.Mode),
		DryRun: input.DryRun,
	})
	if err != nil {
		return nil, backupError(err)
	}
	return &RestoreOutput{Body: *result}, nil
}

func (s *Server) handleImportBrowser(ctx context.Context, input *ImportBrowserInput) (*RestoreOutput, error) {
	if err := confirmFull(input.Mode, input.DryRun, input.Confirm); err != nil {
		return nil, err
	}
	result, err := s.services.Restores.ImportBrowser(ctx, bytes.NewReader(input.RawBody), backup.RestoreOptions{
		Mode:   backup.RestoreMode(input.Mode),
		DryRun: input.DryRun,
	})
	if err != nil {
		return nil, backupError(err)
	}
	return &RestoreOutput{Body: *result}, nil
}

// confirmFull guards the modes that discard existing records.
func confirmFull(mode string, dryRun, confirm bool) error {
	if backup.RestoreMode(mode) == backup.RestoreModeFull && !dryRun && !confirm {
		return domainerrors.Validation("full restore replaces all history and schedule; pass confirm=true")
	}
	return nil
}

// backupError maps backup sentinels onto domain errors. Store errors are
// already domain errors and pass through.
func backupError(err error) error {
	switch {
	case errors.Is(err, backup.ErrBackupNotFound):
		return domainerrors.NotFound("backup not found")
	case errors.Is(err, backup.ErrInvalidMode),
		errors.Is(err, backup.ErrInvalidManifest),
		errors.Is(err, backup.ErrVersionMismatch),
		errors.Is(err, backup.ErrCorruptedBackup):
		return domainerrors.Validation(err.Error())
	default:
		return err
	}
}
