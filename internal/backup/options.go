package backup

import "time"

// RestoreMode determines how to handle existing records.
type RestoreMode string

const (
	// RestoreModeFull replaces both collections with the backup's.
	RestoreModeFull RestoreMode = "full"

	// RestoreModeMerge adds backup records; existing ids win.
	RestoreModeMerge RestoreMode = "merge"
)

// Valid returns true if the restore mode is recognized.
func (m RestoreMode) Valid() bool {
	switch m {
	case RestoreModeFull, RestoreModeMerge:
		return true
	default:
		return false
	}
}

// RestoreOptions configures restoration.
type RestoreOptions struct {
	Mode   RestoreMode
	DryRun bool // Validate and count without writing
}

// BackupResult contains the outcome of a backup operation.
type BackupResult struct {
	ID       string        `json:"id"`
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Counts   Counts        `json:"counts"`
	Duration time.Duration `json:"duration"`
	Checksum string        `json:"checksum"`
}

// BackupInfo describes an existing backup.
type BackupInfo struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// RestoreResult contains the outcome of a restore operation.
type RestoreResult struct {
	// Read is what the archive held, Skipped what was not applied and Total
	// the collection sizes afterwards. Total is zero on a dry run.
	Read     Counts         `json:"read"`
	Skipped  Counts         `json:"skipped"`
	Total    Counts         `json:"total"`
	Errors   []RestoreError `json:"errors,omitempty"`
	DryRun   bool           `json:"dry_run"`
	Duration time.Duration  `json:"duration"`
}

// RestoreError describes a record that could not be decoded.
type RestoreError struct {
	Entry string `json:"entry"`
	Line  int    `json:"line,omitempty"`
	Error string `json:"error"`
}

// ValidationResult describes backup validity.
type ValidationResult struct {
	Valid          bool      `json:"valid"`
	Manifest       *Manifest `json:"manifest,omitempty"`
	ExpectedCounts Counts    `json:"expected_counts"`
	Errors         []string  `json:"errors,omitempty"`
	Warnings       []string  `json:"warnings,omitempty"`
}
