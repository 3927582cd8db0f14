package backup

import "time"

// FormatVersion is the backup format version. Increment major on breaking changes.
const FormatVersion = "1.0"

// Archive entry names.
const (
	manifestFile = "manifest.json"
	historyFile  = "history.jsonl"
	scheduleFile = "schedule.jsonl"
)

// Manifest describes backup contents and metadata.
type Manifest struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`

	Counts Counts `json:"counts"`

	// Checksums maps each entry name to the hex blake2b-256 of its bytes.
	Checksums map[string]string `json:"checksums"`
}

// Counts tracks record counts for validation and reporting.
type Counts struct {
	History  int `json:"history"`
	Schedule int `json:"schedule"`
}
