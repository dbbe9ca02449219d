package domain

import "time"

// Backup statuses recorded in history entries.
const (
	StatusCompleted = "completed"
)

// BackupEntry is one completed backup run for a task. Entries are
// append-only: they are created after a successful upload and only ever
// deleted (individually, by retention eviction, or with their task).
type BackupEntry struct {
	// TaskID is the owning task.
	TaskID int64

	// BackupID is the opaque identifier assigned by the storage backend
	// at upload time. It is unique only within that backend.
	BackupID string

	// OriginalName is the basename of the source path at backup time.
	OriginalName string

	// Timestamp is when the backup completed.
	Timestamp time.Time

	// Status is the terminal state of the run.
	Status string
}

// BackupRecord is a history entry joined with its owning task. It carries
// everything restore and delete need to act on a backup id alone.
type BackupRecord struct {
	TaskID       int64
	BackupID     string
	SourcePath   string
	IsDirectory  bool
	ProviderID   string
	Encrypted    bool
	OriginalName string
	Timestamp    time.Time
}
