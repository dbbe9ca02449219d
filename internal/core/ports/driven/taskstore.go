package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
)

// TaskStore persists backup tasks and their history. Individual calls are
// atomic, but multi-call sequences (retention eviction followed by a new
// history insert) are not transactional against concurrent deletes; command
// handling is serialised on the control channel, which bounds the exposure.
type TaskStore interface {
	// SaveTask persists a task. Creates or updates based on ID.
	SaveTask(ctx context.Context, task *domain.BackupTask) error

	// GetTask retrieves a task by id.
	// Returns domain.ErrNotFound if the task does not exist.
	GetTask(ctx context.Context, id int64) (*domain.BackupTask, error)

	// ListTasks returns all tasks ordered by id.
	ListTasks(ctx context.Context) ([]domain.BackupTask, error)

	// DueTasks returns active tasks whose next-run date is on or before
	// the date of now. The comparison is date-only.
	DueTasks(ctx context.Context, now time.Time) ([]domain.BackupTask, error)

	// MarkRun records a completed run: lastRun is persisted as the task's
	// last execution and nextRun overwrites the schedule field in place.
	MarkRun(ctx context.Context, id int64, lastRun, nextRun time.Time) error

	// DeleteTask removes the task row and all of its history rows.
	DeleteTask(ctx context.Context, id int64) error

	// RecordBackup appends a history entry for a completed backup.
	RecordBackup(ctx context.Context, entry *domain.BackupEntry) error

	// TaskHistory returns all history entries for a task ordered by
	// timestamp ascending (oldest first). Retention trims from the front.
	TaskHistory(ctx context.Context, taskID int64) ([]domain.BackupEntry, error)

	// GetBackup returns the most recent history entry for a backup id
	// joined with its owning task.
	// Returns domain.ErrNotFound if no such entry exists.
	GetBackup(ctx context.Context, backupID string) (*domain.BackupRecord, error)

	// DeleteBackup removes the history row for a backup id.
	// Deleting an unknown id is not an error.
	DeleteBackup(ctx context.Context, backupID string) error
}
