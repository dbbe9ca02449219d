package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
	"github.com/custodia-labs/shelter-agent/internal/core/ports/driven"
)

// taskStore implements driven.TaskStore.
type taskStore struct {
	store *Store
}

var _ driven.TaskStore = (*taskStore)(nil)

// SaveTask persists a task. Creates or updates based on ID.
func (s *taskStore) SaveTask(ctx context.Context, task *domain.BackupTask) error {
	if task == nil {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO backup_tasks (id, source_path, encrypt, frequency, provider,
			backup_limit, agent_id, next_run, is_active, is_directory, last_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_path = excluded.source_path,
			encrypt = excluded.encrypt,
			frequency = excluded.frequency,
			provider = excluded.provider,
			backup_limit = excluded.backup_limit,
			agent_id = excluded.agent_id,
			next_run = excluded.next_run,
			is_active = excluded.is_active,
			is_directory = excluded.is_directory,
			last_run = excluded.last_run
	`, task.ID, task.SourcePath, boolToInt(task.Encrypt), string(task.Frequency),
		task.ProviderID, task.BackupLimit, task.AgentID,
		task.NextRun.UTC().Format(time.RFC3339),
		boolToInt(task.IsActive), boolToInt(task.IsDirectory),
		formatNullableTime(task.LastRun))

	if err != nil {
		return fmt.Errorf("saving backup task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by id.
func (s *taskStore) GetTask(ctx context.Context, id int64) (*domain.BackupTask, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, source_path, encrypt, frequency, provider,
			backup_limit, agent_id, next_run, is_active, is_directory, last_run
		FROM backup_tasks WHERE id = ?
	`, id)

	return scanBackupTask(row.Scan)
}

// ListTasks returns all tasks ordered by id.
func (s *taskStore) ListTasks(ctx context.Context) ([]domain.BackupTask, error) {
	return s.queryTasks(ctx, `
		SELECT id, source_path, encrypt, frequency, provider,
			backup_limit, agent_id, next_run, is_active, is_directory, last_run
		FROM backup_tasks ORDER BY id
	`)
}

// DueTasks returns active tasks whose next-run date is on or before the
// date of now. The comparison is date-only, matching the daily cadence.
func (s *taskStore) DueTasks(ctx context.Context, now time.Time) ([]domain.BackupTask, error) {
	return s.queryTasks(ctx, `
		SELECT id, source_path, encrypt, frequency, provider,
			backup_limit, agent_id, next_run, is_active, is_directory, last_run
		FROM backup_tasks
		WHERE is_active = 1 AND date(next_run) <= date(?)
		ORDER BY id
	`, now.UTC().Format(time.RFC3339))
}

// MarkRun records a completed run, overwriting the schedule field in place.
func (s *taskStore) MarkRun(ctx context.Context, id int64, lastRun, nextRun time.Time) error {
	_, err := s.store.db.ExecContext(ctx, `
		UPDATE backup_tasks SET last_run = ?, next_run = ? WHERE id = ?
	`, lastRun.UTC().Format(time.RFC3339), nextRun.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("marking task run: %w", err)
	}
	return nil
}

// DeleteTask removes the task row and all of its history rows.
func (s *taskStore) DeleteTask(ctx context.Context, id int64) error {
	if _, err := s.store.db.ExecContext(ctx,
		"DELETE FROM backup_history WHERE task_id = ?", id); err != nil {
		return fmt.Errorf("deleting task history: %w", err)
	}
	if _, err := s.store.db.ExecContext(ctx,
		"DELETE FROM backup_tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting backup task: %w", err)
	}
	return nil
}

// RecordBackup appends a history entry for a completed backup.
func (s *taskStore) RecordBackup(ctx context.Context, entry *domain.BackupEntry) error {
	if entry == nil {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO backup_history (task_id, backup_id, original_name, timestamp, status)
		VALUES (?, ?, ?, ?, ?)
	`, entry.TaskID, entry.BackupID, entry.OriginalName,
		entry.Timestamp.UTC().Format(time.RFC3339), entry.Status)

	if err != nil {
		return fmt.Errorf("recording backup history: %w", err)
	}
	return nil
}

// TaskHistory returns all history entries for a task, oldest first.
func (s *taskStore) TaskHistory(ctx context.Context, taskID int64) ([]domain.BackupEntry, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT task_id, backup_id, original_name, timestamp, status
		FROM backup_history
		WHERE task_id = ?
		ORDER BY timestamp ASC, id ASC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("querying backup history: %w", err)
	}
	defer rows.Close()

	var entries []domain.BackupEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		var entry domain.BackupEntry
		var ts string
		if err := rows.Scan(&entry.TaskID, &entry.BackupID,
			&entry.OriginalName, &ts, &entry.Status); err != nil {
			return nil, fmt.Errorf("scanning backup history: %w", err)
		}
		entry.Timestamp = parseStoredTime(ts)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating backup history: %w", err)
	}

	return entries, nil
}

// GetBackup returns the most recent history entry for a backup id joined
// with its owning task.
func (s *taskStore) GetBackup(ctx context.Context, backupID string) (*domain.BackupRecord, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT t.id, h.backup_id, t.source_path, t.is_directory, t.provider,
			t.encrypt, h.original_name, h.timestamp
		FROM backup_tasks AS t
		JOIN backup_history AS h ON t.id = h.task_id
		WHERE h.backup_id = ?
		ORDER BY h.timestamp DESC
		LIMIT 1
	`, backupID)

	var rec domain.BackupRecord
	var isDir, encrypted int
	var ts string
	if err := row.Scan(&rec.TaskID, &rec.BackupID, &rec.SourcePath, &isDir,
		&rec.ProviderID, &encrypted, &rec.OriginalName, &ts); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning backup record: %w", err)
	}

	rec.IsDirectory = isDir == 1
	rec.Encrypted = encrypted == 1
	rec.Timestamp = parseStoredTime(ts)

	return &rec, nil
}

// DeleteBackup removes the history row for a backup id.
// Deleting an unknown id is not an error.
func (s *taskStore) DeleteBackup(ctx context.Context, backupID string) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM backup_history WHERE backup_id = ?", backupID)
	if err != nil {
		return fmt.Errorf("deleting backup history row: %w", err)
	}
	return nil
}

// queryTasks runs a task query and scans the result set.
func (s *taskStore) queryTasks(ctx context.Context, query string, args ...any) ([]domain.BackupTask, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying backup tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.BackupTask //nolint:prealloc // size unknown from query
	for rows.Next() {
		task, err := scanBackupTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating backup tasks: %w", err)
	}

	return tasks, nil
}

// ==================== Helper Functions ====================

// scanBackupTask scans one task row via the given scan function.
func scanBackupTask(scan func(dest ...any) error) (*domain.BackupTask, error) {
	var task domain.BackupTask
	var encrypt, isActive, isDirectory int
	var frequency, nextRun string
	var lastRun sql.NullString

	if err := scan(&task.ID, &task.SourcePath, &encrypt, &frequency,
		&task.ProviderID, &task.BackupLimit, &task.AgentID, &nextRun,
		&isActive, &isDirectory, &lastRun); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning backup task: %w", err)
	}

	task.Encrypt = encrypt == 1
	task.Frequency = domain.Frequency(frequency)
	task.IsActive = isActive == 1
	task.IsDirectory = isDirectory == 1
	task.NextRun = parseStoredTime(nextRun)
	task.LastRun = parseNullableTime(lastRun)

	return &task, nil
}

// parseStoredTime parses an RFC3339 string stored by this package.
// Returns zero time on parse error.
func parseStoredTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// formatNullableTime formats a time to RFC3339 string, or returns nil for zero time.
func formatNullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// parseNullableTime parses a nullable RFC3339 string to time.Time.
// Returns zero time if the string is empty or invalid.
func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	return parseStoredTime(s.String)
}

// boolToInt converts a bool to 1 (true) or 0 (false).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
