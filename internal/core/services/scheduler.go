package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
	"github.com/custodia-labs/shelter-agent/internal/core/ports/driven"
	"github.com/custodia-labs/shelter-agent/internal/core/ports/driving"
	"github.com/custodia-labs/shelter-agent/internal/logger"
)

// Default scheduler timing. Tests shorten these through the struct
// fields.
const (
	DefaultErrorRetryDelay = time.Hour
	DefaultReportPollDelay = 30 * time.Second
)

// Scheduler runs the daily backup pass: due-task discovery, retention
// enforcement, backup execution and result reporting over the control
// channel. One pass runs per calendar day; a failed pass is retried
// after a fixed delay instead of waiting for the next midnight.
type Scheduler struct {
	store       driven.TaskStore
	coordinator driving.BackupCoordinator
	deleter     driving.BackupDeleter
	channel     driven.ControlChannel
	agentID     string

	// ErrorRetryDelay is the wait after a failed pass.
	ErrorRetryDelay time.Duration

	// ReportPollDelay is the wait between channel-active polls when a
	// result batch is ready but the connection is down.
	ReportPollDelay time.Duration

	// Now supplies the current time. Defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

var _ driving.Scheduler = (*Scheduler)(nil)

// NewScheduler creates a scheduler. The deleter is the agent's delete
// path, so retention eviction removes backend objects, history rows and
// sends acknowledgements exactly like a remote delete.
func NewScheduler(
	store driven.TaskStore,
	coordinator driving.BackupCoordinator,
	deleter driving.BackupDeleter,
	channel driven.ControlChannel,
	agentID string,
) *Scheduler {
	return &Scheduler{
		store:           store,
		coordinator:     coordinator,
		deleter:         deleter,
		channel:         channel,
		agentID:         agentID,
		ErrorRetryDelay: DefaultErrorRetryDelay,
		ReportPollDelay: DefaultReportPollDelay,
		Now:             time.Now,
	}
}

// Start begins the daily loop. Blocks until the context is cancelled,
// Stop is called, or the control channel is permanently disabled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	for {
		if !s.channel.Enabled() {
			return domain.ErrChannelDisabled
		}

		wait := s.untilNextMidnight()
		if err := s.RunPass(ctx); err != nil {
			logger.Errorf("scheduler: pass failed: %v", err)
			wait = s.ErrorRetryDelay
		}

		logger.Infof("scheduler: next pass in %s", wait.Round(time.Second))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-time.After(wait):
		}
	}
}

// Stop gracefully stops the loop.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false
	close(s.stopCh)
	return nil
}

// RunPass executes one daily pass: run every due task and report the
// batch of results. An error here means the pass as a whole could not
// run; individual task failures are logged and skipped.
func (s *Scheduler) RunPass(ctx context.Context) error {
	now := s.Now()
	tasks, err := s.store.DueTasks(ctx, now)
	if err != nil {
		return fmt.Errorf("listing due tasks: %w", err)
	}
	if len(tasks) == 0 {
		logger.Debugf("scheduler: no tasks due")
		return nil
	}
	logger.Infof("scheduler: %d task(s) due", len(tasks))

	var results []domain.BackupResult //nolint:prealloc // tasks may fail
	for i := range tasks {
		result, err := s.runTask(ctx, &tasks[i])
		if err != nil {
			logger.Errorf("scheduler: task %d failed: %v", tasks[i].ID, err)
			continue
		}
		results = append(results, *result)
	}

	if len(results) > 0 {
		return s.report(ctx, results)
	}
	return nil
}

// runTask enforces retention, creates the backup and advances the
// schedule for one task.
func (s *Scheduler) runTask(ctx context.Context, task *domain.BackupTask) (*domain.BackupResult, error) {
	if err := s.enforceRetention(ctx, task); err != nil {
		return nil, fmt.Errorf("enforcing retention: %w", err)
	}

	backupID, err := s.coordinator.Create(ctx, *task)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	entry := &domain.BackupEntry{
		TaskID:       task.ID,
		BackupID:     backupID,
		OriginalName: task.OriginalName(),
		Timestamp:    now,
		Status:       domain.StatusCompleted,
	}
	if err := s.store.RecordBackup(ctx, entry); err != nil {
		return nil, fmt.Errorf("recording backup %s: %w", backupID, err)
	}

	next := domain.NextRun(task.Frequency, task.NextRun)
	if err := s.store.MarkRun(ctx, task.ID, now, next); err != nil {
		return nil, fmt.Errorf("advancing schedule: %w", err)
	}
	logger.Infof("scheduler: task %d complete, next run %s", task.ID, next.Format("2006-01-02"))

	return &domain.BackupResult{
		TaskID:       entry.TaskID,
		BackupID:     entry.BackupID,
		OriginalName: entry.OriginalName,
		Timestamp:    domain.FormatWireTime(entry.Timestamp),
		Status:       entry.Status,
	}, nil
}

// enforceRetention evicts the oldest backups so that, after the upcoming
// run, at most BackupLimit backups remain. Eviction goes through the
// agent's delete path, which also acknowledges to the coordinator.
func (s *Scheduler) enforceRetention(ctx context.Context, task *domain.BackupTask) error {
	if task.BackupLimit <= 0 {
		return nil
	}
	history, err := s.store.TaskHistory(ctx, task.ID)
	if err != nil {
		return err
	}

	evict := len(history) - task.BackupLimit + 1
	for i := 0; i < evict; i++ {
		logger.Infof("scheduler: task %d at limit %d, evicting %s", task.ID, task.BackupLimit, history[i].BackupID)
		if err := s.deleter.DeleteBackup(ctx, history[i].BackupID); err != nil {
			return err
		}
	}
	return nil
}

// report sends the result batch, polling until the control channel has a
// live connection. Reports are dropped only when the channel is
// permanently disabled.
func (s *Scheduler) report(ctx context.Context, results []domain.BackupResult) error {
	for !s.channel.Active() {
		if !s.channel.Enabled() {
			return fmt.Errorf("dropping %d result(s): %w", len(results), domain.ErrChannelDisabled)
		}
		logger.Infof("scheduler: waiting for connection to report %d result(s)", len(results))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.ReportPollDelay):
		}
	}

	resp := domain.Response{
		Command:    domain.CmdBackupHistory,
		Parameters: domain.BackupHistoryParams{BackupResults: results},
		AgentID:    s.agentID,
	}
	if err := s.channel.Send(ctx, resp); err != nil {
		return fmt.Errorf("reporting results: %w", err)
	}
	logger.Infof("scheduler: reported %d result(s)", len(results))
	return nil
}

// untilNextMidnight returns the wait from now to the next local
// midnight.
func (s *Scheduler) untilNextMidnight() time.Duration {
	now := s.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	return midnight.Sub(now)
}
