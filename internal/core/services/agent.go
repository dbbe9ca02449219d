package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
	"github.com/custodia-labs/shelter-agent/internal/core/ports/driven"
	"github.com/custodia-labs/shelter-agent/internal/core/ports/driving"
	"github.com/custodia-labs/shelter-agent/internal/logger"
)

// DefaultReconnectDelay is the pause between connection sessions after a
// served connection drops.
const DefaultReconnectDelay = time.Second

// Agent is the command dispatcher. It owns the process lifecycle: the
// scheduler runs in the background while the control channel's
// connect-retry-listen loop holds the foreground, feeding inbound
// commands to the handlers here.
type Agent struct {
	store       driven.TaskStore
	coordinator driving.BackupCoordinator
	registry    driven.ProviderRegistry
	channel     driven.ChannelDriver
	scheduler   driving.Scheduler
	notifier    driven.Notifier
	agentID     string

	// ReconnectDelay is the pause before redialling after a served
	// connection drops.
	ReconnectDelay time.Duration
}

var _ driving.Agent = (*Agent)(nil)

// SetScheduler attaches the scheduler after construction. The scheduler
// borrows the agent's delete path for retention eviction, so the two are
// wired in two steps.
func (a *Agent) SetScheduler(s driving.Scheduler) {
	a.scheduler = s
}

// NewAgent creates the dispatcher. notifier may be nil when email
// notifications are not configured.
func NewAgent(
	store driven.TaskStore,
	coordinator driving.BackupCoordinator,
	registry driven.ProviderRegistry,
	channel driven.ChannelDriver,
	scheduler driving.Scheduler,
	notifier driven.Notifier,
	agentID string,
) *Agent {
	return &Agent{
		store:          store,
		coordinator:    coordinator,
		registry:       registry,
		channel:        channel,
		scheduler:      scheduler,
		notifier:       notifier,
		agentID:        agentID,
		ReconnectDelay: DefaultReconnectDelay,
	}
}

// Run starts the scheduler in the background and drives the control
// channel on the foreground. It returns domain.ErrChannelDisabled once
// the retry budget is exhausted, after a best-effort operator
// notification.
func (a *Agent) Run(ctx context.Context) error {
	if a.scheduler != nil {
		go func() {
			if err := a.scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("agent: scheduler stopped: %v", err)
			}
		}()
		defer a.scheduler.Stop() //nolint:errcheck
	}

	logger.Infof("agent: %s starting", a.agentID)

	for {
		if ok := a.channel.ConnectWithRetry(ctx, a.announce, a.HandleCommand); !ok {
			msg := fmt.Sprintf("agent %s: connection retries exhausted, terminating", a.agentID)
			logger.Errorf("agent: %s", msg)
			if a.notifier != nil {
				if err := a.notifier.NotifyError(a.agentID, msg); err != nil {
					logger.Errorf("agent: notification failed: %v", err)
				}
			}
			return domain.ErrChannelDisabled
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Infof("agent: connection lost, reconnecting in %s", a.ReconnectDelay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.ReconnectDelay):
		}
	}
}

// announce sends the agent's identity, host fingerprint and provider
// statuses over a freshly established connection.
func (a *Agent) announce(ctx context.Context) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	info := domain.AgentInfo{
		AgentID:   a.agentID,
		Name:      hostname,
		IPAddress: localIP(),
		OSType:    runtime.GOOS,
		Status:    "online",
		Hostname:  hostname,
		Platform: domain.PlatformInfo{
			System:    runtime.GOOS,
			Release:   runtime.Version(),
			Version:   runtime.Version(),
			Machine:   runtime.GOARCH,
			Processor: runtime.GOARCH,
		},
		AvailableProviders: a.registry.Status(ctx),
	}

	return a.channel.Send(ctx, domain.Response{
		Command:    domain.CmdInfo,
		Parameters: info,
		AgentID:    a.agentID,
	})
}

// HandleCommand dispatches one inbound command. Unknown commands and
// handler failures are logged, never fatal: the listen loop must keep
// serving.
func (a *Agent) HandleCommand(ctx context.Context, cmd domain.Command) {
	logger.Infof("agent: handling %s", cmd.Command)

	var err error
	switch cmd.Command {
	case domain.CmdNewTask:
		err = a.handleNewTask(ctx, cmd.Parameters)
	case domain.CmdDeleteBackup:
		err = a.handleDeleteBackup(ctx, cmd.Parameters)
	case domain.CmdDeleteTask:
		err = a.handleDeleteTask(ctx, cmd.Parameters)
	case domain.CmdRestoreBackup:
		err = a.handleRestoreBackup(ctx, cmd.Parameters)
	default:
		logger.Warnf("agent: ignoring unknown command %q", cmd.Command)
		return
	}

	if err != nil {
		logger.Errorf("agent: %s failed: %v", cmd.Command, err)
	}
}

// handleNewTask validates, persists and immediately runs a new backup
// task. Any failure after persisting compensates by removing the task
// and telling the coordinator to do the same.
func (a *Agent) handleNewTask(ctx context.Context, raw json.RawMessage) error {
	var params domain.NewTaskParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return fmt.Errorf("%w: decoding New_Task parameters: %v", domain.ErrInvalidInput, err)
	}

	task, err := a.taskFromParams(params)
	if err != nil {
		return err
	}

	if err := a.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("persisting task %d: %w", task.ID, err)
	}

	if err := a.runTaskNow(ctx, task); err != nil {
		a.compensateNewTask(ctx, task.ID)
		return fmt.Errorf("initial backup for task %d: %w", task.ID, err)
	}
	return nil
}

// taskFromParams validates New_Task parameters into a task.
func (a *Agent) taskFromParams(params domain.NewTaskParams) (*domain.BackupTask, error) {
	frequency, err := domain.ParseFrequency(params.Frequency)
	if err != nil {
		return nil, err
	}
	startDate, err := domain.ParseWireTime(params.StartDate)
	if err != nil {
		return nil, fmt.Errorf("start date: %w", err)
	}
	info, err := os.Stat(params.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: source path %s: %v", domain.ErrInvalidInput, params.SourcePath, err)
	}

	task := &domain.BackupTask{
		ID:          params.BackupTaskID,
		SourcePath:  params.SourcePath,
		Encrypt:     params.Encrypt,
		Frequency:   frequency,
		ProviderID:  params.Provider,
		BackupLimit: params.BackupLimit,
		AgentID:     params.AgentID,
		NextRun:     startDate,
		IsActive:    params.IsActive,
		IsDirectory: info.IsDir(),
	}
	if params.LastRun != "" {
		lastRun, err := domain.ParseWireTime(params.LastRun)
		if err != nil {
			return nil, fmt.Errorf("last run: %w", err)
		}
		task.LastRun = lastRun
	}
	return task, nil
}

// runTaskNow creates the first backup for a freshly registered task and
// reports it as a single-entry history batch.
func (a *Agent) runTaskNow(ctx context.Context, task *domain.BackupTask) error {
	backupID, err := a.coordinator.Create(ctx, *task)
	if err != nil {
		return err
	}

	now := time.Now()
	entry := &domain.BackupEntry{
		TaskID:       task.ID,
		BackupID:     backupID,
		OriginalName: task.OriginalName(),
		Timestamp:    now,
		Status:       domain.StatusCompleted,
	}
	if err := a.store.RecordBackup(ctx, entry); err != nil {
		return fmt.Errorf("recording backup %s: %w", backupID, err)
	}
	next := domain.NextRun(task.Frequency, task.NextRun)
	if err := a.store.MarkRun(ctx, task.ID, now, next); err != nil {
		return fmt.Errorf("advancing schedule: %w", err)
	}

	resp := domain.Response{
		Command: domain.CmdBackupHistory,
		Parameters: domain.BackupHistoryParams{BackupResults: []domain.BackupResult{{
			TaskID:       entry.TaskID,
			BackupID:     entry.BackupID,
			OriginalName: entry.OriginalName,
			Timestamp:    domain.FormatWireTime(entry.Timestamp),
			Status:       entry.Status,
		}}},
		AgentID: a.agentID,
	}
	if err := a.channel.Send(ctx, resp); err != nil {
		// The backup itself succeeded; the scheduler's next batch will
		// not include it, so just log the lost report.
		logger.Warnf("agent: could not report initial backup for task %d: %v", task.ID, err)
	}
	return nil
}

// compensateNewTask undoes a failed task registration on both sides:
// the local row is removed and the coordinator is told to drop the task.
func (a *Agent) compensateNewTask(ctx context.Context, taskID int64) {
	if err := a.store.DeleteTask(ctx, taskID); err != nil {
		logger.Errorf("agent: removing failed task %d: %v", taskID, err)
	}
	resp := domain.Response{
		Command:    domain.CmdDeleteTask,
		Parameters: domain.DeleteTaskAck{BackupTaskID: taskID},
		AgentID:    a.agentID,
	}
	if err := a.channel.Send(ctx, resp); err != nil {
		logger.Errorf("agent: compensating Delete_Task for %d: %v", taskID, err)
	}
}

func (a *Agent) handleDeleteBackup(ctx context.Context, raw json.RawMessage) error {
	var params domain.DeleteBackupParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return fmt.Errorf("%w: decoding Delete_Backup parameters: %v", domain.ErrInvalidInput, err)
	}
	return a.DeleteBackup(ctx, params.BackupID)
}

// DeleteBackup removes one backup end to end: backend object, history
// row, acknowledgement. An unknown id is acknowledged without error so
// the coordinator can settle its own records.
func (a *Agent) DeleteBackup(ctx context.Context, backupID string) error {
	rec, err := a.store.GetBackup(ctx, backupID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		logger.Warnf("agent: delete for unknown backup %s, acknowledging anyway", backupID)
	case err != nil:
		return fmt.Errorf("looking up backup %s: %w", backupID, err)
	default:
		if err := a.coordinator.Delete(ctx, rec.BackupID, rec.ProviderID); err != nil {
			return err
		}
		if err := a.store.DeleteBackup(ctx, backupID); err != nil {
			return fmt.Errorf("removing history for %s: %w", backupID, err)
		}
	}

	resp := domain.Response{
		Command:    domain.CmdDeleteBackup,
		Parameters: domain.DeleteBackupAck{BackupID: backupID},
		AgentID:    a.agentID,
	}
	if err := a.channel.Send(ctx, resp); err != nil {
		logger.Warnf("agent: could not acknowledge delete of %s: %v", backupID, err)
	}
	return nil
}

// handleDeleteTask removes a task and every backup it ever made, each
// through the full delete path.
func (a *Agent) handleDeleteTask(ctx context.Context, raw json.RawMessage) error {
	var params domain.DeleteTaskParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return fmt.Errorf("%w: decoding Delete_Task parameters: %v", domain.ErrInvalidInput, err)
	}

	history, err := a.store.TaskHistory(ctx, params.BackupTaskID)
	if err != nil {
		return fmt.Errorf("listing history for task %d: %w", params.BackupTaskID, err)
	}
	for _, entry := range history {
		if err := a.DeleteBackup(ctx, entry.BackupID); err != nil {
			return fmt.Errorf("deleting backup %s of task %d: %w", entry.BackupID, params.BackupTaskID, err)
		}
	}

	if err := a.store.DeleteTask(ctx, params.BackupTaskID); err != nil {
		return fmt.Errorf("removing task %d: %w", params.BackupTaskID, err)
	}

	resp := domain.Response{
		Command:    domain.CmdDeleteTask,
		Parameters: domain.DeleteTaskAck{BackupTaskID: params.BackupTaskID},
		AgentID:    a.agentID,
	}
	if err := a.channel.Send(ctx, resp); err != nil {
		logger.Warnf("agent: could not acknowledge delete of task %d: %v", params.BackupTaskID, err)
	}
	return nil
}

func (a *Agent) handleRestoreBackup(ctx context.Context, raw json.RawMessage) error {
	var params domain.RestoreBackupParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return fmt.Errorf("%w: decoding Restore_Backup parameters: %v", domain.ErrInvalidInput, err)
	}

	rec, err := a.store.GetBackup(ctx, params.BackupID)
	if err != nil {
		return fmt.Errorf("looking up backup %s: %w", params.BackupID, err)
	}
	if err := a.coordinator.Restore(ctx, *rec); err != nil {
		return err
	}

	resp := domain.Response{
		Command:    domain.CmdRestoreBackup,
		Parameters: domain.RestoreBackupAck{BackupID: params.BackupID},
		AgentID:    a.agentID,
	}
	if err := a.channel.Send(ctx, resp); err != nil {
		logger.Warnf("agent: could not acknowledge restore of %s: %v", params.BackupID, err)
	}
	return nil
}

// localIP returns the host's outbound IPv4 address. No packets are sent;
// dialling UDP only selects a route.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}
