package driving

import (
	"context"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
)

// Agent is the command dispatcher facade. The control adapter feeds it
// decoded inbound frames; the scheduler borrows its delete path so that
// retention eviction and remote deletes behave identically.
type Agent interface {
	// Run starts the scheduler in the background and drives the control
	// channel's connect-retry-listen loop on the foreground. It returns
	// when the retry budget is exhausted (after best-effort notification)
	// or the context is cancelled.
	Run(ctx context.Context) error

	// HandleCommand dispatches one inbound command. Commands arrive and
	// are processed strictly in order; failures are logged and, for
	// New_Task, compensated with a Delete_Task response.
	HandleCommand(ctx context.Context, cmd domain.Command)

	// DeleteBackup removes one backup: backend delete, history row
	// delete, and a Delete_Backup acknowledgement. The acknowledgement
	// is sent even when the backup id is unknown.
	DeleteBackup(ctx context.Context, backupID string) error
}

// BackupDeleter is the slice of Agent the scheduler needs for retention
// eviction.
type BackupDeleter interface {
	DeleteBackup(ctx context.Context, backupID string) error
}
