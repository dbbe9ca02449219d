package driving

import (
	"context"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
)

// BackupCoordinator sequences the backup lifecycle against a storage
// backend: archive -> encrypt -> upload on create, download -> decrypt ->
// unarchive on restore. Backends are resolved per call by provider id.
type BackupCoordinator interface {
	// Create backs up the task's source path and returns the
	// backend-assigned backup identifier. Temporary artifacts are
	// removed whether or not the operation succeeds.
	Create(ctx context.Context, task domain.BackupTask) (string, error)

	// Restore materialises a backup at its original source path.
	// The record supplies the backend, encryption flag, directory flag
	// and original name.
	Restore(ctx context.Context, rec domain.BackupRecord) error

	// Delete instructs the backend to remove a backup. Unknown ids are
	// not an error at this layer.
	Delete(ctx context.Context, backupID, providerID string) error
}
