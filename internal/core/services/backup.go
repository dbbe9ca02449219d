package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
	"github.com/custodia-labs/shelter-agent/internal/core/ports/driven"
	"github.com/custodia-labs/shelter-agent/internal/core/ports/driving"
	"github.com/custodia-labs/shelter-agent/internal/logger"
)

// Artifact name suffixes. Restore strips what create appended.
const (
	archiveSuffix   = ".zip"
	encryptedSuffix = ".enc"
)

// Coordinator sequences the backup lifecycle: archive and encrypt before
// upload, download, decrypt and unarchive on restore. All intermediate
// artifacts live in a per-operation temp directory that is removed on
// completion, success or not.
type Coordinator struct {
	registry driven.ProviderRegistry
	cipher   driven.Cipher
	archiver driven.Archiver
}

var _ driving.BackupCoordinator = (*Coordinator)(nil)

// NewCoordinator creates a backup coordinator.
func NewCoordinator(registry driven.ProviderRegistry, cipher driven.Cipher, archiver driven.Archiver) *Coordinator {
	return &Coordinator{
		registry: registry,
		cipher:   cipher,
		archiver: archiver,
	}
}

// Create backs up the task's source path and returns the backend-assigned
// backup identifier.
func (c *Coordinator) Create(ctx context.Context, task domain.BackupTask) (string, error) {
	info, err := os.Stat(task.SourcePath)
	if err != nil {
		return "", fmt.Errorf("inspecting source %s: %w", task.SourcePath, err)
	}

	tmpDir, err := os.MkdirTemp("", "shelter-backup-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	artifactPath := task.SourcePath
	artifactName := task.OriginalName()

	if info.IsDir() {
		artifactName += archiveSuffix
		archivePath := filepath.Join(tmpDir, artifactName)
		if err := c.archiver.Archive(task.SourcePath, archivePath); err != nil {
			return "", fmt.Errorf("archiving %s: %w", task.SourcePath, err)
		}
		artifactPath = archivePath
	}

	if task.Encrypt {
		if c.cipher == nil {
			return "", fmt.Errorf("%w: task %d requires encryption but no key is configured", domain.ErrInvalidInput, task.ID)
		}
		plain, err := os.ReadFile(artifactPath)
		if err != nil {
			return "", fmt.Errorf("reading artifact: %w", err)
		}
		sealed, err := c.cipher.Encrypt(plain)
		if err != nil {
			return "", fmt.Errorf("encrypting artifact: %w", err)
		}
		artifactName += encryptedSuffix
		artifactPath = filepath.Join(tmpDir, artifactName)
		if err := os.WriteFile(artifactPath, sealed, 0o600); err != nil {
			return "", fmt.Errorf("writing encrypted artifact: %w", err)
		}
	}

	provider, err := c.registry.Resolve(ctx, task.ProviderID)
	if err != nil {
		return "", err
	}

	backupID, err := provider.Upload(ctx, artifactPath, artifactName)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", artifactName, err)
	}

	logger.Infof("backup: task %d uploaded %s to %s as %s", task.ID, artifactName, task.ProviderID, backupID)
	return backupID, nil
}

// Restore materialises a backup at its original source path.
func (c *Coordinator) Restore(ctx context.Context, rec domain.BackupRecord) error {
	provider, err := c.registry.Resolve(ctx, rec.ProviderID)
	if err != nil {
		return err
	}

	tmpDir, err := os.MkdirTemp("", "shelter-restore-*")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	artifactName := rec.OriginalName
	if rec.IsDirectory {
		artifactName += archiveSuffix
	}
	if rec.Encrypted {
		artifactName += encryptedSuffix
	}

	artifactPath := filepath.Join(tmpDir, artifactName)
	if err := provider.Download(ctx, rec.BackupID, artifactPath); err != nil {
		return fmt.Errorf("downloading %s: %w", rec.BackupID, err)
	}

	if rec.Encrypted {
		if c.cipher == nil {
			return fmt.Errorf("%w: backup %s is encrypted but no key is configured", domain.ErrInvalidInput, rec.BackupID)
		}
		sealed, err := os.ReadFile(artifactPath)
		if err != nil {
			return fmt.Errorf("reading artifact: %w", err)
		}
		plain, err := c.cipher.Decrypt(sealed)
		if err != nil {
			return fmt.Errorf("decrypting %s: %w", rec.BackupID, err)
		}
		artifactPath = filepath.Join(tmpDir, artifactName[:len(artifactName)-len(encryptedSuffix)])
		if err := os.WriteFile(artifactPath, plain, 0o600); err != nil {
			return fmt.Errorf("writing decrypted artifact: %w", err)
		}
	}

	if rec.IsDirectory {
		if err := c.archiver.Extract(artifactPath, rec.SourcePath); err != nil {
			return fmt.Errorf("extracting into %s: %w", rec.SourcePath, err)
		}
	} else {
		target := filepath.Join(filepath.Dir(rec.SourcePath), rec.OriginalName)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("creating restore directory: %w", err)
		}
		data, err := os.ReadFile(artifactPath)
		if err != nil {
			return fmt.Errorf("reading artifact: %w", err)
		}
		if err := os.WriteFile(target, data, 0o644); err != nil { //nolint:gosec // restored file keeps default permissions
			return fmt.Errorf("writing %s: %w", target, err)
		}
	}

	logger.Infof("backup: restored %s to %s", rec.BackupID, rec.SourcePath)
	return nil
}

// Delete instructs the backend to remove a backup.
func (c *Coordinator) Delete(ctx context.Context, backupID, providerID string) error {
	provider, err := c.registry.Resolve(ctx, providerID)
	if err != nil {
		return err
	}
	if err := provider.Delete(ctx, backupID); err != nil {
		return fmt.Errorf("deleting %s: %w", backupID, err)
	}
	logger.Infof("backup: deleted %s from %s", backupID, providerID)
	return nil
}
