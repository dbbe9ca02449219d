// Package azure stores backups in an Azure Blob Storage container.
package azure

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
	"github.com/custodia-labs/shelter-agent/internal/core/ports/driven"
)

const backupPrefix = "backups"

// Provider implements driven.CloudProvider on top of Azure Blob Storage.
// Backups are stored under the backups/ prefix of a single container and
// addressed by blob name.
type Provider struct {
	name      string
	container string
	client    *azblob.Client
}

var _ driven.CloudProvider = (*Provider)(nil)

// Config carries the storage account shared key plus the target
// container.
type Config struct {
	Account   string
	Key       string
	Container string
}

// NewProvider creates an Azure Blob Storage provider with shared key
// authentication.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Account == "" || cfg.Key == "" || cfg.Container == "" {
		return nil, fmt.Errorf("%w: azure requires account, key and container", domain.ErrAuthRequired)
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.Account, cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("building azure credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.Account)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating azure client: %w", err)
	}

	return &Provider{
		name:      "Azure Blob Storage",
		container: cfg.Container,
		client:    client,
	}, nil
}

// ID returns the provider identifier used in task records.
func (p *Provider) ID() string { return "azure" }

// Name returns the human-readable provider name.
func (p *Provider) Name() string { return p.name }

// Upload stores the local file under the backups/ prefix and returns the
// blob name as the backup identifier.
func (p *Provider) Upload(ctx context.Context, localPath, destination string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	blobName := path.Join(backupPrefix, filepath.Base(destination))
	if _, err := p.client.UploadFile(ctx, p.container, blobName, f, nil); err != nil {
		return "", fmt.Errorf("uploading to azure: %w", err)
	}
	return blobName, nil
}

// Download fetches the blob with the given name into localPath.
func (p *Provider) Download(ctx context.Context, backupID, localPath string) error {
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", localPath, err)
	}
	defer out.Close()

	if _, err := p.client.DownloadFile(ctx, p.container, backupID, out, nil); err != nil {
		return fmt.Errorf("downloading %s from azure: %w", backupID, err)
	}
	return nil
}

// Delete removes the blob from the container.
func (p *Provider) Delete(ctx context.Context, backupID string) error {
	if _, err := p.client.DeleteBlob(ctx, p.container, backupID, nil); err != nil {
		return fmt.Errorf("deleting %s from azure: %w", backupID, err)
	}
	return nil
}

// VerifyConnection checks that the shared key can reach the storage
// account.
func (p *Provider) VerifyConnection(ctx context.Context) error {
	if _, err := p.client.ServiceClient().GetProperties(ctx, nil); err != nil {
		return fmt.Errorf("%w: azure service query failed: %v", domain.ErrAuthExpired, err)
	}
	return nil
}

// RefreshToken is a no-op: shared keys have nothing to refresh.
func (p *Provider) RefreshToken(_ context.Context) error {
	return fmt.Errorf("%w: azure shared keys cannot be refreshed", domain.ErrTokenRefreshFailed)
}

// Authenticate is the interactive fallback. The agent runs headless, so
// key rotation has to happen out of band.
func (p *Provider) Authenticate(_ context.Context) error {
	return fmt.Errorf("%w: azure re-authentication requires updating the shared key in the config file", domain.ErrAuthRequired)
}
