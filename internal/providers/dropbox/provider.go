// Package dropbox stores backups in a Dropbox app folder.
package dropbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/users"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
	"github.com/custodia-labs/shelter-agent/internal/core/ports/driven"
)

const backupFolder = "/backups"

// Provider implements driven.CloudProvider on top of Dropbox. Backups are
// stored under /backups and addressed by their Dropbox file id, which the
// content APIs accept in place of a path.
type Provider struct {
	name  string
	files files.Client
	users users.Client
}

var _ driven.CloudProvider = (*Provider)(nil)

// Config carries the Dropbox access token.
type Config struct {
	Token string
}

// NewProvider creates a Dropbox provider from an access token.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: dropbox requires an access token", domain.ErrAuthRequired)
	}

	dbx := dropbox.Config{Token: cfg.Token, LogLevel: dropbox.LogOff}
	return &Provider{
		name:  "Dropbox",
		files: files.New(dbx),
		users: users.New(dbx),
	}, nil
}

// ID returns the provider identifier used in task records.
func (p *Provider) ID() string { return "dropbox" }

// Name returns the human-readable provider name.
func (p *Provider) Name() string { return p.name }

// Upload stores the local file under /backups and returns the Dropbox
// file id as the backup identifier.
func (p *Provider) Upload(_ context.Context, localPath, destination string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	arg := files.NewUploadArg(path.Join(backupFolder, filepath.Base(destination)))
	arg.Mode.Tag = "overwrite"

	meta, err := p.files.Upload(arg, f)
	if err != nil {
		return "", fmt.Errorf("uploading to dropbox: %w", err)
	}
	return meta.Id, nil
}

// Download fetches the backup with the given file id into localPath.
func (p *Provider) Download(_ context.Context, backupID, localPath string) error {
	_, content, err := p.files.Download(files.NewDownloadArg(backupID))
	if err != nil {
		return fmt.Errorf("downloading %s from dropbox: %w", backupID, err)
	}
	defer content.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", localPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, content); err != nil {
		return fmt.Errorf("writing %s: %w", localPath, err)
	}
	return nil
}

// Delete removes the backup from Dropbox.
func (p *Provider) Delete(_ context.Context, backupID string) error {
	if _, err := p.files.DeleteV2(files.NewDeleteArg(backupID)); err != nil {
		return fmt.Errorf("deleting %s from dropbox: %w", backupID, err)
	}
	return nil
}

// VerifyConnection checks that the access token still resolves to an
// account.
func (p *Provider) VerifyConnection(_ context.Context) error {
	if _, err := p.users.GetCurrentAccount(); err != nil {
		return fmt.Errorf("%w: dropbox account query failed: %v", domain.ErrAuthExpired, err)
	}
	return nil
}

// RefreshToken is a no-op: Dropbox long-lived access tokens cannot be
// refreshed client-side.
func (p *Provider) RefreshToken(_ context.Context) error {
	return fmt.Errorf("%w: dropbox access tokens cannot be refreshed by the agent", domain.ErrTokenRefreshFailed)
}

// Authenticate is the interactive fallback. The agent runs headless, so
// re-enrolment has to happen out of band.
func (p *Provider) Authenticate(_ context.Context) error {
	return fmt.Errorf("%w: dropbox re-authentication requires updating the token in the config file", domain.ErrAuthRequired)
}
