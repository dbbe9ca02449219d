// Package gdrive stores backups in Google Drive through the Drive v3 API.
package gdrive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
	"github.com/custodia-labs/shelter-agent/internal/core/ports/driven"
)

// Drive allows 10 requests/sec/user; stay comfortably under it.
const (
	requestsPerSecond = 8.0
	burstSize         = 10
)

const backupFolder = "backups"

// Provider implements driven.CloudProvider on top of Google Drive.
// Backups live in a dedicated folder under the Drive root and are
// addressed by their Drive file id.
type Provider struct {
	name         string
	cfg          *oauth2.Config
	refreshToken string
	limiter      *rate.Limiter

	// mu guards the lazily built client state. The scheduler and the
	// command listener resolve the same provider from their own
	// goroutines.
	mu       sync.Mutex
	source   oauth2.TokenSource
	svc      *drive.Service
	folderID string
}

var _ driven.CloudProvider = (*Provider)(nil)

// Config carries the OAuth client credentials and the long-lived refresh
// token obtained during provider enrolment.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// NewProvider creates a Google Drive provider. No network calls are made
// until the provider is first used.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("%w: gdrive requires client_id, client_secret and refresh_token", domain.ErrAuthRequired)
	}

	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	return &Provider{
		name:         "Google Drive",
		cfg:          oc,
		refreshToken: cfg.RefreshToken,
		source:       oc.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken}),
		limiter:      rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize),
	}, nil
}

// ID returns the provider identifier used in task records.
func (p *Provider) ID() string { return "gdrive" }

// Name returns the human-readable provider name.
func (p *Provider) Name() string { return p.name }

// service lazily builds the Drive client from the token source.
func (p *Provider) service(ctx context.Context) (*drive.Service, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.svc != nil {
		return p.svc, nil
	}
	svc, err := drive.NewService(ctx, option.WithTokenSource(p.source))
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}
	p.svc = svc
	return svc, nil
}

// folder finds the backup folder, creating it on first use.
func (p *Provider) folder(ctx context.Context, svc *drive.Service) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.folderID != "" {
		return p.folderID, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	query := fmt.Sprintf("name = '%s' and mimeType = 'application/vnd.google-apps.folder' and trashed = false", backupFolder)
	list, err := svc.Files.List().Q(query).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("looking up backup folder: %w", err)
	}
	if len(list.Files) > 0 {
		p.folderID = list.Files[0].Id
		return p.folderID, nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	created, err := svc.Files.Create(&drive.File{
		Name:     backupFolder,
		MimeType: "application/vnd.google-apps.folder",
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("creating backup folder: %w", err)
	}
	p.folderID = created.Id
	return p.folderID, nil
}

// Upload stores the local file under the backup folder and returns the
// Drive file id as the backup identifier.
func (p *Provider) Upload(ctx context.Context, localPath, destination string) (string, error) {
	svc, err := p.service(ctx)
	if err != nil {
		return "", err
	}
	folderID, err := p.folder(ctx, svc)
	if err != nil {
		return "", err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	meta := &drive.File{
		Name:    filepath.Base(destination),
		Parents: []string{folderID},
	}
	created, err := svc.Files.Create(meta).Media(f).Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("uploading to drive: %w", err)
	}
	return created.Id, nil
}

// Download fetches the backup with the given Drive file id into localPath.
func (p *Provider) Download(ctx context.Context, backupID, localPath string) error {
	svc, err := p.service(ctx)
	if err != nil {
		return err
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := svc.Files.Get(backupID).Context(ctx).Download()
	if err != nil {
		return fmt.Errorf("downloading %s from drive: %w", backupID, err)
	}
	defer resp.Body.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", localPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("writing %s: %w", localPath, err)
	}
	return nil
}

// Delete removes the backup from Drive.
func (p *Provider) Delete(ctx context.Context, backupID string) error {
	svc, err := p.service(ctx)
	if err != nil {
		return err
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := svc.Files.Delete(backupID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("deleting %s from drive: %w", backupID, err)
	}
	return nil
}

// VerifyConnection checks that the stored credentials still grant access.
func (p *Provider) VerifyConnection(ctx context.Context) error {
	svc, err := p.service(ctx)
	if err != nil {
		return err
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := svc.About.Get().Fields("user").Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: drive about query failed: %v", domain.ErrAuthExpired, err)
	}
	return nil
}

// RefreshToken exchanges the refresh token for a fresh access token,
// replacing the cached token source and Drive client.
func (p *Provider) RefreshToken(ctx context.Context) error {
	source := p.cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: p.refreshToken})
	if _, err := source.Token(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTokenRefreshFailed, err)
	}
	p.mu.Lock()
	p.source = source
	p.svc = nil
	p.mu.Unlock()
	return nil
}

// Authenticate is the interactive fallback. The agent runs headless, so
// re-enrolment has to happen out of band.
func (p *Provider) Authenticate(_ context.Context) error {
	return fmt.Errorf("%w: gdrive re-authentication requires updating the refresh token in the config file", domain.ErrAuthRequired)
}
