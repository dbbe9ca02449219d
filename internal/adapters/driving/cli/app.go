package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/shelter-agent/internal/adapters/driven/archive"
	"github.com/custodia-labs/shelter-agent/internal/adapters/driven/config/file"
	"github.com/custodia-labs/shelter-agent/internal/adapters/driven/crypto"
	"github.com/custodia-labs/shelter-agent/internal/adapters/driven/identity"
	"github.com/custodia-labs/shelter-agent/internal/adapters/driven/notify"
	"github.com/custodia-labs/shelter-agent/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/shelter-agent/internal/adapters/driving/control"
	"github.com/custodia-labs/shelter-agent/internal/core/ports/driven"
	"github.com/custodia-labs/shelter-agent/internal/core/services"
	"github.com/custodia-labs/shelter-agent/internal/logger"
	"github.com/custodia-labs/shelter-agent/internal/providers/azure"
	"github.com/custodia-labs/shelter-agent/internal/providers/dropbox"
	"github.com/custodia-labs/shelter-agent/internal/providers/gdrive"
	"github.com/custodia-labs/shelter-agent/internal/providers/s3"
)

// app holds the wired agent and everything it runs on.
type app struct {
	cfg     *file.Config
	agentID string
	store   *sqlite.Store
	agent   *services.Agent
}

// dataDir resolves the agent data directory from the flag or the
// default ~/.shelter.
func dataDir() (string, error) {
	if flagDataDir != "" {
		return flagDataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".shelter"), nil
}

// openStore opens the task database under the data directory.
func openStore() (*sqlite.Store, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	return sqlite.NewStore(dir)
}

// buildApp loads config and wires every adapter into the agent.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := file.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	agentID, err := identity.LoadOrCreate(dir)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.NewStore(dir)
	if err != nil {
		return nil, err
	}

	backends, err := buildProviders(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	registry := services.NewRegistry(backends...)

	var cipher driven.Cipher
	if cfg.Encryption.Key != "" {
		c, err := crypto.NewCipher(cfg.Encryption.Key)
		if err != nil {
			store.Close()
			return nil, err
		}
		cipher = c
	}

	coordinator := services.NewCoordinator(registry, cipher, archive.NewZipArchiver())
	channel := control.NewManager(control.Config{Host: cfg.Server.Host, AgentID: agentID})

	var notifier driven.Notifier
	if n := notify.NewEmailNotifier(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.Sender, cfg.Email.Receiver, cfg.Email.Password); n != nil {
		notifier = n
	}

	agent := services.NewAgent(store.TaskStore(), coordinator, registry, channel, nil, notifier, agentID)
	scheduler := services.NewScheduler(store.TaskStore(), coordinator, agent, channel, agentID)
	agent.SetScheduler(scheduler)

	return &app{cfg: cfg, agentID: agentID, store: store, agent: agent}, nil
}

// buildProviders constructs a backend for every configured provider
// section. Unknown sections fail fast rather than surfacing later as
// unknown-provider errors mid-backup.
func buildProviders(ctx context.Context, cfg *file.Config) ([]driven.CloudProvider, error) {
	var backends []driven.CloudProvider //nolint:prealloc // config may be empty
	for id, pc := range cfg.Providers {
		var (
			backend driven.CloudProvider
			err     error
		)
		switch id {
		case "gdrive":
			backend, err = gdrive.NewProvider(gdrive.Config{
				ClientID:     pc.ClientID,
				ClientSecret: pc.ClientSecret,
				RefreshToken: pc.RefreshToken,
			})
		case "dropbox":
			backend, err = dropbox.NewProvider(dropbox.Config{Token: pc.Token})
		case "aws":
			backend, err = s3.NewProvider(ctx, s3.Config{
				AccessKey: pc.AccessKey,
				SecretKey: pc.SecretKey,
				Bucket:    pc.Bucket,
				Region:    pc.Region,
			})
		case "azure":
			backend, err = azure.NewProvider(azure.Config{
				Account:   pc.Account,
				Key:       pc.Key,
				Container: pc.Container,
			})
		default:
			return nil, fmt.Errorf("unknown provider %q in config", id)
		}
		if err != nil {
			return nil, fmt.Errorf("configuring provider %s: %w", id, err)
		}
		backends = append(backends, backend)
		logger.Infof("configured provider %s", id)
	}
	return backends, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		logger.Errorf("closing store: %v", err)
	}
}
