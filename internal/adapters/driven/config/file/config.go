package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config is the agent's static configuration, read once at startup.
type Config struct {
	Server     ServerConfig              `toml:"server"`
	Encryption EncryptionConfig          `toml:"encryption"`
	Email      EmailConfig               `toml:"email"`
	Providers  map[string]ProviderConfig `toml:"providers"`
}

// ServerConfig identifies the remote coordinator.
type ServerConfig struct {
	// Host is the coordinator host[:port]; the control channel connects
	// to wss://<host>/ws.
	Host string `toml:"host"`
}

// EncryptionConfig holds the artifact encryption passphrase.
type EncryptionConfig struct {
	Key string `toml:"key"`
}

// EmailConfig configures the error notifier. Empty host disables it.
type EmailConfig struct {
	SMTPHost string `toml:"smtp_host"`
	SMTPPort int    `toml:"smtp_port"`
	Sender   string `toml:"sender"`
	Receiver string `toml:"receiver"`
	Password string `toml:"password"`
}

// ProviderConfig holds one backend's credentials. Fields are a union
// across backends; each provider reads the ones it needs.
type ProviderConfig struct {
	// Google Drive
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RefreshToken string `toml:"refresh_token"`

	// Dropbox
	Token string `toml:"token"`

	// Amazon S3
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`

	// Azure Blob
	Account   string `toml:"account"`
	Key       string `toml:"key"`
	Container string `toml:"container"`
}

// DefaultPath returns the default config file location
// (~/.shelter/config.toml).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".shelter", "config.toml"), nil
}

// Load reads and parses the config file at path. If path is empty the
// default location is used.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = 587
	}
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	for id, p := range c.Providers {
		if id == "aws" && p.Region == "" {
			p.Region = "us-east-1"
			c.Providers[id] = p
		}
	}
}

// Validate checks the settings the agent cannot run without.
func (c *Config) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	return nil
}
