// Package identity manages the agent's stable identifier. The id is a
// UUID minted on first start and persisted in the data directory, so the
// coordinator sees the same agent across restarts.
package identity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const idFile = "agent_id"

// LoadOrCreate returns the agent id stored under dataDir, minting and
// persisting a new one on first start.
func LoadOrCreate(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}

	path := filepath.Join(dataDir, idFile)
	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if _, parseErr := uuid.Parse(id); parseErr == nil {
			return id, nil
		}
		// Corrupt id file; mint a fresh identity.
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("reading agent id: %w", err)
	}

	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persisting agent id: %w", err)
	}
	return id, nil
}
