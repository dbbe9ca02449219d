package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Inbound command names recognised by the dispatcher.
const (
	CmdNewTask       = "New_Task"
	CmdDeleteBackup  = "Delete_Backup"
	CmdDeleteTask    = "Delete_Task"
	CmdRestoreBackup = "Restore_Backup"
)

// Outbound command names.
const (
	CmdInfo          = "info"
	CmdBackupHistory = "Backup_History"
)

// WireTimeFormat is the timestamp layout used on the control channel.
const WireTimeFormat = "2006-01-02T15:04:05Z"

// Command is an inbound control-channel frame. Parameters stay raw until
// the dispatcher knows which command-specific shape to decode them into.
type Command struct {
	Command    string          `json:"command"`
	Parameters json.RawMessage `json:"parameters"`
}

// Response is an outbound control-channel frame.
type Response struct {
	Command    string `json:"command"`
	Parameters any    `json:"parameters"`
	AgentID    string `json:"agentId"`
}

// NewTaskParams carries the parameters of a New_Task command.
type NewTaskParams struct {
	BackupTaskID int64  `json:"BackupTaskId"`
	SourcePath   string `json:"SourcePath"`
	Encrypt      bool   `json:"Encrypt"`
	Frequency    string `json:"Frequency"`
	Provider     string `json:"Provider"`
	BackupLimit  int    `json:"BackupLimit"`
	AgentID      string `json:"AgentId"`
	StartDate    string `json:"StartDate"`
	IsActive     bool   `json:"IsActive"`
	LastRun      string `json:"LastRun,omitempty"`
}

// DeleteBackupParams carries the parameters of a Delete_Backup command.
type DeleteBackupParams struct {
	BackupID string `json:"backupId"`
}

// DeleteTaskParams carries the parameters of a Delete_Task command.
type DeleteTaskParams struct {
	BackupTaskID int64 `json:"backupTaskId"`
}

// RestoreBackupParams carries the parameters of a Restore_Backup command.
type RestoreBackupParams struct {
	BackupID string `json:"backupId"`
}

// Outbound acknowledgement shapes. The coordinator keys inbound
// parameters in lowerCamel but expects PascalCase keys on responses.

// DeleteBackupAck acknowledges a completed backup deletion.
type DeleteBackupAck struct {
	BackupID string `json:"BackupId"`
}

// DeleteTaskAck acknowledges a completed task deletion. It is also the
// compensating response when a New_Task registration fails.
type DeleteTaskAck struct {
	BackupTaskID int64 `json:"BackupTaskId"`
}

// RestoreBackupAck acknowledges a completed restore.
type RestoreBackupAck struct {
	BackupID string `json:"BackupId"`
}

// AgentInfo is the announcement sent when the control channel connects.
type AgentInfo struct {
	AgentID            string           `json:"agentId"`
	Name               string           `json:"name"`
	IPAddress          string           `json:"ipAddress"`
	OSType             string           `json:"osType"`
	Status             string           `json:"status"`
	Hostname           string           `json:"hostname"`
	Platform           PlatformInfo     `json:"platform"`
	AvailableProviders []ProviderStatus `json:"availableProviders"`
}

// PlatformInfo fingerprints the host operating system.
type PlatformInfo struct {
	System    string `json:"system"`
	Release   string `json:"release"`
	Version   string `json:"version"`
	Machine   string `json:"machine"`
	Processor string `json:"processor"`
}

// ProviderStatus reports one backend and whether it was reachable and
// authenticated at announcement time.
type ProviderStatus struct {
	Providers string `json:"providers"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
}

// BackupHistoryParams wraps a Backup_History result batch. The
// coordinator expects an object-valued parameters field, not a bare
// array.
type BackupHistoryParams struct {
	BackupResults []BackupResult `json:"backup_results"`
}

// BackupResult is one entry of a Backup_History response batch.
type BackupResult struct {
	TaskID       int64  `json:"task_id"`
	BackupID     string `json:"backup_id"`
	OriginalName string `json:"original_name"`
	Timestamp    string `json:"timestamp"`
	Status       string `json:"status"`
}

// ParseWireTime parses an ISO-8601 timestamp from the coordinator.
// A trailing 'Z' suffix and fractional seconds are both accepted.
func ParseWireTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrInvalidInput)
	}
	for _, layout := range []string{time.RFC3339Nano, WireTimeFormat, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrInvalidInput, s)
}

// FormatWireTime renders a timestamp in the control-channel layout.
func FormatWireTime(t time.Time) string {
	return t.UTC().Format(WireTimeFormat)
}
