package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Frequency defines how often a backup task recurs.
type Frequency string

// Supported backup frequencies.
const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// ParseFrequency normalises and validates a frequency string.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return f, nil
	}
	return "", fmt.Errorf("%w: frequency %q", ErrInvalidInput, s)
}

// BackupTask is a persisted, recurring backup job definition.
// The ID is assigned by the remote coordinator, never generated locally.
type BackupTask struct {
	// ID is the coordinator-assigned task identifier.
	ID int64

	// SourcePath is the file or directory to back up.
	SourcePath string

	// Encrypt indicates whether artifacts are encrypted before upload.
	Encrypt bool

	// Frequency defines the recurrence interval.
	Frequency Frequency

	// ProviderID selects the storage backend for this task.
	ProviderID string

	// BackupLimit is the maximum number of retained backups.
	BackupLimit int

	// AgentID identifies the agent that owns this task.
	AgentID string

	// NextRun is the next scheduled occurrence. It starts as the
	// requested start date and is overwritten after every run.
	NextRun time.Time

	// IsActive indicates whether the scheduler considers this task.
	IsActive bool

	// IsDirectory records whether SourcePath was a directory at creation.
	IsDirectory bool

	// LastRun is when the task last executed. Zero if it never ran.
	LastRun time.Time
}

// OriginalName returns the basename of the source path. It is stored with
// each history entry and used to reconstruct the restore destination.
func (t *BackupTask) OriginalName() string {
	return filepath.Base(strings.TrimRight(t.SourcePath, "/\\"))
}

// Due reports whether the task should run. The comparison is date-only:
// a task scheduled for any time today is due now.
func (t *BackupTask) Due(now time.Time) bool {
	return t.IsActive && !dateOf(t.NextRun).After(dateOf(now))
}

// NextRun computes the occurrence after ref for the given frequency.
// The reference date is the task's previous next-run value, not "now".
// Monthly and yearly rollovers clamp to the last valid day of the target
// month, so Jan 31 advances to Feb 28 (or 29) rather than overflowing.
func NextRun(f Frequency, ref time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return ref.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return ref.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return addMonthsClamped(ref, 1)
	case FrequencyYearly:
		return addYearsClamped(ref, 1)
	}
	return ref
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	target := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysInMonth(target.Year(), target.Month()); d > last {
		d = last
	}
	h, min, sec := t.Clock()
	return time.Date(target.Year(), target.Month(), d, h, min, sec, t.Nanosecond(), t.Location())
}

func addYearsClamped(t time.Time, years int) time.Time {
	y, m, d := t.Date()
	if last := daysInMonth(y+years, m); d > last {
		d = last
	}
	h, min, sec := t.Clock()
	return time.Date(y+years, m, d, h, min, sec, t.Nanosecond(), t.Location())
}

// daysInMonth returns the number of days in the given month.
// Day zero of the following month normalises to the last day of this one.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
