package services

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/shelter-agent/internal/core/domain"
	"github.com/custodia-labs/shelter-agent/internal/core/ports/driven"
)

// fakeProvider keeps uploaded artifacts in memory and counts lifecycle
// calls so tests can assert on the recovery chain.
type fakeProvider struct {
	id   string
	name string

	mu      sync.Mutex
	objects map[string][]byte
	nextID  int

	verifyErr    error
	verifyPasses int // verifications to fail before succeeding; -1 fails forever
	refreshErr   error
	authErr      error

	verifyCalls  int
	refreshCalls int
	authCalls    int
	uploadErr    error
}

func newFakeProvider(id string) *fakeProvider {
	return &fakeProvider{id: id, name: "Fake " + id, objects: make(map[string][]byte)}
}

func (f *fakeProvider) ID() string   { return f.id }
func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Upload(_ context.Context, localPath, destination string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	f.nextID++
	backupID := fmt.Sprintf("%s-%d-%s", f.id, f.nextID, destination)
	f.objects[backupID] = data
	return backupID, nil
}

func (f *fakeProvider) Download(_ context.Context, backupID, localPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[backupID]
	if !ok {
		return fmt.Errorf("object %s: %w", backupID, domain.ErrNotFound)
	}
	return os.WriteFile(localPath, data, 0o600)
}

func (f *fakeProvider) Delete(_ context.Context, backupID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, backupID)
	return nil
}

func (f *fakeProvider) VerifyConnection(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifyCalls++
	if f.verifyPasses < 0 {
		return f.verifyErr
	}
	if f.verifyPasses > 0 {
		f.verifyPasses--
		return f.verifyErr
	}
	return nil
}

func (f *fakeProvider) RefreshToken(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	return f.refreshErr
}

func (f *fakeProvider) Authenticate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authCalls++
	return f.authErr
}

func (f *fakeProvider) objectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

var _ driven.CloudProvider = (*fakeProvider)(nil)

// fakeStore is an in-memory TaskStore.
type fakeStore struct {
	mu      sync.Mutex
	tasks   map[int64]domain.BackupTask
	history []domain.BackupEntry

	dueErr    error
	recordErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[int64]domain.BackupTask)}
}

func (s *fakeStore) SaveTask(_ context.Context, task *domain.BackupTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = *task
	return nil
}

func (s *fakeStore) GetTask(_ context.Context, id int64) (*domain.BackupTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &task, nil
}

func (s *fakeStore) ListTasks(context.Context) ([]domain.BackupTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]domain.BackupTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (s *fakeStore) DueTasks(_ context.Context, now time.Time) ([]domain.BackupTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dueErr != nil {
		return nil, s.dueErr
	}
	var due []domain.BackupTask
	for _, task := range s.tasks {
		if task.Due(now) {
			due = append(due, task)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

func (s *fakeStore) MarkRun(_ context.Context, id int64, lastRun, nextRun time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	task.LastRun = lastRun
	task.NextRun = nextRun
	s.tasks[id] = task
	return nil
}

func (s *fakeStore) DeleteTask(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
	kept := s.history[:0]
	for _, entry := range s.history {
		if entry.TaskID != id {
			kept = append(kept, entry)
		}
	}
	s.history = kept
	return nil
}

func (s *fakeStore) RecordBackup(_ context.Context, entry *domain.BackupEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.history = append(s.history, *entry)
	return nil
}

func (s *fakeStore) TaskHistory(_ context.Context, taskID int64) ([]domain.BackupEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []domain.BackupEntry
	for _, entry := range s.history {
		if entry.TaskID == taskID {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	return entries, nil
}

func (s *fakeStore) GetBackup(_ context.Context, backupID string) (*domain.BackupRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range s.history {
		if entry.BackupID != backupID {
			continue
		}
		task, ok := s.tasks[entry.TaskID]
		if !ok {
			return nil, domain.ErrNotFound
		}
		return &domain.BackupRecord{
			TaskID:       entry.TaskID,
			BackupID:     entry.BackupID,
			SourcePath:   task.SourcePath,
			IsDirectory:  task.IsDirectory,
			ProviderID:   task.ProviderID,
			Encrypted:    task.Encrypt,
			OriginalName: entry.OriginalName,
			Timestamp:    entry.Timestamp,
		}, nil
	}
	return nil, domain.ErrNotFound
}

func (s *fakeStore) DeleteBackup(_ context.Context, backupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.history[:0]
	for _, entry := range s.history {
		if entry.BackupID != backupID {
			kept = append(kept, entry)
		}
	}
	s.history = kept
	return nil
}

var _ driven.TaskStore = (*fakeStore)(nil)

// fakeChannel records sent responses. The active and enabled flags are
// mutable so tests can script connection state changes.
type fakeChannel struct {
	mu      sync.Mutex
	sent    []domain.Response
	active  bool
	enabled bool
	sendErr error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{active: true, enabled: true}
}

func (c *fakeChannel) Send(_ context.Context, resp domain.Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	if !c.active {
		return domain.ErrChannelInactive
	}
	c.sent = append(c.sent, resp)
	return nil
}

func (c *fakeChannel) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *fakeChannel) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *fakeChannel) setActive(active bool) {
	c.mu.Lock()
	c.active = active
	c.mu.Unlock()
}

func (c *fakeChannel) setEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
}

func (c *fakeChannel) responses() []domain.Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Response, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeChannel) responsesFor(command string) []domain.Response {
	var out []domain.Response //nolint:prealloc // filtered subset
	for _, resp := range c.responses() {
		if resp.Command == command {
			out = append(out, resp)
		}
	}
	return out
}

var _ driven.ControlChannel = (*fakeChannel)(nil)

// fakeDriver extends fakeChannel with a scripted connect loop for Agent
// tests.
type fakeDriver struct {
	*fakeChannel
	connectResults []bool
	connectCalls   int
}

func (d *fakeDriver) ConnectWithRetry(ctx context.Context, onConnected driven.ConnectedHandler, onCommand driven.CommandHandler) bool {
	d.connectCalls++
	if onConnected != nil {
		_ = onConnected(ctx)
	}
	if d.connectCalls > len(d.connectResults) {
		return false
	}
	ok := d.connectResults[d.connectCalls-1]
	if !ok {
		d.setEnabled(false)
	}
	return ok
}

var _ driven.ChannelDriver = (*fakeDriver)(nil)
