package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rangepull/rangepull/internal/utils"
)

// Scheduler owns the task map and every lifecycle transition (§4.3). It is
// the only thing that spawns workers and writers; Task and Writer never
// reach for each other directly.
type Scheduler struct {
	cfg          *RuntimeConfig
	sink         EventSink
	snapshotPath string

	mu    sync.Mutex
	tasks map[string]*Task
}

// NewScheduler builds an empty scheduler. snapshotPath is where Snapshot
// persists to; an empty path disables persistence (used by tests that
// only care about in-memory behavior).
func NewScheduler(cfg *RuntimeConfig, sink EventSink, snapshotPath string) *Scheduler {
	if sink == nil {
		sink = noopSink{}
	}
	return &Scheduler{
		cfg:          cfg,
		sink:         sink,
		snapshotPath: snapshotPath,
		tasks:        make(map[string]*Task),
	}
}

// SetSink replaces the event sink. Intended to be called once, before
// Run or any task is started (e.g. once a TUI program is ready to
// receive events) — it is not safe to call concurrently with delivery.
func (s *Scheduler) SetSink(sink EventSink) {
	if sink == nil {
		sink = noopSink{}
	}
	s.sink = sink
}

// LoadFromSnapshot populates the scheduler from a previously saved file
// (§4.5 "Load"). Safe to call once, right after NewScheduler.
func (s *Scheduler) LoadFromSnapshot() error {
	if s.snapshotPath == "" {
		return nil
	}
	persisted, err := LoadSnapshot(s.snapshotPath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range persisted {
		s.tasks[p.ID] = fromPersisted(p)
	}
	return nil
}

// CreateInput describes a new download. Probe is optional: when nil,
// Create probes the URL itself.
type CreateInput struct {
	URL      string
	SaveDir  string
	Filename string
	Probe    *ProbeResult
}

// Create probes (if needed), derives a unique save path, and adds a new
// Pending task. It does not start it.
func (s *Scheduler) Create(ctx context.Context, in CreateInput) (string, error) {
	probe := in.Probe
	if probe == nil {
		p, err := Probe(ctx, in.URL, s.cfg)
		if err != nil {
			return "", err
		}
		probe = p
	}

	filename := in.Filename
	if filename == "" {
		filename = probe.Filename
	}
	saveDir := in.SaveDir
	if saveDir == "" {
		saveDir = s.cfg.GetDefaultSaveDir()
	}
	savePath := uniquePath(filepath.Join(saveDir, filename))

	id := uuid.New().String()
	t := NewTask(id, probe.FinalURL, savePath, filepath.Base(savePath), probe.TotalBytes, probe.SupportsRange, s.cfg.GetDefaultSegments())
	t.SetSpeedEmaAlpha(s.cfg.GetSpeedEmaAlpha())

	s.mu.Lock()
	s.tasks[id] = t
	s.mu.Unlock()

	s.Snapshot()
	return id, nil
}

// CreateBatch creates one task per URL, continuing past individual
// probe/create failures and reporting them by URL (§6 create_batch_download).
func (s *Scheduler) CreateBatch(ctx context.Context, urls []string, saveDir string) map[string]string {
	results := make(map[string]string, len(urls))
	for _, u := range urls {
		id, err := s.Create(ctx, CreateInput{URL: u, SaveDir: saveDir})
		if err != nil {
			results[u] = "error: " + err.Error()
			continue
		}
		results[u] = id
	}
	return results
}

// Start transitions Pending/Paused -> Downloading and spawns the worker
// pool and writer for the task. Resume is an alias of the same operation
// (§8 idempotence: a task already Downloading returns a State error).
func (s *Scheduler) Start(id string) error {
	t := s.get(id)
	if t == nil {
		return s.notFound(id)
	}
	if !t.CompareAndSetStatus(StatusDownloading, StatusPending, StatusPaused) {
		return newErr(ErrState, fmt.Sprintf("cannot start task in status %s", t.Status()), nil)
	}
	go s.runTask(t)
	return nil
}

// Resume is Start under another name (§6 distinguishes them for the
// command surface; the engine's underlying transition is identical).
func (s *Scheduler) Resume(id string) error { return s.Start(id) }

// Pause flips a Downloading task to Paused. Workers observe the status
// change cooperatively at their next loop iteration and exit; an
// already-Paused task is a no-op (§8 idempotence).
func (s *Scheduler) Pause(id string) error {
	t := s.get(id)
	if t == nil {
		return s.notFound(id)
	}
	if t.Status() == StatusPaused {
		return nil
	}
	if !t.CompareAndSetStatus(StatusPaused, StatusDownloading) {
		return newErr(ErrState, fmt.Sprintf("cannot pause task in status %s", t.Status()), nil)
	}
	return nil
}

// Cancel sets Cancelled unconditionally. Any running workers and the
// writer observe it and exit/drain on their own; the partial file on disk
// is left in place (§4.3).
func (s *Scheduler) Cancel(id string) error {
	t := s.get(id)
	if t == nil {
		return s.notFound(id)
	}
	t.SetStatus(StatusCancelled)
	s.Snapshot()
	return nil
}

// Remove cancels (if needed) and deletes the task from the map. It does
// not delete the file on disk.
func (s *Scheduler) Remove(id string) error {
	t := s.get(id)
	if t == nil {
		return s.notFound(id)
	}
	t.SetStatus(StatusCancelled)

	s.mu.Lock()
	delete(s.tasks, id)
	s.mu.Unlock()

	s.Snapshot()
	return nil
}

// ClearCompleted removes every Completed task and returns how many were
// removed.
func (s *Scheduler) ClearCompleted() int {
	s.mu.Lock()
	var removed int
	for id, t := range s.tasks {
		if t.Status() == StatusCompleted {
			delete(s.tasks, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.Snapshot()
	}
	return removed
}

// TaskInfo is a read-only projection of a Task for listing/inspection.
type TaskInfo struct {
	ID            string
	URL           string
	SavePath      string
	Filename      string
	TotalBytes    *int64
	Downloaded    int64
	Status        Status
	ErrorMessage  string
	SupportsRange bool
	CreatedAt     int64
	Speed         float64
}

func toTaskInfo(t *Task) TaskInfo {
	return TaskInfo{
		ID:            t.ID,
		URL:           t.URL(),
		SavePath:      t.SavePath(),
		Filename:      t.Filename(),
		TotalBytes:    t.TotalBytes,
		Downloaded:    t.Downloaded.Load(),
		Status:        t.Status(),
		ErrorMessage:  t.ErrorMessage(),
		SupportsRange: t.SupportsRange,
		CreatedAt:     t.CreatedAt,
		Speed:         t.Sample(),
	}
}

// List returns every task in an unspecified order.
func (s *Scheduler) List() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, toTaskInfo(t))
	}
	return out
}

// Get returns a single task's info, or false if the ID is unknown.
func (s *Scheduler) Get(id string) (TaskInfo, bool) {
	t := s.get(id)
	if t == nil {
		return TaskInfo{}, false
	}
	return toTaskInfo(t), true
}

// Resolve finds a task by exact ID, or by a unique ID prefix (§6's
// CLI convenience of typing a short prefix instead of a full UUID).
func (s *Scheduler) Resolve(idOrPrefix string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[idOrPrefix]; ok {
		return idOrPrefix, nil
	}

	var match string
	for id := range s.tasks {
		if len(idOrPrefix) > 0 && len(id) >= len(idOrPrefix) && id[:len(idOrPrefix)] == idOrPrefix {
			if match != "" {
				return "", newErr(ErrNotFound, fmt.Sprintf("ambiguous task id prefix: %s", idOrPrefix), nil)
			}
			match = id
		}
	}
	if match == "" {
		return "", s.notFound(idOrPrefix)
	}
	return match, nil
}

// RefreshAddress re-probes a task's URL and stores the (possibly new)
// final URL after redirects, without touching progress.
func (s *Scheduler) RefreshAddress(ctx context.Context, id string) error {
	t := s.get(id)
	if t == nil {
		return s.notFound(id)
	}
	probe, err := Probe(ctx, t.URL(), s.cfg)
	if err != nil {
		return err
	}
	t.SetURL(probe.FinalURL)
	s.Snapshot()
	return nil
}

// UpdateSavePath changes where a task will be written. Disallowed while
// Downloading, since the writer already owns an open handle to the old path.
func (s *Scheduler) UpdateSavePath(id, newPath string) error {
	t := s.get(id)
	if t == nil {
		return s.notFound(id)
	}
	if t.Status() == StatusDownloading {
		return newErr(ErrState, "cannot change save path while downloading", nil)
	}
	t.SetSavePath(newPath)
	t.SetFilename(filepath.Base(newPath))
	s.Snapshot()
	return nil
}

// Snapshot writes the current task map to the scheduler's snapshot path.
// A no-op when no path was configured.
func (s *Scheduler) Snapshot() {
	if s.snapshotPath == "" {
		return
	}
	s.mu.Lock()
	persisted := make([]PersistedTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		persisted = append(persisted, toPersisted(t))
	}
	s.mu.Unlock()

	if err := SaveSnapshot(s.snapshotPath, persisted); err != nil {
		utils.Debug("snapshot save failed: %v", err)
	}
}

// Run drives the two background duties the scheduler owns: emitting
// download-progress samples and periodically snapshotting while at least
// one task is Downloading (§4.4, §4.5 save policy). It blocks until ctx
// is cancelled; callers run it in its own goroutine for the process
// lifetime of the host.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.GetSnapshotInterval())
	defer ticker.Stop()

	progressTicker := time.NewTicker(time.Second)
	defer progressTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-progressTicker.C:
			s.emitProgress()
		case <-ticker.C:
			if s.anyDownloading() {
				s.Snapshot()
			}
		}
	}
}

func (s *Scheduler) emitProgress() {
	s.mu.Lock()
	downloading := make([]*Task, 0)
	for _, t := range s.tasks {
		if t.Status() == StatusDownloading {
			downloading = append(downloading, t)
		}
	}
	s.mu.Unlock()

	for _, t := range downloading {
		s.sink.OnProgress(ProgressEvent{
			TaskID:     t.ID,
			Downloaded: t.Downloaded.Load(),
			Total:      t.TotalBytes,
			Speed:      t.SampleProgress(),
			Status:     StatusDownloading,
		})
	}
}

func (s *Scheduler) anyDownloading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.Status() == StatusDownloading {
			return true
		}
	}
	return false
}

func (s *Scheduler) get(id string) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id]
}

func (s *Scheduler) notFound(id string) error {
	return newErr(ErrNotFound, fmt.Sprintf("no such task: %s", id), nil)
}

// runTask owns one task's entire active lifetime: open the file, spawn
// the writer and the worker pool, wait for them, then reap (§4.3).
func (s *Scheduler) runTask(t *Task) {
	file, err := s.openTaskFile(t)
	if err != nil {
		t.Fail(err)
		s.afterRun(t)
		return
	}

	writer := NewWriter(file, WriterChannelCapacity)
	go writer.Run()

	ctx := context.Background()
	n := t.WorkerCount(s.cfg.GetMaxConnectionsPerTask())
	if t.TotalBytes == nil {
		n = 1
	}

	multiWorker := n > 1
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if t.TotalBytes == nil {
				_ = runStreamingWorker(ctx, t, t.URL(), writer, s.cfg)
			} else {
				_ = runRangedWorker(ctx, t, t.URL(), writer, s.cfg, multiWorker)
			}
		}()
	}
	wg.Wait()

	if werr := writer.Close(); werr != nil {
		t.Fail(werr)
	}

	s.afterRun(t)
}

// afterRun applies the reap rule and emits the terminal event (§4.3,
// §4.4): Completed only if still Downloading with an empty queue, Failed
// if still Downloading with segments left. A Failed status is reported
// as-is; Paused and Cancelled are left untouched and emit no event.
func (s *Scheduler) afterRun(t *Task) {
	switch t.Status() {
	case StatusDownloading:
		if t.PendingEmpty() {
			t.SetStatus(StatusCompleted)
			s.finalizeFile(t)
			s.sink.OnFinished(FinishedEvent{TaskID: t.ID, Status: StatusCompleted, Filename: t.Filename()})
		} else {
			t.Fail(newErr(ErrIO, "all workers exited with segments still pending", nil))
			s.sink.OnFinished(FinishedEvent{TaskID: t.ID, Status: StatusFailed, Filename: t.Filename()})
		}
	case StatusFailed:
		s.sink.OnFinished(FinishedEvent{TaskID: t.ID, Status: StatusFailed, Filename: t.Filename()})
	case StatusPaused, StatusCancelled:
		// No event: pause/cancel are user-initiated, not terminal outcomes
		// callers need notified of beyond the command's own return value.
	}
	s.Snapshot()
}

func (s *Scheduler) openTaskFile(t *Task) (*os.File, error) {
	working := t.SavePath() + IncompleteSuffix
	if err := os.MkdirAll(filepath.Dir(working), 0755); err != nil {
		return nil, newErr(ErrIO, "failed to create destination directory", err)
	}
	f, err := os.OpenFile(working, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, newErr(ErrIO, "failed to open destination file", err)
	}
	if t.TotalBytes != nil {
		if err := f.Truncate(*t.TotalBytes); err != nil {
			f.Close()
			return nil, newErr(ErrIO, "failed to preallocate destination file", err)
		}
	}
	return f, nil
}

func (s *Scheduler) finalizeFile(t *Task) {
	working := t.SavePath() + IncompleteSuffix
	if err := os.Rename(working, t.SavePath()); err != nil {
		if info, statErr := os.Stat(t.SavePath()); statErr == nil {
			if t.TotalBytes == nil || info.Size() == *t.TotalBytes {
				return
			}
		}
		t.Fail(newErr(ErrIO, "failed to finalize destination file", err))
	}
}

// uniquePath appends " (n)" before the extension until the candidate path
// (and its in-progress ".part" sibling) don't already exist.
func uniquePath(path string) string {
	if !pathTaken(path) {
		return path
	}
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if !pathTaken(candidate) {
			return candidate
		}
	}
}

func pathTaken(path string) bool {
	if _, err := os.Stat(path); err == nil {
		return true
	}
	if _, err := os.Stat(path + IncompleteSuffix); err == nil {
		return true
	}
	return false
}
