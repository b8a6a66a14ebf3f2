package engine

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// PersistedTask is the on-disk representation of a Task (§4.5). Field
// names are the external contract: snake_case, and stable across releases.
type PersistedTask struct {
	ID              string    `json:"id"`
	URL             string    `json:"url"`
	SavePath        string    `json:"save_path"`
	Filename        string    `json:"filename"`
	TotalBytes      *int64    `json:"total_bytes,omitempty"`
	DownloadedBytes int64     `json:"downloaded_bytes"`
	Status          Status    `json:"status"`
	PendingSegments []Segment `json:"pending_segments"`
	SupportsRange   bool      `json:"supports_range"`
	CreatedAt       int64     `json:"created_at"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}

// toPersisted snapshots a live Task into its wire form.
func toPersisted(t *Task) PersistedTask {
	return PersistedTask{
		ID:              t.ID,
		URL:             t.URL(),
		SavePath:        t.SavePath(),
		Filename:        t.Filename(),
		TotalBytes:      t.TotalBytes,
		DownloadedBytes: t.Downloaded.Load(),
		Status:          t.Status(),
		PendingSegments: t.PendingSegments(),
		SupportsRange:   t.SupportsRange,
		CreatedAt:       t.CreatedAt,
		ErrorMessage:    t.ErrorMessage(),
	}
}

// fromPersisted reconstitutes a Task from its wire form. Per §4.5, a task
// loaded as Downloading is normalized to Paused: it isn't actually running
// until something calls Start/Resume again.
func fromPersisted(p PersistedTask) *Task {
	t := NewTask(p.ID, p.URL, p.SavePath, p.Filename, p.TotalBytes, p.SupportsRange, 0)
	t.SetPendingSegments(p.PendingSegments)
	t.Downloaded.Store(p.DownloadedBytes)
	t.CreatedAt = p.CreatedAt

	status := p.Status
	if status == StatusDownloading {
		status = StatusPaused
	}
	t.SetStatus(status)
	if p.ErrorMessage != "" {
		t.Fail(&Error{Kind: ErrIO, Msg: p.ErrorMessage})
		t.SetStatus(status) // Fail forces Failed; restore the stored status verbatim.
	}
	return t
}

// snapshotDoc is the top-level shape of the snapshot file: a bare list.
type snapshotDoc = []PersistedTask

// SaveSnapshot/LoadSnapshot are file-level, not method-level, to keep persistence
// independent of any particular Scheduler instance (useful for tests and
// offline tooling that just wants to read/write the snapshot).

// SaveSnapshot writes tasks to path via write-to-temp-then-rename, guarded
// by an flock sibling lock file so a periodic snapshotter and an explicit
// post-mutation save never interleave (§4.5 atomicity note).
func SaveSnapshot(path string, tasks []PersistedTask) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return newErr(ErrIO, "failed to create snapshot directory", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return newErr(ErrIO, "failed to acquire snapshot lock", err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return newErr(ErrSerialization, "failed to marshal snapshot", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return newErr(ErrIO, "failed to write snapshot temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return newErr(ErrIO, "failed to rename snapshot into place", err)
	}
	return nil
}

// LoadSnapshot reads tasks from path. A missing file is not an error: it
// means an empty scheduler (§4.5 "Load").
func LoadSnapshot(path string) ([]PersistedTask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, newErr(ErrIO, "failed to read snapshot", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var tasks snapshotDoc
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, newErr(ErrSerialization, "failed to parse snapshot", err)
	}
	return tasks, nil
}
