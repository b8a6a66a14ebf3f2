package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
)

// Commands wraps a Scheduler with the exact named operations §6 specifies,
// translating errors to plain strings the way a host process at the other
// end of the bridge/CLI expects (§7 "Command handlers convert internal
// errors to string messages").
type Commands struct {
	sched *Scheduler
}

func NewCommands(sched *Scheduler) *Commands {
	return &Commands{sched: sched}
}

// ProbeDownload is probe_download.
func (c *Commands) ProbeDownload(ctx context.Context, url string) (*ProbeResult, error) {
	return Probe(ctx, url, c.sched.cfg)
}

// CreateDownload is create_download.
func (c *Commands) CreateDownload(ctx context.Context, url, saveDir, filename string) (string, error) {
	return c.sched.Create(ctx, CreateInput{URL: url, SaveDir: saveDir, Filename: filename})
}

// CreateDownloadWithProbe is create_download_with_probe: skips the probe
// round-trip when the caller already has a fresh ProbeResult in hand.
func (c *Commands) CreateDownloadWithProbe(ctx context.Context, url, saveDir, filename string, probe *ProbeResult) (string, error) {
	return c.sched.Create(ctx, CreateInput{URL: url, SaveDir: saveDir, Filename: filename, Probe: probe})
}

// StartDownload is start_download.
func (c *Commands) StartDownload(taskID string) error { return c.sched.Start(taskID) }

// ResumeDownload is resume_download.
func (c *Commands) ResumeDownload(taskID string) error { return c.sched.Resume(taskID) }

// PauseDownload is pause_download.
func (c *Commands) PauseDownload(taskID string) error { return c.sched.Pause(taskID) }

// CancelDownload is cancel_download.
func (c *Commands) CancelDownload(taskID string) error { return c.sched.Cancel(taskID) }

// RemoveTask is remove_task.
func (c *Commands) RemoveTask(taskID string) error { return c.sched.Remove(taskID) }

// ListDownloads is list_downloads.
func (c *Commands) ListDownloads() []TaskInfo { return c.sched.List() }

// ClearCompletedTasks is clear_completed_tasks.
func (c *Commands) ClearCompletedTasks() int { return c.sched.ClearCompleted() }

// GetDownloadProgress is get_download_progress.
func (c *Commands) GetDownloadProgress(taskID string) (TaskInfo, bool) {
	return c.sched.Get(taskID)
}

// RefreshDownloadAddress is refresh_download_address.
func (c *Commands) RefreshDownloadAddress(ctx context.Context, taskID string) error {
	return c.sched.RefreshAddress(ctx, taskID)
}

// UpdateTaskSavePath is update_task_save_path.
func (c *Commands) UpdateTaskSavePath(taskID, newSavePath string) error {
	return c.sched.UpdateSavePath(taskID, newSavePath)
}

// CreateBatchDownload is create_batch_download: bad URLs are silently
// skipped from the returned list rather than aborting the whole batch.
func (c *Commands) CreateBatchDownload(ctx context.Context, urls []string, saveDir string) []string {
	results := c.sched.CreateBatch(ctx, urls, saveDir)
	ids := make([]string, 0, len(results))
	for _, v := range results {
		if !strings.HasPrefix(v, "error: ") {
			ids = append(ids, v)
		}
	}
	return ids
}

// exportedTask and exportDoc mirror §6's export_tasks JSON shape exactly.
type exportedTask struct {
	URL      string `json:"url"`
	SavePath string `json:"save_path"`
	Filename string `json:"filename"`
}

type exportDoc struct {
	Version int            `json:"version"`
	Tasks   []exportedTask `json:"tasks"`
}

// ExportTasks is export_tasks.
func (c *Commands) ExportTasks() ([]byte, error) {
	tasks := c.sched.List()
	doc := exportDoc{Version: 1, Tasks: make([]exportedTask, 0, len(tasks))}
	for _, t := range tasks {
		doc.Tasks = append(doc.Tasks, exportedTask{URL: t.URL, SavePath: t.SavePath, Filename: t.Filename})
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, newErr(ErrSerialization, "failed to marshal export", err)
	}
	return data, nil
}

// ImportTasks is import_tasks: accepts either a prior export_tasks JSON
// document or plain newline-delimited URLs, one task per URL, all landing
// in saveDir. Returns the count imported.
func (c *Commands) ImportTasks(ctx context.Context, text, saveDir string) (int, error) {
	var doc exportDoc
	if err := json.Unmarshal([]byte(text), &doc); err == nil && len(doc.Tasks) > 0 {
		count := 0
		for _, et := range doc.Tasks {
			dir := saveDir
			if dir == "" {
				dir = filepath.Dir(et.SavePath)
			}
			if _, err := c.sched.Create(ctx, CreateInput{URL: et.URL, SaveDir: dir, Filename: et.Filename}); err == nil {
				count++
			}
		}
		return count, nil
	}

	count := 0
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, err := c.sched.Create(ctx, CreateInput{URL: line, SaveDir: saveDir}); err == nil {
			count++
		}
	}
	return count, nil
}
