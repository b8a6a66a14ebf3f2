package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probeOnlyServer(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Accept-Ranges", "bytes")
			w.Header().Set("Content-Length", "16")
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Range", "bytes 0-0/16")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte{0})
	}))
}

func TestCommandsExportImportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	srv := probeOnlyServer(t, nil)
	defer srv.Close()

	sched := NewScheduler(&RuntimeConfig{}, nil, "")
	commands := NewCommands(sched)

	_, err := commands.CreateDownload(context.Background(), srv.URL, dir, "exported.bin")
	require.NoError(t, err)

	data, err := commands.ExportTasks()
	require.NoError(t, err)

	var doc exportDoc
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 1, doc.Version)
	require.Len(t, doc.Tasks, 1)
	assert.Equal(t, "exported.bin", doc.Tasks[0].Filename)

	importDir := t.TempDir()
	fresh := NewScheduler(&RuntimeConfig{}, nil, "")
	freshCommands := NewCommands(fresh)
	count, err := freshCommands.ImportTasks(context.Background(), string(data), importDir)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Len(t, fresh.List(), 1)
}

func TestCommandsImportPlainURLList(t *testing.T) {
	srv := probeOnlyServer(t, nil)
	defer srv.Close()

	dir := t.TempDir()
	sched := NewScheduler(&RuntimeConfig{}, nil, "")
	commands := NewCommands(sched)

	text := "\n" + srv.URL + "\n# a comment would go here if supported\n" + srv.URL + "\n"
	count, err := commands.ImportTasks(context.Background(), text, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestCommandsCreateBatchDownloadSkipsFailures(t *testing.T) {
	dir := t.TempDir()
	sched := NewScheduler(&RuntimeConfig{}, nil, "")
	commands := NewCommands(sched)

	ids := commands.CreateBatchDownload(context.Background(), []string{"not-a-url", "also not a url"}, dir)
	assert.Empty(t, ids)
}

func TestCommandsUpdateSavePathRejectsWhileDownloading(t *testing.T) {
	dir := t.TempDir()
	total := int64(10)
	sched := NewScheduler(&RuntimeConfig{}, nil, "")
	task := NewTask("t1", "http://x", filepath.Join(dir, "a"), "a", &total, true, 1)
	task.SetStatus(StatusDownloading)
	sched.mu.Lock()
	sched.tasks[task.ID] = task
	sched.mu.Unlock()

	commands := NewCommands(sched)
	err := commands.UpdateTaskSavePath("t1", filepath.Join(dir, "b"))
	require.Error(t, err)
}
