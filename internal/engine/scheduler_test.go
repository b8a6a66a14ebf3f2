package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForStatus(t *testing.T, sched *Scheduler, id string, want Status) TaskInfo {
	t.Helper()
	var info TaskInfo
	require.Eventually(t, func() bool {
		var ok bool
		info, ok = sched.Get(id)
		return ok && info.Status == want
	}, 5*time.Second, 5*time.Millisecond, "task %s never reached status %s", id, want)
	return info
}

// rangeServer serves a fixed body over Range requests and counts how many
// distinct GET Range requests it handled.
func rangeServer(t *testing.T, body []byte) (*httptest.Server, *int32) {
	t.Helper()
	var rangeRequests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Accept-Ranges", "bytes")
			w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
			w.WriteHeader(http.StatusOK)
			return
		}
		rng := r.Header.Get("Range")
		if rng == "" {
			w.WriteHeader(http.StatusOK)
			w.Write(body)
			return
		}
		atomic.AddInt32(&rangeRequests, 1)
		var start, end int64
		fmt.Sscanf(rng, "bytes=%d-%d", &start, &end)
		if end >= int64(len(body)) {
			end = int64(len(body)) - 1
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(body)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(body[start : end+1])
	}))
	return srv, &rangeRequests
}

func TestSchedulerHappyPathExactlyFourRangeRequests(t *testing.T) {
	body := make([]byte, 4000)
	for i := range body {
		body[i] = byte(i % 256)
	}
	srv, rangeRequests := rangeServer(t, body)
	defer srv.Close()

	dir := t.TempDir()
	cfg := &RuntimeConfig{DefaultSegments: 4, MaxConnectionsPerTask: 4}
	sched := NewScheduler(cfg, nil, "")

	id, err := sched.Create(context.Background(), CreateInput{URL: srv.URL, SaveDir: dir, Filename: "out.bin"})
	require.NoError(t, err)
	require.NoError(t, sched.Start(id))

	info := waitForStatus(t, sched, id, StatusCompleted)
	assert.EqualValues(t, len(body), info.Downloaded)
	assert.EqualValues(t, 4, atomic.LoadInt32(rangeRequests))

	data, err := os.ReadFile(filepath.Join(dir, "out.bin"))
	require.NoError(t, err)
	assert.Equal(t, body, data)
}

func TestSchedulerNoRangeSupportUsesSingleWorker(t *testing.T) {
	body := []byte("hello world, no ranges here")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(body)))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := &RuntimeConfig{DefaultSegments: 4, MaxConnectionsPerTask: 4}
	sched := NewScheduler(cfg, nil, "")

	id, err := sched.Create(context.Background(), CreateInput{URL: srv.URL, SaveDir: dir, Filename: "single.bin"})
	require.NoError(t, err)

	info, ok := sched.Get(id)
	require.True(t, ok)
	assert.False(t, info.SupportsRange)

	require.NoError(t, sched.Start(id))
	info = waitForStatus(t, sched, id, StatusCompleted)
	assert.EqualValues(t, len(body), info.Downloaded)

	data, err := os.ReadFile(filepath.Join(dir, "single.bin"))
	require.NoError(t, err)
	assert.Equal(t, body, data)
}

func TestSchedulerPauseThenResumeCompletes(t *testing.T) {
	body := make([]byte, 2000)
	srv, _ := rangeServer(t, body)
	defer srv.Close()

	dir := t.TempDir()
	cfg := &RuntimeConfig{DefaultSegments: 4, MaxConnectionsPerTask: 1}
	sched := NewScheduler(cfg, nil, "")

	id, err := sched.Create(context.Background(), CreateInput{URL: srv.URL, SaveDir: dir, Filename: "p.bin"})
	require.NoError(t, err)
	require.NoError(t, sched.Start(id))

	require.NoError(t, sched.Pause(id))
	// Pausing an already-paused task is a no-op, not an error.
	require.NoError(t, sched.Pause(id))

	waitForStatus(t, sched, id, StatusPaused)

	require.NoError(t, sched.Resume(id))
	info := waitForStatus(t, sched, id, StatusCompleted)
	assert.EqualValues(t, len(body), info.Downloaded)
}

func TestSchedulerStartOnAlreadyDownloadingIsStateError(t *testing.T) {
	body := make([]byte, 1000)
	srv, _ := rangeServer(t, body)
	defer srv.Close()

	dir := t.TempDir()
	sched := NewScheduler(&RuntimeConfig{MaxConnectionsPerTask: 1}, nil, "")
	id, err := sched.Create(context.Background(), CreateInput{URL: srv.URL, SaveDir: dir, Filename: "s.bin"})
	require.NoError(t, err)
	require.NoError(t, sched.Start(id))

	err = sched.Start(id)
	require.Error(t, err)
	var engErr *Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, ErrState, engErr.Kind)

	waitForStatus(t, sched, id, StatusCompleted)
}

func TestSchedulerFailureOnRangeRequestFailsTask(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Accept-Ranges", "bytes")
			w.Header().Set("Content-Length", "2000")
			w.WriteHeader(http.StatusOK)
			return
		}
		n := atomic.AddInt32(&hits, 1)
		if n == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Range", "bytes 0-999/2000")
		w.WriteHeader(http.StatusPartialContent)
		w.Write(make([]byte, 1000))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := &RuntimeConfig{DefaultSegments: 2, MaxConnectionsPerTask: 2}
	sched := NewScheduler(cfg, nil, "")
	id, err := sched.Create(context.Background(), CreateInput{URL: srv.URL, SaveDir: dir, Filename: "f.bin"})
	require.NoError(t, err)
	require.NoError(t, sched.Start(id))

	info := waitForStatus(t, sched, id, StatusFailed)
	assert.NotEmpty(t, info.ErrorMessage)
}

func TestSchedulerCrashResumeViaSnapshot(t *testing.T) {
	dir := t.TempDir()
	snapPath := filepath.Join(dir, "snapshot.json")

	total := int64(500)
	segs := []Segment{{Start: 100, End: 499}}

	first := NewScheduler(&RuntimeConfig{}, nil, snapPath)
	task := NewTask("resumed-task", "http://example.invalid/f", filepath.Join(dir, "f.bin"), "f.bin", &total, true, 1)
	task.SetPendingSegments(segs)
	task.Downloaded.Store(100)
	task.SetStatus(StatusDownloading)

	first.mu.Lock()
	first.tasks[task.ID] = task
	first.mu.Unlock()
	first.Snapshot()

	second := NewScheduler(&RuntimeConfig{}, nil, snapPath)
	require.NoError(t, second.LoadFromSnapshot())

	info, ok := second.Get("resumed-task")
	require.True(t, ok)
	// A task persisted mid-flight reloads as Paused, not Downloading.
	assert.Equal(t, StatusPaused, info.Status)
	assert.EqualValues(t, 100, info.Downloaded)
}

func TestSchedulerRemoveAndClearCompleted(t *testing.T) {
	dir := t.TempDir()
	sched := NewScheduler(&RuntimeConfig{}, nil, "")

	total := int64(10)
	completed := NewTask("done", "http://x", filepath.Join(dir, "a"), "a", &total, true, 1)
	completed.SetStatus(StatusCompleted)
	pending := NewTask("pending", "http://x", filepath.Join(dir, "b"), "b", &total, true, 1)

	sched.mu.Lock()
	sched.tasks[completed.ID] = completed
	sched.tasks[pending.ID] = pending
	sched.mu.Unlock()

	removed := sched.ClearCompleted()
	assert.Equal(t, 1, removed)

	_, ok := sched.Get("done")
	assert.False(t, ok)
	_, ok = sched.Get("pending")
	assert.True(t, ok)

	require.NoError(t, sched.Remove("pending"))
	_, ok = sched.Get("pending")
	assert.False(t, ok)
}

func TestSchedulerResolvePrefix(t *testing.T) {
	dir := t.TempDir()
	sched := NewScheduler(&RuntimeConfig{}, nil, "")
	total := int64(10)
	a := NewTask("abc123", "http://x", filepath.Join(dir, "a"), "a", &total, true, 1)
	b := NewTask("abd456", "http://x", filepath.Join(dir, "b"), "b", &total, true, 1)

	sched.mu.Lock()
	sched.tasks[a.ID] = a
	sched.tasks[b.ID] = b
	sched.mu.Unlock()

	id, err := sched.Resolve("abc")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	_, err = sched.Resolve("ab")
	require.Error(t, err)

	_, err = sched.Resolve("zzz")
	require.Error(t, err)
}
