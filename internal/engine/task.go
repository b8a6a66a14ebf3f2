package engine

import (
	"sync"
	"sync/atomic"
	"time"
)

// Task is the central entity: one in-flight or resumable download (§3).
type Task struct {
	ID string

	// TotalBytes is nil when the origin's length is unknown at creation.
	TotalBytes *int64

	metaMu   sync.Mutex
	savePath string
	filename string

	Downloaded    atomic.Int64
	SupportsRange bool
	CreatedAt     int64

	urlMu sync.Mutex
	url   string

	statusMu     sync.Mutex
	status       Status
	errorMessage string

	segMu   sync.Mutex
	pending []Segment

	speedEmaAlpha   float64
	infoSampler     speedSampler
	progressSampler speedSampler
}

// speedSampler holds one independent speed-estimation baseline. Task keeps
// two instances — one sampled by on-demand info/list lookups, one sampled
// by the scheduler's periodic progress ticker — so a caller polling `ls`
// can't reset the baseline the ticker is using to smooth its own reported
// rate, and vice versa.
type speedSampler struct {
	mu           sync.Mutex
	lastSampleAt time.Time
	lastSampleN  int64
	emaSpeed     float64
	emaInit      bool
}

func (s *speedSampler) sample(downloaded int64, alpha float64) float64 {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastSampleAt.IsZero() {
		s.lastSampleAt = now
		s.lastSampleN = downloaded
		return 0
	}

	elapsed := now.Sub(s.lastSampleAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	instant := float64(downloaded-s.lastSampleN) / elapsed
	s.lastSampleAt = now
	s.lastSampleN = downloaded

	if !s.emaInit {
		s.emaInit = true
		s.emaSpeed = instant
		return s.emaSpeed
	}
	s.emaSpeed = alpha*instant + (1-alpha)*s.emaSpeed
	return s.emaSpeed
}

// NewTask constructs a Pending task and computes its initial pending
// segments per §3's "Range derivation at creation" rule.
func NewTask(id, rawURL, savePath, filename string, totalBytes *int64, supportsRange bool, segments int) *Task {
	t := &Task{
		ID:            id,
		url:           rawURL,
		savePath:      savePath,
		filename:      filename,
		TotalBytes:    totalBytes,
		SupportsRange: supportsRange,
		CreatedAt:     time.Now().Unix(),
		status:        StatusPending,
		speedEmaAlpha: DefaultSpeedEMAAlpha,
	}

	switch {
	case totalBytes == nil:
		// Unknown length: no pending segments: handled by the single
		// streaming worker path instead (§9 redesign).
	case !supportsRange:
		t.pending = []Segment{{Start: 0, End: *totalBytes - 1}}
	default:
		t.pending = StaticSegments(*totalBytes, segments)
	}

	return t
}

// StaticSegments splits [0, total-1] into exactly min(n, total) disjoint
// inclusive ranges whose union is [0, total-1], the last absorbing any
// remainder. Pure and deterministic so it is directly testable (§8).
func StaticSegments(total int64, n int) []Segment {
	if total <= 0 {
		return nil
	}
	if n <= 0 {
		n = 1
	}
	if int64(n) > total {
		n = int(total)
	}

	size := total / int64(n)
	segs := make([]Segment, 0, n)
	start := int64(0)
	for i := 0; i < n; i++ {
		end := start + size - 1
		if i == n-1 {
			end = total - 1
		}
		segs = append(segs, Segment{Start: start, End: end})
		start = end + 1
	}
	return segs
}

// WorkerCount returns how many workers this task should run with, per
// §4.3: N = supports_range ? clamp(max, 1, 32) : 1.
func (t *Task) WorkerCount(maxConnections int) int {
	if !t.SupportsRange {
		return 1
	}
	return clampWorkers(maxConnections)
}

// SavePath returns the task's current destination path.
func (t *Task) SavePath() string {
	t.metaMu.Lock()
	defer t.metaMu.Unlock()
	return t.savePath
}

// SetSavePath changes the destination path. Callers must ensure the task
// isn't Downloading (the scheduler enforces this before calling).
func (t *Task) SetSavePath(p string) {
	t.metaMu.Lock()
	defer t.metaMu.Unlock()
	t.savePath = p
}

// Filename returns the task's current display/save filename.
func (t *Task) Filename() string {
	t.metaMu.Lock()
	defer t.metaMu.Unlock()
	return t.filename
}

// SetFilename changes the filename. Used both by the scheduler (renaming)
// and by the streaming worker (appending a sniffed extension mid-transfer).
func (t *Task) SetFilename(f string) {
	t.metaMu.Lock()
	defer t.metaMu.Unlock()
	t.filename = f
}

func (t *Task) URL() string {
	t.urlMu.Lock()
	defer t.urlMu.Unlock()
	return t.url
}

func (t *Task) SetURL(u string) {
	t.urlMu.Lock()
	defer t.urlMu.Unlock()
	t.url = u
}

func (t *Task) Status() Status {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	return t.status
}

func (t *Task) ErrorMessage() string {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	return t.errorMessage
}

// SetStatus transitions the task unconditionally. Callers that need a
// guarded transition (only-if-current-is-X) use CompareAndSetStatus.
func (t *Task) SetStatus(s Status) {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	t.status = s
}

// CompareAndSetStatus transitions to next only if the current status is
// one of from; returns whether it did. Used for idempotent operations
// (pausing an already-Paused task is a no-op, per §8).
func (t *Task) CompareAndSetStatus(next Status, from ...Status) bool {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	for _, f := range from {
		if t.status == f {
			t.status = next
			return true
		}
	}
	return false
}

// Fail transitions to Failed and records the error message. Idempotent:
// once Failed, later calls don't clobber the first message.
func (t *Task) Fail(err error) {
	t.statusMu.Lock()
	defer t.statusMu.Unlock()
	if t.status == StatusFailed {
		return
	}
	t.status = StatusFailed
	if err != nil {
		t.errorMessage = err.Error()
	}
}

// PendingSegments returns a snapshot copy of the pending queue, in order.
func (t *Task) PendingSegments() []Segment {
	t.segMu.Lock()
	defer t.segMu.Unlock()
	out := make([]Segment, len(t.pending))
	copy(out, t.pending)
	return out
}

// SetPendingSegments replaces the pending queue wholesale (used on load
// from a persisted snapshot).
func (t *Task) SetPendingSegments(segs []Segment) {
	t.segMu.Lock()
	defer t.segMu.Unlock()
	t.pending = append([]Segment(nil), segs...)
}

// PopSegment removes and returns the head of the FIFO pending queue.
func (t *Task) PopSegment() (Segment, bool) {
	t.segMu.Lock()
	defer t.segMu.Unlock()
	if len(t.pending) == 0 {
		return Segment{}, false
	}
	s := t.pending[0]
	t.pending = t.pending[1:]
	return s, true
}

// PushSegmentFront re-queues a segment ahead of everything else pending —
// used when a worker needs to retry the untouched remainder of a segment
// it partially consumed (response-length mismatch, or the remaining bytes
// of a segment that failed mid-fetch).
func (t *Task) PushSegmentFront(s Segment) {
	if s.Start > s.End {
		return
	}
	t.segMu.Lock()
	defer t.segMu.Unlock()
	t.pending = append([]Segment{s}, t.pending...)
}

// PendingEmpty reports whether the queue has been fully drained.
func (t *Task) PendingEmpty() bool {
	t.segMu.Lock()
	defer t.segMu.Unlock()
	return len(t.pending) == 0
}

// SetSpeedEmaAlpha sets the smoothing factor Sample and SampleProgress
// apply to the raw instantaneous rate. alpha <= 0 leaves the existing
// value (the DefaultSpeedEMAAlpha set at construction) untouched.
func (t *Task) SetSpeedEmaAlpha(alpha float64) {
	if alpha <= 0 {
		return
	}
	t.speedEmaAlpha = alpha
}

// Sample updates the on-demand info/list speed baseline and returns the
// exponentially-smoothed rate in bytes/sec, or 0 if no time has elapsed or
// this is the first sample taken (§4.4: "unknown" collapses to 0 for
// callers to ignore). Smoothing (rather than the raw instantaneous rate)
// keeps the reported speed from swinging wildly between samples taken
// right after a slow or fast individual range request completes. Used by
// List/Get; the periodic progress ticker uses SampleProgress instead so
// the two pollers don't reset each other's baseline.
func (t *Task) Sample() float64 {
	return t.infoSampler.sample(t.Downloaded.Load(), t.speedEmaAlpha)
}

// SampleProgress is Sample's counterpart for the scheduler's periodic
// progress ticker, backed by its own independent baseline.
func (t *Task) SampleProgress() float64 {
	return t.progressSampler.sample(t.Downloaded.Load(), t.speedEmaAlpha)
}
