package engine

import (
	"context"
	"time"
)

// Balancer is an optional, off-by-default supplement to the fixed
// N-equal-pieces scheduling model: while enabled, it periodically splits
// the largest remaining pending segment of every Downloading task (when
// that segment exceeds 2*MinSegmentSize), so the task's queue holds more,
// smaller pieces for its workers to pull. Disabled by default so
// the exact four-request scenario (§8) stays exact.
type Balancer struct {
	sched *Scheduler
	tick  time.Duration
}

// NewBalancer builds a Balancer over sched. A zero tick uses BalancerTick.
func NewBalancer(sched *Scheduler, tick time.Duration) *Balancer {
	if tick <= 0 {
		tick = BalancerTick
	}
	return &Balancer{sched: sched, tick: tick}
}

// Run splits thin queues until ctx is cancelled. Intended to be started
// in its own goroutine alongside Scheduler.Run, only when the host has
// opted into dynamic balancing.
func (b *Balancer) Run(ctx context.Context) {
	ticker := time.NewTicker(b.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.sweep()
		}
	}
}

func (b *Balancer) sweep() {
	b.sched.mu.Lock()
	tasks := make([]*Task, 0, len(b.sched.tasks))
	for _, t := range b.sched.tasks {
		if t.Status() == StatusDownloading {
			tasks = append(tasks, t)
		}
	}
	b.sched.mu.Unlock()

	for _, t := range tasks {
		splitLargestSegment(t)
	}
}

// splitLargestSegment finds the largest pending segment on t and, if it's
// big enough to be worth splitting, replaces it with two aligned halves —
// the same split-in-half-aligned-to-AlignSize move as the reference
// task-stealing queue, generalized from a flat work-stealing queue to a
// per-task pending list guarded by Task's own mutex.
func splitLargestSegment(t *Task) bool {
	t.segMu.Lock()
	defer t.segMu.Unlock()

	idx := -1
	var maxLen int64
	for i, s := range t.pending {
		if l := s.Len(); l > maxLen && l > 2*MinSegmentSize {
			maxLen = l
			idx = i
		}
	}
	if idx == -1 {
		return false
	}

	seg := t.pending[idx]
	half := alignedHalf(seg.Len())
	if half == 0 {
		return false
	}

	left := Segment{Start: seg.Start, End: seg.Start + half - 1}
	right := Segment{Start: seg.Start + half, End: seg.End}

	t.pending[idx] = right
	t.pending = append(t.pending, left)
	return true
}

// alignedHalf returns half of n rounded down to AlignSize, or 0 if either
// resulting half would fall below MinSegmentSize.
func alignedHalf(n int64) int64 {
	half := (n / 2 / AlignSize) * AlignSize
	if half < MinSegmentSize || n-half < MinSegmentSize {
		return 0
	}
	return half
}
