package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticSegmentsExactFourPieces(t *testing.T) {
	segs := StaticSegments(100000, 4)
	require.Len(t, segs, 4)
	assert.Equal(t, Segment{0, 24999}, segs[0])
	assert.Equal(t, Segment{25000, 49999}, segs[1])
	assert.Equal(t, Segment{50000, 74999}, segs[2])
	assert.Equal(t, Segment{75000, 99999}, segs[3])
}

func TestStaticSegmentsRemainderAbsorbedByLast(t *testing.T) {
	segs := StaticSegments(10, 3)
	require.Len(t, segs, 3)
	var total int64
	for i, s := range segs {
		assert.LessOrEqual(t, s.Start, s.End)
		total += s.Len()
		if i > 0 {
			assert.Equal(t, segs[i-1].End+1, s.Start, "segments must be contiguous")
		}
	}
	assert.EqualValues(t, 10, total)
	assert.EqualValues(t, 9, segs[2].End)
}

func TestStaticSegmentsClampsToTotal(t *testing.T) {
	segs := StaticSegments(3, 8)
	assert.Len(t, segs, 3)
}

func TestStaticSegmentsZeroTotal(t *testing.T) {
	assert.Nil(t, StaticSegments(0, 4))
}

func TestNewTaskRangeDerivation(t *testing.T) {
	total := int64(100)

	supported := NewTask("a", "http://x", "/tmp/a", "a", &total, true, 4)
	assert.Len(t, supported.PendingSegments(), 4)

	unsupported := NewTask("b", "http://x", "/tmp/b", "b", &total, false, 4)
	assert.Equal(t, []Segment{{0, 99}}, unsupported.PendingSegments())

	unknown := NewTask("c", "http://x", "/tmp/c", "c", nil, true, 4)
	assert.Empty(t, unknown.PendingSegments())
}

func TestTaskWorkerCount(t *testing.T) {
	total := int64(100)
	ranged := NewTask("a", "http://x", "/tmp/a", "a", &total, true, 4)
	assert.Equal(t, 8, ranged.WorkerCount(8))
	assert.Equal(t, 32, ranged.WorkerCount(999))

	single := NewTask("b", "http://x", "/tmp/b", "b", &total, false, 4)
	assert.Equal(t, 1, single.WorkerCount(8))
}

func TestCompareAndSetStatusIdempotence(t *testing.T) {
	total := int64(10)
	task := NewTask("a", "http://x", "/tmp/a", "a", &total, true, 1)
	assert.True(t, task.CompareAndSetStatus(StatusDownloading, StatusPending))
	assert.False(t, task.CompareAndSetStatus(StatusDownloading, StatusPending, StatusPaused))
	assert.True(t, task.CompareAndSetStatus(StatusPaused, StatusDownloading))
	assert.True(t, task.CompareAndSetStatus(StatusPaused, StatusPaused))
}

func TestFailIsIdempotent(t *testing.T) {
	total := int64(10)
	task := NewTask("a", "http://x", "/tmp/a", "a", &total, true, 1)
	task.Fail(assertError("first"))
	task.Fail(assertError("second"))
	assert.Equal(t, StatusFailed, task.Status())
	assert.Equal(t, "first", task.ErrorMessage())
}

func TestPopAndPushSegmentFront(t *testing.T) {
	total := int64(10)
	task := NewTask("a", "http://x", "/tmp/a", "a", &total, true, 2)

	first, ok := task.PopSegment()
	require.True(t, ok)
	assert.Equal(t, int64(0), first.Start)

	task.PushSegmentFront(Segment{Start: first.Start + 2, End: first.End})
	second, ok := task.PopSegment()
	require.True(t, ok)
	assert.Equal(t, first.Start+2, second.Start)

	task.PushSegmentFront(Segment{Start: 5, End: 2}) // invalid, must be ignored
	assert.False(t, task.PendingEmpty())
}

func TestSampleReturnsZeroOnFirstCall(t *testing.T) {
	total := int64(10)
	task := NewTask("a", "http://x", "/tmp/a", "a", &total, true, 1)
	assert.Equal(t, 0.0, task.Sample())
}

// assertError is a tiny error helper so tests don't need fmt.Errorf everywhere.
type assertError string

func (e assertError) Error() string { return string(e) }
