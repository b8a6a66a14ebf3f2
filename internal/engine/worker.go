package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/rangepull/rangepull/internal/utils"
)

// isStopStatus reports whether s is one of the statuses a worker observes
// cooperatively between work items and, seeing, exits without grabbing
// more work (§4.3, §5).
func isStopStatus(s Status) bool {
	switch s {
	case StatusPaused, StatusCancelled, StatusFailed, StatusCompleted:
		return true
	default:
		return false
	}
}

// runRangedWorker repeatedly pops the next pending segment, fetches it,
// and hands the bytes to the writer, until the queue drains or the task
// stops. ctx bounds the process lifetime only — pause/cancel are
// cooperative status checks, never a context cancellation of an
// in-flight fetch (§5: "An in-flight fetch_range is not aborted").
func runRangedWorker(ctx context.Context, t *Task, rawURL string, writer *Writer, cfg *RuntimeConfig, multiWorker bool) error {
	for {
		if isStopStatus(t.Status()) {
			return nil
		}

		seg, ok := t.PopSegment()
		if !ok {
			return nil
		}

		data, err := FetchRange(ctx, rawURL, seg.Start, seg.End, cfg, multiWorker)
		if err != nil {
			// Nothing was written for this segment: requeue it whole so a
			// later resume can retry it, then fail the task.
			t.PushSegmentFront(seg)
			t.Fail(err)
			return err
		}

		want := seg.Len()
		got := int64(len(data))
		if got > want {
			data = data[:want]
			got = want
		}

		if !writer.Enqueue(seg.Start, data) {
			werr := newErr(ErrIO, "writer unavailable", writer.Err())
			remainder := Segment{Start: seg.Start, End: seg.End}
			t.PushSegmentFront(remainder)
			t.Fail(werr)
			return werr
		}
		t.Downloaded.Add(got)

		if got < want {
			// Response-length mismatch (§9): keep what was written, requeue
			// the untouched remainder rather than silently accepting a
			// truncated range at the original offset.
			t.PushSegmentFront(Segment{Start: seg.Start + got, End: seg.End})
		}
	}
}

// runStreamingWorker handles the unknown-total-size case: a single
// long-lived GET with no Range header, writing at a monotonically
// advancing cursor until the body ends cleanly (§9 redesign note).
func runStreamingWorker(ctx context.Context, t *Task, rawURL string, writer *Writer, cfg *RuntimeConfig) error {
	client, err := newHTTPClient(cfg)
	if err != nil {
		t.Fail(err)
		return err
	}

	resp, err := doRequest(ctx, client, http.MethodGet, rawURL, cfg, nil)
	if err != nil {
		werr := newErr(ErrTransport, "stream fetch failed", err)
		t.Fail(werr)
		return werr
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		werr := newErr(ErrProtocolMismatch, fmt.Sprintf("unexpected status: %d", resp.StatusCode), nil)
		t.Fail(werr)
		return werr
	}

	buf := make([]byte, int(cfg.GetWorkerBufferSize()))
	var offset int64
	sniffed := false

	for {
		if isStopStatus(t.Status()) {
			return nil
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)

			if !sniffed {
				sniffed = true
				if name := t.Filename(); filepath.Ext(name) == "" {
					if ext := utils.SniffExtension(chunk); ext != "" {
						t.SetFilename(name + "." + ext)
					}
				}
			}

			if !writer.Enqueue(offset, chunk) {
				werr := newErr(ErrIO, "writer unavailable", writer.Err())
				t.Fail(werr)
				return werr
			}
			offset += int64(n)
			t.Downloaded.Add(int64(n))
		}

		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			werr := newErr(ErrTransport, "stream read failed", readErr)
			t.Fail(werr)
			return werr
		}
	}
}
