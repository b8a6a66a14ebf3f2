package engine

import (
	"os"
	"sync"
)

type writeMsg struct {
	offset int64
	data   []byte
}

// Writer is the single owner of a task's destination file handle (§4.2).
// Workers never touch the file directly; they hand bytes to the writer
// over a bounded channel, which serializes all I/O and lets segments
// arrive out of order without contention.
type Writer struct {
	file *os.File
	ch   chan writeMsg
	done chan struct{}

	mu  sync.Mutex
	err error
}

// NewWriter wraps an already-created/pre-allocated file. capacity <= 0
// uses the reference default of 32.
func NewWriter(file *os.File, capacity int) *Writer {
	if capacity <= 0 {
		capacity = WriterChannelCapacity
	}
	return &Writer{
		file: file,
		ch:   make(chan writeMsg, capacity),
		done: make(chan struct{}),
	}
}

// Run consumes (offset, bytes) messages until the channel is closed, then
// fsyncs and releases the file handle. Must be launched in its own
// goroutine; Close blocks until it returns.
func (w *Writer) Run() {
	defer close(w.done)
	defer w.file.Close()

	for msg := range w.ch {
		if _, err := w.file.WriteAt(msg.data, msg.offset); err != nil {
			w.setErr(newErr(ErrIO, "write failed", err))
			continue
		}
	}

	if w.Err() == nil {
		if err := w.file.Sync(); err != nil {
			w.setErr(newErr(ErrIO, "fsync failed", err))
		}
	}
}

// Enqueue delivers bytes to be written at offset. Returns false if the
// writer has already failed or been closed, signalling the caller (a
// worker) to stop.
func (w *Writer) Enqueue(offset int64, data []byte) bool {
	select {
	case <-w.done:
		return false
	default:
	}

	select {
	case w.ch <- writeMsg{offset: offset, data: data}:
		return w.Err() == nil
	case <-w.done:
		return false
	}
}

// Close signals no more writes are coming and blocks until the writer
// drains, fsyncs, and releases the file handle.
func (w *Writer) Close() error {
	close(w.ch)
	<-w.done
	return w.Err()
}

func (w *Writer) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

// Err returns the first write/sync failure observed, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
