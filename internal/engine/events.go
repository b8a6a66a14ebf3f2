package engine

// ProgressEvent is emitted while a task is downloading (§6 "download-progress").
// Speed is bytes/sec, the exponentially smoothed rate from
// Task.SampleProgress; 0 means "unknown, ignore".
type ProgressEvent struct {
	TaskID     string  `json:"task_id"`
	Downloaded int64   `json:"downloaded"`
	Total      *int64  `json:"total,omitempty"`
	Speed      float64 `json:"speed"`
	Status     Status  `json:"status"`
}

// FinishedEvent is emitted once when a task run ends as Completed or
// Failed (§6 "download-finished"). A run that ends Paused or Cancelled
// emits no FinishedEvent.
type FinishedEvent struct {
	TaskID   string `json:"task_id"`
	Status   Status `json:"status"`
	Filename string `json:"filename"`
}

// EventSink receives engine lifecycle events. Implementations must not
// block the caller for long; the scheduler invokes these synchronously
// from its own goroutines. A nil sink is valid and silently drops events.
type EventSink interface {
	OnProgress(ProgressEvent)
	OnFinished(FinishedEvent)
}

// noopSink discards every event; used when a Scheduler is built without
// an explicit sink.
type noopSink struct{}

func (noopSink) OnProgress(ProgressEvent) {}
func (noopSink) OnFinished(FinishedEvent) {}

// SinkFunc adapts two plain functions into an EventSink.
type SinkFunc struct {
	Progress func(ProgressEvent)
	Finished func(FinishedEvent)
}

func (f SinkFunc) OnProgress(e ProgressEvent) {
	if f.Progress != nil {
		f.Progress(e)
	}
}

func (f SinkFunc) OnFinished(e FinishedEvent) {
	if f.Finished != nil {
		f.Finished(e)
	}
}
