// Package bridge implements the two external collaborator endpoints a
// browser extension (or similar companion) uses to hand URLs to the
// engine: a length-prefixed stdio helper and a local TCP listener, both
// funneling into create_download + start_download (§6).
package bridge

import (
	"context"

	"github.com/rangepull/rangepull/internal/engine"
)

// Request is the shared action schema both endpoints accept.
type Request struct {
	Action     string `json:"action"`
	URL        string `json:"url"`
	Filename   string `json:"filename,omitempty"`
	Referer    string `json:"referer,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	Cookie     string `json:"cookie,omitempty"`
	PostData   string `json:"post_data,omitempty"`
	SavePath   string `json:"save_path,omitempty"`
	OpenWindow bool   `json:"open_window,omitempty"`
}

const (
	ActionDownload   = "download"
	ActionOpenWindow = "open_window"

	// MaxMessageBytes caps a single framed payload (§6 "cap 1 MiB").
	MaxMessageBytes = 1 << 20
)

// handle dispatches a decoded Request against commands and returns
// (ok, message) the way both endpoints render into their own reply shape.
func handle(ctx context.Context, commands *engine.Commands, req Request) (bool, string) {
	if req.URL == "" {
		return false, "missing or invalid url"
	}

	switch req.Action {
	case "", ActionDownload:
		saveDir := req.SavePath
		id, err := commands.CreateDownload(ctx, req.URL, saveDir, req.Filename)
		if err != nil {
			return false, err.Error()
		}
		if err := commands.StartDownload(id); err != nil {
			return false, err.Error()
		}
		return true, "queued"
	case ActionOpenWindow:
		// This engine has no windowing surface of its own; acknowledge so
		// the caller's UI doesn't block, same as a no-op host command.
		return true, "ok"
	default:
		return false, "unknown action"
	}
}
