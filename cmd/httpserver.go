package cmd

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/rangepull/rangepull/internal/engine"
	"github.com/rangepull/rangepull/internal/utils"
)

// httpServer runs an http.Server over a pre-bound listener and shuts down
// cleanly when ctx is cancelled.
type httpServer struct {
	ln      net.Listener
	handler http.Handler
}

func (s *httpServer) serve(ctx context.Context) error {
	srv := &http.Server{Handler: s.handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	err := srv.Serve(s.ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// commandServer exposes the engine's command surface over loopback HTTP
// for the CLI subcommands (add/ls/pause/resume/rm) to reach a running
// instance, the way the teacher's root.go does for its browser extension
// endpoint. It exposes health, add (create + start), list, pause, resume,
// cancel, rm and clear-completed; the other §6 commands (probe, export,
// import, refresh, save-path update, batch create, single-task progress)
// are not served over HTTP.
type commandServer struct {
	commands *engine.Commands
}

func newCommandServer(commands *engine.Commands) *commandServer {
	return &commandServer{commands: commands}
}

func (s *commandServer) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/add", s.handleAdd)
	mux.HandleFunc("/list", s.handleList)
	mux.HandleFunc("/pause", s.handlePause)
	mux.HandleFunc("/resume", s.handleResume)
	mux.HandleFunc("/cancel", s.handleCancel)
	mux.HandleFunc("/rm", s.handleRemove)
	mux.HandleFunc("/clear-completed", s.handleClearCompleted)
	return mux
}

func (s *commandServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type addRequest struct {
	URL      string `json:"url"`
	SaveDir  string `json:"save_dir,omitempty"`
	Filename string `json:"filename,omitempty"`
}

func (s *commandServer) handleAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	ctx := context.Background()
	id, err := s.commands.CreateDownload(ctx, req.URL, req.SaveDir, req.Filename)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.commands.StartDownload(id); err != nil {
		utils.Debug("command server: failed to auto-start %s: %v", id, err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *commandServer) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.commands.ListDownloads())
}

func (s *commandServer) handlePause(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if err := s.commands.PauseDownload(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *commandServer) handleResume(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if err := s.commands.ResumeDownload(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *commandServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if err := s.commands.CancelDownload(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *commandServer) handleRemove(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if err := s.commands.RemoveTask(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *commandServer) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	n := s.commands.ClearCompletedTasks()
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
