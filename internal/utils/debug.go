package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rangepull/rangepull/internal/config"
)

var (
	debugOnce sync.Once
	debugMu   sync.Mutex
	debugFile *os.File
	debugDir  = config.GetLogsDir()
)

// ConfigureDebug overrides the directory debug logs are written to.
// Intended for test isolation.
func ConfigureDebug(dir string) {
	debugMu.Lock()
	defer debugMu.Unlock()
	debugDir = dir
	if debugFile != nil {
		debugFile.Close()
		debugFile = nil
	}
	debugOnce = sync.Once{}
}

func openDebugFile() {
	if err := os.MkdirAll(debugDir, 0755); err != nil {
		return
	}
	name := fmt.Sprintf("debug-%s.log", time.Now().Format("20060102-150405"))
	f, err := os.OpenFile(filepath.Join(debugDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	debugFile = f
}

// Debug writes a timestamped line to the current debug log file, creating
// it on first use. Failures to open or write are swallowed: logging must
// never be on the download's critical path.
func Debug(format string, args ...any) {
	debugOnce.Do(openDebugFile)

	debugMu.Lock()
	f := debugFile
	debugMu.Unlock()
	if f == nil {
		return
	}

	line := fmt.Sprintf("[%s] %s\n", time.Now().Format(time.RFC3339Nano), fmt.Sprintf(format, args...))
	debugMu.Lock()
	f.WriteString(line)
	debugMu.Unlock()
}

// CleanupLogs removes the oldest debug log files, keeping at most `keep`.
func CleanupLogs(keep int) {
	entries, err := os.ReadDir(debugDir)
	if err != nil {
		return
	}

	var logs []os.DirEntry
	for _, e := range entries {
		if !e.IsDir() && len(e.Name()) > 6 && e.Name()[:6] == "debug-" {
			logs = append(logs, e)
		}
	}
	if len(logs) <= keep {
		return
	}

	sort.Slice(logs, func(i, j int) bool { return logs[i].Name() < logs[j].Name() })

	for _, e := range logs[:len(logs)-keep] {
		os.Remove(filepath.Join(debugDir, e.Name()))
	}
}
