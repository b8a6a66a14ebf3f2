// Package config resolves the on-disk locations rangepull uses for its
// lock file, debug logs, and snapshot file, and defines the small options
// record the engine consumes from the host's settings file.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const appDirName = "rangepull"

// GetAppDir returns the platform config directory for rangepull,
// honoring XDG_CONFIG_HOME when set (tests rely on this for isolation).
func GetAppDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, appDirName)
}

// GetLogsDir returns the directory debug logs are written to.
func GetLogsDir() string {
	return filepath.Join(GetAppDir(), "logs")
}

// GetSnapshotPath returns the path of the scheduler's persisted task snapshot.
func GetSnapshotPath() string {
	return filepath.Join(GetAppDir(), "tasks.json")
}

// GetLockPath returns the path of the single-instance lock file.
func GetLockPath() string {
	return filepath.Join(GetAppDir(), "rangepull.lock")
}

// GetCommandPortPath returns where the running instance publishes the
// port its local CLI command server listens on, for `rangepull add`/`ls`/
// etc. to find it.
func GetCommandPortPath() string {
	return filepath.Join(GetAppDir(), "port")
}

// GetNativeHostPortPath returns where the running instance publishes the
// port its bridge TCP listener is on, for the stdio helper to find (§6).
func GetNativeHostPortPath() string {
	return filepath.Join(GetAppDir(), "native_host_port.txt")
}

// GetSettingsPath returns the path of the host's settings file (§6), the
// external contract LoadOptions parses Options out of.
func GetSettingsPath() string {
	return filepath.Join(GetAppDir(), "settings.json")
}

// EnsureDirs creates the app and logs directories if missing.
func EnsureDirs() error {
	if err := os.MkdirAll(GetAppDir(), 0755); err != nil {
		return err
	}
	return os.MkdirAll(GetLogsDir(), 0755)
}

// Options is the small record the engine consumes from the host's settings
// file. The settings file's own schema is an external contract this
// package does not own; Options is just the subset the engine reads.
type Options struct {
	ProxyURL                string `json:"proxy_url,omitempty"`
	TimeoutSecs             int    `json:"timeout_secs"`
	MaxConnectionsPerTask   int    `json:"max_connections_per_task"`
	SaveProgressIntervalSec int    `json:"save_progress_interval_secs"`
	DefaultSavePath         string `json:"default_save_path"`
}

// Timeout returns the configured per-request timeout, defaulting to 30s.
func (o *Options) Timeout() time.Duration {
	if o == nil || o.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(o.TimeoutSecs) * time.Second
}

// MaxConnections returns the configured per-task worker cap, defaulting to 8.
func (o *Options) MaxConnections() int {
	if o == nil || o.MaxConnectionsPerTask <= 0 {
		return 8
	}
	return o.MaxConnectionsPerTask
}

// SnapshotInterval returns the periodic snapshot cadence, floored at 5s,
// defaulting to 30s.
func (o *Options) SnapshotInterval() time.Duration {
	if o == nil || o.SaveProgressIntervalSec <= 0 {
		return 30 * time.Second
	}
	d := time.Duration(o.SaveProgressIntervalSec) * time.Second
	if d < 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

// Proxy returns the configured proxy URL, or empty if none.
func (o *Options) Proxy() string {
	if o == nil {
		return ""
	}
	return o.ProxyURL
}

// LoadOptions reads Options from a JSON file. A missing file yields
// zero-value Options (defaults apply via the accessor methods above).
func LoadOptions(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Options{}, nil
		}
		return nil, err
	}
	var o Options
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
