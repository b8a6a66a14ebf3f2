package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/rangepull/rangepull/internal/config"
	"github.com/rangepull/rangepull/internal/engine"
)

// readActivePort reads the running instance's command-server port, or 0
// if no instance appears to be running.
func readActivePort() int {
	data, err := os.ReadFile(config.GetCommandPortPath())
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return port
}

// readURLsFromFile reads one URL per line, skipping blanks and #comments.
func readURLsFromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	return urls, scanner.Err()
}

// sendAdd posts a download request to the running instance's command
// server and returns the new task ID.
func sendAdd(port int, url, saveDir string) (string, error) {
	body, _ := json.Marshal(addRequest{URL: url, SaveDir: saveDir})
	resp, err := http.Post(fmt.Sprintf("http://127.0.0.1:%d/add", port), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to reach running instance: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("instance returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("invalid response from instance: %w", err)
	}
	return out["id"], nil
}

func postCommand(port int, path, id string) error {
	url := fmt.Sprintf("http://127.0.0.1:%d/%s?id=%s", port, path, id)
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to reach running instance: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("instance returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return nil
}

func fetchList(port int) ([]engine.TaskInfo, error) {
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/list", port))
	if err != nil {
		return nil, fmt.Errorf("failed to reach running instance: %w", err)
	}
	defer resp.Body.Close()

	var tasks []engine.TaskInfo
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		return nil, fmt.Errorf("invalid response from instance: %w", err)
	}
	return tasks, nil
}

// resolvePrefix finds the full task ID a short prefix uniquely identifies
// among the running instance's tasks (§6, §12 CLI convenience).
func resolvePrefix(port int, prefix string) (string, error) {
	tasks, err := fetchList(port)
	if err != nil {
		return "", err
	}
	var match string
	for _, t := range tasks {
		if strings.HasPrefix(t.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("ambiguous id prefix %q matches multiple tasks", prefix)
			}
			match = t.ID
		}
	}
	if match == "" {
		return prefix, nil
	}
	return match, nil
}
