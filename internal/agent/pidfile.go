package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ashewang/work-orchestrator/pkg/models"
)

// PID hand-off bounds for visible launches.
const (
	DefaultPIDWait     = 5 * time.Second
	DefaultPIDInterval = 100 * time.Millisecond
)

// ErrPIDTimeout is returned when the pid hand-off file never appears.
var ErrPIDTimeout = errors.New("timed out waiting for agent pid file")

// WaitForPIDFile waits for path to hold a process id. Changes are picked up
// from a directory watch, with polling every interval as a fallback. On
// timeout it returns models.Unmonitorable and ErrPIDTimeout.
func WaitForPIDFile(ctx context.Context, path string, timeout, interval time.Duration) (models.PID, error) {
	if pid, ok := readPIDFile(path); ok {
		return pid, nil
	}

	var events <-chan fsnotify.Event
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(path)); err == nil {
			events = watcher.Events
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return models.Unmonitorable, ctx.Err()
		case <-deadline.C:
			return models.Unmonitorable, ErrPIDTimeout
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
		case <-ticker.C:
		}
		if pid, ok := readPIDFile(path); ok {
			return pid, nil
		}
	}
}

// readPIDFile parses a pid file. A partially written file is not ready.
func readPIDFile(path string) (models.PID, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n <= 0 {
		return 0, false
	}
	return models.PID(n), true
}
