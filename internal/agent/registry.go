package agent

import (
	"sync"

	"github.com/ashewang/work-orchestrator/internal/exec"
)

// ProcessRegistry holds the live handles of agent processes started by this
// orchestrator process, keyed by run id. It is not persisted: after a
// restart it is empty and liveness falls back to probing recorded pids.
type ProcessRegistry struct {
	mu    sync.Mutex
	procs map[string]exec.Process
}

// NewProcessRegistry creates an empty registry.
func NewProcessRegistry() *ProcessRegistry {
	return &ProcessRegistry{procs: make(map[string]exec.Process)}
}

// Add records the handle for runID.
func (r *ProcessRegistry) Add(runID string, p exec.Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[runID] = p
}

// Get returns the handle for runID.
func (r *ProcessRegistry) Get(runID string) (exec.Process, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.procs[runID]
	return p, ok
}

// Remove drops the handle for runID. Removing an unknown id is a no-op.
func (r *ProcessRegistry) Remove(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.procs, runID)
}

// Len returns the number of tracked processes.
func (r *ProcessRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.procs)
}
