// Package workspace owns per-job temporary directories under a shared root
// and the janitor that reclaims them. A registry of active jobs keeps the
// janitor from sweeping another in-flight job's workspace.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"clipsmith/internal/logging"
)

// Workspace is one job's isolated temporary directory.
type Workspace struct {
	JobID string
	Dir   string
}

// Path returns the absolute path for a per-stage file inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Remove tears the workspace down. Errors for an already-gone directory are
// ignored; removal must be safe to call on every exit path.
func (w *Workspace) Remove() {
	_ = os.RemoveAll(w.Dir)
}

// Manager creates workspaces and tracks which jobs are still running.
type Manager struct {
	root string
	ttl  time.Duration
	log  *logging.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

func NewManager(root string, ttl time.Duration, log *logging.Logger) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create work root %s: %w", root, err)
	}
	return &Manager{
		root:   root,
		ttl:    ttl,
		log:    log,
		active: make(map[string]struct{}),
	}, nil
}

func (m *Manager) Root() string { return m.root }

// Acquire creates the workspace for jobID and registers it as active. The
// caller must call Release when the job terminates, on every exit path.
func (m *Manager) Acquire(jobID string) (*Workspace, error) {
	dir := filepath.Join(m.root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace %s: %w", dir, err)
	}
	m.mu.Lock()
	m.active[jobID] = struct{}{}
	m.mu.Unlock()
	return &Workspace{JobID: jobID, Dir: dir}, nil
}

// Release removes the workspace and drops the job from the active set.
func (m *Manager) Release(w *Workspace) {
	if w == nil {
		return
	}
	w.Remove()
	m.mu.Lock()
	delete(m.active, w.JobID)
	m.mu.Unlock()
}

func (m *Manager) isActive(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[jobID]
	return ok
}

// Sweep removes workspace directories whose job is not active. Directories
// younger than the TTL are left alone unless force is set: a crashed or
// restarted process can leave orphans behind, and the TTL keeps a sweep
// racing a just-created workspace from deleting it before the job registers.
// Returns the number of directories removed.
func (m *Manager) Sweep(force bool) int {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		m.log.Warnf("janitor: read %s: %v", m.root, err)
		return 0
	}
	removed := 0
	cutoff := time.Now().Add(-m.ttl)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		jobID := entry.Name()
		if m.isActive(jobID) {
			continue
		}
		if !force {
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
		}
		dir := filepath.Join(m.root, jobID)
		if err := os.RemoveAll(dir); err != nil {
			m.log.Warnf("janitor: remove %s: %v", dir, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		m.log.Infof("janitor: removed %d orphaned workspace(s)", removed)
	}
	return removed
}

// DiskUsage returns the total size in bytes of everything under the root.
func (m *Manager) DiskUsage() int64 {
	var total int64
	_ = filepath.WalkDir(m.root, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
