package engine

import (
	"os"
	"sync"
)

// Partially written archives are tracked here so an interrupted process
// can remove them on its way out.
var tempFiles = &tempRegistry{}

type tempRegistry struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func (r *tempRegistry) add(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paths == nil {
		r.paths = make(map[string]struct{})
	}
	r.paths[path] = struct{}{}
}

func (r *tempRegistry) remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.paths, path)
}

func (r *tempRegistry) drain() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := make([]string, 0, len(r.paths))
	for p := range r.paths {
		paths = append(paths, p)
	}
	r.paths = nil
	return paths
}

// CleanupTempFiles removes every temporary archive still registered. The
// CLI calls it from its signal handler.
func CleanupTempFiles() {
	for _, p := range tempFiles.drain() {
		_ = os.Remove(p)
	}
}
