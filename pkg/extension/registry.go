package extension

import (
	"fmt"
	"sync"
)

// Registry maps extension ids to their implementations.
type Registry struct {
	mu         sync.RWMutex
	extensions map[string]Extension
}

// NewRegistry creates a registry holding exts.
func NewRegistry(exts ...Extension) (*Registry, error) {
	r := &Registry{extensions: make(map[string]Extension)}
	for _, ext := range exts {
		if err := r.Register(ext); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds ext under its name.
func (r *Registry) Register(ext Extension) error {
	name := ext.Name()
	if name == "" {
		return fmt.Errorf("extension: empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.extensions[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.extensions[name] = ext
	return nil
}

// Lookup returns the implementation for id.
func (r *Registry) Lookup(id string) (Extension, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext, ok := r.extensions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoEntryPoint, id)
	}
	return ext, nil
}
