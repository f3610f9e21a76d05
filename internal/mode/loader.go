package mode

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"parley/internal/logging"
)

// LoadPolicy reads and validates a single mode policy YAML file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", path, err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Registry holds loaded mode policies by id. It always contains the
// built-in default mode. Safe for concurrent use; the watcher updates it
// while sessions read from it.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]*Policy
}

// NewRegistry creates a registry seeded with the built-in default mode.
func NewRegistry() *Registry {
	def := DefaultPolicy()
	return &Registry{policies: map[string]*Policy{def.ID: def}}
}

// LoadDir loads every *.yaml / *.yml policy in dir into a new registry.
// A missing directory yields a registry with only the built-in mode.
// Individual broken files are skipped with a log entry, not fatal.
func LoadDir(dir string) (*Registry, error) {
	reg := NewRegistry()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return reg, nil
		}
		return nil, fmt.Errorf("failed to read modes dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isPolicyFile(entry.Name()) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		p, err := LoadPolicy(path)
		if err != nil {
			logging.Get(logging.CategoryBoot).Warn("Skipping mode file %s: %v", path, err)
			continue
		}
		reg.Put(p)
	}
	return reg, nil
}

func isPolicyFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

// Get returns the policy with the given id.
func (r *Registry) Get(id string) (*Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[id]
	return p, ok
}

// Put adds or replaces a policy. Running sessions keep the policy instance
// they started with; Put only affects future lookups.
func (r *Registry) Put(p *Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[p.ID] = p
}

// List returns all policies sorted by id.
func (r *Registry) List() []*Policy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Policy, 0, len(r.policies))
	for _, p := range r.policies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
