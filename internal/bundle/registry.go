package bundle

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vango-dev/vserve/pkg/manifest"
	"github.com/vango-dev/vserve/pkg/render"
)

// Factory builds the exports of a bundle linked into the binary.
type Factory func(m *manifest.Manifest) (render.Exports, error)

// Strategy loads a bundle file.
type Strategy interface {
	Load(ctx context.Context, path string, m *manifest.Manifest) (render.Exports, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, path string, m *manifest.Manifest) (render.Exports, error)

// Load implements Strategy.
func (f StrategyFunc) Load(ctx context.Context, path string, m *manifest.Manifest) (render.Exports, error) {
	return f(ctx, path, m)
}

// Registry holds named factories and per-extension strategies.
type Registry struct {
	mu         sync.RWMutex
	factories  map[string]Factory
	strategies map[string]Strategy
}

// NewRegistry returns a registry with the plugin (.so) and interpreter (.go)
// strategies installed.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		strategies: map[string]Strategy{
			".so": PluginStrategy{},
			".go": InterpreterStrategy{},
		},
	}
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Handle installs a strategy for a file extension such as ".so".
func (r *Registry) Handle(ext string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[strings.ToLower(ext)] = s
}

// Factory returns the factory registered under name.
func (r *Registry) Factory(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Strategy returns the strategy for the extension of file.
func (r *Registry) Strategy(file string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[strings.ToLower(filepath.Ext(file))]
	return s, ok
}

// Names returns the registered factory names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extensions returns the extensions with a strategy, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.strategies))
	for ext := range r.strategies {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// DefaultRegistry is used by Register and by loaders without a registry.
var DefaultRegistry = NewRegistry()

// Register adds a factory to DefaultRegistry. Bundles linked into the binary
// call it from an init function.
func Register(name string, f Factory) {
	DefaultRegistry.Register(name, f)
}
