package bundle

import (
	"context"
	"fmt"
	"plugin"

	"github.com/vango-dev/vserve/pkg/manifest"
	"github.com/vango-dev/vserve/pkg/render"
)

// PluginStrategy opens Go plugins.
type PluginStrategy struct{}

// Load implements Strategy.
func (PluginStrategy) Load(_ context.Context, path string, m *manifest.Manifest) (render.Exports, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}

	if sym, err := p.Lookup("New"); err == nil {
		switch fn := sym.(type) {
		case func(*manifest.Manifest) (render.Exports, error):
			return fn(m)
		case *func(*manifest.Manifest) (render.Exports, error):
			return (*fn)(m)
		default:
			return nil, fmt.Errorf("symbol New has type %T, want func(*manifest.Manifest) (render.Exports, error)", sym)
		}
	}

	sym, err := p.Lookup("Exports")
	if err != nil {
		return nil, fmt.Errorf("plugin exports neither New nor Exports")
	}
	switch exports := sym.(type) {
	case *render.Exports:
		if *exports == nil {
			return nil, fmt.Errorf("symbol Exports is nil")
		}
		return *exports, nil
	case render.Exports:
		return exports, nil
	default:
		return nil, fmt.Errorf("symbol Exports has type %T, want render.Exports", sym)
	}
}
