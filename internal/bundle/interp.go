package bundle

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/vango-dev/vserve/pkg/manifest"
	"github.com/vango-dev/vserve/pkg/render"
)

// SourcePackage is the package name interpreted bundles must declare.
const SourcePackage = "bundle"

type (
	sourceRender      = func(http.ResponseWriter, *http.Request, map[string]any) error
	sourceRenderError = func(http.ResponseWriter, *http.Request, error, map[string]any)
)

// InterpreterStrategy evaluates Go source bundles.
type InterpreterStrategy struct{}

// Load implements Strategy.
func (InterpreterStrategy) Load(ctx context.Context, path string, _ *manifest.Manifest) (render.Exports, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib: %w", err)
	}

	if _, err := i.EvalWithContext(ctx, string(src)); err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	rv, err := i.Eval(SourcePackage + ".Render")
	if err != nil {
		return nil, fmt.Errorf("function %s.Render not found: %w", SourcePackage, err)
	}
	renderFn, ok := rv.Interface().(sourceRender)
	if !ok {
		return nil, fmt.Errorf("Render has incorrect signature (expected: func(http.ResponseWriter, *http.Request, map[string]any) error)")
	}

	var errorFn sourceRenderError
	if ev, err := i.Eval(SourcePackage + ".RenderError"); err == nil {
		errorFn, ok = ev.Interface().(sourceRenderError)
		if !ok {
			return nil, fmt.Errorf("RenderError has incorrect signature (expected: func(http.ResponseWriter, *http.Request, error, map[string]any))")
		}
	}

	return sourceExports{render: renderFn, renderError: errorFn}, nil
}

// sourceExports adapts interpreted functions to render.Exports. Interpreted
// code sees the isomorphic data as plain maps.
type sourceExports struct {
	render      sourceRender
	renderError sourceRenderError
}

func (s sourceExports) Render(w http.ResponseWriter, r *http.Request) error {
	return s.render(w, r, render.FromContext(r.Context()).Data())
}

func (s sourceExports) RenderError(w http.ResponseWriter, r *http.Request, err error) error {
	if s.renderError == nil {
		return render.ErrNoErrorRenderer
	}
	s.renderError(w, r, err, render.FromContext(r.Context()).Data())
	return nil
}
