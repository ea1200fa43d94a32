package render

import (
	"errors"
	"net/http"
)

// ErrNoErrorRenderer is returned by bundles that do not render error pages.
var ErrNoErrorRenderer = errors.New("render: bundle has no error renderer")

// Exports is the capability set loaded from a server bundle.
type Exports interface {
	// Render writes a server-rendered page for r.
	Render(w http.ResponseWriter, r *http.Request) error

	// RenderError writes a fallback page for a failed render. It returns an
	// error when it cannot render one; the caller then writes a minimal page.
	RenderError(w http.ResponseWriter, r *http.Request, err error) error
}

// RenderFunc renders a page.
type RenderFunc func(w http.ResponseWriter, r *http.Request) error

// RenderErrorFunc renders an error page.
type RenderErrorFunc func(w http.ResponseWriter, r *http.Request, err error) error

// Funcs adapts plain functions to Exports. A nil ErrorFunc makes RenderError
// return ErrNoErrorRenderer.
type Funcs struct {
	RenderFunc RenderFunc
	ErrorFunc  RenderErrorFunc
}

// Render implements Exports.
func (f Funcs) Render(w http.ResponseWriter, r *http.Request) error {
	if f.RenderFunc == nil {
		return errors.New("render: bundle has no render function")
	}
	return f.RenderFunc(w, r)
}

// RenderError implements Exports.
func (f Funcs) RenderError(w http.ResponseWriter, r *http.Request, err error) error {
	if f.ErrorFunc == nil {
		return ErrNoErrorRenderer
	}
	return f.ErrorFunc(w, r, err)
}
