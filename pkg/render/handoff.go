package render

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	verrors "github.com/vango-dev/vserve/internal/errors"
	"github.com/vango-dev/vserve/pkg/assets"
	"github.com/vango-dev/vserve/pkg/manifest"
)

// ErrNoIsomorphic is returned by Render when the request carries no
// isomorphic data.
var ErrNoIsomorphic = errors.New("render: request has no isomorphic data")

// PanicError is returned when a bundle panics while rendering.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("render: panic: %v", e.Value)
}

// Render returns the render middleware. It calls the bundle's Render with the
// request's isomorphic data and converts panics into *PanicError.
func Render() RenderFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		iso := FromContext(r.Context())
		if iso == nil || iso.Exports == nil {
			return ErrNoIsomorphic
		}
		return call(func() error { return iso.Exports.Render(w, r) })
	}
}

// RenderError returns the error middleware paired with next. When next fails
// and nothing has been written yet, the bundle's RenderError produces the
// response with a default status of 500. A minimal plain-text response is
// written when the bundle cannot render one. The error from next is returned
// after the response is complete.
func RenderError(next RenderFunc, logger *slog.Logger) RenderFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) error {
		ww, ok := w.(middleware.WrapResponseWriter)
		if !ok {
			ww = middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		}

		err := next(ww, r)
		if err == nil {
			return nil
		}

		logger.Error("render failed",
			"code", "E140",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		var pe *PanicError
		if errors.As(err, &pe) {
			logger.Debug("render panic stack", "stack", string(pe.Stack))
		}

		if ww.Status() != 0 {
			// The page was partially written; nothing more can be sent.
			return verrors.New("E140").Wrap(err)
		}

		if iso := FromContext(r.Context()); iso != nil && iso.Exports != nil {
			ew := &defaultStatus{ResponseWriter: ww, code: http.StatusInternalServerError}
			rerr := call(func() error { return iso.Exports.RenderError(ew, r, err) })
			if rerr != nil && !errors.Is(rerr, ErrNoErrorRenderer) {
				logger.Error("error page render failed", "path", r.URL.Path, "error", rerr)
			}
			if rerr == nil && ww.Status() != 0 {
				return verrors.New("E140").Wrap(err)
			}
		}

		if ww.Status() == 0 {
			writeFallback(ww, http.StatusInternalServerError)
		}
		return verrors.New("E140").Wrap(err)
	}
}

// call runs fn, converting a panic into *PanicError. http.ErrAbortHandler is
// re-raised so net/http can abort the connection.
func call(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err = &PanicError{Value: rec, Stack: debug.Stack()}
		}
	}()
	return fn()
}

// writeFallback writes a minimal plain-text error response.
func writeFallback(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Del("Content-Length")
	w.WriteHeader(code)
	fmt.Fprintln(w, http.StatusText(code))
}

// Handoff attaches the loaded bundle and manifest to each request and hands
// it to the render and error middlewares.
type Handoff struct {
	iso    *Isomorphic
	render RenderFunc
}

// NewHandoff creates a Handoff for a loaded bundle.
func NewHandoff(exports Exports, m *manifest.Manifest, logger *slog.Logger) *Handoff {
	return &Handoff{
		iso: &Isomorphic{
			Exports:       exports,
			BuildManifest: m,
			Assets:        assets.NewResolver(m, assets.BuildPrefix),
		},
		render: RenderError(Render(), logger),
	}
}

// Isomorphic returns the data attached to every request.
func (h *Handoff) Isomorphic() *Isomorphic {
	return h.iso
}

// Serve renders r. The returned error is the render failure, reported after
// the error page has been written; it is nil when the page rendered.
func (h *Handoff) Serve(w http.ResponseWriter, r *http.Request) error {
	r = r.WithContext(WithIsomorphic(r.Context(), h.iso))
	w = WithoutHeaders(w, "ETag", "X-Powered-By")
	return h.render(middleware.NewWrapResponseWriter(w, r.ProtoMajor), r)
}

// ServeHTTP implements http.Handler.
func (h *Handoff) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = h.Serve(w, r)
}
