package bundle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"runtime/debug"

	"github.com/vango-dev/vserve/internal/errors"
	"github.com/vango-dev/vserve/pkg/manifest"
	"github.com/vango-dev/vserve/pkg/render"
)

// LoadError reports a bundle that could not be loaded.
type LoadError struct {
	// Path is the bundle path, relative to the working directory when possible.
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return "bundle: load " + e.Path + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader resolves the server bundle of a manifest.
type Loader struct {
	// PublicDir holds the build directory.
	PublicDir string

	// Registry resolves named bundles and file strategies. Nil means
	// DefaultRegistry.
	Registry *Registry

	// Stdout receives the hash lines. Nil means os.Stdout.
	Stdout io.Writer

	// Logger receives debug records. Nil means slog.Default().
	Logger *slog.Logger
}

// Path returns the bundle path for m.
func (l *Loader) Path(m *manifest.Manifest) string {
	return filepath.Join(l.PublicDir, manifest.BuildDir, filepath.FromSlash(m.Server.File))
}

// Load resolves and initializes the bundle named by m, then writes the build
// and server hashes. Failures are coded E110 and wrap a *LoadError.
func (l *Loader) Load(ctx context.Context, m *manifest.Manifest) (render.Exports, error) {
	reg := l.Registry
	if reg == nil {
		reg = DefaultRegistry
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "bundle")

	path := l.Path(m)
	rel := relToCwd(path)

	exports, strategy, err := l.resolve(ctx, reg, path, m)
	if err == nil && isNil(exports) {
		err = fmt.Errorf("bundle returned no exports")
	}
	if err != nil {
		return nil, errors.New("E110").
			WithDetail("This error happened when loading the server file at " + rel).
			Wrap(&LoadError{Path: rel, Err: err})
	}
	logger.Debug("bundle loaded", "path", rel, "strategy", strategy)

	stdout := l.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	fmt.Fprintf(stdout, "Build hash: %s\n", m.Hash)
	fmt.Fprintf(stdout, "Server build hash: %s\n", m.Server.Hash)

	return exports, nil
}

func (l *Loader) resolve(ctx context.Context, reg *Registry, path string, m *manifest.Manifest) (exports render.Exports, strategy string, err error) {
	defer func() {
		if r := recover(); r != nil {
			exports = nil
			err = fmt.Errorf("panic during initialization: %v\n%s", r, debug.Stack())
		}
	}()

	key := m.Server.Name
	if key == "" {
		key = m.Server.File
	}
	if f, ok := reg.Factory(key); ok {
		exports, err = f(m)
		return exports, "registry", err
	}

	s, ok := reg.Strategy(path)
	if !ok {
		return nil, "", fmt.Errorf("no loader for %q files (supported: %v)", filepath.Ext(path), reg.Extensions())
	}
	if _, err := os.Stat(path); err != nil {
		return nil, "", err
	}
	exports, err = s.Load(ctx, path, m)
	return exports, filepath.Ext(path), err
}

// isNil reports whether exports is nil or wraps a nil pointer, map or func.
func isNil(exports render.Exports) bool {
	if exports == nil {
		return true
	}
	switch v := reflect.ValueOf(exports); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Slice, reflect.Chan:
		return v.IsNil()
	}
	return false
}

func relToCwd(path string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(cwd, abs)
	if err != nil {
		return path
	}
	return rel
}
