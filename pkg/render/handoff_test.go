package render

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	verrors "github.com/vango-dev/vserve/internal/errors"
	"github.com/vango-dev/vserve/pkg/manifest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		Hash:   "abc12345",
		Server: manifest.Server{File: "server.so", Hash: "def67890"},
		Assets: map[string]string{"main.js": "main.abc12345.js"},
	}
}

func TestHandoff_AttachesIsomorphicData(t *testing.T) {
	m := testManifest()
	var seen *Isomorphic
	var exports Funcs
	exports.RenderFunc = func(w http.ResponseWriter, r *http.Request) error {
		seen = FromContext(r.Context())
		w.Header().Set("ETag", `"should-go"`)
		w.Header().Set("X-Powered-By", "bundle")
		io.WriteString(w, "<html>page</html>")
		return nil
	}

	h := NewHandoff(exports, m, quietLogger())
	rr := httptest.NewRecorder()
	err := h.Serve(rr, httptest.NewRequest(http.MethodGet, "/about", nil))
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	if seen == nil {
		t.Fatal("render saw no isomorphic data")
	}
	if seen.BuildManifest != m {
		t.Error("isomorphic BuildManifest is not the loaded manifest")
	}
	if seen.Exports == nil {
		t.Error("isomorphic Exports is nil")
	}
	if rr.Code != http.StatusOK || rr.Body.String() != "<html>page</html>" {
		t.Errorf("response = %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("ETag") != "" {
		t.Errorf("ETag = %q, want none on rendered pages", rr.Header().Get("ETag"))
	}
	if rr.Header().Get("X-Powered-By") != "" {
		t.Errorf("X-Powered-By = %q, want none", rr.Header().Get("X-Powered-By"))
	}
}

func TestHandoff_ErrorRendererDefaultsTo500(t *testing.T) {
	boom := errors.New("boom")
	var got error
	exports := Funcs{
		RenderFunc: func(w http.ResponseWriter, r *http.Request) error { return boom },
		ErrorFunc: func(w http.ResponseWriter, r *http.Request, err error) error {
			got = err
			io.WriteString(w, "custom error page")
			return nil
		},
	}

	rr := httptest.NewRecorder()
	err := NewHandoff(exports, testManifest(), quietLogger()).
		Serve(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if !errors.Is(err, boom) {
		t.Errorf("Serve() error = %v, want boom", err)
	}
	if !verrors.HasCode(err, "E140") {
		t.Errorf("Serve() error = %v, want code E140", err)
	}
	if got != boom {
		t.Errorf("RenderError received %v, want boom", got)
	}
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	if rr.Body.String() != "custom error page" {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestHandoff_ErrorRendererChoosesStatus(t *testing.T) {
	exports := Funcs{
		RenderFunc: func(w http.ResponseWriter, r *http.Request) error { return errors.New("missing") },
		ErrorFunc: func(w http.ResponseWriter, r *http.Request, err error) error {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, "not here")
			return nil
		},
	}

	rr := httptest.NewRecorder()
	NewHandoff(exports, testManifest(), quietLogger()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestHandoff_FallbackPage(t *testing.T) {
	tests := []struct {
		name    string
		exports Funcs
	}{
		{
			name: "no error renderer",
			exports: Funcs{
				RenderFunc: func(w http.ResponseWriter, r *http.Request) error { return errors.New("boom") },
			},
		},
		{
			name: "render panics",
			exports: Funcs{
				RenderFunc: func(w http.ResponseWriter, r *http.Request) error { panic("kaboom") },
			},
		},
		{
			name: "error renderer fails",
			exports: Funcs{
				RenderFunc: func(w http.ResponseWriter, r *http.Request) error { return errors.New("boom") },
				ErrorFunc: func(w http.ResponseWriter, r *http.Request, err error) error {
					return errors.New("error page broken")
				},
			},
		},
		{
			name: "error renderer panics",
			exports: Funcs{
				RenderFunc: func(w http.ResponseWriter, r *http.Request) error { return errors.New("boom") },
				ErrorFunc: func(w http.ResponseWriter, r *http.Request, err error) error {
					panic("again")
				},
			},
		},
		{
			name: "error renderer writes nothing",
			exports: Funcs{
				RenderFunc: func(w http.ResponseWriter, r *http.Request) error { return errors.New("boom") },
				ErrorFunc: func(w http.ResponseWriter, r *http.Request, err error) error {
					return nil
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			err := NewHandoff(tt.exports, testManifest(), quietLogger()).
				Serve(rr, httptest.NewRequest(http.MethodGet, "/", nil))

			if err == nil {
				t.Fatal("Serve() error = nil, want render failure")
			}
			if rr.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), "Internal Server Error") {
				t.Errorf("body = %q, want fallback page", rr.Body.String())
			}
			if rr.Header().Get("Cache-Control") != "no-store" {
				t.Errorf("Cache-Control = %q, want no-store", rr.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestHandoff_PanicIsReported(t *testing.T) {
	exports := Funcs{
		RenderFunc: func(w http.ResponseWriter, r *http.Request) error { panic("kaboom") },
	}

	err := NewHandoff(exports, testManifest(), quietLogger()).
		Serve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("Serve() error = %v, want *PanicError", err)
	}
	if pe.Value != "kaboom" || len(pe.Stack) == 0 {
		t.Errorf("PanicError = %v, stack %d bytes", pe.Value, len(pe.Stack))
	}
}

func TestHandoff_PartialWriteIsNotReplaced(t *testing.T) {
	exports := Funcs{
		RenderFunc: func(w http.ResponseWriter, r *http.Request) error {
			io.WriteString(w, "<html>half")
			return errors.New("stream broke")
		},
		ErrorFunc: func(w http.ResponseWriter, r *http.Request, err error) error {
			t.Error("RenderError called after the response was written")
			return nil
		},
	}

	rr := httptest.NewRecorder()
	err := NewHandoff(exports, testManifest(), quietLogger()).
		Serve(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if err == nil {
		t.Fatal("Serve() error = nil")
	}
	if rr.Code != http.StatusOK || rr.Body.String() != "<html>half" {
		t.Errorf("response = %d %q, want untouched partial page", rr.Code, rr.Body.String())
	}
}

func TestHandoff_FailureDoesNotLeakIntoNextRequest(t *testing.T) {
	fail := true
	exports := Funcs{
		RenderFunc: func(w http.ResponseWriter, r *http.Request) error {
			if fail {
				fail = false
				return errors.New("first")
			}
			io.WriteString(w, "ok")
			return nil
		},
	}
	h := NewHandoff(exports, testManifest(), quietLogger())

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))

	if first.Code != http.StatusInternalServerError {
		t.Errorf("first status = %d, want 500", first.Code)
	}
	if second.Code != http.StatusOK || second.Body.String() != "ok" {
		t.Errorf("second response = %d %q", second.Code, second.Body.String())
	}
}

func TestRender_WithoutIsomorphicData(t *testing.T) {
	err := Render()(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !errors.Is(err, ErrNoIsomorphic) {
		t.Errorf("Render() error = %v, want ErrNoIsomorphic", err)
	}
}

func TestRenderError_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	mw := RenderError(func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("boom")
	}, logger)

	mw(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/broken", nil))

	out := buf.String()
	if !strings.Contains(out, "render failed") || !strings.Contains(out, "path=/broken") || !strings.Contains(out, "code=E140") {
		t.Errorf("log = %q", out)
	}
}

func TestIsomorphicData(t *testing.T) {
	iso := &Isomorphic{BuildManifest: testManifest()}
	data := iso.Data()

	bm, ok := data["buildManifest"].(map[string]any)
	if !ok {
		t.Fatalf("buildManifest = %T", data["buildManifest"])
	}
	if bm["hash"] != "abc12345" {
		t.Errorf("hash = %v", bm["hash"])
	}
	server := bm["server"].(map[string]any)
	if server["file"] != "server.so" || server["hash"] != "def67890" {
		t.Errorf("server = %v", server)
	}
	if bm["assets"].(map[string]string)["main.js"] != "main.abc12345.js" {
		t.Errorf("assets = %v", bm["assets"])
	}

	if _, ok := data["assetURLs"]; ok {
		t.Error("assetURLs present without a resolver")
	}

	h := NewHandoff(Funcs{}, testManifest(), nil)
	urls, ok := h.Isomorphic().Data()["assetURLs"].(map[string]string)
	if !ok {
		t.Fatalf("assetURLs = %T", h.Isomorphic().Data()["assetURLs"])
	}
	if got, want := urls["main.js"], "/build/main.abc12345.js"; got != want {
		t.Errorf("assetURLs[main.js] = %q, want %q", got, want)
	}
	if got, want := h.Isomorphic().Assets.Asset("missing.css"), "/build/missing.css"; got != want {
		t.Errorf("Asset(missing.css) = %q, want %q", got, want)
	}

	var nilIso *Isomorphic
	if nilIso.Data() != nil {
		t.Error("nil Isomorphic Data() should be nil")
	}
}

func TestWithoutHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	w := WithoutHeaders(rr, "Server", "X-Powered-By")
	w.Header().Set("Server", "x")
	w.Header().Set("X-Powered-By", "y")
	w.Header().Set("Content-Type", "text/plain")
	io.WriteString(w, "body")

	if rr.Header().Get("Server") != "" || rr.Header().Get("X-Powered-By") != "" {
		t.Errorf("headers not stripped: %v", rr.Header())
	}
	if rr.Header().Get("Content-Type") != "text/plain" {
		t.Errorf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
	if rr.Body.String() != "body" {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestWithoutHeaders_Capabilities(t *testing.T) {
	rr := httptest.NewRecorder()
	w := WithoutHeaders(rr, "ETag")

	if _, ok := w.(http.Hijacker); ok {
		t.Error("filtered writer claims http.Hijacker")
	}

	rc := http.NewResponseController(w)
	if _, _, err := rc.Hijack(); !errors.Is(err, http.ErrNotSupported) {
		t.Errorf("Hijack() error = %v, want http.ErrNotSupported", err)
	}
	if err := rc.Flush(); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
	if !rr.Flushed {
		t.Error("Flush did not reach the underlying writer")
	}
}
