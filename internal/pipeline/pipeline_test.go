package pipeline

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vango-dev/vserve/internal/static"
	"github.com/vango-dev/vserve/pkg/manifest"
	"github.com/vango-dev/vserve/pkg/render"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func newTestPipeline(t *testing.T, renderFn render.RenderFunc) (*Pipeline, *int) {
	t.Helper()

	publicDir := t.TempDir()
	writeFile(t, publicDir, "build/app.js", "app")
	writeFile(t, publicDir, "robots.txt", "robots")

	renders := 0
	exports := render.Funcs{
		RenderFunc: func(w http.ResponseWriter, r *http.Request) error {
			renders++
			return renderFn(w, r)
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := render.NewHandoff(exports, &manifest.Manifest{Hash: "abc"}, logger)

	return New(
		Tier(static.NewTier(static.BuildTier(publicDir))),
		Tier(static.NewTier(static.PublicTier(publicDir))),
		Render(h),
	), &renders
}

func renderOK(w http.ResponseWriter, r *http.Request) error {
	_, err := io.WriteString(w, "page:"+r.URL.Path)
	return err
}

func TestPipeline_Stages(t *testing.T) {
	p, _ := newTestPipeline(t, renderOK)
	if diff := cmp.Diff([]string{"build", "public", "render"}, p.Stages()); diff != "" {
		t.Fatalf("Stages() mismatch (-want +got):\n%s", diff)
	}
}

func TestPipeline_Routing(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		target      string
		wantStage   string
		wantOutcome Outcome
		wantStatus  int
		wantBody    string
		wantRender  bool
	}{
		{"build hit", http.MethodGet, "/build/app.js", "build", AssetHit, 200, "app", false},
		{"build miss is terminal", http.MethodGet, "/build/missing.js", "build", AssetNotFound, 404, "404 page not found\n", false},
		{"build rejects post", http.MethodPost, "/build/app.js", "build", AssetRejected, 405, "Method Not Allowed\n", false},
		{"public hit", http.MethodGet, "/robots.txt", "public", AssetHit, 200, "robots", false},
		{"public miss renders", http.MethodGet, "/about", "render", Rendered, 200, "page:/about", true},
		{"post to public file renders", http.MethodPost, "/robots.txt", "render", Rendered, 200, "page:/robots.txt", true},
		{"root renders", http.MethodGet, "/", "render", Rendered, 200, "page:/", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, renders := newTestPipeline(t, renderOK)

			req := httptest.NewRequest(tc.method, "http://example.com"+tc.target, nil)
			ctx, rec := WithRecorder(req.Context())
			rr := httptest.NewRecorder()
			p.ServeHTTP(rr, req.WithContext(ctx))

			if rec.Stage != tc.wantStage || rec.Outcome != tc.wantOutcome {
				t.Fatalf("recorded %s/%v, want %s/%v", rec.Stage, rec.Outcome, tc.wantStage, tc.wantOutcome)
			}
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tc.wantStatus)
			}
			if got := rr.Body.String(); got != tc.wantBody {
				t.Fatalf("body = %q, want %q", got, tc.wantBody)
			}
			if got := *renders > 0; got != tc.wantRender {
				t.Fatalf("render invoked = %v, want %v", got, tc.wantRender)
			}
		})
	}
}

func TestPipeline_RenderFailure(t *testing.T) {
	p, _ := newTestPipeline(t, func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "http://example.com/broken", nil)
	ctx, rec := WithRecorder(req.Context())
	rr := httptest.NewRecorder()
	p.ServeHTTP(rr, req.WithContext(ctx))

	if rec.Outcome != RenderFailed {
		t.Fatalf("outcome = %v, want %v", rec.Outcome, RenderFailed)
	}
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}
}

func TestPipeline_AllStagesDecline(t *testing.T) {
	decline := StageFunc{StageName: "noop", Fn: func(http.ResponseWriter, *http.Request) Outcome { return AssetMiss }}
	p := New(decline, decline)

	req := httptest.NewRequest(http.MethodGet, "http://example.com/x", nil)
	rr := httptest.NewRecorder()
	stage, outcome := p.Serve(rr, req)

	if stage != "" || outcome != AssetMiss {
		t.Fatalf("Serve() = %q, %v, want \"\", %v", stage, outcome, AssetMiss)
	}
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestPipeline_WithoutRecorder(t *testing.T) {
	p, _ := newTestPipeline(t, renderOK)
	rr := httptest.NewRecorder()
	p.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "http://example.com/x", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestOutcome_String(t *testing.T) {
	tests := map[Outcome]string{
		Unmatched:    "unmatched",
		AssetHit:     "asset_hit",
		RenderFailed: "render_failed",
		Outcome(99):  "Outcome(99)",
	}
	for o, want := range tests {
		if got := o.String(); got != want {
			t.Fatalf("String() = %q, want %q", got, want)
		}
	}
}

func TestOutcome_Continues(t *testing.T) {
	for _, o := range []Outcome{Unmatched, AssetMiss} {
		if !o.Continues() {
			t.Fatalf("%v.Continues() = false, want true", o)
		}
	}
	for _, o := range []Outcome{AssetHit, AssetNotFound, AssetRejected, Rendered, RenderFailed} {
		if o.Continues() {
			t.Fatalf("%v.Continues() = true, want false", o)
		}
	}
}
