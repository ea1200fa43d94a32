package static

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeStaticFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", name, err)
	}
	return path
}

func serve(tier *Tier, method, target string, header http.Header) (*httptest.ResponseRecorder, Result) {
	req := httptest.NewRequest(method, "http://example.com"+target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	return rr, tier.Serve(rr, req)
}

func TestBuildTier_ServesImmutableFiles(t *testing.T) {
	publicDir := t.TempDir()
	writeStaticFile(t, publicDir, "build/app.3f9a.js", "console.log(1)")
	tier := NewTier(BuildTier(publicDir))

	rr, res := serve(tier, http.MethodGet, "/build/app.3f9a.js", nil)
	if res != Hit {
		t.Fatalf("result = %v, want %v", res, Hit)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if got := rr.Body.String(); got != "console.log(1)" {
		t.Fatalf("body = %q, want %q", got, "console.log(1)")
	}
	if got, want := rr.Header().Get("Cache-Control"), "public, max-age=31536000, immutable"; got != want {
		t.Fatalf("Cache-Control = %q, want %q", got, want)
	}
	if got := rr.Header().Get("ETag"); got != "" {
		t.Fatalf("ETag = %q, want empty", got)
	}
	if got := rr.Header().Get("Last-Modified"); got != "" {
		t.Fatalf("Last-Modified = %q, want empty", got)
	}
	if got := rr.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/javascript") {
		t.Fatalf("Content-Type = %q, want text/javascript", got)
	}
}

func TestBuildTier_IgnoresConditionalHeaders(t *testing.T) {
	publicDir := t.TempDir()
	writeStaticFile(t, publicDir, "build/app.js", "ok")
	tier := NewTier(BuildTier(publicDir))

	header := http.Header{
		"If-None-Match":     {`W/"2-0"`, "*"},
		"If-Modified-Since": {time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)},
		"If-Match":          {`"nope"`},
	}
	rr, _ := serve(tier, http.MethodGet, "/build/app.js", header)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if got := rr.Body.String(); got != "ok" {
		t.Fatalf("body = %q, want %q", got, "ok")
	}
}

func TestBuildTier_MissIsTerminal(t *testing.T) {
	publicDir := t.TempDir()
	writeStaticFile(t, publicDir, "build/app.js", "ok")
	writeStaticFile(t, publicDir, "build/.secret", "nope")
	writeStaticFile(t, publicDir, "build/chunks/a.js", "a")
	tier := NewTier(BuildTier(publicDir))

	tests := []string{
		"/build/missing.js",
		"/build/.secret",
		"/build/chunks",
		"/build/",
		"/build",
		"/build/../build-manifest.json",
		"/build/app.js/",
		"/build/chunks/a.js/",
	}
	for _, target := range tests {
		rr, res := serve(tier, http.MethodGet, target, nil)
		if res != NotFound {
			t.Fatalf("GET %s result = %v, want %v", target, res, NotFound)
		}
		if rr.Code != http.StatusNotFound {
			t.Fatalf("GET %s status = %d, want %d", target, rr.Code, http.StatusNotFound)
		}
	}
}

func TestBuildTier_RejectsOtherMethods(t *testing.T) {
	publicDir := t.TempDir()
	writeStaticFile(t, publicDir, "build/app.js", "ok")
	tier := NewTier(BuildTier(publicDir))

	rr, res := serve(tier, http.MethodPost, "/build/app.js", nil)
	if res != MethodNotAllowed {
		t.Fatalf("result = %v, want %v", res, MethodNotAllowed)
	}
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
	if got := rr.Header().Get("Allow"); got != "GET, HEAD" {
		t.Fatalf("Allow = %q, want %q", got, "GET, HEAD")
	}

	rr, res = serve(tier, http.MethodHead, "/build/app.js", nil)
	if res != Hit || rr.Code != http.StatusOK {
		t.Fatalf("HEAD result = %v status = %d, want hit 200", res, rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("HEAD body length = %d, want 0", rr.Body.Len())
	}
}

func TestBuildTier_UnmatchedOutsidePrefix(t *testing.T) {
	tier := NewTier(BuildTier(t.TempDir()))

	for _, target := range []string{"/", "/robots.txt", "/buildx/app.js", "/builds"} {
		rr, res := serve(tier, http.MethodGet, target, nil)
		if res != Unmatched {
			t.Fatalf("GET %s result = %v, want %v", target, res, Unmatched)
		}
		if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
			t.Fatalf("GET %s wrote a response", target)
		}
	}
}

func TestPublicTier_ServesWithValidators(t *testing.T) {
	publicDir := t.TempDir()
	path := writeStaticFile(t, publicDir, "robots.txt", "User-agent: *")
	tier := NewTier(PublicTier(publicDir))

	rr, res := serve(tier, http.MethodGet, "/robots.txt", nil)
	if res != Hit {
		t.Fatalf("result = %v, want %v", res, Hit)
	}
	if got, want := rr.Header().Get("Cache-Control"), "public, max-age=0"; got != want {
		t.Fatalf("Cache-Control = %q, want %q", got, want)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	etag := rr.Header().Get("ETag")
	if want := weakETag(info.Size(), info.ModTime()); etag != want {
		t.Fatalf("ETag = %q, want %q", etag, want)
	}
	if !strings.HasPrefix(etag, `W/"`) {
		t.Fatalf("ETag = %q, want weak validator", etag)
	}
	if got, want := rr.Header().Get("Last-Modified"), info.ModTime().UTC().Format(http.TimeFormat); got != want {
		t.Fatalf("Last-Modified = %q, want %q", got, want)
	}

	rr, _ = serve(tier, http.MethodGet, "/robots.txt", http.Header{"If-None-Match": {etag}})
	if rr.Code != http.StatusNotModified {
		t.Fatalf("revalidate status = %d, want %d", rr.Code, http.StatusNotModified)
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("304 body length = %d, want 0", rr.Body.Len())
	}

	since := info.ModTime().Add(time.Hour).UTC().Format(http.TimeFormat)
	rr, _ = serve(tier, http.MethodGet, "/robots.txt", http.Header{"If-Modified-Since": {since}})
	if rr.Code != http.StatusNotModified {
		t.Fatalf("If-Modified-Since status = %d, want %d", rr.Code, http.StatusNotModified)
	}
}

func TestPublicTier_FallsThrough(t *testing.T) {
	publicDir := t.TempDir()
	writeStaticFile(t, publicDir, "robots.txt", "ok")
	writeStaticFile(t, publicDir, ".env", "SECRET=1")
	writeStaticFile(t, publicDir, "docs/index.html", "<h1>docs</h1>")
	tier := NewTier(PublicTier(publicDir))

	tests := []struct {
		method string
		target string
	}{
		{http.MethodGet, "/missing"},
		{http.MethodGet, "/"},
		{http.MethodGet, "/docs"},
		{http.MethodGet, "/docs/"},
		{http.MethodGet, "/.env"},
		{http.MethodGet, "/../etc/passwd"},
		{http.MethodGet, "/robots.txt/"},
		{http.MethodHead, "/docs/index.html/"},
		{http.MethodPost, "/robots.txt"},
		{http.MethodDelete, "/robots.txt"},
	}
	for _, tc := range tests {
		rr, res := serve(tier, tc.method, tc.target, nil)
		if res != Miss {
			t.Fatalf("%s %s result = %v, want %v", tc.method, tc.target, res, Miss)
		}
		if rr.Body.Len() != 0 || len(rr.Header()) != 0 {
			t.Fatalf("%s %s wrote to the response on a miss", tc.method, tc.target)
		}
	}
}

func TestTier_Listing(t *testing.T) {
	publicDir := t.TempDir()
	writeStaticFile(t, publicDir, "files/a.txt", "a")
	cfg := PublicTier(publicDir)
	cfg.Listing = true
	tier := NewTier(cfg)

	rr, res := serve(tier, http.MethodGet, "/files/", nil)
	if res != Hit {
		t.Fatalf("result = %v, want %v", res, Hit)
	}
	if !strings.Contains(rr.Body.String(), "a.txt") {
		t.Fatalf("listing = %q, want it to mention a.txt", rr.Body.String())
	}
}

func TestNewTier_CustomPolicy(t *testing.T) {
	publicDir := t.TempDir()
	writeStaticFile(t, publicDir, "assets/logo.svg", "<svg/>")

	tier := NewTier(TierConfig{
		Prefix: "/assets",
		Dir:    filepath.Join(publicDir, "assets"),
		MaxAge: time.Hour,
	})
	if got := tier.Config().Prefix; got != "/assets/" {
		t.Fatalf("Prefix = %q, want %q", got, "/assets/")
	}

	rr, res := serve(tier, http.MethodGet, "/assets/logo.svg", nil)
	if res != Hit {
		t.Fatalf("result = %v, want %v", res, Hit)
	}
	if got, want := rr.Header().Get("Cache-Control"), "public, max-age=3600"; got != want {
		t.Fatalf("Cache-Control = %q, want %q", got, want)
	}
}

func TestRelPath_RejectsUnsafePaths(t *testing.T) {
	tier := NewTier(BuildTier("/srv/public"))

	tests := []string{
		"/build/../secret",
		"/build/a/../../secret",
		"/build/./app.js",
		"/build//etc/passwd",
		"/build/a//b.js",
		"/build/a\\b.js",
		"/build/a\x00.js",
		"/build/.git/config",
		"/build/dir/.hidden",
	}
	for _, p := range tests {
		if rel, ok := tier.relPath(p); ok {
			t.Fatalf("relPath(%q) = %q, want rejection", p, rel)
		}
	}

	rel, ok := tier.relPath("/build/chunks/a.js")
	if !ok || rel != "chunks/a.js" {
		t.Fatalf("relPath = %q, %v, want %q, true", rel, ok, "chunks/a.js")
	}
}

func TestResult_Terminal(t *testing.T) {
	tests := []struct {
		res  Result
		want bool
	}{
		{Unmatched, false},
		{Miss, false},
		{Hit, true},
		{NotFound, true},
		{MethodNotAllowed, true},
	}
	for _, tc := range tests {
		if got := tc.res.Terminal(); got != tc.want {
			t.Fatalf("%v.Terminal() = %v, want %v", tc.res, got, tc.want)
		}
	}
}
