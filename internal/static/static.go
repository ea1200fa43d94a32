package static

import (
	"fmt"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Result is the outcome of a tier for one request.
type Result int

const (
	// Unmatched means the request path is outside the tier's prefix.
	Unmatched Result = iota
	// Hit means a file was served.
	Hit
	// Miss means no file matched and the request may fall through.
	Miss
	// NotFound means no file matched and a terminal 404 was written.
	NotFound
	// MethodNotAllowed means a terminal 405 was written.
	MethodNotAllowed
)

func (r Result) String() string {
	switch r {
	case Unmatched:
		return "unmatched"
	case Hit:
		return "hit"
	case Miss:
		return "miss"
	case NotFound:
		return "not_found"
	case MethodNotAllowed:
		return "method_not_allowed"
	default:
		return "Result(" + strconv.Itoa(int(r)) + ")"
	}
}

// Terminal reports whether a response was written.
func (r Result) Terminal() bool {
	return r == Hit || r == NotFound || r == MethodNotAllowed
}

// OneYear is the max-age of the build tier.
const OneYear = 365 * 24 * time.Hour

// TierConfig is the caching and lookup policy of a tier.
type TierConfig struct {
	// Name labels the tier in logs and metrics.
	Name string

	// Prefix is the URL prefix served by the tier. It always ends with "/".
	Prefix string

	// Dir is the directory files are served from.
	Dir string

	// MaxAge is the Cache-Control max-age.
	MaxAge time.Duration

	// Immutable adds the immutable Cache-Control directive.
	Immutable bool

	// ETag sends a weak entity tag derived from size and modification time.
	ETag bool

	// LastModified sends Last-Modified and honours If-Modified-Since.
	LastModified bool

	// Listing enables directory listings.
	Listing bool

	// Fallthrough passes misses and non-GET/HEAD requests to the next stage
	// instead of answering them.
	Fallthrough bool
}

// BuildTier returns the policy for content-addressed build output.
func BuildTier(publicDir string) TierConfig {
	return TierConfig{
		Name:      "build",
		Prefix:    "/build/",
		Dir:       filepath.Join(publicDir, "build"),
		MaxAge:    OneYear,
		Immutable: true,
	}
}

// PublicTier returns the policy for the rest of the public directory.
func PublicTier(publicDir string) TierConfig {
	return TierConfig{
		Name:         "public",
		Prefix:       "/",
		Dir:          publicDir,
		ETag:         true,
		LastModified: true,
		Fallthrough:  true,
	}
}

// Tier serves files under one prefix with one caching policy.
type Tier struct {
	config TierConfig
	fs     http.FileSystem
	cache  string
}

// NewTier creates a tier.
func NewTier(cfg TierConfig) *Tier {
	if !strings.HasSuffix(cfg.Prefix, "/") {
		cfg.Prefix += "/"
	}
	cache := "public, max-age=" + strconv.FormatInt(int64(cfg.MaxAge/time.Second), 10)
	if cfg.Immutable {
		cache += ", immutable"
	}
	return &Tier{
		config: cfg,
		fs:     http.Dir(cfg.Dir),
		cache:  cache,
	}
}

// Config returns the tier's policy.
func (t *Tier) Config() TierConfig {
	return t.config
}

// Match reports whether urlPath is inside the tier's prefix. The bare prefix
// without its trailing slash matches too ("/build" for "/build/").
func (t *Tier) Match(urlPath string) bool {
	return strings.HasPrefix(urlPath, t.config.Prefix) ||
		urlPath == strings.TrimSuffix(t.config.Prefix, "/")
}

// Serve serves r from the tier and reports what happened.
func (t *Tier) Serve(w http.ResponseWriter, r *http.Request) Result {
	if !t.Match(r.URL.Path) {
		return Unmatched
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		if t.config.Fallthrough {
			return Miss
		}
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return MethodNotAllowed
	}

	rel, ok := t.relPath(r.URL.Path)
	if !ok {
		return t.miss(w, r)
	}

	f, err := t.fs.Open(rel)
	if err != nil {
		return t.miss(w, r)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return t.miss(w, r)
	}
	if info.IsDir() {
		if t.config.Listing {
			t.serveListing(w, r, rel)
			return Hit
		}
		return t.miss(w, r)
	}
	// A trailing slash names a directory, never a file.
	if strings.HasSuffix(r.URL.Path, "/") {
		return t.miss(w, r)
	}

	h := w.Header()
	h.Set("Cache-Control", t.cache)

	var modtime time.Time
	if t.config.LastModified {
		modtime = info.ModTime()
	}
	if t.config.ETag {
		h.Set("ETag", weakETag(info.Size(), info.ModTime()))
	} else {
		h.Del("ETag")
		r = withoutConditionals(r)
	}

	http.ServeContent(w, r, info.Name(), modtime, f)
	return Hit
}

func (t *Tier) miss(w http.ResponseWriter, r *http.Request) Result {
	if t.config.Fallthrough {
		return Miss
	}
	http.NotFound(w, r)
	return NotFound
}

func (t *Tier) serveListing(w http.ResponseWriter, r *http.Request, rel string) {
	r2 := new(http.Request)
	*r2 = *r
	u := *r.URL
	u.Path = "/" + strings.TrimSuffix(rel, "/") + "/"
	if rel == "." {
		u.Path = "/"
	}
	r2.URL = &u
	http.FileServer(t.fs).ServeHTTP(w, r2)
}

// relPath returns a sanitized relative path for a request. It rejects
// traversal, dotfiles and absolute-path tricks so serving cannot escape the
// tier's directory. The tier root itself maps to ".".
func (t *Tier) relPath(urlPath string) (string, bool) {
	rel := strings.TrimPrefix(urlPath, t.config.Prefix)
	if urlPath == strings.TrimSuffix(t.config.Prefix, "/") {
		rel = ""
	}
	if rel == "" {
		return ".", true
	}

	// Reject NUL early (can appear via %00).
	if strings.IndexByte(rel, 0) != -1 {
		return "", false
	}

	// Reject platform-dependent separators.
	if strings.Contains(rel, "\\") {
		return "", false
	}

	// After prefix stripping, a leading "/" indicates an absolute-path attempt
	// (e.g. "/build//etc/passwd" => "/etc/passwd").
	if strings.HasPrefix(rel, "/") {
		return "", false
	}

	// Reject dot-segments and dotfiles before cleaning.
	for _, seg := range strings.Split(strings.TrimSuffix(rel, "/"), "/") {
		if seg == "" || strings.HasPrefix(seg, ".") {
			return "", false
		}
	}

	clean := path.Clean(rel)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || strings.HasPrefix(clean, "/") {
		return "", false
	}

	osPath := filepath.FromSlash(clean)
	if filepath.IsAbs(osPath) || filepath.VolumeName(osPath) != "" {
		return "", false
	}

	return clean, true
}

// weakETag builds a weak validator from size and modification time.
func weakETag(size int64, modtime time.Time) string {
	return fmt.Sprintf(`W/"%x-%x"`, size, modtime.UnixMilli())
}

// withoutConditionals returns r without conditional request headers, so a
// tier that sends no validators never answers 304 or 412.
func withoutConditionals(r *http.Request) *http.Request {
	h := r.Header
	if h.Get("If-Match") == "" && h.Get("If-None-Match") == "" &&
		h.Get("If-Modified-Since") == "" && h.Get("If-Unmodified-Since") == "" &&
		h.Get("If-Range") == "" {
		return r
	}
	r2 := new(http.Request)
	*r2 = *r
	r2.Header = h.Clone()
	for _, k := range []string{"If-Match", "If-None-Match", "If-Modified-Since", "If-Unmodified-Since", "If-Range"} {
		r2.Header.Del(k)
	}
	return r2
}
