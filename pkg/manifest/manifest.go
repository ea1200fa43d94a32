// Package manifest reads the build manifest written by the build step.
//
// The manifest lives at the root of the public directory and describes the
// content-addressed build output and its companion server bundle:
//
//	{
//	  "hash": "4f1c9a0d",
//	  "server": {
//	    "file": "server.7b2e11aa.so",
//	    "hash": "7b2e11aa"
//	  },
//	  "assets": {
//	    "main.js": "main.4f1c9a0d.js"
//	  }
//	}
//
// JSON is the default format. YAML manifests (build-manifest.yaml or .yml) are
// accepted for build tools that emit YAML.
package manifest

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/vserve/internal/errors"
)

// BaseName is the manifest file name without extension.
const BaseName = "build-manifest"

// BuildDir is the directory under the public root holding hashed build output.
const BuildDir = "build"

// Candidates lists the manifest file names tried by Read, in order.
var Candidates = []string{
	BaseName + ".json",
	BaseName + ".yaml",
	BaseName + ".yml",
}

var (
	// ErrNotFound is matched by errors returned when no manifest exists.
	ErrNotFound = stderrors.New("build manifest not found")

	// ErrMalformed is matched by errors returned when a manifest cannot be decoded
	// or misses required fields.
	ErrMalformed = stderrors.New("build manifest malformed")
)

// Manifest describes a build output. It is immutable once read.
type Manifest struct {
	// Hash is the content hash of the whole build.
	Hash string `json:"hash" yaml:"hash"`

	// Server describes the compiled server bundle.
	Server Server `json:"server" yaml:"server"`

	// Assets maps logical asset names to hashed file names relative to the
	// build directory.
	Assets map[string]string `json:"assets,omitempty" yaml:"assets,omitempty"`

	// path is the file the manifest was read from.
	path string
}

// Server describes the server bundle entry of a manifest.
type Server struct {
	// File is the bundle path relative to the build directory.
	File string `json:"file" yaml:"file"`

	// Hash is the content hash of the bundle.
	Hash string `json:"hash" yaml:"hash"`

	// Name optionally names the bundle for registry lookup.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Path returns the file the manifest was read from.
func (m *Manifest) Path() string {
	return m.path
}

// Asset returns the hashed file name for a logical asset name.
func (m *Manifest) Asset(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	file, ok := m.Assets[name]
	return file, ok
}

// Read locates and reads the build manifest in publicDir.
func Read(publicDir string) (*Manifest, error) {
	for _, name := range Candidates {
		p := filepath.Join(publicDir, name)
		m, err := ReadFile(p)
		if err == nil {
			return m, nil
		}
		if !stderrors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	return nil, errors.New("E100").
		WithDetail(fmt.Sprintf("No %s found in %s", Candidates[0], publicDir)).
		WithSuggestion("Run the build step before starting the server").
		Wrap(ErrNotFound)
}

// ReadFile reads a manifest from an explicit path. The format is chosen by the
// file extension; anything other than .yaml or .yml is decoded as JSON.
func ReadFile(p string) (*Manifest, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.New("E100").
				WithDetail("No build manifest at " + p).
				WithSuggestion("Run the build step before starting the server").
				Wrap(fmt.Errorf("%w: %w", ErrNotFound, err))
		}
		return nil, errors.New("E101").Wrap(fmt.Errorf("%w: %w", ErrMalformed, err))
	}

	m, err := Parse(data, filepath.Ext(p))
	if err != nil {
		return nil, errors.New("E101").
			WithDetail("Failed to parse " + p).
			WithSuggestion("Rebuild the application to regenerate the manifest").
			Wrap(err)
	}
	m.path = p
	return m, nil
}

// Parse decodes and validates manifest data. ext selects the format.
func Parse(data []byte, ext string) (*Manifest, error) {
	var m Manifest

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	default:
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	switch {
	case m.Hash == "":
		return fmt.Errorf("%w: missing hash", ErrMalformed)
	case m.Server.File == "":
		return fmt.Errorf("%w: missing server.file", ErrMalformed)
	case m.Server.Hash == "":
		return fmt.Errorf("%w: missing server.hash", ErrMalformed)
	}

	if !isBuildRelative(m.Server.File) {
		return fmt.Errorf("%w: server.file %q escapes the build directory", ErrMalformed, m.Server.File)
	}
	for name, file := range m.Assets {
		if !isBuildRelative(file) {
			return fmt.Errorf("%w: asset %q file %q escapes the build directory", ErrMalformed, name, file)
		}
	}
	return nil
}

// isBuildRelative reports whether p is a clean relative slash path that stays
// inside the build directory.
func isBuildRelative(p string) bool {
	if p == "" || strings.ContainsAny(p, "\\\x00") || strings.HasPrefix(p, "/") {
		return false
	}
	clean := path.Clean(p)
	return clean != "." && clean != ".." && !strings.HasPrefix(clean, "../")
}
