// Package assets resolves logical asset names to their hashed URLs.
//
// The build step records, for every entry point, the content-addressed file it
// produced under the build directory:
//
//	"assets": {
//	  "main.js": "main.4f1c9a0d.js",
//	  "styles.css": "styles.e5f6a7b8.css"
//	}
//
// Render code uses a Resolver to emit links to those files:
//
//	iso := render.FromContext(r.Context())
//	resolver := assets.NewResolver(iso.BuildManifest, assets.BuildPrefix)
//	resolver.Asset("main.js") // "/build/main.4f1c9a0d.js"
package assets

// BuildPrefix is the URL prefix of the immutable build tier.
const BuildPrefix = "/build/"

// Source looks up the hashed file name of a logical asset name.
// *manifest.Manifest implements Source.
type Source interface {
	Asset(name string) (string, bool)
}

// Resolver provides asset path resolution.
// It combines manifest lookup with path prefixing.
type Resolver interface {
	// Asset resolves a source asset path to its full URL path.
	// This includes any configured prefix and fingerprinted filename.
	//
	// Example:
	//   resolver.Asset("main.js") → "/build/main.4f1c9a0d.js"
	Asset(source string) string
}

// manifestResolver wraps a Source to implement Resolver.
type manifestResolver struct {
	source Source
	prefix string
}

// NewResolver creates a Resolver from a Source with a path prefix.
// Names missing from the source resolve to themselves under the prefix.
func NewResolver(s Source, prefix string) Resolver {
	return &manifestResolver{
		source: s,
		prefix: prefix,
	}
}

func (r *manifestResolver) Asset(source string) string {
	if r.source != nil {
		if resolved, ok := r.source.Asset(source); ok {
			return r.prefix + resolved
		}
	}
	return r.prefix + source
}

// passthrough returns assets unchanged.
type passthrough struct {
	prefix string
}

// NewPassthroughResolver creates a resolver that returns paths unchanged.
// Use this for builds that do not fingerprint their output.
func NewPassthroughResolver(prefix string) Resolver {
	return &passthrough{prefix: prefix}
}

func (p *passthrough) Asset(source string) string {
	return p.prefix + source
}
