package render

import (
	"context"

	"github.com/vango-dev/vserve/pkg/assets"
	"github.com/vango-dev/vserve/pkg/manifest"
)

// Isomorphic is the per-request data slot handed to the server bundle.
type Isomorphic struct {
	// Exports is the loaded server bundle.
	Exports Exports

	// BuildManifest is the manifest the bundle was loaded from.
	BuildManifest *manifest.Manifest

	// Assets resolves logical asset names to /build/ URLs.
	Assets assets.Resolver
}

type isomorphicKey struct{}

// WithIsomorphic returns a copy of ctx carrying iso.
func WithIsomorphic(ctx context.Context, iso *Isomorphic) context.Context {
	return context.WithValue(ctx, isomorphicKey{}, iso)
}

// FromContext returns the isomorphic data attached to ctx, or nil.
func FromContext(ctx context.Context) *Isomorphic {
	iso, _ := ctx.Value(isomorphicKey{}).(*Isomorphic)
	return iso
}

// Data returns the isomorphic data as plain maps. Interpreted bundles, which
// cannot see Go types declared outside the standard library, receive this form.
func (iso *Isomorphic) Data() map[string]any {
	if iso == nil {
		return nil
	}
	data := map[string]any{
		"exports": iso.Exports,
	}
	if m := iso.BuildManifest; m != nil {
		assets := make(map[string]string, len(m.Assets))
		for k, v := range m.Assets {
			assets[k] = v
		}
		data["buildManifest"] = map[string]any{
			"hash": m.Hash,
			"server": map[string]any{
				"file": m.Server.File,
				"hash": m.Server.Hash,
				"name": m.Server.Name,
			},
			"assets": assets,
		}
	}
	if iso.Assets != nil && iso.BuildManifest != nil {
		urls := make(map[string]string, len(iso.BuildManifest.Assets))
		for name := range iso.BuildManifest.Assets {
			urls[name] = iso.Assets.Asset(name)
		}
		data["assetURLs"] = urls
	}
	return data
}
