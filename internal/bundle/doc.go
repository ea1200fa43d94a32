// Package bundle loads the server bundle named by the build manifest.
//
// A bundle is resolved through one of three strategies, tried in order:
//
//  1. A factory registered with Register, keyed by the manifest's server name,
//     or by its server file when no name is set. Registered bundles are linked
//     into the binary, so no file needs to exist.
//  2. A Go plugin (.so) exporting either
//     New func(*manifest.Manifest) (render.Exports, error) or
//     Exports render.Exports.
//  3. Go source (.go) evaluated by an interpreter with access to the standard
//     library. The source declares package bundle and
//
//	func Render(w http.ResponseWriter, r *http.Request, data map[string]any) error
//
//     and optionally
//
//	func RenderError(w http.ResponseWriter, r *http.Request, err error, data map[string]any)
//
// Loading happens once at startup. A failure is fatal and is never retried.
package bundle
