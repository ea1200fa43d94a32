// Package render defines the contract between vserve and a server bundle.
//
// A server bundle exposes two capabilities through the Exports interface:
// Render produces a server-rendered page and RenderError produces a fallback
// page when Render fails. Bundles never see the launcher's internals; they
// receive the isomorphic data for the request through the request context:
//
//	func (app) Render(w http.ResponseWriter, r *http.Request) error {
//	    iso := render.FromContext(r.Context())
//	    js := assets.NewResolver(iso.BuildManifest, assets.BuildPrefix).Asset("main.js")
//	    ...
//	}
//
// Handoff attaches the isomorphic data to every non-asset request and runs
// Render wrapped by RenderError, so a failing page never escapes the request
// that produced it.
package render
