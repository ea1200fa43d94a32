package middleware

import (
	"net/http"

	"github.com/vango-dev/vserve/pkg/render"
)

// StripIdentity removes headers that identify the server software.
func StripIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(render.WithoutHeaders(w, "Server", "X-Powered-By"), r)
	})
}
