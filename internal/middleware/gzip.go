package middleware

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"
)

// GzipMinSize is the smallest response body that is compressed.
const GzipMinSize = 1024

// Gzip returns middleware compressing responses for clients that accept gzip.
// It returns a pass-through middleware when enabled is false.
func Gzip(enabled bool) (func(http.Handler) http.Handler, error) {
	if !enabled {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	wrap, err := gzhttp.NewWrapper(gzhttp.MinSize(GzipMinSize))
	if err != nil {
		return nil, err
	}
	return func(next http.Handler) http.Handler {
		return wrap(next)
	}, nil
}
