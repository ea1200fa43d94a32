// Package middleware provides the net/http middleware wrapped around the
// request pipeline: Prometheus metrics, OpenTelemetry spans, access logging,
// identity header stripping and gzip compression.
//
// Middleware that report a request's outcome read it from the
// pipeline.Recorder in the request context. Outcome installs one when no
// outer middleware has.
package middleware

import (
	"net/http"

	"github.com/vango-dev/vserve/internal/pipeline"
)

// Outcome makes sure the request carries a pipeline.Recorder and returns it
// together with the updated request.
func Outcome(r *http.Request) (*http.Request, *pipeline.Recorder) {
	if rec := pipeline.RecorderFrom(r.Context()); rec != nil {
		return r, rec
	}
	ctx, rec := pipeline.WithRecorder(r.Context())
	return r.WithContext(ctx), rec
}
