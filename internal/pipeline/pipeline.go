// Package pipeline runs a request through the launcher's ordered stages.
//
// Each stage either answers the request or declines it. The first stage that
// answers ends the pipeline; the stages after it never see the request.
package pipeline

import (
	"context"
	"net/http"
	"strconv"

	"github.com/vango-dev/vserve/internal/static"
	"github.com/vango-dev/vserve/pkg/render"
)

// Outcome records which stage handled a request and how.
type Outcome int

const (
	// Unmatched means the stage did not apply to the request.
	Unmatched Outcome = iota
	// AssetHit means a static tier served a file.
	AssetHit
	// AssetMiss means a static tier found nothing and declined.
	AssetMiss
	// AssetNotFound means a static tier answered 404.
	AssetNotFound
	// AssetRejected means a static tier answered 405.
	AssetRejected
	// Rendered means the bundle rendered the response.
	Rendered
	// RenderFailed means rendering failed and the error path answered.
	RenderFailed
)

var outcomeNames = [...]string{
	Unmatched:     "unmatched",
	AssetHit:      "asset_hit",
	AssetMiss:     "asset_miss",
	AssetNotFound: "asset_not_found",
	AssetRejected: "asset_rejected",
	Rendered:      "rendered",
	RenderFailed:  "render_failed",
}

func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "Outcome(" + strconv.Itoa(int(o)) + ")"
}

// Continues reports whether the next stage should run.
func (o Outcome) Continues() bool {
	return o == Unmatched || o == AssetMiss
}

// Stage is one step of the pipeline.
type Stage interface {
	Name() string
	Handle(w http.ResponseWriter, r *http.Request) Outcome
}

// StageFunc adapts a function to Stage.
type StageFunc struct {
	StageName string
	Fn        func(w http.ResponseWriter, r *http.Request) Outcome
}

func (s StageFunc) Name() string { return s.StageName }

func (s StageFunc) Handle(w http.ResponseWriter, r *http.Request) Outcome {
	return s.Fn(w, r)
}

// Tier wraps a static tier as a stage.
func Tier(t *static.Tier) Stage {
	return StageFunc{
		StageName: t.Config().Name,
		Fn: func(w http.ResponseWriter, r *http.Request) Outcome {
			switch t.Serve(w, r) {
			case static.Hit:
				return AssetHit
			case static.Miss:
				return AssetMiss
			case static.NotFound:
				return AssetNotFound
			case static.MethodNotAllowed:
				return AssetRejected
			default:
				return Unmatched
			}
		},
	}
}

// Render wraps the render hand-off as the terminal stage.
func Render(h *render.Handoff) Stage {
	return StageFunc{
		StageName: "render",
		Fn: func(w http.ResponseWriter, r *http.Request) Outcome {
			if err := h.Serve(w, r); err != nil {
				return RenderFailed
			}
			return Rendered
		},
	}
}

// Recorder captures the final outcome of a request for outer middleware.
type Recorder struct {
	Stage   string
	Outcome Outcome
}

type recorderKey struct{}

// WithRecorder returns a context carrying a fresh Recorder.
func WithRecorder(ctx context.Context) (context.Context, *Recorder) {
	rec := &Recorder{}
	return context.WithValue(ctx, recorderKey{}, rec), rec
}

// RecorderFrom returns the Recorder in ctx, or nil.
func RecorderFrom(ctx context.Context) *Recorder {
	rec, _ := ctx.Value(recorderKey{}).(*Recorder)
	return rec
}

// Pipeline is an ordered list of stages served as one handler.
type Pipeline struct {
	stages []Stage
}

// New creates a pipeline running stages in order.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Stages returns the stage names in order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Serve runs the stages and returns the name of the stage that answered along
// with its outcome. When every stage declines, Serve answers 404 itself.
func (p *Pipeline) Serve(w http.ResponseWriter, r *http.Request) (string, Outcome) {
	last := Unmatched
	for _, s := range p.stages {
		last = s.Handle(w, r)
		if !last.Continues() {
			return s.Name(), last
		}
	}
	http.NotFound(w, r)
	return "", last
}

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stage, outcome := p.Serve(w, r)
	if rec := RecorderFrom(r.Context()); rec != nil {
		rec.Stage = stage
		rec.Outcome = outcome
	}
}
