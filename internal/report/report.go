// Package report prints startup steps as they run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vango-dev/vserve/internal/config"
	"github.com/vango-dev/vserve/internal/errors"
)

// Reporter runs named steps and reports their progress.
type Reporter interface {
	// Step runs fn as the step called name and returns its error.
	Step(name string, fn func() error) error
}

// New returns the reporter called name writing to w. Unknown names fail
// with E121.
func New(name string, w io.Writer) (Reporter, error) {
	switch name {
	case "", "spec":
		return NewSpec(w), nil
	case "json":
		return &JSON{w: w, now: time.Now}, nil
	case "silent":
		return Silent{}, nil
	default:
		return nil, errors.New("E121").
			WithDetail(fmt.Sprintf("reporter %q", name)).
			WithSuggestion("Use one of: " + strings.Join(config.Reporters, ", "))
	}
}

// Silent reports nothing.
type Silent struct{}

// Step implements Reporter.
func (Silent) Step(_ string, fn func() error) error {
	return fn()
}

// Spec prints one line per step, marking success or failure.
type Spec struct {
	mu   sync.Mutex
	w    io.Writer
	now  func() time.Time
	name lipgloss.Style
	ok   lipgloss.Style
	fail lipgloss.Style
	dim  lipgloss.Style
}

// NewSpec returns a Spec reporter. Styles are dropped when w is not a
// color terminal.
func NewSpec(w io.Writer) *Spec {
	r := lipgloss.NewRenderer(w)
	return &Spec{
		w:    w,
		now:  time.Now,
		name: r.NewStyle().Bold(true),
		ok:   r.NewStyle().Foreground(lipgloss.Color("2")),
		fail: r.NewStyle().Foreground(lipgloss.Color("1")),
		dim:  r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Step implements Reporter.
func (s *Spec) Step(name string, fn func() error) error {
	s.mu.Lock()
	fmt.Fprintf(s.w, "%s %s\n", s.dim.Render("•"), s.name.Render(name))
	s.mu.Unlock()

	start := s.now()
	err := fn()
	elapsed := s.now().Sub(start).Round(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		fmt.Fprintf(s.w, "%s %s %s\n", s.fail.Render("✖"), name, s.dim.Render(summary(err)))
		return err
	}
	fmt.Fprintf(s.w, "%s %s %s\n", s.ok.Render("✔"), name, s.dim.Render("("+elapsed.String()+")"))
	return nil
}

// JSON prints one JSON object per step event.
type JSON struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// Event is a line written by the JSON reporter.
type Event struct {
	Step       string `json:"step"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Step implements Reporter.
func (j *JSON) Step(name string, fn func() error) error {
	j.emit(Event{Step: name, Status: "start"})

	start := j.now()
	err := fn()
	ev := Event{Step: name, Status: "ok", DurationMS: j.now().Sub(start).Milliseconds()}
	if err != nil {
		ev.Status = "fail"
		ev.Error = err.Error()
		var ce *errors.CodedError
		if errors.As(err, &ce) {
			ev.Code = ce.Code
		}
	}
	j.emit(ev)
	return err
}

func (j *JSON) emit(ev Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = json.NewEncoder(j.w).Encode(ev)
}

func summary(err error) string {
	var ce *errors.CodedError
	if errors.As(err, &ce) {
		return ce.FormatCompact()
	}
	return err.Error()
}
