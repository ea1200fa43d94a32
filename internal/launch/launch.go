package launch

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/vserve/internal/bundle"
	"github.com/vango-dev/vserve/internal/config"
	"github.com/vango-dev/vserve/internal/errors"
	"github.com/vango-dev/vserve/internal/middleware"
	"github.com/vango-dev/vserve/internal/netutil"
	"github.com/vango-dev/vserve/internal/pipeline"
	"github.com/vango-dev/vserve/internal/report"
	"github.com/vango-dev/vserve/internal/static"
	"github.com/vango-dev/vserve/pkg/manifest"
	"github.com/vango-dev/vserve/pkg/render"
)

// Step names shown by the reporter.
const (
	StepPrepare = "Preparing"
	StepServe   = "Running server"
)

// Options configures a Server.
type Options struct {
	// Config is the resolved configuration.
	Config config.Config

	// Stdout receives the operational lines. Nil means os.Stdout.
	Stdout io.Writer

	// Stderr receives reporter output. Nil means os.Stderr.
	Stderr io.Writer

	// Logger receives structured logs. Nil means slog.Default().
	Logger *slog.Logger

	// Registry resolves the server bundle. Nil means bundle.DefaultRegistry.
	Registry *bundle.Registry

	// Reporter overrides the reporter named in Config.
	Reporter report.Reporter

	// TracerProvider supplies request spans. Nil means the global provider.
	TracerProvider trace.TracerProvider

	// LANIP finds the LAN address. Nil means netutil.LANIPv4.
	LANIP func() net.IP
}

// Server is a production server for one build.
type Server struct {
	opts   Options
	logger *slog.Logger
	state  atomic.Int32

	mu          sync.Mutex
	addr        net.Addr
	metricsAddr net.Addr
	manifest    *manifest.Manifest
	handler     http.Handler
	metrics     *middleware.Metrics

	ready chan struct{}
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Registry == nil {
		opts.Registry = bundle.DefaultRegistry
	}
	if opts.LANIP == nil {
		opts.LANIP = netutil.LANIPv4
	}
	if opts.Config.ShutdownTimeout <= 0 {
		opts.Config.ShutdownTimeout = config.DefaultShutdownTimeout
	}
	return &Server{
		opts:   opts,
		logger: opts.Logger.With("component", "launch"),
		ready:  make(chan struct{}),
	}
}

// State returns the current state.
func (s *Server) State() State {
	return State(s.state.Load())
}

func (s *Server) setState(st State) {
	s.state.Store(int32(st))
	s.logger.Debug("state changed", "state", st.String())
}

// Ready is closed once the server is running.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, or nil before Starting completes.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// MetricsAddr returns the bound metrics address, or nil when metrics are not
// served.
func (s *Server) MetricsAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metricsAddr
}

// Manifest returns the build manifest once Preparing completes.
func (s *Server) Manifest() *manifest.Manifest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manifest
}

// Handler returns the HTTP handler once Preparing completes.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler
}

// Run boots the server and serves until ctx is cancelled. It returns nil
// after a graceful shutdown and the startup or serving error otherwise.
func (s *Server) Run(ctx context.Context) error {
	s.setState(Preparing)
	cfg := s.opts.Config

	rep := s.opts.Reporter
	if rep == nil {
		var err error
		if rep, err = report.New(cfg.Reporter, s.opts.Stderr); err != nil {
			s.setState(Failed)
			return err
		}
	}

	if err := rep.Step(StepPrepare, func() error { return s.prepare(ctx) }); err != nil {
		s.setState(Failed)
		return err
	}

	s.setState(Starting)
	var ln, metricsLn net.Listener
	err := rep.Step(StepServe, func() error {
		var err error
		if ln, err = listen(cfg.Address()); err != nil {
			return err
		}
		if cfg.MetricsAddr != "" {
			if metricsLn, err = listen(cfg.MetricsAddr); err != nil {
				ln.Close()
				return err
			}
		}

		s.mu.Lock()
		s.addr = ln.Addr()
		if metricsLn != nil {
			s.metricsAddr = metricsLn.Addr()
		}
		s.mu.Unlock()

		s.setState(Running)
		s.announce(ln.Addr())
		return nil
	})
	if err != nil {
		s.setState(Failed)
		return err
	}
	close(s.ready)

	if err := s.serve(ctx, ln, metricsLn); err != nil {
		s.setState(Failed)
		return err
	}
	s.setState(Stopped)
	return nil
}

// prepare reads the manifest and loads the bundle.
func (s *Server) prepare(ctx context.Context) error {
	cfg := s.opts.Config

	m, err := manifest.Read(cfg.PublicDir)
	if err != nil {
		return err
	}

	loader := &bundle.Loader{
		PublicDir: cfg.PublicDir,
		Registry:  s.opts.Registry,
		Stdout:    s.opts.Stdout,
		Logger:    s.opts.Logger,
	}
	exports, err := loader.Load(ctx, m)
	if err != nil {
		return err
	}

	handler, metrics, err := s.buildHandler(exports, m)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.manifest = m
	s.handler = handler
	s.metrics = metrics
	s.mu.Unlock()
	return nil
}

// buildHandler assembles the request pipeline and its middleware.
func (s *Server) buildHandler(exports render.Exports, m *manifest.Manifest) (http.Handler, *middleware.Metrics, error) {
	cfg := s.opts.Config

	gzip, err := middleware.Gzip(cfg.Gzip)
	if err != nil {
		return nil, nil, errors.New("E120").WithDetail("gzip").Wrap(err)
	}

	p := pipeline.New(
		pipeline.Tier(static.NewTier(static.BuildTier(cfg.PublicDir))),
		pipeline.Tier(static.NewTier(static.PublicTier(cfg.PublicDir))),
		pipeline.Render(render.NewHandoff(exports, m, s.opts.Logger)),
	)

	metrics := middleware.NewMetrics()

	var otelOpts []middleware.OTelOption
	if s.opts.TracerProvider != nil {
		otelOpts = append(otelOpts, middleware.WithTracerProvider(s.opts.TracerProvider))
	}

	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.RealIP,
		middleware.StripIdentity,
		metrics.Middleware,
		middleware.OpenTelemetry(otelOpts...),
		middleware.AccessLog(s.opts.Logger),
		chimw.Recoverer,
		gzip,
	)
	r.Handle("/*", p)

	return r, metrics, nil
}

// announce prints the operational lines.
func (s *Server) announce(addr net.Addr) {
	cfg := s.opts.Config
	port := cfg.Port
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = tcp.Port
	}

	gzip := "off"
	if cfg.Gzip {
		gzip = "on"
	}

	w := s.opts.Stdout
	fmt.Fprintf(w, "Server address:            %s\n", netutil.URL(netutil.DisplayHost(cfg.Host), port))
	fmt.Fprintf(w, "LAN server address:        %s\n", netutil.LANURL(s.opts.LANIP(), port))
	fmt.Fprintf(w, "Gzip compression:          %s\n", gzip)
	fmt.Fprint(w, "\nServer is now up and running, press CTRL-C to stop.\n")
}

// serve runs the HTTP servers until ctx is cancelled or one of them fails.
func (s *Server) serve(ctx context.Context, ln, metricsLn net.Listener) error {
	s.mu.Lock()
	handler, metrics := s.handler, s.metrics
	s.mu.Unlock()

	errorLog := slog.NewLogLogger(s.opts.Logger.Handler(), slog.LevelError)
	servers := []*http.Server{{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          errorLog,
	}}
	listeners := []net.Listener{ln}

	if metricsLn != nil {
		mux := chi.NewRouter()
		mux.Handle("/metrics", metrics.Handler())
		servers = append(servers, &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          errorLog,
		})
		listeners = append(listeners, metricsLn)
		s.logger.Info("metrics listening", "addr", metricsLn.Addr().String())
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range servers {
		srv, l := servers[i], listeners[i]
		g.Go(func() error {
			if err := srv.Serve(l); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down", "timeout", s.opts.Config.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.Config.ShutdownTimeout)
		defer cancel()

		var firstErr error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	})

	return g.Wait()
}

// listen binds addr, reporting failures as E130.
func listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.New("E130").
			WithDetail("address " + addr).
			WithSuggestion("Choose another port with --port or stop the process using " + addr).
			Wrap(err)
	}
	return ln, nil
}

// ExitCode maps an error returned by Run to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec errors.ExitCoder
	if errors.As(err, &ec) {
		if code := ec.ExitCode(); code > 0 {
			return code
		}
	}
	return 1
}
