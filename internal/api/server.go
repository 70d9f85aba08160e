package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/virtuaplant-core/internal/audit"
	"github.com/nerrad567/virtuaplant-core/internal/control"
	"github.com/nerrad567/virtuaplant-core/internal/history"
	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/config"
	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/logging"
	"github.com/nerrad567/virtuaplant-core/internal/register"
	"github.com/nerrad567/virtuaplant-core/internal/telemetry"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Plant is the read side of the control loop.
// *control.Runner satisfies it.
type Plant interface {
	Latest() control.Frame
	Status() control.FillStatus
	Stats() control.RunnerStats
}

// HealthChecker is implemented by every dependency that can report health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// RecorderStats exposes telemetry counters.
type RecorderStats interface {
	Stats() telemetry.Stats
}

// DBStats exposes connection pool statistics.
type DBStats interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	WS     config.WebSocketConfig
	Logger *logging.Logger

	// PLC is the bank tag reads and writes go to.
	PLC register.Accessor

	// Plant supplies the latest frame and fill-cycle status.
	Plant Plant

	// Optional. Missing dependencies answer 503 or are left out of metrics.
	History  history.Repository
	Audit    audit.Repository
	Recorder RecorderStats
	DB       DBStats
	Checks   map[string]HealthChecker

	// Sinks report the counters of the MQTT and InfluxDB clients, by name.
	Sinks map[string]func() any

	// Hub is used instead of a server-owned hub when set, so the recorder
	// can broadcast into it.
	Hub *Hub

	Version string
}

// Server is the HTTP API server for VirtuaPlant.
//
// The router is built by New; Start binds the listener.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	plc      register.Accessor
	plant    Plant
	history  history.Repository
	audit    audit.Repository
	recorder RecorderStats
	db       DBStats
	checks   map[string]HealthChecker
	sinks    map[string]func() any
	version  string

	hub      *Hub
	ownHub   bool
	router   http.Handler
	started  time.Time
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
	mu       sync.Mutex
}

// New creates a new API server with the given dependencies.
//
// Parameters:
//   - deps: Logger, PLC and Plant are required
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.PLC == nil {
		return nil, fmt.Errorf("plc accessor is required")
	}
	if deps.Plant == nil {
		return nil, fmt.Errorf("plant is required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		plc:      deps.PLC,
		plant:    deps.Plant,
		history:  deps.History,
		audit:    deps.Audit,
		recorder: deps.Recorder,
		db:       deps.DB,
		checks:   deps.Checks,
		sinks:    deps.Sinks,
		version:  deps.Version,
		hub:      deps.Hub,
		started:  time.Now(),
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger)
		s.ownHub = true
	}
	s.router = s.buildRouter()
	return s, nil
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub the server broadcasts through.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves in a background goroutine.
//
// Parameters:
//   - ctx: Cancels the server-owned hub; the listener lives until Close
//
// Returns:
//   - error: If the listener cannot bind
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("binding API listener on %s: %w", addr, err)
	}

	srvCtx, cancel := context.WithCancel(ctx)
	if s.ownHub {
		go s.hub.Run(srvCtx)
	}

	read, write, idle := s.cfg.Timeouts.Durations()
	server := &http.Server{
		Handler:           s.router,
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      write,
		IdleTimeout:       idle,
	}

	s.mu.Lock()
	s.server, s.listener, s.cancel = server, ln, cancel
	s.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete.
// Hijacked WebSocket connections are closed by the hub.
func (s *Server) Close() error {
	s.mu.Lock()
	server, cancel := s.server, s.cancel
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}

	ctx, done := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer done()

	s.logger.Info("API server shutting down")
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.Addr() == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
