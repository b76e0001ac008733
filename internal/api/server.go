package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/actuator-core/internal/control"
	"github.com/nerrad567/actuator-core/internal/infrastructure/config"
	"github.com/nerrad567/actuator-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by infrastructure clients (database, MQTT,
// InfluxDB) reported on the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Logger     *logging.Logger
	Controller *control.Controller

	// Hub must be the same hub registered as a controller observer so
	// clients receive controller events.
	Hub *Hub

	// Metrics serves GET /metrics when set.
	Metrics http.Handler

	// Checks are reported by GET /health, keyed by component name.
	Checks map[string]HealthChecker

	Version string
}

// Server serves the management API and the WebSocket event stream.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	controller *control.Controller
	hub        *Hub
	metrics    http.Handler
	checks     map[string]HealthChecker
	tickets    *ticketStore
	version    string

	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc // stops the hub and ticket cleanup
}

// New validates deps and builds a server. Nothing listens until Start.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("api: logger is required")
	case deps.Controller == nil:
		return nil, errors.New("api: controller is required")
	case deps.Hub == nil:
		return nil, errors.New("api: websocket hub is required")
	case deps.Security.JWT.Secret == "":
		return nil, errors.New("api: jwt secret is required")
	}

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		controller: deps.Controller,
		hub:        deps.Hub,
		metrics:    deps.Metrics,
		checks:     deps.Checks,
		tickets:    newTicketStore(),
		version:    deps.Version,
	}, nil
}

// Handler returns the fully wired router. Start uses it; tests may serve it
// directly.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listen address and serves in the background. Binding
// happens before Start returns, so an address already in use is reported
// to the caller instead of only being logged. The hub and ticket cleanup
// run until ctx is cancelled or Close is called.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	var bg context.Context
	bg, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(bg)
	go s.cleanTicketsLoop(bg)

	seconds := func(n int) time.Duration { return time.Duration(n) * time.Second }
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       seconds(s.cfg.Timeouts.Read),
		ReadHeaderTimeout: seconds(s.cfg.Timeouts.Read),
		WriteTimeout:      seconds(s.cfg.Timeouts.Write),
		IdleTimeout:       seconds(s.cfg.Timeouts.Idle),
	}

	tlsOn := s.cfg.TLS.Enabled
	s.logger.Info("API server listening", "address", ln.Addr().String(), "tls", tlsOn)
	go func() {
		var serveErr error
		if tlsOn {
			serveErr = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			serveErr = s.server.Serve(ln)
		}
		if !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("API server stopped", "error", serveErr)
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start. With port 0 this is
// where the kernel-chosen port shows up.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close stops background work and drains in-flight requests for up to
// gracefulShutdownTimeout.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether Start has run.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}
