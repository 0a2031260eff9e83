package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-mfa/internal/audit"
	"github.com/nerrad567/gray-logic-mfa/internal/auth"
	"github.com/nerrad567/gray-logic-mfa/internal/identity"
	"github.com/nerrad567/gray-logic-mfa/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-mfa/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-mfa/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-mfa/internal/rest"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DeviceResource is the OATH device collection served under
// /realms/{realm}/users/{user}/devices/2fa/oath. *devices.Resource
// implements it.
type DeviceResource interface {
	QueryCollection(ctx context.Context, sc identity.SecurityContext, req rest.QueryRequest, h rest.QueryHandler) (rest.QueryResponse, error)
	DeleteInstance(ctx context.Context, sc identity.SecurityContext, id string, req rest.DeleteRequest) (rest.ResourceResponse, error)
	ActionCollection(ctx context.Context, sc identity.SecurityContext, req rest.ActionRequest) (rest.ActionResponse, error)
	ActionInstance(ctx context.Context, sc identity.SecurityContext, id string, req rest.ActionRequest) (rest.ActionResponse, error)
}

// HealthChecker is implemented by every infrastructure component.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionStatus reports a live connection. *mqtt.Client implements it.
type ConnectionStatus interface {
	IsConnected() bool
}

// Auditor accepts audit entries. *audit.Recorder implements it.
type Auditor interface {
	Record(entry *audit.AuditLog)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Security config.SecurityConfig
	Site     config.SiteConfig
	Logger   *logging.Logger
	Devices  DeviceResource
	Users    auth.UserRepository

	// Optional.
	AuditRepo audit.Repository
	Audit     Auditor
	DB        *database.DB
	MQTT      ConnectionStatus
	Checks    map[string]HealthChecker
	Limiter   *RateLimiter
	Version   string
}

// Server is the HTTP API server.
//
// It is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	secCfg    config.SecurityConfig
	siteCfg   config.SiteConfig
	logger    *logging.Logger
	devices   DeviceResource
	users     auth.UserRepository
	auditRepo audit.Repository
	audit     Auditor
	db        *database.DB
	mqtt      ConnectionStatus
	checks    map[string]HealthChecker
	limiter   *RateLimiter
	version   string
	startTime time.Time
	server    *http.Server
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger is required")
	case deps.Devices == nil:
		return nil, fmt.Errorf("device resource is required")
	case deps.Users == nil:
		return nil, fmt.Errorf("user repository is required")
	case len(deps.Security.JWT.Secret) == 0:
		return nil, fmt.Errorf("jwt secret is required")
	}

	return &Server{
		cfg:       deps.Config,
		secCfg:    deps.Security,
		siteCfg:   deps.Site,
		logger:    deps.Logger.Component("api"),
		devices:   deps.Devices,
		users:     deps.Users,
		auditRepo: deps.AuditRepo,
		audit:     deps.Audit,
		db:        deps.DB,
		mqtt:      deps.MQTT,
		checks:    deps.Checks,
		limiter:   deps.Limiter,
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start launches the HTTP listener in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close waits up to gracefulShutdownTimeout for in-flight requests,
// then closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
