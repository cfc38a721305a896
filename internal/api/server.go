package api

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftcon/internal/client"
	"github.com/energizer-project/craftcon/internal/config"
	"github.com/energizer-project/craftcon/internal/db"
	"github.com/energizer-project/craftcon/internal/events"
	"github.com/energizer-project/craftcon/internal/monitor"
	"github.com/energizer-project/craftcon/internal/network"
	"github.com/energizer-project/craftcon/internal/scheduler"
	"github.com/energizer-project/craftcon/internal/util"
)

// TokenStore authenticates bearer tokens and manages them.
type TokenStore interface {
	Authenticate(secret string) (*db.Token, error)
	CreateToken(label, role string) (*db.Token, string, error)
	ListTokens() ([]db.Token, error)
	RevokeToken(id string) error
	RecentCommands(limit int) ([]db.AuditEntry, error)
}

// Snapshotter exposes the monitor's cached state.
type Snapshotter interface {
	Latest() monitor.Snapshot
	LatestHost() (util.HostStats, bool)
}

// ScheduleRunner exposes the scheduler to the API.
type ScheduleRunner interface {
	Run(ctx context.Context, sc config.ScheduledCommand) scheduler.RunResult
	LastRuns() []scheduler.RunResult
}

// Server is the craftcon HTTP API.
type Server struct {
	cfg      *config.Config
	eventBus *events.EventBus
	open     client.OpenFunc
	version  string
	logger   zerolog.Logger

	// Dependencies
	tokens    TokenStore
	monitor   Snapshotter
	scheduler ScheduleRunner

	httpServer *http.Server
	router     *gin.Engine
}

// NewServer creates the API server. Every console request opens its own
// session through open.
func NewServer(cfg *config.Config, eventBus *events.EventBus, open client.OpenFunc, version string) *Server {
	if cfg.GetApplicationData().Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg:      cfg,
		eventBus: eventBus,
		open:     open,
		version:  version,
		logger:   log.With().Str("component", "api").Logger(),
	}
}

// SetDependencies injects the components created after the server.
func (s *Server) SetDependencies(tokens TokenStore, mon Snapshotter, sched ScheduleRunner) {
	s.tokens = tokens
	s.monitor = mon
	s.scheduler = sched
}

// Handler returns the router, building it on first use.
func (s *Server) Handler() http.Handler {
	if s.router == nil {
		s.router = s.buildRouter()
	}
	return s.router
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ad := s.cfg.GetApplicationData()
	addr := net.JoinHostPort(ad.API.Host, strconv.Itoa(ad.API.Port))

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	var tlsConfig *tls.Config
	if ad.Security.TLSEnabled {
		var err error
		if tlsConfig, err = s.loadTLS(ad.Security); err != nil {
			return err
		}
	}

	ln, err := network.Listen(ctx, addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}

	s.logger.Info().Str("addr", addr).Bool("tls", tlsConfig != nil).Msg("REST API server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// loadTLS uses the configured pair, or a self-signed pair next to the
// config file when none is configured.
func (s *Server) loadTLS(sec config.SecurityConfig) (*tls.Config, error) {
	certFile, keyFile := sec.TLSCertFile, sec.TLSKeyFile
	if certFile == "" && keyFile == "" {
		dir := filepath.Join(filepath.Dir(s.cfg.Path()), "tls")
		certFile = filepath.Join(dir, "cert.pem")
		keyFile = filepath.Join(dir, "key.pem")

		hosts := []string{}
		if h := s.cfg.GetApplicationData().API.Host; h != "" {
			hosts = append(hosts, h)
		}
		if err := util.EnsureSelfSignedCert(certFile, keyFile, hosts...); err != nil {
			return nil, fmt.Errorf("failed to prepare TLS certificate: %w", err)
		}
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}, nil
}

func (s *Server) buildRouter() *gin.Engine {
	sec := s.cfg.GetApplicationData().Security
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	allowedOrigins := sec.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", HeaderRequestID},
		ExposeHeaders:    []string{"Content-Length", HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(NewRateLimiter(sec.RateLimitRPS).Middleware())

	auth := NewAuthMiddleware(s.cfg, s.tokens)
	router.Use(auth.IPWhitelist())

	router.GET("/metrics", s.handleMetrics)

	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
		public.GET("/version", s.handleVersion)
	}

	protected := router.Group("/api")
	protected.Use(auth.RequireAuth())

	rcon := protected.Group("/rcon")
	{
		rcon.GET("/server-info", auth.RequirePermission(db.PermMonitor), s.handleServerInfo)
		rcon.POST("/server-info", auth.RequirePermission(db.PermControl), s.handleCommand)
		rcon.POST("/player-info", auth.RequirePermission(db.PermMonitor), s.handlePlayerInfo)
		rcon.POST("/plugin", auth.RequirePermission(db.PermControl), s.handlePlugin)
		rcon.GET("/players", auth.RequirePermission(db.PermMonitor), s.handlePlayers)
		rcon.GET("/actions", auth.RequirePermission(db.PermMonitor), s.handleActions)
	}

	mon := protected.Group("/monitor")
	mon.Use(auth.RequirePermission(db.PermMonitor))
	{
		mon.GET("/host", s.handleHost)
		mon.GET("/snapshot", s.handleSnapshot)
		mon.GET("/schedule", s.handleSchedule)
		mon.GET("/audit", s.handleAudit)
	}

	control := protected.Group("/control")
	control.Use(auth.RequirePermission(db.PermControl))
	{
		control.POST("/schedule/:name/run", s.handleRunScheduled)
	}

	configure := protected.Group("/configure")
	configure.Use(auth.RequirePermission(db.PermConfigure))
	{
		configure.GET("/config", s.handleGetConfig)
		configure.POST("/schedule", s.handleSetSchedule)
		configure.GET("/tokens", s.handleListTokens)
		configure.POST("/tokens", s.handleCreateToken)
		configure.DELETE("/tokens/:id", s.handleRevokeToken)
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			fail(c, http.StatusNotFound, "endpoint not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "craftcon API is running"})
	})

	return router
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
