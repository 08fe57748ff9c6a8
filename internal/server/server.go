// Package server assembles the MCP server: tool registration, the HTTP
// surface (/mcp, /health, /metrics), the auth gate and the tenant
// routing middleware. It supports streamable HTTP, SSE and stdio modes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/flowgate/n8n-mcp/internal/auth"
	"github.com/flowgate/n8n-mcp/internal/config"
	"github.com/flowgate/n8n-mcp/internal/logger"
	"github.com/flowgate/n8n-mcp/internal/metrics"
	"github.com/flowgate/n8n-mcp/internal/session"
	"github.com/flowgate/n8n-mcp/internal/tools"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// shutdownTimeout is the maximum time to wait for server shutdown
	shutdownTimeout = 5 * time.Second

	mcpPath = "/mcp"
)

// Server is the gateway instance: it owns the MCP server, the session
// table and the HTTP surface around them.
type Server struct {
	cfg      *config.Config
	mcp      *mcpserver.MCPServer
	sessions *session.Manager
	guard    *auth.Guard
	metrics  *metrics.Metrics

	startTime time.Time
}

// ServerParams collects the server dependencies.
type ServerParams struct {
	fx.In

	Config   *config.Config
	Registry *tools.Registry
	Sessions *session.Manager
	Metrics  *metrics.Metrics `optional:"true"`
}

// NewServer creates the gateway server and registers all tools.
func NewServer(params ServerParams) *Server {
	mcpSrv := mcpserver.NewMCPServer(
		params.Config.Server.Name,
		params.Config.Server.Version,
		mcpserver.WithToolCapabilities(false),
	)

	srv := &Server{
		cfg:       params.Config,
		mcp:       mcpSrv,
		sessions:  params.Sessions,
		guard:     auth.NewGuard(params.Config),
		metrics:   params.Metrics,
		startTime: time.Now(),
	}

	params.Registry.Register(mcpSrv)

	return srv
}

// createHTTPHandler builds the full middleware stack around the MCP
// transport handler.
func (s *Server) createHTTPHandler(mcpHandler http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	protected := http.Handler(s.tenantMiddleware(mcpHandler))
	if s.guard != nil {
		protected = s.guard.Middleware(protected)
	}
	mux.Handle(mcpPath, protected)
	mux.Handle(mcpPath+"/", protected)
	// SSE transport registers /sse and /message at the root.
	mux.Handle("/", protected)

	return auth.CORS(s.cfg.Auth.AllowOrigins)(s.loggingMiddleware(mux))
}

// ServeHTTP runs the streamable HTTP transport.
func (s *Server) ServeHTTP(ctx context.Context) error {
	logger.Info("Starting HTTP server")
	// The streamable transport serves its endpoint at /mcp by default.
	httpServer := mcpserver.NewStreamableHTTPServer(s.mcp)
	return s.serveHTTP(ctx, httpServer, "HTTP")
}

// ServeSSE runs the SSE transport.
func (s *Server) ServeSSE(ctx context.Context) error {
	logger.Info("Starting SSE server")
	sseServer := mcpserver.NewSSEServer(
		s.mcp,
		mcpserver.WithBaseURL(fmt.Sprintf("http://%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)),
	)
	return s.serveHTTP(ctx, sseServer, "SSE")
}

func (s *Server) serveHTTP(ctx context.Context, handler http.Handler, mode string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: s.createHTTPHandler(handler),
	}

	errChan := make(chan error, 1)

	go func() {
		logger.Info("Starting server",
			zap.String("mode", mode),
			zap.String("address", addr),
			zap.Bool("multi_tenant", s.cfg.N8n.MultiTenant),
			zap.Bool("auth", s.guard != nil),
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server",
			zap.String("mode", mode),
			zap.Duration("timeout", shutdownTimeout),
		)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}

// ServeSTDIO runs the stdio transport. Single-tenant only: there are no
// headers to route on, so the default instance is used throughout.
func (s *Server) ServeSTDIO(ctx context.Context) error {
	logger.Info("Starting STDIO server")
	stdioServer := mcpserver.NewStdioServer(s.mcp)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// Start starts the server in the configured mode (SSE, HTTP, or STDIO).
func (s *Server) Start(ctx context.Context) error {
	logger.Info("Starting server",
		zap.String("mode", string(s.cfg.Server.Mode)),
		zap.String("version", s.cfg.Server.Version),
	)

	switch s.cfg.Server.Mode {
	case config.ServerModeSSE:
		return s.ServeSSE(ctx)
	case config.ServerModeHTTP:
		return s.ServeHTTP(ctx)
	case config.ServerModeSTDIO:
		return s.ServeSTDIO(ctx)
	default:
		return fmt.Errorf("unsupported server mode: %s", s.cfg.Server.Mode)
	}
}

// Module provides the MCP server dependencies
var Module = fx.Module("mcp_server",
	fx.Provide(
		NewServer,
	),
)
