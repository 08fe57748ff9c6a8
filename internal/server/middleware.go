package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/flowgate/n8n-mcp/internal/instance"
	"github.com/flowgate/n8n-mcp/internal/logger"
	"github.com/flowgate/n8n-mcp/internal/utils"
	"go.uber.org/zap"
)

// responseWriter is a custom ResponseWriter that captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code and passes it to the underlying ResponseWriter
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// loggingMiddleware logs each request and feeds the HTTP metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveHTTPRequest(r.URL.Path, r.Method, strconv.Itoa(rw.statusCode), duration.Seconds())
		}
		logger.Info("HTTP Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", rw.statusCode),
			zap.Duration("duration", duration),
			zap.String("user_agent", r.UserAgent()),
		)
	})
}

// tenantMiddleware resolves the instance context for the request from
// the routing headers and binds it to the session before the MCP layer
// sees the request. Invalid contexts never reach a tool handler.
func (s *Server) tenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inst, err := instance.FromHeaders(r.Header)
		if err != nil {
			logger.Warn("rejected request with invalid instance context",
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			utils.WriteError(w, "invalid_instance_context", err.Error(), http.StatusBadRequest)
			return
		}

		if inst != nil && !s.cfg.N8n.MultiTenant {
			utils.WriteError(w, "multi_tenant_disabled",
				"per-request instance headers are not accepted by this deployment", http.StatusForbidden)
			return
		}

		sessionID := r.Header.Get(instance.HeaderSessionID)
		if inst != nil || sessionID != "" {
			resolvedID, bound, err := s.sessions.Resolve(sessionID, inst)
			if err != nil {
				utils.WriteError(w, "session_conflict", err.Error(), http.StatusConflict)
				return
			}
			w.Header().Set(instance.HeaderSessionID, resolvedID)
			if bound != nil {
				inst = bound
			}
		}

		if inst != nil {
			logger.Debug("resolved tenant instance", inst.LogFields()...)
			r = r.WithContext(instance.NewContext(r.Context(), inst))
		}

		next.ServeHTTP(w, r)
	})
}
