// Package auth gates the MCP endpoint behind a bearer token. Two modes
// are supported: a static shared token compared in constant time, and
// HS256 JWTs signed with the shared secret.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/flowgate/n8n-mcp/internal/config"
	"github.com/flowgate/n8n-mcp/internal/logger"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	authHeaderName   = "Authorization"
	authHeaderPrefix = "Bearer "
)

var (
	ErrMissingToken = errors.New("authentication required")
	ErrInvalidToken = errors.New("invalid token")
)

// Guard verifies bearer tokens on incoming requests.
type Guard struct {
	cfg *config.AuthConfig
}

// NewGuard creates a Guard from the auth config. A nil return means auth
// is disabled.
func NewGuard(cfg *config.Config) *Guard {
	if !cfg.Auth.Enabled {
		return nil
	}
	return &Guard{cfg: &cfg.Auth}
}

// Verify checks a raw bearer token value.
func (g *Guard) Verify(token string) error {
	if token == "" {
		return ErrMissingToken
	}

	switch g.cfg.Mode {
	case config.AuthModeJWT:
		return g.verifyJWT(token)
	default:
		if subtle.ConstantTimeCompare([]byte(token), []byte(g.cfg.Token)) != 1 {
			return ErrInvalidToken
		}
		return nil
	}
}

func (g *Guard) verifyJWT(token string) error {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(g.cfg.Token), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}

// Middleware rejects requests without a valid bearer token.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if err := g.Verify(token); err != nil {
			logger.Warn("rejected unauthenticated request",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			code := "invalid_token"
			if errors.Is(err, ErrMissingToken) {
				code = "unauthorized"
			}
			writeAuthError(w, code, err.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractToken extracts the Bearer token from the request
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get(authHeaderName)
	if strings.HasPrefix(authHeader, authHeaderPrefix) {
		return strings.TrimPrefix(authHeader, authHeaderPrefix)
	}
	return ""
}

// writeAuthError writes a JSON 401 response
func writeAuthError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="n8n-mcp", error="%s", error_description="%s"`, code, message))
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":%q,"error_description":%q}`+"\n", code, message)
}

// CORS middleware for MCP clients
func CORS(allowOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := allowedOrigin(allowOrigins, r.Header.Get("Origin")); origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}
			if len(allowOrigins) > 0 {
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, MCP-Session-ID, X-N8n-Url, X-N8n-Key, X-Instance-Id, X-Session-Id")
			w.Header().Set("Access-Control-Expose-Headers", "MCP-Session-ID, WWW-Authenticate")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// allowedOrigin picks the Access-Control-Allow-Origin value: wildcard
// when no list is configured, the request origin when the list contains
// it, empty when it does not.
func allowedOrigin(allowOrigins []string, origin string) string {
	if len(allowOrigins) == 0 {
		return "*"
	}
	for _, allowed := range allowOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}
