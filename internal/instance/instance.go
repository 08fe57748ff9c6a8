// Package instance defines the per-request n8n instance context: the
// URL and API key a tool call should be routed to, plus a stable
// identifier used for session binding and client caching.
package instance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Header names as documented for multi-tenant deployments. Go's header
// access is case-insensitive, these are the canonical spellings.
const (
	HeaderN8nURL     = "X-N8n-Url"
	HeaderN8nKey     = "X-N8n-Key"
	HeaderInstanceID = "X-Instance-Id"
	HeaderSessionID  = "X-Session-Id"
)

var (
	// ErrIncompleteContext is returned when only one of the URL/key
	// headers is present. Partial contexts are rejected outright so a
	// misconfigured tenant can never fall through to another tenant's
	// default instance.
	ErrIncompleteContext = errors.New("incomplete instance context: both " + HeaderN8nURL + " and " + HeaderN8nKey + " are required")

	// ErrNoContext is returned when a management tool runs without any
	// instance configured for the request.
	ErrNoContext = errors.New("no n8n instance configured: set " + HeaderN8nURL + " and " + HeaderN8nKey + " headers or configure a default instance")
)

// Context is the resolved routing target for one request.
type Context struct {
	ID     string
	URL    string
	APIKey string
}

// Same reports whether two contexts address the same n8n instance with
// the same credentials. Ids are client-chosen labels and can collide
// across tenants, so only the URL and key decide.
func (c *Context) Same(other *Context) bool {
	return c.URL == other.URL && c.APIKey == other.APIKey
}

// FromHeaders extracts and validates an instance context from request
// headers. It returns (nil, nil) when neither routing header is present,
// leaving the caller to fall back to the default instance.
func FromHeaders(h http.Header) (*Context, error) {
	rawURL := strings.TrimSpace(h.Get(HeaderN8nURL))
	apiKey := strings.TrimSpace(h.Get(HeaderN8nKey))

	if rawURL == "" && apiKey == "" {
		return nil, nil
	}
	if rawURL == "" || apiKey == "" {
		return nil, ErrIncompleteContext
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", HeaderN8nURL, err)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid %s: must be an absolute http(s) URL", HeaderN8nURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid %s: missing host", HeaderN8nURL)
	}

	id := strings.TrimSpace(h.Get(HeaderInstanceID))
	if id == "" {
		id = DeriveID(rawURL)
	}

	return &Context{
		ID:     id,
		URL:    strings.TrimRight(rawURL, "/"),
		APIKey: apiKey,
	}, nil
}

// DeriveID returns a stable identifier for an instance URL, used when
// the client does not supply X-Instance-Id.
func DeriveID(rawURL string) string {
	sum := sha256.Sum256([]byte(strings.TrimRight(rawURL, "/")))
	return hex.EncodeToString(sum[:8])
}

// LogFields returns zap fields safe to log: the API key is reduced to a
// short prefix so credentials never land in log output.
func (c *Context) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("instance_id", c.ID),
		zap.String("instance_url", c.URL),
		zap.String("api_key_prefix", truncateKey(c.APIKey)),
	}
}

func truncateKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:8] + "..."
}

type contextKey string

const instanceContextKey contextKey = "n8n_instance"

// NewContext stores an instance context on a request context.
func NewContext(ctx context.Context, inst *Context) context.Context {
	if inst == nil {
		return ctx
	}
	return context.WithValue(ctx, instanceContextKey, inst)
}

// FromContext retrieves the instance context placed by NewContext.
func FromContext(ctx context.Context) (*Context, bool) {
	inst, ok := ctx.Value(instanceContextKey).(*Context)
	return inst, ok
}
