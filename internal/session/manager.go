// Package session tracks which n8n instance a client session is bound
// to. Bindings live in memory with a sliding TTL; a session that goes
// idle past the TTL is swept, and the store is capped so a burst of
// clients cannot grow it without bound.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/flowgate/n8n-mcp/internal/config"
	"github.com/flowgate/n8n-mcp/internal/instance"
	"github.com/flowgate/n8n-mcp/internal/logger"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrInstanceMismatch is returned when a known session is presented with
// headers for a different instance. Sessions are single-tenant for their
// whole lifetime.
var ErrInstanceMismatch = errors.New("session is bound to a different n8n instance")

type entry struct {
	instance *instance.Context
	lastSeen time.Time
}

// Manager owns the session table.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry

	ttl  time.Duration
	max  int
	done chan struct{}
}

// NewManager creates a session manager from config.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		entries: make(map[string]*entry),
		ttl:     cfg.Sessions.TTL,
		max:     cfg.Sessions.MaxSessions,
		done:    make(chan struct{}),
	}
}

// Resolve binds a session id to an instance context, or looks up an
// existing binding. An empty id allocates a fresh session. The returned
// id is the effective session id for the request.
func (m *Manager) Resolve(id string, inst *instance.Context) (string, *instance.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	if id != "" {
		if e, ok := m.entries[id]; ok && now.Sub(e.lastSeen) < m.ttl {
			if inst != nil && e.instance != nil && !e.instance.Same(inst) {
				return "", nil, ErrInstanceMismatch
			}
			e.lastSeen = now
			if inst != nil && e.instance == nil {
				e.instance = inst
			}
			return id, e.instance, nil
		}
		// Unknown or expired id: re-bind under the same id so clients
		// with sticky session headers keep working across restarts.
	} else {
		id = uuid.NewString()
	}

	if len(m.entries) >= m.max {
		m.evictOldestLocked()
	}

	m.entries[id] = &entry{instance: inst, lastSeen: now}
	logger.Debug("session bound", zap.String("session_id", id), zap.Int("active", len(m.entries)))
	return id, inst, nil
}

// Get returns the instance bound to a live session, if any.
func (m *Manager) Get(id string) (*instance.Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok || time.Since(e.lastSeen) >= m.ttl {
		return nil, false
	}
	e.lastSeen = time.Now()
	return e.instance, true
}

// Drop removes a session binding.
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Manager) evictOldestLocked() {
	var oldest string
	var oldestSeen time.Time
	for id, e := range m.entries {
		if oldest == "" || e.lastSeen.Before(oldestSeen) {
			oldest = id
			oldestSeen = e.lastSeen
		}
	}
	if oldest != "" {
		delete(m.entries, oldest)
		logger.Warn("session table full, evicted oldest idle session", zap.String("session_id", oldest))
	}
}

// Sweep removes expired sessions and returns how many were dropped.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var dropped int
	now := time.Now()
	for id, e := range m.entries {
		if now.Sub(e.lastSeen) >= m.ttl {
			delete(m.entries, id)
			dropped++
		}
	}
	return dropped
}

// Run starts the background sweep loop and blocks until Stop or ctx.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				logger.Debug("swept expired sessions", zap.Int("dropped", n))
			}
		}
	}
}

// Stop terminates the sweep loop.
func (m *Manager) Stop() {
	close(m.done)
}

// Module provides the session manager and wires its sweep loop into the
// fx lifecycle.
var Module = fx.Module("sessions",
	fx.Provide(NewManager),
	fx.Invoke(func(lc fx.Lifecycle, m *Manager, cfg *config.Config) {
		ctx, cancel := context.WithCancel(context.Background())
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go m.Run(ctx, cfg.Sessions.SweepInterval)
				return nil
			},
			OnStop: func(context.Context) error {
				cancel()
				m.Stop()
				return nil
			},
		})
	}),
)
