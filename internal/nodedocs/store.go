// Package nodedocs is the embedded store of n8n node documentation that
// backs the documentation tools. Records live in SQLite and can be
// seeded from a YAML file at startup.
package nodedocs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/flowgate/n8n-mcp/internal/config"
	"github.com/flowgate/n8n-mcp/internal/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a node type has no record.
var ErrNotFound = errors.New("node not found")

// Node is one documented n8n node type.
type Node struct {
	NodeType    string `yaml:"node_type"`
	DisplayName string `yaml:"display_name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	Package     string `yaml:"package"`
	IsAITool    bool   `yaml:"is_ai_tool"`
	IsTrigger   bool   `yaml:"is_trigger"`
	// Properties and Operations are stored as raw JSON documents.
	Properties string `yaml:"properties"`
	Operations string `yaml:"operations"`
}

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	node_type    TEXT PRIMARY KEY,
	display_name TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	package      TEXT NOT NULL DEFAULT '',
	is_ai_tool   INTEGER NOT NULL DEFAULT 0,
	is_trigger   INTEGER NOT NULL DEFAULT 0,
	properties   TEXT NOT NULL DEFAULT '[]',
	operations   TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_nodes_category ON nodes(category);
CREATE INDEX IF NOT EXISTS idx_nodes_ai_tool ON nodes(is_ai_tool);
`

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the node database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open node database: %w", err)
	}
	// The store is an embedded read-mostly database; a single
	// connection avoids SQLITE_BUSY and keeps :memory: databases whole.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply node schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or replaces a node record.
func (s *Store) Upsert(ctx context.Context, n *Node) error {
	props := n.Properties
	if props == "" {
		props = "[]"
	}
	ops := n.Operations
	if ops == "" {
		ops = "[]"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO nodes (node_type, display_name, description, category, package, is_ai_tool, is_trigger, properties, operations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(node_type) DO UPDATE SET
			display_name = excluded.display_name,
			description  = excluded.description,
			category     = excluded.category,
			package      = excluded.package,
			is_ai_tool   = excluded.is_ai_tool,
			is_trigger   = excluded.is_trigger,
			properties   = excluded.properties,
			operations   = excluded.operations`,
		n.NodeType, n.DisplayName, n.Description, n.Category, n.Package,
		boolToInt(n.IsAITool), boolToInt(n.IsTrigger), props, ops,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert node %s: %w", n.NodeType, err)
	}
	return nil
}

// Get returns the record for a node type.
func (s *Store) Get(ctx context.Context, nodeType string) (*Node, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT node_type, display_name, description, category, package, is_ai_tool, is_trigger, properties, operations
		FROM nodes WHERE node_type = ?`, nodeType)
	return scanNode(row)
}

// Search finds nodes whose type, display name or description matches the
// query, case-insensitively.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]*Node, error) {
	if limit <= 0 {
		limit = 20
	} else if limit > 100 {
		limit = 100
	}
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_type, display_name, description, category, package, is_ai_tool, is_trigger, properties, operations
		FROM nodes
		WHERE node_type LIKE ? COLLATE NOCASE
		   OR display_name LIKE ? COLLATE NOCASE
		   OR description LIKE ? COLLATE NOCASE
		ORDER BY display_name
		LIMIT ?`, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("node search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectNodes(rows)
}

// ListAITools returns all nodes usable as AI agent tools.
func (s *Store) ListAITools(ctx context.Context) ([]*Node, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT node_type, display_name, description, category, package, is_ai_tool, is_trigger, properties, operations
		FROM nodes WHERE is_ai_tool = 1 ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list AI tools: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectNodes(rows)
}

// Count returns the number of documented nodes.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM nodes`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(row rowScanner) (*Node, error) {
	var n Node
	var aiTool, trigger int
	err := row.Scan(&n.NodeType, &n.DisplayName, &n.Description, &n.Category,
		&n.Package, &aiTool, &trigger, &n.Properties, &n.Operations)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan node: %w", err)
	}
	n.IsAITool = aiTool == 1
	n.IsTrigger = trigger == 1
	return &n, nil
}

func collectNodes(rows *sql.Rows) ([]*Node, error) {
	var nodes []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// NewStore opens the configured node database and seeds it when a seed
// file is configured and the store is empty.
func NewStore(cfg *config.Config) (*Store, error) {
	store, err := Open(cfg.NodeDocs.Path)
	if err != nil {
		return nil, err
	}

	if cfg.NodeDocs.SeedFile != "" {
		count, err := store.Count(context.Background())
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		if count == 0 {
			n, err := store.SeedFromFile(context.Background(), cfg.NodeDocs.SeedFile)
			if err != nil {
				_ = store.Close()
				return nil, err
			}
			logger.Info("seeded node documentation", zap.Int("nodes", n), zap.String("file", cfg.NodeDocs.SeedFile))
		}
	}
	return store, nil
}

// Module provides the node documentation store
var Module = fx.Module("nodedocs",
	fx.Provide(NewStore),
	fx.Invoke(func(lc fx.Lifecycle, s *Store) {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return s.Close()
			},
		})
	}),
)
