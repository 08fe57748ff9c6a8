package nodedocs

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// seedFile is the YAML shape of a node documentation seed.
type seedFile struct {
	Nodes []Node `yaml:"nodes"`
}

// SeedFromFile loads node records from a YAML file into the store and
// returns how many were written.
func (s *Store) SeedFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file: %w", err)
	}
	return s.seed(ctx, data)
}

func (s *Store) seed(ctx context.Context, data []byte) (int, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("failed to parse seed file: %w", err)
	}

	for i := range file.Nodes {
		n := &file.Nodes[i]
		if n.NodeType == "" {
			return 0, fmt.Errorf("seed entry %d: node_type is required", i)
		}
		if err := s.Upsert(ctx, n); err != nil {
			return 0, err
		}
	}
	return len(file.Nodes), nil
}
