// Package app wires startup concerns shared by the CLI and the server:
// resolving which node this process runs as and loading its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"tasknode/internal/config"
	"tasknode/internal/store"
)

// ResolveNodeConfig picks the active node id and ensures a config document
// exists in the database, seeding the default on first run. An override id
// wins; otherwise a single previously stored config identifies the node.
func ResolveNodeConfig(ctx context.Context, nodeOverride string, s store.Store, now time.Time) (string, *config.Config, error) {
	nodeID := nodeOverride
	if nodeID == "" {
		id, err := s.SingleNodeID(ctx)
		if err != nil {
			return "", nil, fmt.Errorf("node not specified; use --node")
		}
		nodeID = id
	}
	raw, err := s.GetNodeConfig(ctx, nodeID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return "", nil, err
		}
		seed := config.Default(nodeID)
		data, err := yaml.Marshal(seed)
		if err != nil {
			return "", nil, fmt.Errorf("seed node config: %w", err)
		}
		if err := s.UpsertNodeConfig(ctx, nodeID, string(data), now); err != nil {
			return "", nil, fmt.Errorf("seed node config: %w", err)
		}
		return nodeID, seed, nil
	}
	cfg, err := config.FromYAML([]byte(raw))
	if err != nil {
		return "", nil, err
	}
	cfg.Node.ID = nodeID
	return nodeID, cfg, nil
}

// ImportConfig validates and stores a config document for its node id.
func ImportConfig(ctx context.Context, s store.Store, data []byte, now time.Time) (*config.Config, error) {
	cfg, err := config.FromYAML(data)
	if err != nil {
		return nil, err
	}
	if err := s.UpsertNodeConfig(ctx, cfg.Node.ID, string(data), now); err != nil {
		return nil, err
	}
	return cfg, nil
}
