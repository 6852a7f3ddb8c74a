package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// UpsertNodeConfig stores the YAML config document for a node id.
func (s Store) UpsertNodeConfig(ctx context.Context, nodeID, configYAML string, now time.Time) error {
	if nodeID == "" {
		return errors.New("node_id required")
	}
	ts := now.UTC().Format(time.RFC3339)
	_, err := s.DB.ExecContext(ctx, `INSERT INTO node_configs(node_id, config_json, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET config_json = excluded.config_json, updated_at = excluded.updated_at`,
		nodeID, configYAML, ts, ts)
	return err
}

// SingleNodeID returns the node id when exactly one config is stored.
func (s Store) SingleNodeID(ctx context.Context) (string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT node_id FROM node_configs LIMIT 2`)
	if err != nil {
		return "", err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if len(ids) != 1 {
		return "", ErrNotFound
	}
	return ids[0], nil
}

// GetNodeConfig returns the stored config document for a node id.
func (s Store) GetNodeConfig(ctx context.Context, nodeID string) (string, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT config_json FROM node_configs WHERE node_id=?`, nodeID)
	var raw string
	err := row.Scan(&raw)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return raw, nil
}
