package app

import (
	"context"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"tasknode/internal/config"
	"tasknode/internal/db"
	"tasknode/internal/migrate"
	"tasknode/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(conn)
}

func TestResolveNodeConfigSeedsDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	nodeID, cfg, err := ResolveNodeConfig(ctx, "node-1", s, now)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if nodeID != "node-1" || cfg.Node.Address == "" {
		t.Fatalf("unexpected seed: %s %+v", nodeID, cfg)
	}

	// The seeded document is now stored and a second resolve reads it back.
	raw, err := s.GetNodeConfig(ctx, "node-1")
	if err != nil {
		t.Fatalf("stored config missing: %v", err)
	}
	if raw == "" {
		t.Fatal("stored config empty")
	}
	_, again, err := ResolveNodeConfig(ctx, "node-1", s, now)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if again.Node.Address != cfg.Node.Address {
		t.Fatalf("reloaded config differs: %s vs %s", again.Node.Address, cfg.Node.Address)
	}
}

func TestResolveNodeConfigWithoutOverride(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// No stored configs and no override: the node cannot be identified.
	if _, _, err := ResolveNodeConfig(ctx, "", s, now); err == nil {
		t.Fatal("expected error when no node is identifiable")
	}

	// A single stored config identifies the node.
	if _, _, err := ResolveNodeConfig(ctx, "node-1", s, now); err != nil {
		t.Fatalf("seed: %v", err)
	}
	nodeID, _, err := ResolveNodeConfig(ctx, "", s, now)
	if err != nil {
		t.Fatalf("resolve without override: %v", err)
	}
	if nodeID != "node-1" {
		t.Fatalf("node id = %s", nodeID)
	}
}

func TestImportConfig(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	cfg := config.Default("node-2")
	cfg.Gates.MinRiteLength = 25
	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	imported, err := ImportConfig(ctx, s, data, now)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imported.Node.ID != "node-2" || imported.Gates.MinRiteLength != 25 {
		t.Fatalf("imported config wrong: %+v", imported)
	}

	_, loaded, err := ResolveNodeConfig(ctx, "node-2", s, now)
	if err != nil {
		t.Fatalf("resolve imported: %v", err)
	}
	if loaded.Gates.MinRiteLength != 25 {
		t.Fatalf("stored rite length = %d", loaded.Gates.MinRiteLength)
	}

	if _, err := ImportConfig(ctx, s, []byte("node: [broken"), now); err == nil {
		t.Fatal("expected yaml error")
	}
}
