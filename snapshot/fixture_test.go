package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fleet.json")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestFixtureProvider_ParsesHostsAndTenants(t *testing.T) {
	path := writeFixture(t, `[
		{"hostname": "h1", "cpu": 8, "memory": 16},
		{"hostname": "t1", "parent": "h1", "cpu": 4, "memory": 8}
	]`)

	snap, err := NewFixtureProvider(path).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	h1, ok := snap.ByHostname("h1")
	if !ok || !h1.IsHost() {
		t.Fatalf("expected h1 to be a host, got %+v (ok=%v)", h1, ok)
	}
	children := snap.ChildrenOf(h1.ID)
	if len(children) != 1 || children[0].Hostname != "t1" {
		t.Fatalf("expected h1 to have child t1, got %+v", children)
	}
}

func TestFixtureProvider_UnknownParentIsAnError(t *testing.T) {
	path := writeFixture(t, `[{"hostname": "t1", "parent": "ghost", "cpu": 1, "memory": 1}]`)

	_, err := NewFixtureProvider(path).Snapshot(context.Background())
	if err == nil {
		t.Fatal("expected error for unknown parent, got nil")
	}
}

func TestFixtureProvider_MissingFile(t *testing.T) {
	_, err := NewFixtureProvider("/nonexistent/path.json").Snapshot(context.Background())
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestFixtureProvider_CategoricalAxesAndRetirement(t *testing.T) {
	path := writeFixture(t, `[
		{"hostname": "h1", "cpu": 8, "memory": 16, "diskSpeed": "fast", "storage": "local"},
		{"hostname": "t1", "parent": "h1", "cpu": 1, "memory": 1, "diskSpeed": "fast", "retired": true, "owner": "team-a"}
	]`)

	snap, err := NewFixtureProvider(path).Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	t1, ok := snap.ByHostname("t1")
	if !ok {
		t.Fatal("expected t1 to exist")
	}
	if !t1.Alloc.Retired || t1.Alloc.Owner != "team-a" {
		t.Errorf("expected t1 retired by team-a, got %+v", t1.Alloc)
	}
}
