package snapshot

import "testing"

func TestSanitizeHostname(t *testing.T) {
	cases := map[string]string{
		"Diego Cell 01": "diego-cell-01",
		"WEB_APP-guid":  "web-app-guid",
		"  spaced  ":    "spaced",
		"already-clean": "already-clean",
	}
	for in, want := range cases {
		if got := sanitizeHostname(in); got != want {
			t.Errorf("sanitizeHostname(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildSnapshot_PlacesInstancesOnFittingCells(t *testing.T) {
	cells := []cell{
		{name: "diego_cell-0", totalMemMB: 16384, usedMemMB: 0},
		{name: "diego_cell-1", totalMemMB: 4096, usedMemMB: 0},
	}
	instances := []appInstance{
		{name: "big-app-web-0", memoryMB: 8192, diskMB: 1024},
		{name: "small-app-web-0", memoryMB: 512, diskMB: 256},
	}

	snap, err := buildSnapshot(cells, instances)
	if err != nil {
		t.Fatalf("buildSnapshot() error = %v", err)
	}

	cell0, ok := snap.ByHostname("diego-cell-0")
	if !ok {
		t.Fatal("expected diego-cell-0 to exist")
	}
	kids := snap.ChildrenOf(cell0.ID)
	if len(kids) != 1 || kids[0].Hostname != "big-app-web-0" {
		t.Errorf("expected the big instance placed on the roomier cell, got %+v", kids)
	}
}

func TestBuildSnapshot_UnplaceableInstanceIsDropped(t *testing.T) {
	cells := []cell{{name: "diego_cell-0", totalMemMB: 1024, usedMemMB: 0}}
	instances := []appInstance{{name: "huge-app-web-0", memoryMB: 4096, diskMB: 1024}}

	snap, err := buildSnapshot(cells, instances)
	if err != nil {
		t.Fatalf("buildSnapshot() error = %v", err)
	}
	if len(snap.All()) != 1 {
		t.Errorf("expected only the cell node, unplaceable instance dropped; got %d nodes", len(snap.All()))
	}
}

func TestBuildSnapshot_OccupiedCapacityBecomesSyntheticTenant(t *testing.T) {
	cells := []cell{{name: "diego_cell-0", totalMemMB: 4096, usedMemMB: 2048, cpuPercent: 40}}

	snap, err := buildSnapshot(cells, nil)
	if err != nil {
		t.Fatalf("buildSnapshot() error = %v", err)
	}
	host, _ := snap.ByHostname("diego-cell-0")
	kids := snap.ChildrenOf(host.ID)
	if len(kids) != 1 || kids[0].Hostname != "diego-cell-0-occupied" {
		t.Fatalf("expected one synthetic occupied tenant, got %+v", kids)
	}
}
