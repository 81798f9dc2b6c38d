package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, nodes string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fleet.json")
	if err := os.WriteFile(path, []byte(nodes), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

const healthyFleet = `[
  {"hostname": "h1", "cpu": 8, "memory": 16},
  {"hostname": "h2", "cpu": 8, "memory": 16},
  {"hostname": "h3", "cpu": 8, "memory": 16},
  {"hostname": "h4", "cpu": 8, "memory": 16},
  {"hostname": "t1", "parent": "h1", "cpu": 2, "memory": 4},
  {"hostname": "t2", "parent": "h2", "cpu": 2, "memory": 4},
  {"hostname": "t3", "parent": "h3", "cpu": 2, "memory": 4},
  {"hostname": "t4", "parent": "h4", "cpu": 2, "memory": 4}
]`

const overcommittedFleet = `[
  {"hostname": "h1", "cpu": 8, "memory": 16},
  {"hostname": "t1", "parent": "h1", "cpu": 10, "memory": 20}
]`

func withFixture(t *testing.T, path string, fn func()) {
	t.Helper()
	origFixture := fixturePath
	origJSON := jsonOutput
	origMinSlack := minSlack
	origAllowOvercommit := allowOvercommit
	defer func() {
		fixturePath = origFixture
		jsonOutput = origJSON
		minSlack = origMinSlack
		allowOvercommit = origAllowOvercommit
	}()

	fixturePath = path
	minSlack = 1
	allowOvercommit = false
	fn()
}

func TestRunCheck_PassesOnHealthyFleet(t *testing.T) {
	path := writeFixture(t, healthyFleet)
	withFixture(t, path, func() {
		var buf bytes.Buffer
		code := runCheck(context.Background(), &buf)
		if code != 0 {
			t.Errorf("runCheck() = %d, want 0; output:\n%s", code, buf.String())
		}
	})
}

func TestRunCheck_FailsOnOvercommit(t *testing.T) {
	path := writeFixture(t, overcommittedFleet)
	withFixture(t, path, func() {
		var buf bytes.Buffer
		code := runCheck(context.Background(), &buf)
		if code != 1 {
			t.Errorf("runCheck() = %d, want 1; output:\n%s", code, buf.String())
		}
	})
}

func TestRunCheck_AllowOvercommitPasses(t *testing.T) {
	path := writeFixture(t, overcommittedFleet)
	withFixture(t, path, func() {
		allowOvercommit = true
		var buf bytes.Buffer
		code := runCheck(context.Background(), &buf)
		if code != 0 {
			t.Errorf("runCheck() = %d, want 0 with --allow-overcommit; output:\n%s", code, buf.String())
		}
	})
}

func TestRunCheck_ErrorOnMissingFixture(t *testing.T) {
	withFixture(t, "/nonexistent/fleet.json", func() {
		var buf bytes.Buffer
		code := runCheck(context.Background(), &buf)
		if code != 2 {
			t.Errorf("runCheck() = %d, want 2 on missing fixture; output:\n%s", code, buf.String())
		}
	})
}

func TestRunCheck_JSONOutputIsValid(t *testing.T) {
	path := writeFixture(t, healthyFleet)
	withFixture(t, path, func() {
		jsonOutput = true
		var buf bytes.Buffer
		runCheck(context.Background(), &buf)
		if !bytes.Contains(buf.Bytes(), []byte(`"passed"`)) {
			t.Errorf("expected JSON output to contain \"passed\", got:\n%s", buf.String())
		}
	})
}
