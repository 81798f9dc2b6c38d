package deploy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"github.com/markalston/spare-capacity/fleet"
)

func testSnapshot(t *testing.T) *fleet.FleetSnapshot {
	t.Helper()
	snap, err := fleet.NewSnapshot([]fleet.Node{
		{ID: 0, Hostname: "host-a", Parent: fleet.NoParent},
		{ID: 1, Hostname: "host-b", Parent: fleet.NoParent},
		{ID: 2, Hostname: "tenant-1", Parent: 0},
	})
	if err != nil {
		t.Fatalf("building snapshot: %v", err)
	}
	return snap
}

func TestExecuteMove_SendsExpectedPayload(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		gotBody = buf
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"done"}`))
	}))
	defer srv.Close()

	d := NewHTTPDeployer(srv.URL, time.Second)
	snap := testSnapshot(t)
	move := fleet.Move{Tenant: 2, FromHost: 0, ToHost: 1}

	outcome, err := d.ExecuteMove(context.Background(), move, snap, "shedding overcommitted host")
	if err != nil {
		t.Fatalf("ExecuteMove() error = %v", err)
	}
	if outcome != 0 {
		t.Errorf("expected MoveDone, got %v", outcome)
	}

	if got := gjson.GetBytes(gotBody, "tenant").String(); got != "tenant-1" {
		t.Errorf("payload tenant = %q, want tenant-1", got)
	}
	if got := gjson.GetBytes(gotBody, "fromHost").String(); got != "host-a" {
		t.Errorf("payload fromHost = %q, want host-a", got)
	}
	if got := gjson.GetBytes(gotBody, "toHost").String(); got != "host-b" {
		t.Errorf("payload toHost = %q, want host-b", got)
	}
	if got := gjson.GetBytes(gotBody, "reason").String(); got != "shedding overcommitted host" {
		t.Errorf("payload reason = %q", got)
	}
}

func TestExecuteMove_ConflictMeansInProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	d := NewHTTPDeployer(srv.URL, time.Second)
	outcome, err := d.ExecuteMove(context.Background(), fleet.Move{Tenant: 2, FromHost: 0, ToHost: 1}, testSnapshot(t), "r")
	if err != nil {
		t.Fatalf("ExecuteMove() error = %v", err)
	}
	if outcome != 1 {
		t.Errorf("expected MoveInProgress, got %v", outcome)
	}
}

func TestExecuteMove_ServerErrorIsRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewHTTPDeployer(srv.URL, time.Second)
	_, err := d.ExecuteMove(context.Background(), fleet.Move{Tenant: 2, FromHost: 0, ToHost: 1}, testSnapshot(t), "r")
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestExecuteMove_UnknownNodeIsRefused(t *testing.T) {
	d := NewHTTPDeployer("http://unused", time.Second)
	snap := testSnapshot(t)
	_, err := d.ExecuteMove(context.Background(), fleet.Move{Tenant: 99, FromHost: 0, ToHost: 1}, snap, "r")
	if err == nil {
		t.Fatal("expected error for unknown tenant node")
	}
}
