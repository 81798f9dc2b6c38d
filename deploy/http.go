// ABOUTME: Deployer that POSTs a relocation request to an external mover service
// ABOUTME: Payload built with sjson, response status read with gjson

package deploy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/markalston/spare-capacity/fleet"
	"github.com/markalston/spare-capacity/maintain"
)

// HTTPDeployer implements maintain.Deployer by POSTing a move request to a
// configured URL. The receiving service is expected to be whatever
// orchestrator actually knows how to live-migrate or recreate a tenant
// workload (a BOSH errand, a CF `cf restart-app-instance`, a vMotion
// trigger); this client only carries the request and interprets the
// response, a thin client over an opinionated payload.
type HTTPDeployer struct {
	url    string
	client *http.Client
}

// NewHTTPDeployer builds an HTTPDeployer that posts to url with the given
// per-request timeout.
func NewHTTPDeployer(url string, timeout time.Duration) *HTTPDeployer {
	return &HTTPDeployer{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// ExecuteMove builds a JSON payload describing move and reason, patches in
// the tenant's and hosts' hostnames with sjson (the caller only has
// fleet.NodeID values, and the wire format wants names), and interprets
// the response body's "status" field as a maintain.MoveOutcome.
func (d *HTTPDeployer) ExecuteMove(ctx context.Context, move fleet.Move, snap *fleet.FleetSnapshot, reason string) (maintain.MoveOutcome, error) {
	payload, err := buildPayload(move, snap, reason)
	if err != nil {
		return maintain.MoveRefused, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, strings.NewReader(payload))
	if err != nil {
		return maintain.MoveRefused, fmt.Errorf("deploy: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return maintain.MoveRefused, fmt.Errorf("deploy: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return maintain.MoveRefused, fmt.Errorf("deploy: reading response: %w", err)
	}

	if resp.StatusCode == http.StatusConflict {
		return maintain.MoveInProgress, nil
	}
	if resp.StatusCode >= 300 {
		return maintain.MoveRefused, fmt.Errorf("deploy: mover returned %d: %s", resp.StatusCode, body)
	}

	return parseOutcome(gjson.GetBytes(body, "status").String())
}

func buildPayload(move fleet.Move, snap *fleet.FleetSnapshot, reason string) (string, error) {
	tenant, ok := snap.Node(move.Tenant)
	if !ok {
		return "", fmt.Errorf("deploy: tenant %d not found in snapshot", move.Tenant)
	}
	fromHost, ok := snap.Node(move.FromHost)
	if !ok {
		return "", fmt.Errorf("deploy: source host %d not found in snapshot", move.FromHost)
	}
	toHost, ok := snap.Node(move.ToHost)
	if !ok {
		return "", fmt.Errorf("deploy: destination host %d not found in snapshot", move.ToHost)
	}

	payload := "{}"
	var err error
	for _, kv := range [][2]string{
		{"tenant", tenant.Hostname},
		{"fromHost", fromHost.Hostname},
		{"toHost", toHost.Hostname},
		{"reason", reason},
	} {
		payload, err = sjson.Set(payload, kv[0], kv[1])
		if err != nil {
			return "", fmt.Errorf("deploy: building payload: %w", err)
		}
	}
	return payload, nil
}

func parseOutcome(status string) (maintain.MoveOutcome, error) {
	switch status {
	case "done", "completed":
		return maintain.MoveDone, nil
	case "in-progress", "accepted", "pending":
		return maintain.MoveInProgress, nil
	case "refused", "rejected", "":
		return maintain.MoveRefused, nil
	default:
		return maintain.MoveRefused, fmt.Errorf("deploy: unrecognized mover status %q", status)
	}
}
