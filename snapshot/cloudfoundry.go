// ABOUTME: SnapshotProvider backed by Cloud Foundry + BOSH, mapping Diego cells and app instances onto the fleet arena
// ABOUTME: UAA-authenticated HTTP clients against both APIs, walking responses with gjson

package snapshot

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/markalston/spare-capacity/fleet"
	"github.com/markalston/spare-capacity/resources"
)

// CloudFoundryConfig holds CF and BOSH connection settings.
type CloudFoundryConfig struct {
	CFAPIUrl   string
	CFUsername string
	CFPassword string
	CFInsecure bool

	BOSHEnvironment string
	BOSHClient      string
	BOSHSecret      string
	BOSHDeployment  string
	BOSHInsecure    bool
}

// CloudFoundryProvider is a maintain.SnapshotProvider that treats each
// Diego cell VM (discovered via the BOSH director) as a fleet host and
// each Cloud Foundry app instance (discovered via the CF API) as a
// tenant. Cells' already-occupied capacity (BOSH vitals report only an
// aggregate used percentage, not which apps occupy it - the Diego BBS
// actual-LRP API would, but this client never talks to it) is represented
// by one synthetic per-cell tenant so the arithmetic in HostCapacity stays
// correct; freshly listed CF app instances are then distributed across
// the remaining free capacity with a best-fit-decreasing placement.
type CloudFoundryProvider struct {
	cfg    CloudFoundryConfig
	client *http.Client
}

// NewCloudFoundryProvider builds a CloudFoundryProvider from connection
// settings. If BOSH_ALL_PROXY or CF_SOCKS_PROXY is set in the process
// environment, HTTP calls are tunnelled through the described SSH+SOCKS5
// proxy, exactly as BOSH and CF operators reach an isolated director.
func NewCloudFoundryProvider(cfg CloudFoundryConfig) *CloudFoundryProvider {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.CFInsecure || cfg.BOSHInsecure}, //nolint:gosec // explicit operator opt-in
	}
	if allProxy := firstNonEmpty(os.Getenv("BOSH_ALL_PROXY"), os.Getenv("CF_SOCKS_PROXY")); allProxy != "" {
		if dial := socks5DialContext(allProxy); dial != nil {
			transport.DialContext = dial
		}
	}
	return &CloudFoundryProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second, Transport: transport},
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// cell is an internal representation of a Diego cell VM before it is
// turned into a fleet host node.
type cell struct {
	name       string
	totalMemMB int
	usedMemMB  int
	cpuPercent int
}

// appInstance is a single instance of a CF app, sized by its process's
// declared memory and disk quota.
type appInstance struct {
	name     string
	memoryMB int
	diskMB   int
}

// Snapshot authenticates against BOSH and CF, discovers Diego cells and
// app instances, and returns them as a fleet.FleetSnapshot.
func (p *CloudFoundryProvider) Snapshot(ctx context.Context) (*fleet.FleetSnapshot, error) {
	boshToken, err := p.boshToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloudfoundry: bosh auth: %w", err)
	}
	cells, err := p.fetchCells(ctx, boshToken)
	if err != nil {
		return nil, fmt.Errorf("cloudfoundry: fetching cells: %w", err)
	}
	if len(cells) == 0 {
		return nil, fmt.Errorf("cloudfoundry: no diego cells found in deployment %q", p.cfg.BOSHDeployment)
	}

	cfToken, err := p.cfToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloudfoundry: cf auth: %w", err)
	}
	instances, err := p.fetchAppInstances(ctx, cfToken)
	if err != nil {
		return nil, fmt.Errorf("cloudfoundry: fetching apps: %w", err)
	}

	return buildSnapshot(cells, instances)
}

func buildSnapshot(cells []cell, instances []appInstance) (*fleet.FleetSnapshot, error) {
	sort.Slice(cells, func(i, j int) bool { return cells[i].name < cells[j].name })

	var nodes []fleet.Node
	hostIDs := make([]fleet.NodeID, len(cells))
	free := make([]int, len(cells)) // MB free, tracked to drive best-fit placement below

	for i, c := range cells {
		id := fleet.NodeID(len(nodes))
		nodes = append(nodes, fleet.Node{
			ID:       id,
			Hostname: sanitizeHostname(c.name),
			Parent:   fleet.NoParent,
			State:    fleet.StateActive,
			Resources: resources.Resources{
				CPU:    100, // vitals report load as a percent of one normalized core budget
				Memory: float64(c.totalMemMB) / 1024,
			},
		})
		hostIDs[i] = id
		free[i] = c.totalMemMB - c.usedMemMB

		if c.usedMemMB > 0 {
			nodes = append(nodes, fleet.Node{
				ID:       fleet.NodeID(len(nodes)),
				Hostname: sanitizeHostname(c.name) + "-occupied",
				Parent:   id,
				State:    fleet.StateActive,
				Resources: resources.Resources{
					CPU:    float64(c.cpuPercent),
					Memory: float64(c.usedMemMB) / 1024,
				},
			})
		}
	}

	sort.Slice(instances, func(i, j int) bool { return instances[i].memoryMB > instances[j].memoryMB })

	for _, inst := range instances {
		best := -1
		for i := range cells {
			if free[i] < inst.memoryMB {
				continue
			}
			if best == -1 || free[i] < free[best] {
				best = i // tightest sufficient fit, minimizing leftover fragmentation
			}
		}
		if best == -1 {
			continue // no cell currently has room; this instance is left out of the snapshot
		}
		nodes = append(nodes, fleet.Node{
			ID:       fleet.NodeID(len(nodes)),
			Hostname: sanitizeHostname(inst.name),
			Parent:   hostIDs[best],
			State:    fleet.StateActive,
			Resources: resources.Resources{
				Memory: float64(inst.memoryMB) / 1024,
				Disk:   float64(inst.diskMB) / 1024,
			},
		})
		free[best] -= inst.memoryMB
	}

	return fleet.NewSnapshot(nodes)
}

func (p *CloudFoundryProvider) boshToken(ctx context.Context) (string, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BOSHEnvironment+"/info", nil)
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching director info: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	uaaURL := gjson.GetBytes(body, "user_authentication.options.url").String()
	if uaaURL == "" {
		return "", fmt.Errorf("director info missing UAA url")
	}
	return p.clientCredentialsToken(ctx, uaaURL, p.cfg.BOSHClient, p.cfg.BOSHSecret)
}

func (p *CloudFoundryProvider) cfToken(ctx context.Context) (string, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.CFAPIUrl+"/v3/info", nil)
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching CF info: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	uaaURL := gjson.GetBytes(body, "links.login.href").String()
	if uaaURL == "" {
		return "", fmt.Errorf("CF info missing UAA login link")
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", p.cfg.CFUsername)
	form.Set("password", p.cfg.CFPassword)
	req, _ = http.NewRequestWithContext(ctx, http.MethodPost, uaaURL+"/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("cf", "")
	resp, err = p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("authenticating with CF UAA: %w", err)
	}
	defer resp.Body.Close()
	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("CF UAA returned %d: %s", resp.StatusCode, body)
	}
	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return "", fmt.Errorf("CF UAA response missing access_token")
	}
	return token, nil
}

func (p *CloudFoundryProvider) clientCredentialsToken(ctx context.Context, uaaURL, clientID, secret string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, uaaURL+"/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(clientID, secret)
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("UAA returned %d: %s", resp.StatusCode, body)
	}
	token := gjson.GetBytes(body, "access_token").String()
	if token == "" {
		return "", fmt.Errorf("UAA response missing access_token")
	}
	return token, nil
}

// fetchCells lists the diego_cell VMs of the configured deployment via
// the BOSH director's synchronous instances endpoint and reads their
// memory vitals.
func (p *CloudFoundryProvider) fetchCells(ctx context.Context, token string) ([]cell, error) {
	reqURL := fmt.Sprintf("%s/deployments/%s/instances", p.cfg.BOSHEnvironment, p.cfg.BOSHDeployment)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("BOSH director returned %d: %s", resp.StatusCode, body)
	}

	var cells []cell
	gjson.ParseBytes(body).ForEach(func(_, vm gjson.Result) bool {
		job := vm.Get("job_name").String()
		if job != "diego_cell" && job != "compute" && job != "isolated_diego_cell" {
			return true
		}
		memKB, _ := strconv.Atoi(vm.Get("vitals.mem.kb").String())
		memPercent, _ := strconv.Atoi(vm.Get("vitals.mem.percent").String())
		cpuSys, _ := strconv.ParseFloat(vm.Get("vitals.cpu.sys").String(), 64)
		totalMB := memKB / 1024
		cells = append(cells, cell{
			name:       fmt.Sprintf("%s-%d", job, int(vm.Get("index").Int())),
			totalMemMB: totalMB,
			usedMemMB:  totalMB * memPercent / 100,
			cpuPercent: int(cpuSys),
		})
		return true
	})
	return cells, nil
}

// fetchAppInstances paginates through the CF v3 apps and processes
// endpoints, returning one appInstance per running instance.
func (p *CloudFoundryProvider) fetchAppInstances(ctx context.Context, token string) ([]appInstance, error) {
	next := p.cfg.CFAPIUrl + "/v3/apps?per_page=50"
	var instances []appInstance
	for next != "" {
		body, err := p.cfGet(ctx, next, token)
		if err != nil {
			return nil, err
		}
		next = gjson.GetBytes(body, "pagination.next.href").String()

		gjson.GetBytes(body, "resources").ForEach(func(_, app gjson.Result) bool {
			guid := app.Get("guid").String()
			name := app.Get("name").String()
			procs, err := p.cfGet(ctx, p.cfg.CFAPIUrl+"/v3/apps/"+guid+"/processes", token)
			if err != nil {
				return true // skip apps whose processes we can't read
			}
			gjson.GetBytes(procs, "resources").ForEach(func(_, proc gjson.Result) bool {
				count := int(proc.Get("instances").Int())
				mem := int(proc.Get("memory_in_mb").Int())
				disk := int(proc.Get("disk_in_mb").Int())
				procType := proc.Get("type").String()
				for i := 0; i < count; i++ {
					instances = append(instances, appInstance{
						name:     fmt.Sprintf("%s-%s-%d", name, procType, i),
						memoryMB: mem,
						diskMB:   disk,
					})
				}
				return true
			})
			return true
		})
	}
	return instances, nil
}

func (p *CloudFoundryProvider) cfGet(ctx context.Context, url, token string) ([]byte, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CF API returned %d for %s: %s", resp.StatusCode, url, body)
	}
	return body, nil
}
