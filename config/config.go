// ABOUTME: Configuration loader for the spare-capacity maintainer daemon
// ABOUTME: Loads settings from environment variables (with .env support) and validates them

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SnapshotSource selects which SnapshotProvider the daemon wires up.
type SnapshotSource string

const (
	SourceCloudFoundry SnapshotSource = "cloudfoundry"
	SourceVSphere      SnapshotSource = "vsphere"
	SourceFixture      SnapshotSource = "fixture"
)

// Config holds every knob the maintainer daemon reads at startup. The four
// fields under "Tick scheduling and solver tuning" are the control loop's
// own tuning table; everything else is ambient wiring for whichever
// SnapshotProvider and Deployer backend an operator points the daemon at.
type Config struct {
	// Server
	Port     string
	LogLevel string
	LogFmt   string

	// Tick scheduling and solver tuning
	TickInterval          time.Duration
	MaxIterations         int
	MaxEvictionSubsetSize int
	MaxConsideredNodes    int

	// Snapshot source selection
	SnapshotSource SnapshotSource
	SnapshotTTL    time.Duration

	// Cloud Foundry / BOSH (used when SnapshotSource == cloudfoundry)
	CFAPIUrl            string
	CFUsername          string
	CFPassword          string
	CFSkipSSLValidation bool

	BOSHEnvironment       string
	BOSHClient            string
	BOSHSecret            string
	BOSHCACert            string
	BOSHDeployment        string
	BOSHSkipSSLValidation bool

	// vSphere (used when SnapshotSource == vsphere)
	VSphereHost       string
	VSphereUsername   string
	VSpherePassword   string
	VSphereDatacenter string
	VSphereInsecure   bool

	// Fixture (used when SnapshotSource == fixture)
	FixturePath string

	// Deployer: where the daemon POSTs move requests
	DeployerURL     string
	DeployerTimeout time.Duration
}

// VSphereConfigured returns true if vSphere credentials are set.
func (c *Config) VSphereConfigured() bool {
	return c.VSphereHost != "" && c.VSphereUsername != "" && c.VSpherePassword != "" && c.VSphereDatacenter != ""
}

// CloudFoundryConfigured returns true if CF credentials are set.
func (c *Config) CloudFoundryConfigured() bool {
	return c.CFAPIUrl != "" && c.CFUsername != "" && c.CFPassword != ""
}

// Load reads configuration from a local .env file (if present) and then
// the process environment, validating only after every field has a value.
func Load() (*Config, error) {
	// A missing .env is not an error: operators running the daemon inside
	// a container or under systemd rely on the process environment alone.
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFmt:   getEnv("LOG_FORMAT", "text"),

		TickInterval:          getEnvDuration("TICK_INTERVAL", 30*time.Second),
		MaxIterations:         getEnvInt("MAX_ITERATIONS", 10_000),
		MaxEvictionSubsetSize: getEnvInt("MAX_EVICTION_SUBSET_SIZE", 5),
		MaxConsideredNodes:    getEnvInt("MAX_CONSIDERED_NODES", 31),

		SnapshotSource: SnapshotSource(getEnv("SNAPSHOT_SOURCE", string(SourceFixture))),
		SnapshotTTL:    getEnvDuration("SNAPSHOT_CACHE_TTL", 30*time.Second),

		CFAPIUrl:            ensureScheme(os.Getenv("CF_API_URL")),
		CFUsername:          os.Getenv("CF_USERNAME"),
		CFPassword:          os.Getenv("CF_PASSWORD"),
		CFSkipSSLValidation: getEnvBool("CF_SKIP_SSL_VALIDATION", false),

		BOSHEnvironment:       ensureScheme(os.Getenv("BOSH_ENVIRONMENT")),
		BOSHClient:            os.Getenv("BOSH_CLIENT"),
		BOSHSecret:            os.Getenv("BOSH_CLIENT_SECRET"),
		BOSHCACert:            os.Getenv("BOSH_CA_CERT"),
		BOSHDeployment:        os.Getenv("BOSH_DEPLOYMENT"),
		BOSHSkipSSLValidation: getEnvBool("BOSH_SKIP_SSL_VALIDATION", false),

		VSphereHost:       os.Getenv("VSPHERE_HOST"),
		VSphereUsername:   os.Getenv("VSPHERE_USERNAME"),
		VSpherePassword:   os.Getenv("VSPHERE_PASSWORD"),
		VSphereDatacenter: os.Getenv("VSPHERE_DATACENTER"),
		VSphereInsecure:   getEnvBool("VSPHERE_INSECURE", false),

		FixturePath: os.Getenv("FIXTURE_PATH"),

		DeployerURL:     os.Getenv("DEPLOYER_URL"),
		DeployerTimeout: getEnvDuration("DEPLOYER_TIMEOUT", 30*time.Second),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.SnapshotSource {
	case SourceCloudFoundry:
		if !c.CloudFoundryConfigured() {
			return fmt.Errorf("SNAPSHOT_SOURCE=cloudfoundry requires CF_API_URL, CF_USERNAME and CF_PASSWORD")
		}
	case SourceVSphere:
		if !c.VSphereConfigured() {
			return fmt.Errorf("SNAPSHOT_SOURCE=vsphere requires VSPHERE_HOST, VSPHERE_USERNAME, VSPHERE_PASSWORD and VSPHERE_DATACENTER")
		}
	case SourceFixture:
		if c.FixturePath == "" {
			return fmt.Errorf("SNAPSHOT_SOURCE=fixture requires FIXTURE_PATH")
		}
	default:
		return fmt.Errorf("unknown SNAPSHOT_SOURCE %q: want cloudfoundry, vsphere or fixture", c.SnapshotSource)
	}

	if c.MaxIterations < 1 {
		return fmt.Errorf("MAX_ITERATIONS must be positive, got %d", c.MaxIterations)
	}
	if c.MaxEvictionSubsetSize < 1 {
		return fmt.Errorf("MAX_EVICTION_SUBSET_SIZE must be positive, got %d", c.MaxEvictionSubsetSize)
	}
	if c.MaxConsideredNodes < 1 || c.MaxConsideredNodes > 31 {
		return fmt.Errorf("MAX_CONSIDERED_NODES must be between 1 and 31, got %d", c.MaxConsideredNodes)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// ensureScheme adds an https:// prefix if the URL has no scheme.
func ensureScheme(url string) string {
	if url == "" {
		return url
	}
	if !strings.Contains(url, "://") {
		return "https://" + url
	}
	return url
}
