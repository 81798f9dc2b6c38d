// ABOUTME: Builds a SnapshotProvider from the daemon's own config plus the --fixture override
// ABOUTME: Shared by check, plan and watch so all three read the fleet the same way

package cmd

import (
	"fmt"

	"github.com/markalston/spare-capacity/config"
	"github.com/markalston/spare-capacity/snapshot"
)

func buildProvider() (snapshot.Provider, error) {
	if fixturePath != "" {
		return snapshot.NewFixtureProvider(fixturePath), nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	switch cfg.SnapshotSource {
	case config.SourceFixture:
		return snapshot.NewFixtureProvider(cfg.FixturePath), nil
	case config.SourceVSphere:
		return snapshot.NewVSphereProvider(snapshot.VSphereConfig{
			Host:       cfg.VSphereHost,
			Username:   cfg.VSphereUsername,
			Password:   cfg.VSpherePassword,
			Datacenter: cfg.VSphereDatacenter,
			Insecure:   cfg.VSphereInsecure,
		}), nil
	case config.SourceCloudFoundry:
		return snapshot.NewCloudFoundryProvider(snapshot.CloudFoundryConfig{
			CFAPIUrl:        cfg.CFAPIUrl,
			CFUsername:      cfg.CFUsername,
			CFPassword:      cfg.CFPassword,
			CFInsecure:      cfg.CFSkipSSLValidation,
			BOSHEnvironment: cfg.BOSHEnvironment,
			BOSHClient:      cfg.BOSHClient,
			BOSHSecret:      cfg.BOSHSecret,
			BOSHDeployment:  cfg.BOSHDeployment,
			BOSHInsecure:    cfg.BOSHSkipSSLValidation,
		}), nil
	default:
		return nil, fmt.Errorf("unknown snapshot source %q", cfg.SnapshotSource)
	}
}
