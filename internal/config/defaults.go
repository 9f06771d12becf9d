package config

import (
	"time"
)

// GetDefaultConfig returns the built-in configuration. User configuration
// is layered on top of this, so every field has a usable value here.
func GetDefaultConfig() Config {
	return Config{
		ServicesRoot: "", // resolved to ~/.nodectl/services by the loader
		Docker: DockerSettings{
			Binary:  "docker",
			Compose: "compose",
		},
		Networks: NetworkNames{
			Monitoring:    "monitoring-net",
			Validator:     "validator-net",
			Signer:        "signer-net",
			EthnodeSuffix: "-net",
		},
		Ports: []PortCategory{
			{Name: CategoryELRPC, Start: 8545, End: 8560},
			{Name: CategoryELP2P, Start: 30303, End: 30400},
			{Name: CategoryCLAPI, Start: 5052, End: 5072},
			{Name: CategoryCLP2P, Start: 9000, End: 9100},
			{Name: CategoryMEV, Start: 18550, End: 18600},
			{Name: CategoryMetrics, Start: 6060, End: 6200},
			{Name: CategorySigner, Start: 7500, End: 7520},
			{Name: CategoryDashboard, Start: 3000, End: 3030},
		},
		Ethnode: EthnodeDefaults{
			Execution: "geth",
			Consensus: "lighthouse",
			Mev:       false,
		},
		Integration: IntegrationSettings{
			DetachDelay: 15 * time.Second,
		},
	}
}
