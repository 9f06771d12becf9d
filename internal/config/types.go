package config

import (
	"time"
)

// Config is the top-level configuration structure for nodectl.
type Config struct {
	// ServicesRoot is the directory under which every service instance
	// keeps its own subdirectory (configuration, compose fragments, data
	// mounts). Directory name == instance name.
	ServicesRoot string `yaml:"servicesRoot,omitempty"`

	Docker      DockerSettings      `yaml:"docker,omitempty"`
	Networks    NetworkNames        `yaml:"networks,omitempty"`
	Ports       []PortCategory      `yaml:"portCategories,omitempty"`
	Ethnode     EthnodeDefaults     `yaml:"ethnode,omitempty"`
	Integration IntegrationSettings `yaml:"integration,omitempty"`
}

// DockerSettings selects how nodectl reaches the container runtime.
// All container operations go through the CLI of the configured binary.
type DockerSettings struct {
	Binary  string `yaml:"binary,omitempty"`  // e.g. "docker", "podman"
	Compose string `yaml:"compose,omitempty"` // compose subcommand, e.g. "compose"
}

// NetworkNames holds the names of the shared networks plus the suffix
// appended to an Ethnode instance name to form its isolated network.
type NetworkNames struct {
	Monitoring    string `yaml:"monitoring,omitempty"`
	Validator     string `yaml:"validator,omitempty"`
	Signer        string `yaml:"signer,omitempty"`
	EthnodeSuffix string `yaml:"ethnodeSuffix,omitempty"`
}

// EthnodeNetwork returns the isolated network name for an Ethnode instance.
func (n NetworkNames) EthnodeNetwork(instanceName string) string {
	return instanceName + n.EthnodeSuffix
}

// PortCategory is a named, half-open host port range [Start, End) from
// which the allocator assigns ports of one kind (execution RPC,
// consensus P2P, metrics, ...).
type PortCategory struct {
	Name  string `yaml:"name"`
	Start int    `yaml:"start"`
	End   int    `yaml:"end"` // exclusive
}

// Contains reports whether p falls inside the category range.
func (c PortCategory) Contains(p int) bool {
	return p >= c.Start && p < c.End
}

// Well-known port category names consumed by the installers.
const (
	CategoryELRPC     = "el-rpc"
	CategoryELP2P     = "el-p2p"
	CategoryCLAPI     = "cl-api"
	CategoryCLP2P     = "cl-p2p"
	CategoryMEV       = "mev"
	CategoryMetrics   = "metrics"
	CategorySigner    = "signer"
	CategoryDashboard = "dashboard"
)

// EthnodeDefaults selects the client pair composed into a new Ethnode
// when the install command does not override them.
type EthnodeDefaults struct {
	Execution string `yaml:"execution,omitempty"` // e.g. "geth", "nethermind"
	Consensus string `yaml:"consensus,omitempty"` // e.g. "lighthouse", "teku"
	Mev       bool   `yaml:"mev,omitempty"`       // include the mev-boost sidecar
}

// IntegrationSettings tunes the cross-service integration behaviour.
type IntegrationSettings struct {
	// DetachDelay is how long after a start the detached integration
	// task (e.g. attaching monitoring to every Ethnode network) waits
	// before running.
	DetachDelay time.Duration `yaml:"detachDelay,omitempty"`
}

// Category returns the port category with the given name.
func (c Config) Category(name string) (PortCategory, bool) {
	for _, cat := range c.Ports {
		if cat.Name == name {
			return cat, true
		}
	}
	return PortCategory{}, false
}
