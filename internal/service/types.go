package service

import (
	"errors"
	"fmt"

	"nodectl/internal/envfile"
)

// Kind classifies a service instance. Every lifecycle flow, resource
// pattern and network rule is defined per kind.
type Kind string

const (
	KindEthnode    Kind = "Ethnode"    // paired execution+consensus clients on an isolated network
	KindValidator  Kind = "Validator"  // proposes/attests using keys held by the signer
	KindSigner     Kind = "Signer"     // remote key custody (web3signer)
	KindMonitoring Kind = "Monitoring" // metrics/dashboard stack observing the fleet
	KindPlugin     Kind = "Plugin"     // optional add-on container group
)

// Kinds lists every service kind, in dependency-friendly order.
func Kinds() []Kind {
	return []Kind{KindSigner, KindEthnode, KindValidator, KindMonitoring, KindPlugin}
}

// Instance is one installed service: a directory under the services
// root holding its ordered key=value configuration and compose
// fragments. Running/stopped status is never part of this struct; it is
// always derived live from the container runtime.
type Instance struct {
	Name   string
	Kind   Kind
	Dir    string
	Config *envfile.File
}

// Configuration keys recognized across the system.
const (
	// KeyComposeFile is the colon-separated list of compose fragments
	// that make up the instance's container group.
	KeyComposeFile = "COMPOSE_FILE"

	// KeyServiceKind records the resolved kind, informational only; the
	// naming convention remains the source of truth.
	KeyServiceKind = "SERVICE_KIND"

	// KeyBeaconNodes holds a Validator's upstream consensus endpoints,
	// comma-separated URLs.
	KeyBeaconNodes = "BEACON_NODES"

	// KeyEthnodeRefs optionally names a Validator's upstream Ethnodes
	// explicitly (comma-separated instance names). When present it
	// overrides derivation from KeyBeaconNodes hosts.
	KeyEthnodeRefs = "VALIDATOR_ETHNODES"

	// KeyWeb3signerURL points a Validator at the signer endpoint.
	KeyWeb3signerURL = "WEB3SIGNER_URL"

	// KeyExecutionClient and KeyConsensusClient select the client pair an
	// Ethnode runs. KeyMevEnabled adds the relay sidecar.
	KeyExecutionClient = "EL_CLIENT"
	KeyConsensusClient = "CL_CLIENT"
	KeyMevEnabled      = "MEV_ENABLED"

	// PortKeySuffix marks configuration keys whose numeric values are
	// host ports; the allocator's used-port snapshot collects them.
	PortKeySuffix = "_PORT"
)

// Port configuration keys. The allocator assigns their values at
// install; compose fragments interpolate them into host port bindings.
const (
	KeyELRPCPort      = "EL_RPC_PORT"
	KeyELWSPort       = "EL_WS_PORT"
	KeyELP2PPort      = "EL_P2P_PORT"
	KeyELMetricsPort  = "EL_METRICS_PORT"
	KeyCLAPIPort      = "CL_API_PORT"
	KeyCLP2PPort      = "CL_P2P_PORT"
	KeyCLMetricsPort  = "CL_METRICS_PORT"
	KeyMevPort        = "MEV_PORT"
	KeyVCMetricsPort  = "VC_METRICS_PORT"
	KeySignerPort     = "SIGNER_PORT"
	KeyGrafanaPort    = "GRAFANA_PORT"
	KeyPrometheusPort = "PROMETHEUS_PORT"
)

// ErrNotInstalled reports an instance name with no directory under the
// services root.
var ErrNotInstalled = errors.New("service is not installed")

// ErrAlreadyInstalled reports an install against an existing instance.
var ErrAlreadyInstalled = errors.New("service is already installed")

// ConfigurationError is fatal before any side effect: an unknown or
// malformed service name, or a flow definition the executor cannot run.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// NewConfigurationError builds a ConfigurationError from a format string.
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err is (or wraps) a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
