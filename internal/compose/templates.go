package compose

import (
	"fmt"

	"nodectl/internal/service"
)

// Default images per supported client. The generated fragment pins the
// tag; operators move tags by editing the fragment, not nodectl.
var executionImages = map[string]string{
	"geth":       "ethereum/client-go:stable",
	"nethermind": "nethermind/nethermind:latest",
	"besu":       "hyperledger/besu:latest",
}

var consensusImages = map[string]string{
	"lighthouse": "sigp/lighthouse:latest",
	"teku":       "consensys/teku:latest",
}

const (
	mevImage        = "flashbots/mev-boost:latest"
	validatorImage  = "sigp/lighthouse:latest"
	signerImage     = "consensys/web3signer:latest"
	prometheusImage = "prom/prometheus:latest"
	grafanaImage    = "grafana/grafana:latest"
)

// Fragment file names for the services that are not client-selectable.
// Client fragments are named by FragmentName.
const (
	FragmentMevBoost   = "mev-boost.yml"
	FragmentValidator  = "validator.yml"
	FragmentSigner     = "web3signer.yml"
	FragmentMonitoring = "monitoring.yml"
)

// FragmentName maps a client selection to its fragment file name.
func FragmentName(client string) string {
	return client + ".yml"
}

func labels(instanceName string, kind service.Kind) map[string]string {
	return map[string]string{
		"nodectl.service": instanceName,
		"nodectl.kind":    string(kind),
	}
}

// ExecutionFragment generates the execution-client fragment for an
// Ethnode. Host ports come from the instance's .env through compose
// interpolation; container-side ports are the client defaults.
func ExecutionFragment(instanceName, client string) (*Document, error) {
	image, ok := executionImages[client]
	if !ok {
		return nil, fmt.Errorf("unsupported execution client %q", client)
	}
	svc := Service{
		Image:         image,
		ContainerName: instanceName + "-execution",
		Restart:       "unless-stopped",
		Ports: []string{
			"${EL_RPC_PORT}:8545",
			"${EL_WS_PORT}:8546",
			"${EL_P2P_PORT}:30303",
			"${EL_P2P_PORT}:30303/udp",
			"${EL_METRICS_PORT}:6060",
		},
		Volumes: []string{
			"./execution-data:/data",
			"./jwt:/jwt:ro",
		},
		Labels: labels(instanceName, service.KindEthnode),
	}
	switch client {
	case "geth":
		svc.Command = []string{
			"--datadir=/data",
			"--http", "--http.addr=0.0.0.0", "--http.port=8545", "--http.vhosts=*",
			"--ws", "--ws.addr=0.0.0.0", "--ws.port=8546",
			"--authrpc.addr=0.0.0.0", "--authrpc.port=8551", "--authrpc.vhosts=*",
			"--authrpc.jwtsecret=/jwt/jwtsecret",
			"--metrics", "--metrics.addr=0.0.0.0", "--metrics.port=6060",
		}
	case "nethermind":
		svc.Environment = map[string]string{
			"NETHERMIND_JSONRPCCONFIG_ENABLED":       "true",
			"NETHERMIND_JSONRPCCONFIG_HOST":          "0.0.0.0",
			"NETHERMIND_JSONRPCCONFIG_JWTSECRETFILE": "/jwt/jwtsecret",
			"NETHERMIND_METRICSCONFIG_ENABLED":       "true",
			"NETHERMIND_METRICSCONFIG_EXPOSEPORT":    "6060",
			"NETHERMIND_INITCONFIG_BASEDBPATH":       "/data",
		}
	case "besu":
		svc.Environment = map[string]string{
			"BESU_RPC_HTTP_ENABLED":  "true",
			"BESU_RPC_HTTP_HOST":     "0.0.0.0",
			"BESU_RPC_WS_ENABLED":    "true",
			"BESU_ENGINE_JWT_SECRET": "/jwt/jwtsecret",
			"BESU_METRICS_ENABLED":   "true",
			"BESU_DATA_PATH":         "/data",
		}
	}
	return &Document{Services: map[string]Service{"execution": svc}}, nil
}

// ConsensusFragment generates the consensus-client fragment for an
// Ethnode. The beacon node reaches the execution client over the
// compose service name, never over a host port.
func ConsensusFragment(instanceName, client string) (*Document, error) {
	image, ok := consensusImages[client]
	if !ok {
		return nil, fmt.Errorf("unsupported consensus client %q", client)
	}
	svc := Service{
		Image:         image,
		ContainerName: instanceName + "-consensus",
		Restart:       "unless-stopped",
		Ports: []string{
			"${CL_API_PORT}:5052",
			"${CL_P2P_PORT}:9000",
			"${CL_P2P_PORT}:9000/udp",
			"${CL_METRICS_PORT}:5054",
		},
		Volumes: []string{
			"./consensus-data:/data",
			"./jwt:/jwt:ro",
		},
		DependsOn: []string{"execution"},
		Labels:    labels(instanceName, service.KindEthnode),
	}
	switch client {
	case "lighthouse":
		svc.Command = []string{
			"lighthouse", "bn",
			"--datadir=/data",
			"--execution-endpoint=http://execution:8551",
			"--execution-jwt=/jwt/jwtsecret",
			"--http", "--http-address=0.0.0.0", "--http-port=5052",
			"--metrics", "--metrics-address=0.0.0.0", "--metrics-port=5054",
			"--port=9000",
		}
	case "teku":
		svc.Environment = map[string]string{
			"TEKU_DATA_PATH":          "/data",
			"TEKU_EE_ENDPOINT":        "http://execution:8551",
			"TEKU_EE_JWT_SECRET_FILE": "/jwt/jwtsecret",
			"TEKU_REST_API_ENABLED":   "true",
			"TEKU_REST_API_INTERFACE": "0.0.0.0",
			"TEKU_METRICS_ENABLED":    "true",
			"TEKU_METRICS_INTERFACE":  "0.0.0.0",
		}
	}
	return &Document{Services: map[string]Service{"consensus": svc}}, nil
}

// MevFragment generates the optional relay sidecar fragment.
func MevFragment(instanceName string) *Document {
	return &Document{Services: map[string]Service{
		"mev-boost": {
			Image:         mevImage,
			ContainerName: instanceName + "-mev-boost",
			Restart:       "unless-stopped",
			Ports:         []string{"${MEV_PORT}:18550"},
			Command: []string{
				"-addr", "0.0.0.0:18550",
				"-relay-check",
			},
			Labels: labels(instanceName, service.KindEthnode),
		},
	}}
}

// ValidatorFragment generates a validator-client fragment. Signing is
// delegated to the signer service; no keys are mounted here.
func ValidatorFragment(instanceName string) *Document {
	return &Document{Services: map[string]Service{
		"validator": {
			Image:         validatorImage,
			ContainerName: instanceName + "-validator",
			Restart:       "unless-stopped",
			Ports:         []string{"${VC_METRICS_PORT}:5064"},
			Volumes:       []string{"./validator-data:/data"},
			Environment: map[string]string{
				"WEB3SIGNER_URL": "${WEB3SIGNER_URL}",
			},
			Command: []string{
				"lighthouse", "vc",
				"--datadir=/data",
				"--beacon-nodes=${BEACON_NODES}",
				"--metrics", "--metrics-address=0.0.0.0", "--metrics-port=5064",
			},
			Labels: labels(instanceName, service.KindValidator),
		},
	}}
}

// SignerFragment generates the web3signer fragment.
func SignerFragment(instanceName string) *Document {
	return &Document{Services: map[string]Service{
		"web3signer": {
			Image:         signerImage,
			ContainerName: instanceName + "-signer",
			Restart:       "unless-stopped",
			Ports:         []string{"${SIGNER_PORT}:9000"},
			Volumes:       []string{"./keys:/keys:ro", "./signer-data:/data"},
			Command: []string{
				"--key-store-path=/keys",
				"eth2",
				"--network=mainnet",
				"--slashing-protection-db-url=jdbc:h2:/data/slashing",
			},
			Labels: labels(instanceName, service.KindSigner),
		},
	}}
}

// MonitoringFragment generates the prometheus+grafana pair.
func MonitoringFragment(instanceName string) *Document {
	return &Document{Services: map[string]Service{
		"prometheus": {
			Image:         prometheusImage,
			ContainerName: instanceName + "-prometheus",
			Restart:       "unless-stopped",
			Ports:         []string{"${PROMETHEUS_PORT}:9090"},
			Volumes: []string{
				"./prometheus:/etc/prometheus:ro",
				"./prometheus-data:/prometheus",
			},
			Labels: labels(instanceName, service.KindMonitoring),
		},
		"grafana": {
			Image:         grafanaImage,
			ContainerName: instanceName + "-grafana",
			Restart:       "unless-stopped",
			Ports:         []string{"${GRAFANA_PORT}:3000"},
			Volumes: []string{
				"./grafana/provisioning:/etc/grafana/provisioning:ro",
				"./grafana-data:/var/lib/grafana",
			},
			DependsOn: []string{"prometheus"},
			Labels:    labels(instanceName, service.KindMonitoring),
		},
	}}
}
