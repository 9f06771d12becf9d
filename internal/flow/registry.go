package flow

import (
	"nodectl/internal/config"
	"nodectl/internal/ports"
	"nodectl/internal/service"
)

// Registry is the static catalog of flow definitions, one per service
// kind. It is built once at startup and never mutated afterwards.
type Registry struct {
	flows map[service.Kind]FlowDefinition
}

// NewRegistry builds the catalog.
func NewRegistry() *Registry {
	r := &Registry{flows: make(map[service.Kind]FlowDefinition)}
	for _, def := range []FlowDefinition{
		ethnodeFlow(),
		validatorFlow(),
		signerFlow(),
		monitoringFlow(),
		pluginFlow(),
	} {
		r.flows[def.Kind] = def
	}
	return r
}

// Definition returns the flow for a kind. An unknown kind is a
// configuration error; the naming convention should have rejected it
// long before this point.
func (r *Registry) Definition(kind service.Kind) (FlowDefinition, error) {
	def, ok := r.flows[kind]
	if !ok {
		return FlowDefinition{}, service.NewConfigurationError("no flow definition for service kind %q", kind)
	}
	return def, nil
}

// Kinds lists the kinds with a registered flow, in canonical order.
func (r *Registry) Kinds() []service.Kind {
	var kinds []service.Kind
	for _, k := range service.Kinds() {
		if _, ok := r.flows[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Step orders are fixed. Install builds outside-in: directories and
// configuration exist before networks, networks before containers.
// Remove tears down inside-out, with dependent notification and
// integration cleanup placed before any resource destruction so they
// can still see the instance.
func installSteps(withDependencies bool) []StepKind {
	steps := []StepKind{
		StepCreateDirectories,
		StepRenderConfig,
		StepEnsureNetworks,
	}
	if withDependencies {
		steps = append(steps, StepConnectDependencies)
	}
	return append(steps, StepStartContainers, StepIntegrationSetup)
}

func startSteps() []StepKind {
	return []StepKind{StepEnsureNetworks, StepStartContainers, StepIntegrationSetup}
}

func stopSteps() []StepKind {
	return []StepKind{StepStopContainers}
}

func updateSteps() []StepKind {
	return []StepKind{
		StepPullImages,
		StepStopContainers,
		StepRenderConfig,
		StepEnsureNetworks,
		StepStartContainers,
		StepNotifyDependents,
		StepIntegrationSetup,
	}
}

func removeSteps() []StepKind {
	return []StepKind{
		StepStopContainers,
		StepNotifyDependents,
		StepIntegrationCleanup,
		StepRemoveContainers,
		StepRemoveVolumes,
		StepRemoveNetworks,
		StepRemoveDirectory,
		StepDeregister,
	}
}

func steps(withDependencies bool) map[Action][]StepKind {
	return map[Action][]StepKind{
		ActionInstall: installSteps(withDependencies),
		ActionStart:   startSteps(),
		ActionStop:    stopSteps(),
		ActionUpdate:  updateSteps(),
		ActionRemove:  removeSteps(),
	}
}

func ethnodeFlow() FlowDefinition {
	return FlowDefinition{
		Kind:      service.KindEthnode,
		Steps:     steps(true),
		Resources: instanceResources,
		DataDirs:  []string{"execution-data", "consensus-data", "jwt"},
		PortRequirements: []ports.Requirement{
			{Keys: []string{service.KeyELRPCPort, service.KeyELWSPort}, Category: config.CategoryELRPC, Consecutive: true, Increment: 2},
			{Keys: []string{service.KeyELP2PPort}, Category: config.CategoryELP2P},
			{Keys: []string{service.KeyCLAPIPort}, Category: config.CategoryCLAPI},
			{Keys: []string{service.KeyCLP2PPort}, Category: config.CategoryCLP2P},
			{Keys: []string{service.KeyMevPort}, Category: config.CategoryMEV},
			{Keys: []string{service.KeyELMetricsPort, service.KeyCLMetricsPort}, Category: config.CategoryMetrics, Increment: 2},
		},
		Dependents: []service.Kind{service.KindValidator, service.KindMonitoring},
		Hooks:      []IntegrationKind{IntegrationDashboard},
	}
}

func validatorFlow() FlowDefinition {
	return FlowDefinition{
		Kind:      service.KindValidator,
		Steps:     steps(true),
		Resources: instanceResources,
		DataDirs:  []string{"validator-data"},
		PortRequirements: []ports.Requirement{
			{Keys: []string{service.KeyVCMetricsPort}, Category: config.CategoryMetrics, Increment: 2},
		},
		Dependencies: []service.Kind{service.KindEthnode, service.KindSigner},
		Dependents:   []service.Kind{service.KindMonitoring},
		Hooks:        []IntegrationKind{IntegrationDashboard},
	}
}

func signerFlow() FlowDefinition {
	return FlowDefinition{
		Kind:      service.KindSigner,
		Steps:     steps(false),
		Resources: instanceResources,
		DataDirs:  []string{"keys", "signer-data"},
		PortRequirements: []ports.Requirement{
			{Keys: []string{service.KeySignerPort}, Category: config.CategorySigner},
		},
		Dependents: []service.Kind{service.KindValidator},
		Hooks:      []IntegrationKind{IntegrationDashboard},
	}
}

func monitoringFlow() FlowDefinition {
	return FlowDefinition{
		Kind:      service.KindMonitoring,
		Steps:     steps(false),
		Resources: instanceResources,
		DataDirs:  []string{"prometheus", "prometheus-data", "grafana/provisioning/dashboards", "grafana-data"},
		PortRequirements: []ports.Requirement{
			{Keys: []string{service.KeyGrafanaPort, service.KeyPrometheusPort}, Category: config.CategoryDashboard},
		},
		Hooks: []IntegrationKind{IntegrationFleetAttach},
	}
}

func pluginFlow() FlowDefinition {
	return FlowDefinition{
		Kind:      service.KindPlugin,
		Steps:     steps(false),
		Resources: instanceResources,
	}
}
