package flow

// StepKind is the closed set of lifecycle steps. The dispatch table
// switches over it exhaustively; adding a kind without teaching the
// dispatcher fails the dispatch with a configuration error rather than
// silently skipping.
type StepKind int

const (
	StepCreateDirectories StepKind = iota
	StepRenderConfig
	StepEnsureNetworks
	StepConnectDependencies
	StepPullImages
	StepStartContainers
	StepStopContainers
	StepRemoveContainers
	StepRemoveVolumes
	StepRemoveNetworks
	StepRemoveDirectory
	StepDeregister
	StepNotifyDependents
	StepIntegrationSetup
	StepIntegrationCleanup
)

// String makes step names readable in logs and reports.
func (k StepKind) String() string {
	switch k {
	case StepCreateDirectories:
		return "create-directories"
	case StepRenderConfig:
		return "render-config"
	case StepEnsureNetworks:
		return "ensure-networks"
	case StepConnectDependencies:
		return "connect-dependencies"
	case StepPullImages:
		return "pull-images"
	case StepStartContainers:
		return "start-containers"
	case StepStopContainers:
		return "stop-containers"
	case StepRemoveContainers:
		return "remove-containers"
	case StepRemoveVolumes:
		return "remove-volumes"
	case StepRemoveNetworks:
		return "remove-networks"
	case StepRemoveDirectory:
		return "remove-directory"
	case StepDeregister:
		return "deregister"
	case StepNotifyDependents:
		return "notify-dependents"
	case StepIntegrationSetup:
		return "integration-setup"
	case StepIntegrationCleanup:
		return "integration-cleanup"
	default:
		return "unknown-step"
	}
}

// Critical reports whether a failure of this step aborts the remaining
// sequence. The classification is fixed per step: steps that create or
// destroy resources owned by the instance itself are critical; steps
// that update dependents or touch cross-service integrations are not.
func (k StepKind) Critical() bool {
	switch k {
	case StepCreateDirectories,
		StepRenderConfig,
		StepEnsureNetworks,
		StepConnectDependencies,
		StepStartContainers,
		StepStopContainers,
		StepRemoveContainers,
		StepRemoveVolumes,
		StepRemoveNetworks,
		StepRemoveDirectory,
		StepDeregister:
		return true
	case StepPullImages,
		StepNotifyDependents,
		StepIntegrationSetup,
		StepIntegrationCleanup:
		return false
	default:
		return true
	}
}

// IntegrationKind names a cross-service integration hook bound to a
// flow definition. Setup runs after start; cleanup runs during removal.
type IntegrationKind int

const (
	// IntegrationDashboard provisions (and removes) the instance's
	// dashboard with the config renderer.
	IntegrationDashboard IntegrationKind = iota

	// IntegrationFleetAttach schedules the detached post-start task that
	// attaches the instance's running containers to every network its
	// topology grants.
	IntegrationFleetAttach
)

func (k IntegrationKind) String() string {
	switch k {
	case IntegrationDashboard:
		return "dashboard"
	case IntegrationFleetAttach:
		return "fleet-attach"
	default:
		return "unknown-integration"
	}
}
