package flow

import (
	"nodectl/internal/config"
	"nodectl/internal/network"
	"nodectl/internal/ports"
	"nodectl/internal/service"
)

// Action is a lifecycle action the executor can run. Queries (status,
// list, plan) are not actions; they never run a flow.
type Action string

const (
	ActionInstall Action = "install"
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionUpdate  Action = "update"
	ActionRemove  Action = "remove"
)

// ResourceSet names the concrete runtime resources belonging to one
// instance. Container and volume entries are name prefixes matched
// against live runtime state; network entries are exact names.
type ResourceSet struct {
	Containers []string
	Volumes    []string
	Networks   []string
}

// ResourceFunc instantiates the resource set for an instance. Pure
// function of the instance, the installed fleet and the configured
// network names.
type ResourceFunc func(inst *service.Instance, fleet []*service.Instance, names config.NetworkNames) ResourceSet

// FlowDefinition is the static per-kind description of how instances of
// that kind live and die: which steps each action runs, in order, which
// runtime resources the instance owns, which ports it needs, and which
// kinds it depends on or must notify.
type FlowDefinition struct {
	Kind service.Kind

	// Steps maps each supported action to its ordered step list.
	Steps map[Action][]StepKind

	// Resources instantiates the instance's resource patterns.
	Resources ResourceFunc

	// DataDirs are the subdirectories created under the instance
	// directory at install time. They mirror the bind mounts in the
	// generated compose fragments.
	DataDirs []string

	// PortRequirements are allocated once, at install, and persisted
	// into the instance configuration under the requirement keys.
	PortRequirements []ports.Requirement

	// Dependencies are kinds that must have at least one installed
	// instance before this kind can be installed or started.
	Dependencies []service.Kind

	// Dependents are kinds whose instances must be told when an
	// instance of this kind changes or goes away.
	Dependents []service.Kind

	// Hooks are the integrations bound to this kind.
	Hooks []IntegrationKind
}

// Supports reports whether the definition carries a step list for the
// action.
func (d FlowDefinition) Supports(action Action) bool {
	_, ok := d.Steps[action]
	return ok
}

// instanceResources is the shared resource-pattern rule: containers are
// named "<instance>-<service>", compose puts volumes under
// "<instance>_<volume>", and the network list is exactly the computed
// topology membership.
func instanceResources(inst *service.Instance, fleet []*service.Instance, names config.NetworkNames) ResourceSet {
	return ResourceSet{
		Containers: []string{inst.Name + "-"},
		Volumes:    []string{inst.Name + "_"},
		Networks:   network.Desired(inst, fleet, names).SortedValues(),
	}
}
