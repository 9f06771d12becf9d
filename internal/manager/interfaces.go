package manager

import (
	"context"

	"nodectl/internal/docker"
	"nodectl/internal/flow"
	"nodectl/internal/network"
	"nodectl/internal/service"
)

// InstanceStore is the disk registry surface the manager reads. All
// writes happen inside flows.
type InstanceStore interface {
	Dir(name string) string
	Exists(name string) bool
	Get(name string) (*service.Instance, error)
	List() ([]*service.Instance, error)
}

// Runtime is the read-only slice of the container runtime the manager
// queries for plans, status and the allocator's used-port snapshot.
type Runtime interface {
	ListContainers(ctx context.Context, namePrefix string) ([]docker.Container, error)
	ListVolumes(ctx context.Context, namePrefix string) ([]string, error)
	ListNetworks(ctx context.Context) ([]string, error)
	NetworkContainers(ctx context.Context, name string) ([]string, error)
	ContainerPortTokens(ctx context.Context) ([]string, error)
	ListeningPorts(ctx context.Context) ([]int, error)
}

// FlowRunner executes lifecycle flows.
type FlowRunner interface {
	Execute(ctx context.Context, inst *service.Instance, action flow.Action, opts flow.Options) *flow.Result
}

// Reconciler runs the post-remove settling pass.
type Reconciler interface {
	Reconcile(ctx context.Context) (*network.Report, error)
}

// LiveAttacher attaches a running instance to its computed networks.
// Used by the detached post-start task.
type LiveAttacher interface {
	AttachLive(ctx context.Context, name string) error
}

// Prompter confirms a removal plan with the operator.
type Prompter interface {
	ConfirmRemoval(plan *RemovalPlan) (bool, error)
}
