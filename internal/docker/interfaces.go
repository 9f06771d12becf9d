package docker

import (
	"context"
)

// Container is one container as reported by the runtime.
type Container struct {
	ID     string
	Name   string
	State  string // running, exited, created, ...
	Status string // human-readable, e.g. "Up 3 hours"
}

// Running reports whether the container is currently running.
func (c Container) Running() bool {
	return c.State == "running"
}

// Observer is the read-only view of live host and container state.
// Status queries, removal plans and the port allocator's used-port
// snapshot all go through it; implementations must not mutate anything
// and must not cache: every call reflects the runtime at the moment it
// is made.
type Observer interface {
	// ListContainers returns every container (running or stopped) whose
	// name starts with namePrefix. An empty prefix lists all.
	ListContainers(ctx context.Context, namePrefix string) ([]Container, error)

	// ListVolumes returns volume names starting with namePrefix.
	ListVolumes(ctx context.Context, namePrefix string) ([]string, error)

	// ListNetworks returns all network names.
	ListNetworks(ctx context.Context) ([]string, error)

	// NetworkExists reports whether a network with the given name exists.
	NetworkExists(ctx context.Context, name string) (bool, error)

	// NetworkContainers returns the names of containers attached to the
	// network.
	NetworkContainers(ctx context.Context, name string) ([]string, error)

	// ContainerPortTokens returns every host-side port bound by any
	// container, running or stopped, as raw tokens ("8545",
	// "30303-30310").
	ContainerPortTokens(ctx context.Context) ([]string, error)

	// ListeningPorts returns host TCP ports with a live listener.
	ListeningPorts(ctx context.Context) ([]int, error)
}

// Runtime is the full container-runtime boundary: observation plus the
// mutations lifecycle steps perform. All group operations act on an
// instance directory and its compose fragment list. Mutations are
// idempotent where the lifecycle needs them to be: removing an absent
// resource or connecting an already-connected container succeeds.
type Runtime interface {
	Observer

	ComposeUp(ctx context.Context, dir string, fragments []string) error
	ComposeStop(ctx context.Context, dir string, fragments []string) error
	ComposeDown(ctx context.Context, dir string, fragments []string, removeVolumes bool) error
	ComposePull(ctx context.Context, dir string, fragments []string) error
	ComposeRestart(ctx context.Context, dir string, fragments []string, services ...string) error

	CreateNetwork(ctx context.Context, name string) error
	RemoveNetwork(ctx context.Context, name string) error
	ConnectNetwork(ctx context.Context, network, container string) error
	DisconnectNetwork(ctx context.Context, network, container string) error

	RemoveContainer(ctx context.Context, name string) error
	RemoveVolume(ctx context.Context, name string) error
}
