package app

import (
	"os"

	"github.com/juju/clock"

	"nodectl/internal/docker"
	"nodectl/internal/flow"
	"nodectl/internal/manager"
	"nodectl/internal/monitoring"
	"nodectl/internal/network"
	"nodectl/internal/ports"
	"nodectl/internal/service"
)

// Services holds the initialized service graph.
type Services struct {
	Manager    *manager.Manager
	Store      *service.Registry
	Runtime    *docker.Client
	Reconciler *network.Reconciler
}

// InitializeServices builds the object graph: docker runtime, instance
// registry, network reconciler, flow machinery and the manager in front
// of it all. Construction never touches the docker daemon; the first
// contact happens when a verb runs.
func InitializeServices(cfg *Config) (*Services, error) {
	nc := cfg.Nodectl

	runtime := docker.NewClient(nc.Docker)
	store := service.NewRegistry(nc.ServicesRoot)
	reconciler := network.NewReconciler(nc.Networks, runtime, store)
	renderer := monitoring.NewFileRenderer(store, runtime)
	scheduler := manager.NewAttachScheduler(clock.WallClock, nc.Integration.DetachDelay, reconciler)

	flows := flow.NewRegistry()
	steps := flow.NewSteps(nc, store, runtime, reconciler, renderer, scheduler)
	executor := flow.NewExecutor(flows, steps, store, nc.Networks)

	mgr := manager.New(manager.Deps{
		Config:     nc,
		Store:      store,
		Runtime:    runtime,
		Executor:   executor,
		Flows:      flows,
		Allocator:  ports.NewAllocator(*nc, nil),
		Reconciler: reconciler,
		Prompter:   &manager.StdinPrompter{In: os.Stdin, Out: os.Stdout},
	})

	return &Services{
		Manager:    mgr,
		Store:      store,
		Runtime:    runtime,
		Reconciler: reconciler,
	}, nil
}
