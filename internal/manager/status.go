package manager

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"nodectl/internal/docker"
	"nodectl/internal/service"
)

// InstanceStatus is the live view of one installed instance.
type InstanceStatus struct {
	Name       string
	Kind       service.Kind
	Containers []docker.Container
	// Networks the instance's containers are actually attached to,
	// which may lag the desired topology until a reconcile.
	Networks []string
	Volumes  int
	// Ports lists the assigned host ports as KEY=value pairs in
	// configuration order.
	Ports []string
}

// State collapses the container states into one word.
func (s *InstanceStatus) State() string {
	running := 0
	for _, c := range s.Containers {
		if c.Running() {
			running++
		}
	}
	return summarizeState(running, len(s.Containers))
}

// InstanceSummary is one row of the fleet listing.
type InstanceSummary struct {
	Name    string
	Kind    service.Kind
	State   string
	Running int
	Total   int
}

// Status inspects one instance's containers, network attachments,
// volumes and port assignments.
func (m *Manager) Status(ctx context.Context, name string) (*InstanceStatus, error) {
	inst, err := m.store.Get(name)
	if err != nil {
		return nil, err
	}
	containers, err := m.runtime.ListContainers(ctx, name+"-")
	if err != nil {
		return nil, fmt.Errorf("listing containers for %s: %w", name, err)
	}
	volumes, err := m.runtime.ListVolumes(ctx, name+"_")
	if err != nil {
		return nil, fmt.Errorf("listing volumes for %s: %w", name, err)
	}
	networks, err := m.attachedNetworks(ctx, name)
	if err != nil {
		return nil, err
	}
	return &InstanceStatus{
		Name:       name,
		Kind:       inst.Kind,
		Containers: containers,
		Networks:   networks,
		Volumes:    len(volumes),
		Ports:      portAssignments(inst),
	}, nil
}

// List summarizes every installed instance.
func (m *Manager) List(ctx context.Context) ([]InstanceSummary, error) {
	fleet, err := m.store.List()
	if err != nil {
		return nil, fmt.Errorf("listing installed instances: %w", err)
	}
	summaries := make([]InstanceSummary, 0, len(fleet))
	for _, inst := range fleet {
		containers, err := m.runtime.ListContainers(ctx, inst.Name+"-")
		if err != nil {
			return nil, fmt.Errorf("listing containers for %s: %w", inst.Name, err)
		}
		running := 0
		for _, c := range containers {
			if c.Running() {
				running++
			}
		}
		summaries = append(summaries, InstanceSummary{
			Name:    inst.Name,
			Kind:    inst.Kind,
			State:   summarizeState(running, len(containers)),
			Running: running,
			Total:   len(containers),
		})
	}
	return summaries, nil
}

// attachedNetworks returns every network holding at least one of the
// instance's containers.
func (m *Manager) attachedNetworks(ctx context.Context, name string) ([]string, error) {
	all, err := m.runtime.ListNetworks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing networks: %w", err)
	}
	var attached []string
	for _, netName := range all {
		members, err := m.runtime.NetworkContainers(ctx, netName)
		if err != nil {
			return nil, fmt.Errorf("inspecting network %s: %w", netName, err)
		}
		for _, member := range members {
			if strings.HasPrefix(member, name+"-") {
				attached = append(attached, netName)
				break
			}
		}
	}
	sort.Strings(attached)
	return attached, nil
}

func portAssignments(inst *service.Instance) []string {
	var out []string
	for _, key := range inst.Config.Keys() {
		if !strings.HasSuffix(key, service.PortKeySuffix) {
			continue
		}
		if v, ok := inst.Config.Get(key); ok {
			out = append(out, key+"="+v)
		}
	}
	return out
}

func summarizeState(running, total int) string {
	switch {
	case total == 0:
		return "not created"
	case running == total:
		return "running"
	case running == 0:
		return "stopped"
	default:
		return "degraded"
	}
}
