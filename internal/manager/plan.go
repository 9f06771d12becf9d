package manager

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/juju/collections/set"

	"nodectl/internal/docker"
	"nodectl/internal/network"
	"nodectl/internal/service"
)

// RemovalPlan is everything a removal would destroy, computed without
// side effects so the operator can review it first.
type RemovalPlan struct {
	Name       string
	Kind       service.Kind
	Containers []docker.Container
	Volumes    []string
	Networks   []string
	Directory  string
	DirSize    uint64
	Risk       string
}

// Plan computes the removal plan for an installed instance.
func (m *Manager) Plan(ctx context.Context, name string) (*RemovalPlan, error) {
	if _, err := service.KindForName(name); err != nil {
		return nil, err
	}
	inst, err := m.store.Get(name)
	if err != nil {
		return nil, err
	}
	return m.plan(ctx, inst)
}

func (m *Manager) plan(ctx context.Context, inst *service.Instance) (*RemovalPlan, error) {
	def, err := m.flows.Definition(inst.Kind)
	if err != nil {
		return nil, err
	}
	fleet, err := m.store.List()
	if err != nil {
		return nil, fmt.Errorf("listing installed instances: %w", err)
	}
	res := def.Resources(inst, fleet, m.cfg.Networks)

	plan := &RemovalPlan{
		Name:      inst.Name,
		Kind:      inst.Kind,
		Directory: inst.Dir,
		DirSize:   dirSize(inst.Dir),
		Risk:      riskSummary(inst.Kind),
	}

	for _, prefix := range res.Containers {
		containers, err := m.runtime.ListContainers(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("listing containers %q: %w", prefix, err)
		}
		plan.Containers = append(plan.Containers, containers...)
	}
	for _, prefix := range res.Volumes {
		volumes, err := m.runtime.ListVolumes(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("listing volumes %q: %w", prefix, err)
		}
		plan.Volumes = append(plan.Volumes, volumes...)
	}

	existing, err := m.runtime.ListNetworks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing networks: %w", err)
	}
	existingSet := set.NewStrings(existing...)
	remaining := withoutInstance(fleet, inst.Name)
	for _, netName := range res.Networks {
		if existingSet.Contains(netName) && network.Removable(netName, inst, remaining, m.cfg.Networks) {
			plan.Networks = append(plan.Networks, netName)
		}
	}
	return plan, nil
}

// Render formats the plan for operator review.
func (p *RemovalPlan) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Removing %s (%s) deletes:\n\n", p.Name, p.Kind)

	table := uitable.New()
	table.MaxColWidth = 72
	table.Wrap = true
	for _, c := range p.Containers {
		table.AddRow("  container", fmt.Sprintf("%s (%s)", c.Name, c.State))
	}
	for _, v := range p.Volumes {
		table.AddRow("  volume", v)
	}
	for _, n := range p.Networks {
		table.AddRow("  network", n)
	}
	table.AddRow("  directory", fmt.Sprintf("%s (%s)", p.Directory, humanize.Bytes(p.DirSize)))
	b.WriteString(table.String())

	b.WriteString("\n\n")
	b.WriteString(p.Risk)
	b.WriteString("\n")
	return b.String()
}

func riskSummary(kind service.Kind) string {
	switch kind {
	case service.KindEthnode:
		return "Chain databases are deleted; a reinstall resyncs from genesis. Validators pointing at this node are re-pointed at the remaining ones."
	case service.KindValidator:
		return "Signing keys stay at the signer. Duty history and local protection data in this directory are deleted."
	case service.KindSigner:
		return "Key material in this directory is deleted. Validators cannot sign until they are pointed at another signer."
	case service.KindMonitoring:
		return "Dashboards and collected metrics are deleted."
	default:
		return "The plugin's containers, volumes and configuration are deleted."
	}
}

// dirSize sums file sizes under root. Display only, so unreadable
// entries are skipped rather than failing the plan.
func dirSize(root string) uint64 {
	var total uint64
	filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, ierr := d.Info(); ierr == nil {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}
