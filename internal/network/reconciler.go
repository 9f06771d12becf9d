package network

import (
	"context"
	"fmt"

	"nodectl/internal/compose"
	"nodectl/internal/config"
	"nodectl/internal/docker"
	"nodectl/internal/service"
	"nodectl/pkg/logging"
)

// Runtime is the slice of the container runtime the reconciler drives.
type Runtime interface {
	NetworkExists(ctx context.Context, name string) (bool, error)
	CreateNetwork(ctx context.Context, name string) error
	ConnectNetwork(ctx context.Context, network, container string) error
	ListContainers(ctx context.Context, namePrefix string) ([]docker.Container, error)
	ComposeStop(ctx context.Context, dir string, fragments []string) error
	ComposeUp(ctx context.Context, dir string, fragments []string) error
}

// InstanceSource provides the installed fleet and persists
// configuration changes the reconciler makes.
type InstanceSource interface {
	List() ([]*service.Instance, error)
	Get(name string) (*service.Instance, error)
	Save(inst *service.Instance) error
}

// Report aggregates one reconciliation pass. Failed is keyed by the
// subject that failed (instance or network name); a failure on one
// subject never blocks the rest of the pass.
type Report struct {
	Created   []string
	Rebuilt   []string
	Restarted []string
	Failed    map[string]error
}

// OK reports whether the pass completed without failures.
func (r *Report) OK() bool {
	return len(r.Failed) == 0
}

func (r *Report) fail(subject string, err error) {
	r.Failed[subject] = err
}

// Reconciler drives live network topology toward what the installed
// fleet's configuration implies. Passes are synchronous and process
// instances one at a time; restarting two instances concurrently would
// race on names and host ports.
type Reconciler struct {
	names     config.NetworkNames
	runtime   Runtime
	instances InstanceSource
}

// NewReconciler wires a reconciler over the given collaborators.
func NewReconciler(names config.NetworkNames, runtime Runtime, instances InstanceSource) *Reconciler {
	return &Reconciler{names: names, runtime: runtime, instances: instances}
}

// Reconcile runs one full pass: ensure every required network exists,
// then bring each instance's network overlay (and, when running, its
// live attachment) in line with the computed topology. The fleet and
// network lists are read fresh; nothing is cached between passes.
func (r *Reconciler) Reconcile(ctx context.Context) (*Report, error) {
	fleet, err := r.instances.List()
	if err != nil {
		return nil, fmt.Errorf("listing instances: %w", err)
	}

	report := &Report{Failed: make(map[string]error)}
	r.ensureNetworks(ctx, fleet, report)

	for _, inst := range fleet {
		if err := r.reconcileInstance(ctx, inst, fleet, report); err != nil {
			logging.Error("Network", err, "Reconciling %s failed", inst.Name)
			report.fail(inst.Name, err)
		}
	}
	return report, nil
}

// ensureNetworks creates every missing required network: the shared
// networks the fleet references plus one isolated network per Ethnode.
func (r *Reconciler) ensureNetworks(ctx context.Context, fleet []*service.Instance, report *Report) {
	required := RequiredShared(fleet, r.names)
	for _, inst := range fleet {
		if inst.Kind == service.KindEthnode {
			required.Add(r.names.EthnodeNetwork(inst.Name))
		}
	}

	for _, netName := range required.SortedValues() {
		exists, err := r.runtime.NetworkExists(ctx, netName)
		if err != nil {
			report.fail(netName, err)
			continue
		}
		if exists {
			continue
		}
		if err := r.runtime.CreateNetwork(ctx, netName); err != nil {
			report.fail(netName, err)
			continue
		}
		logging.Info("Network", "Created network %s", netName)
		report.Created = append(report.Created, netName)
	}
}

func (r *Reconciler) reconcileInstance(ctx context.Context, inst *service.Instance, fleet []*service.Instance, report *Report) error {
	desired := Desired(inst, fleet, r.names)

	current, err := compose.OverlayNetworks(inst.Dir)
	if err != nil {
		return fmt.Errorf("reading network overlay: %w", err)
	}
	if desired.Difference(current).IsEmpty() && current.Difference(desired).IsEmpty() {
		return nil
	}

	changed, err := r.rewriteOverlay(inst, desired.SortedValues())
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	logging.Info("Network", "Rebuilt network overlay for %s: %v", inst.Name, desired.SortedValues())
	report.Rebuilt = append(report.Rebuilt, inst.Name)

	containers, err := r.runtime.ListContainers(ctx, inst.Name+"-")
	if err != nil {
		return fmt.Errorf("listing containers: %w", err)
	}
	if !anyRunning(containers) {
		return nil
	}

	// Stop and re-up so the group is recreated with its new attachment.
	fragments := compose.Fragments(inst.Config)
	if err := r.runtime.ComposeStop(ctx, inst.Dir, fragments); err != nil {
		return fmt.Errorf("stopping for reattach: %w", err)
	}
	if err := r.runtime.ComposeUp(ctx, inst.Dir, fragments); err != nil {
		return fmt.Errorf("restarting after reattach: %w", err)
	}
	report.Restarted = append(report.Restarted, inst.Name)
	return nil
}

// rewriteOverlay regenerates the instance's network overlay wholesale
// and makes sure the overlay is part of its fragment list.
func (r *Reconciler) rewriteOverlay(inst *service.Instance, networks []string) (bool, error) {
	fragments := compose.Fragments(inst.Config)
	listed := false
	for _, f := range fragments {
		if f == compose.NetworkOverlayFile {
			listed = true
			break
		}
	}
	if !listed {
		fragments = append(fragments, compose.NetworkOverlayFile)
		compose.SetFragments(inst.Config, fragments)
		if err := r.instances.Save(inst); err != nil {
			return false, fmt.Errorf("recording overlay fragment: %w", err)
		}
	}

	keys, err := compose.ServiceKeys(inst.Dir, fragments)
	if err != nil {
		return false, err
	}
	changed, err := compose.WriteOverlay(inst.Dir, compose.NetworkOverlay(keys, networks))
	if err != nil {
		return false, fmt.Errorf("writing network overlay: %w", err)
	}
	return changed, nil
}

// AttachLive connects a named instance's running containers to every
// network its computed topology grants, without restarting anything.
// The overlay is rewritten too, so the next recreate agrees with the
// live state. Used by the detached post-start integration task, so it
// re-checks that the instance is installed and running before acting
// and is safe to run any number of times.
func (r *Reconciler) AttachLive(ctx context.Context, name string) error {
	inst, err := r.instances.Get(name)
	if err != nil {
		return err
	}
	fleet, err := r.instances.List()
	if err != nil {
		return err
	}

	containers, err := r.runtime.ListContainers(ctx, inst.Name+"-")
	if err != nil {
		return err
	}
	if !anyRunning(containers) {
		logging.Debug("Network", "%s is not running, skipping live attach", inst.Name)
		return nil
	}

	desired := Desired(inst, fleet, r.names)
	for _, netName := range desired.SortedValues() {
		if err := r.runtime.CreateNetwork(ctx, netName); err != nil {
			return err
		}
		for _, ctr := range containers {
			if !ctr.Running() {
				continue
			}
			if err := r.runtime.ConnectNetwork(ctx, netName, ctr.Name); err != nil {
				return err
			}
		}
	}

	if _, err := r.rewriteOverlay(inst, desired.SortedValues()); err != nil {
		return err
	}
	return nil
}

func anyRunning(containers []docker.Container) bool {
	for _, c := range containers {
		if c.Running() {
			return true
		}
	}
	return false
}
