package manager

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/im7mortal/kmutex"

	"nodectl/internal/config"
	"nodectl/internal/envfile"
	"nodectl/internal/flow"
	"nodectl/internal/ports"
	"nodectl/internal/service"
	"nodectl/pkg/logging"
)

const subsystem = "Manager"

// ErrDeclined is returned when the operator does not confirm a removal
// plan. It is not a failure; callers should exit cleanly.
var ErrDeclined = errors.New("removal declined")

// Options carries the per-invocation inputs of Operate.
type Options struct {
	// Execution and Consensus override the configured client defaults
	// for a new Ethnode.
	Execution string
	Consensus string
	// Mev adds the relay sidecar to a new Ethnode.
	Mev bool
	// BeaconNodes overrides the derived consensus endpoints for a new
	// Validator. Ethnodes pins its upstream Ethnode names explicitly.
	BeaconNodes []string
	Ethnodes    []string
	// PluginCompose is the compose file a new Plugin adopts.
	PluginCompose string
	// Yes skips the removal confirmation.
	Yes bool
}

// Deps wires a Manager.
type Deps struct {
	Config     *config.Config
	Store      InstanceStore
	Runtime    Runtime
	Executor   FlowRunner
	Flows      *flow.Registry
	Allocator  *ports.Allocator
	Reconciler Reconciler
	Prompter   Prompter
}

// Manager is the front door for every lifecycle verb. It resolves the
// kind from the instance name, serializes concurrent operations on the
// same instance, prepares install-time state (seed configuration, port
// assignment) and hands the rest to the flow executor.
type Manager struct {
	cfg        *config.Config
	store      InstanceStore
	runtime    Runtime
	executor   FlowRunner
	flows      *flow.Registry
	allocator  *ports.Allocator
	reconciler Reconciler
	prompter   Prompter
	locks      *kmutex.Kmutex
}

func New(deps Deps) *Manager {
	return &Manager{
		cfg:        deps.Config,
		store:      deps.Store,
		runtime:    deps.Runtime,
		executor:   deps.Executor,
		flows:      deps.Flows,
		allocator:  deps.Allocator,
		reconciler: deps.Reconciler,
		prompter:   deps.Prompter,
		locks:      kmutex.New(),
	}
}

// Operate drives one lifecycle action against one instance. Operations
// on the same name are serialized; different names proceed in parallel.
func (m *Manager) Operate(ctx context.Context, action flow.Action, name string, opts Options) (*flow.Result, error) {
	kind, err := service.KindForName(name)
	if err != nil {
		return nil, err
	}

	m.locks.Lock(name)
	defer m.locks.Unlock(name)

	switch action {
	case flow.ActionInstall:
		return m.install(ctx, name, kind, opts)
	case flow.ActionRemove:
		return m.remove(ctx, name, kind, opts)
	case flow.ActionStart, flow.ActionStop, flow.ActionUpdate:
		return m.run(ctx, action, name, opts)
	default:
		return nil, service.NewConfigurationError("unknown action %q", action)
	}
}

func (m *Manager) install(ctx context.Context, name string, kind service.Kind, opts Options) (*flow.Result, error) {
	if m.store.Exists(name) {
		return nil, fmt.Errorf("installing %s: %w", name, service.ErrAlreadyInstalled)
	}
	def, err := m.flows.Definition(kind)
	if err != nil {
		return nil, err
	}
	fleet, err := m.store.List()
	if err != nil {
		return nil, fmt.Errorf("listing installed instances: %w", err)
	}
	for _, dep := range def.Dependencies {
		if !hasKind(fleet, dep) {
			return nil, service.NewConfigurationError("%s requires an installed %s instance; install one first", name, dep)
		}
	}

	inst := &service.Instance{
		Name:   name,
		Kind:   kind,
		Dir:    m.store.Dir(name),
		Config: envfile.New(),
	}
	m.seed(inst, fleet, opts)

	if err := m.assignPorts(ctx, inst, def); err != nil {
		return nil, err
	}

	logging.Info(subsystem, "Installing %s (%s)", name, kind)
	result := m.executor.Execute(ctx, inst, flow.ActionInstall, flow.Options{PluginCompose: opts.PluginCompose})
	return result, result.Err
}

// seed writes the initial configuration a new instance starts from.
// Nothing touches disk here; the first flow step that persists is
// render-config, so a failed allocation leaves no trace.
func (m *Manager) seed(inst *service.Instance, fleet []*service.Instance, opts Options) {
	inst.Config.Set(service.KeyServiceKind, string(inst.Kind))

	switch inst.Kind {
	case service.KindEthnode:
		execution := opts.Execution
		if execution == "" {
			execution = m.cfg.Ethnode.Execution
		}
		consensus := opts.Consensus
		if consensus == "" {
			consensus = m.cfg.Ethnode.Consensus
		}
		inst.Config.Set(service.KeyExecutionClient, execution)
		inst.Config.Set(service.KeyConsensusClient, consensus)
		inst.Config.Set(service.KeyMevEnabled, strconv.FormatBool(opts.Mev || m.cfg.Ethnode.Mev))

	case service.KindValidator:
		endpoints := opts.BeaconNodes
		if len(endpoints) == 0 {
			endpoints = defaultBeaconEndpoints(fleet)
		}
		inst.Config.Set(service.KeyBeaconNodes, strings.Join(endpoints, ","))
		if len(opts.Ethnodes) > 0 {
			inst.Config.Set(service.KeyEthnodeRefs, strings.Join(opts.Ethnodes, ","))
		}
		inst.Config.Set(service.KeyWeb3signerURL, defaultSignerURL())
	}
}

// defaultBeaconEndpoints points a new Validator at every installed
// Ethnode's consensus API over the container network.
func defaultBeaconEndpoints(fleet []*service.Instance) []string {
	var endpoints []string
	for _, inst := range fleet {
		if inst.Kind == service.KindEthnode {
			endpoints = append(endpoints, fmt.Sprintf("http://%s-consensus:5052", inst.Name))
		}
	}
	return endpoints
}

func defaultSignerURL() string {
	return fmt.Sprintf("http://%s-signer:9000", service.SignerName)
}

// assignPorts snapshots used ports and satisfies the definition's
// requirements, recording each assignment in the seeded configuration.
// The relay requirement is dropped when the sidecar is disabled.
func (m *Manager) assignPorts(ctx context.Context, inst *service.Instance, def flow.FlowDefinition) error {
	reqs := def.PortRequirements
	if v, _ := inst.Config.Get(service.KeyMevEnabled); v == "false" {
		reqs = withoutKey(reqs, service.KeyMevPort)
	}
	if len(reqs) == 0 {
		return nil
	}

	used, err := ports.Snapshot(ctx, m.runtime, m.store)
	if err != nil {
		return fmt.Errorf("snapshotting used ports: %w", err)
	}
	assigned, err := m.allocator.AllocateSet(reqs, used)
	if err != nil {
		return fmt.Errorf("allocating ports for %s: %w", inst.Name, err)
	}
	// Record in requirement order so the file reads grouped, not sorted.
	for _, req := range reqs {
		for _, key := range req.Keys {
			inst.Config.SetInt(key, assigned[key])
		}
	}
	return nil
}

func withoutKey(reqs []ports.Requirement, key string) []ports.Requirement {
	out := make([]ports.Requirement, 0, len(reqs))
	for _, req := range reqs {
		if len(req.Keys) == 1 && req.Keys[0] == key {
			continue
		}
		out = append(out, req)
	}
	return out
}

func (m *Manager) remove(ctx context.Context, name string, kind service.Kind, opts Options) (*flow.Result, error) {
	if !m.store.Exists(name) {
		return m.scrub(ctx, name, kind)
	}
	inst, err := m.store.Get(name)
	if err != nil {
		return nil, err
	}

	if !opts.Yes {
		plan, err := m.plan(ctx, inst)
		if err != nil {
			return nil, err
		}
		confirmed, err := m.prompter.ConfirmRemoval(plan)
		if err != nil {
			return nil, fmt.Errorf("confirming removal of %s: %w", name, err)
		}
		if !confirmed {
			return nil, ErrDeclined
		}
	}

	logging.Info(subsystem, "Removing %s (%s)", name, kind)
	result := m.executor.Execute(ctx, inst, flow.ActionRemove, flow.Options{})
	if result.Err != nil {
		return result, result.Err
	}
	m.settle(ctx)
	return result, nil
}

// scrub handles remove on an uninstalled name. With no leftover
// containers it is a no-op success, so removing twice converges. With
// leftovers (a torn install, a manually deleted directory) the remove
// flow runs against a synthetic instance to sweep them.
func (m *Manager) scrub(ctx context.Context, name string, kind service.Kind) (*flow.Result, error) {
	containers, err := m.runtime.ListContainers(ctx, name+"-")
	if err != nil {
		return nil, fmt.Errorf("checking for leftover containers: %w", err)
	}
	if len(containers) == 0 {
		logging.Info(subsystem, "%s is not installed, nothing to remove", name)
		return &flow.Result{Instance: name, Action: flow.ActionRemove}, nil
	}

	logging.Warn(subsystem, "%s is not registered but %d container(s) remain, scrubbing", name, len(containers))
	inst := &service.Instance{
		Name:   name,
		Kind:   kind,
		Dir:    m.store.Dir(name),
		Config: envfile.New(),
	}
	result := m.executor.Execute(ctx, inst, flow.ActionRemove, flow.Options{})
	return result, result.Err
}

// settle realigns the remaining instances after a removal; this is
// where monitoring's overlay finally drops the removed networks.
// Advisory: failures are logged, the removal already succeeded.
func (m *Manager) settle(ctx context.Context) {
	report, err := m.reconciler.Reconcile(ctx)
	if err != nil {
		logging.Warn(subsystem, "Post-remove reconcile failed: %v", err)
		return
	}
	for subject, ferr := range report.Failed {
		logging.Warn(subsystem, "Post-remove reconcile failure on %s: %v", subject, ferr)
	}
}

func (m *Manager) run(ctx context.Context, action flow.Action, name string, opts Options) (*flow.Result, error) {
	inst, err := m.store.Get(name)
	if err != nil {
		return nil, err
	}
	logging.Info(subsystem, "Running %s on %s (%s)", action, name, inst.Kind)
	result := m.executor.Execute(ctx, inst, action, flow.Options{PluginCompose: opts.PluginCompose})
	return result, result.Err
}

func hasKind(fleet []*service.Instance, kind service.Kind) bool {
	for _, inst := range fleet {
		if inst.Kind == kind {
			return true
		}
	}
	return false
}

func withoutInstance(fleet []*service.Instance, name string) []*service.Instance {
	out := make([]*service.Instance, 0, len(fleet))
	for _, inst := range fleet {
		if inst.Name != name {
			out = append(out, inst)
		}
	}
	return out
}
