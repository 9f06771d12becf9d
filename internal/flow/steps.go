package flow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"nodectl/internal/compose"
	"nodectl/internal/config"
	"nodectl/internal/docker"
	"nodectl/internal/monitoring"
	"nodectl/internal/network"
	"nodectl/internal/service"
	"nodectl/pkg/logging"
)

// InstanceStore is the registry surface the steps mutate. The live
// service.Registry satisfies it.
type InstanceStore interface {
	List() ([]*service.Instance, error)
	Save(inst *service.Instance) error
	RemoveDir(name string) error
	Exists(name string) bool
}

// Runtime is the slice of the container runtime the steps drive.
// docker.Client satisfies it.
type Runtime interface {
	CreateNetwork(ctx context.Context, name string) error
	RemoveNetwork(ctx context.Context, name string) error
	DisconnectNetwork(ctx context.Context, network, container string) error
	NetworkContainers(ctx context.Context, name string) ([]string, error)
	ListContainers(ctx context.Context, namePrefix string) ([]docker.Container, error)
	ListVolumes(ctx context.Context, namePrefix string) ([]string, error)
	RemoveContainer(ctx context.Context, name string) error
	RemoveVolume(ctx context.Context, name string) error
	ComposeUp(ctx context.Context, dir string, fragments []string) error
	ComposeStop(ctx context.Context, dir string, fragments []string) error
	ComposeDown(ctx context.Context, dir string, fragments []string, removeVolumes bool) error
	ComposePull(ctx context.Context, dir string, fragments []string) error
}

// Reconciler realigns fleet network topology after membership changes.
type Reconciler interface {
	Reconcile(ctx context.Context) (*network.Report, error)
}

// Scheduler queues the detached post-start attachment task for an
// instance. Implementations must be fire-and-forget.
type Scheduler interface {
	ScheduleAttach(name string)
}

// Steps is the production step dispatcher: one handler per StepKind,
// acting through the container runtime, the instance store, the
// topology reconciler and the dashboard renderer.
type Steps struct {
	cfg        *config.Config
	store      InstanceStore
	runtime    Runtime
	reconciler Reconciler
	renderer   monitoring.Renderer
	scheduler  Scheduler
}

func NewSteps(cfg *config.Config, store InstanceStore, runtime Runtime, reconciler Reconciler, renderer monitoring.Renderer, scheduler Scheduler) *Steps {
	return &Steps{
		cfg:        cfg,
		store:      store,
		runtime:    runtime,
		reconciler: reconciler,
		renderer:   renderer,
		scheduler:  scheduler,
	}
}

// Dispatch routes one step to its handler. The switch is exhaustive
// over StepKind; a kind without a case is a configuration error, not a
// silent skip.
func (s *Steps) Dispatch(ctx context.Context, step StepKind, sc StepContext) error {
	switch step {
	case StepCreateDirectories:
		return s.createDirectories(sc)
	case StepRenderConfig:
		return s.renderConfig(sc)
	case StepEnsureNetworks:
		return s.ensureNetworks(ctx, sc)
	case StepConnectDependencies:
		return s.connectDependencies(ctx, sc)
	case StepPullImages:
		return s.pullImages(ctx, sc)
	case StepStartContainers:
		return s.startContainers(ctx, sc)
	case StepStopContainers:
		return s.stopContainers(ctx, sc)
	case StepRemoveContainers:
		return s.removeContainers(ctx, sc)
	case StepRemoveVolumes:
		return s.removeVolumes(ctx, sc)
	case StepRemoveNetworks:
		return s.removeNetworks(ctx, sc)
	case StepRemoveDirectory:
		return s.removeDirectory(sc)
	case StepDeregister:
		return s.deregister(sc)
	case StepNotifyDependents:
		return s.notifyDependents(ctx, sc)
	case StepIntegrationSetup:
		return s.integrationSetup(ctx, sc)
	case StepIntegrationCleanup:
		return s.integrationCleanup(ctx, sc)
	default:
		return service.NewConfigurationError("no handler for step %s", step)
	}
}

func (s *Steps) createDirectories(sc StepContext) error {
	inst := sc.Instance
	if err := os.MkdirAll(inst.Dir, 0o755); err != nil {
		return fmt.Errorf("creating instance directory: %w", err)
	}
	for _, sub := range sc.Def.DataDirs {
		if err := os.MkdirAll(filepath.Join(inst.Dir, filepath.FromSlash(sub)), 0o755); err != nil {
			return fmt.Errorf("creating data directory %s: %w", sub, err)
		}
	}
	if inst.Kind == service.KindEthnode {
		return ensureJWTSecret(filepath.Join(inst.Dir, "jwt", "jwtsecret"))
	}
	return nil
}

// ensureJWTSecret generates the shared engine-API secret once per
// instance. Reinstalling over an existing directory keeps the secret so
// a surviving client pair can still talk to each other.
func ensureJWTSecret(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("generating jwt secret: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(buf)), 0o600); err != nil {
		return fmt.Errorf("writing jwt secret: %w", err)
	}
	return nil
}

// renderConfig writes the instance's compose fragments, records the
// fragment list in its configuration and regenerates the network
// overlay. The overlay is always the last entry of COMPOSE_FILE so
// every compose invocation carries the topology attachment.
func (s *Steps) renderConfig(sc StepContext) error {
	inst := sc.Instance

	var fragments []string
	var err error
	switch inst.Kind {
	case service.KindEthnode:
		fragments, err = s.renderEthnode(inst)
	case service.KindValidator:
		fragments, err = writeFragment(inst, compose.FragmentValidator, compose.ValidatorFragment(inst.Name))
	case service.KindSigner:
		fragments, err = writeFragment(inst, compose.FragmentSigner, compose.SignerFragment(inst.Name))
	case service.KindMonitoring:
		fragments, err = s.renderMonitoring(inst, sc.Fleet)
	case service.KindPlugin:
		fragments, err = s.renderPlugin(inst, sc.Options)
	default:
		return service.NewConfigurationError("no config renderer for kind %s", inst.Kind)
	}
	if err != nil {
		return err
	}

	compose.SetFragments(inst.Config, append(fragments, compose.NetworkOverlayFile))
	if err := s.store.Save(inst); err != nil {
		return fmt.Errorf("saving configuration: %w", err)
	}
	return s.writeOverlay(inst, sc.Fleet)
}

func (s *Steps) renderEthnode(inst *service.Instance) ([]string, error) {
	execution := configuredOrDefault(inst, service.KeyExecutionClient, s.cfg.Ethnode.Execution)
	consensus := configuredOrDefault(inst, service.KeyConsensusClient, s.cfg.Ethnode.Consensus)

	executionDoc, err := compose.ExecutionFragment(inst.Name, execution)
	if err != nil {
		return nil, err
	}
	consensusDoc, err := compose.ConsensusFragment(inst.Name, consensus)
	if err != nil {
		return nil, err
	}

	fragments, err := writeFragment(inst, compose.FragmentName(execution), executionDoc)
	if err != nil {
		return nil, err
	}
	if err := compose.WriteDocument(filepath.Join(inst.Dir, compose.FragmentName(consensus)), consensusDoc); err != nil {
		return nil, err
	}
	fragments = append(fragments, compose.FragmentName(consensus))

	if mevEnabled(inst) {
		if err := compose.WriteDocument(filepath.Join(inst.Dir, compose.FragmentMevBoost), compose.MevFragment(inst.Name)); err != nil {
			return nil, err
		}
		fragments = append(fragments, compose.FragmentMevBoost)
	}
	return fragments, nil
}

func (s *Steps) renderMonitoring(inst *service.Instance, fleet []*service.Instance) ([]string, error) {
	if err := monitoring.WriteProvisioning(inst, fleet); err != nil {
		return nil, err
	}
	return writeFragment(inst, compose.FragmentMonitoring, compose.MonitoringFragment(inst.Name))
}

// renderPlugin adopts a compose file instead of generating one. An
// explicitly passed file is copied into the instance directory; with
// none passed, yml files already present are adopted as the fragment
// list.
func (s *Steps) renderPlugin(inst *service.Instance, opts Options) ([]string, error) {
	if opts.PluginCompose != "" {
		data, err := os.ReadFile(opts.PluginCompose)
		if err != nil {
			return nil, fmt.Errorf("reading plugin compose file: %w", err)
		}
		name := filepath.Base(opts.PluginCompose)
		if name == compose.NetworkOverlayFile {
			return nil, service.NewConfigurationError("%s is reserved for the generated network overlay", name)
		}
		if err := os.WriteFile(filepath.Join(inst.Dir, name), data, 0o644); err != nil {
			return nil, fmt.Errorf("adopting plugin compose file: %w", err)
		}
		return []string{name}, nil
	}

	entries, err := os.ReadDir(inst.Dir)
	if err != nil {
		return nil, fmt.Errorf("scanning plugin directory: %w", err)
	}
	var fragments []string
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == compose.NetworkOverlayFile {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".yml") || strings.HasSuffix(entry.Name(), ".yaml") {
			fragments = append(fragments, entry.Name())
		}
	}
	if len(fragments) == 0 {
		return nil, service.NewConfigurationError("plugin %s has no compose file to adopt; pass one with --compose", inst.Name)
	}
	sort.Strings(fragments)
	return fragments, nil
}

func writeFragment(inst *service.Instance, name string, doc *compose.Document) ([]string, error) {
	if err := compose.WriteDocument(filepath.Join(inst.Dir, name), doc); err != nil {
		return nil, err
	}
	return []string{name}, nil
}

func (s *Steps) writeOverlay(inst *service.Instance, fleet []*service.Instance) error {
	desired := network.Desired(inst, fleet, s.cfg.Networks)
	keys, err := compose.ServiceKeys(inst.Dir, compose.Fragments(inst.Config))
	if err != nil {
		return err
	}
	if _, err := compose.WriteOverlay(inst.Dir, compose.NetworkOverlay(keys, desired.SortedValues())); err != nil {
		return err
	}
	return nil
}

func configuredOrDefault(inst *service.Instance, key, fallback string) string {
	if v, ok := inst.Config.Get(key); ok && v != "" {
		return v
	}
	inst.Config.Set(key, fallback)
	return fallback
}

func mevEnabled(inst *service.Instance) bool {
	raw, ok := inst.Config.Get(service.KeyMevEnabled)
	if !ok {
		return false
	}
	enabled, err := strconv.ParseBool(raw)
	return err == nil && enabled
}

// ensureNetworks creates every network the instance's topology calls
// for. Creation is idempotent at the runtime boundary.
func (s *Steps) ensureNetworks(ctx context.Context, sc StepContext) error {
	for _, name := range sc.Resources.Networks {
		if err := s.runtime.CreateNetwork(ctx, name); err != nil {
			return fmt.Errorf("ensuring network %s: %w", name, err)
		}
	}
	return nil
}

// connectDependencies verifies required kinds are installed, then runs
// a reconcile pass so dependents pick up the newcomer (a monitoring
// stack gains the new Ethnode's network, for example). Reconcile
// failures on other instances are reported but only a failure on this
// instance fails the step.
func (s *Steps) connectDependencies(ctx context.Context, sc StepContext) error {
	for _, kind := range sc.Def.Dependencies {
		if !kindInstalled(sc.Fleet, kind) {
			return service.NewConfigurationError("%s requires an installed %s instance", sc.Instance.Name, kind)
		}
	}
	report, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		return err
	}
	if failure, ok := report.Failed[sc.Instance.Name]; ok {
		return failure
	}
	for subject, failure := range report.Failed {
		logging.Warn("Flow", "Reconcile failure on %s while connecting %s: %v", subject, sc.Instance.Name, failure)
	}
	return nil
}

func kindInstalled(fleet []*service.Instance, kind service.Kind) bool {
	for _, inst := range fleet {
		if inst.Kind == kind {
			return true
		}
	}
	return false
}

func (s *Steps) pullImages(ctx context.Context, sc StepContext) error {
	fragments := compose.Fragments(sc.Instance.Config)
	if len(fragments) == 0 {
		return service.NewConfigurationError("instance %s has no compose fragments configured", sc.Instance.Name)
	}
	return s.runtime.ComposePull(ctx, sc.Instance.Dir, fragments)
}

func (s *Steps) startContainers(ctx context.Context, sc StepContext) error {
	fragments := compose.Fragments(sc.Instance.Config)
	if len(fragments) == 0 {
		return service.NewConfigurationError("instance %s has no compose fragments configured", sc.Instance.Name)
	}
	return s.runtime.ComposeUp(ctx, sc.Instance.Dir, fragments)
}

// stopContainers tolerates a missing fragment list: removal of a
// half-installed instance still proceeds, the container sweep in
// removeContainers catches anything compose cannot see.
func (s *Steps) stopContainers(ctx context.Context, sc StepContext) error {
	fragments := compose.Fragments(sc.Instance.Config)
	if len(fragments) == 0 {
		logging.Warn("Flow", "Instance %s has no compose fragments, skipping compose stop", sc.Instance.Name)
		return nil
	}
	return s.runtime.ComposeStop(ctx, sc.Instance.Dir, fragments)
}

// removeContainers tears the group down via compose, then sweeps for
// stragglers by container name prefix so renamed or orphaned containers
// do not survive the remove.
func (s *Steps) removeContainers(ctx context.Context, sc StepContext) error {
	inst := sc.Instance
	if fragments := compose.Fragments(inst.Config); len(fragments) > 0 {
		if err := s.runtime.ComposeDown(ctx, inst.Dir, fragments, false); err != nil {
			logging.Warn("Flow", "Compose down failed for %s, sweeping containers directly: %v", inst.Name, err)
		}
	}
	for _, prefix := range sc.Resources.Containers {
		containers, err := s.runtime.ListContainers(ctx, prefix)
		if err != nil {
			return fmt.Errorf("listing containers %s*: %w", prefix, err)
		}
		for _, c := range containers {
			if err := s.runtime.RemoveContainer(ctx, c.Name); err != nil {
				return fmt.Errorf("removing container %s: %w", c.Name, err)
			}
		}
	}
	return nil
}

func (s *Steps) removeVolumes(ctx context.Context, sc StepContext) error {
	for _, prefix := range sc.Resources.Volumes {
		volumes, err := s.runtime.ListVolumes(ctx, prefix)
		if err != nil {
			return fmt.Errorf("listing volumes %s*: %w", prefix, err)
		}
		for _, v := range volumes {
			if err := s.runtime.RemoveVolume(ctx, v); err != nil {
				return fmt.Errorf("removing volume %s: %w", v, err)
			}
		}
	}
	return nil
}

// removeNetworks removes the instance's networks that no remaining
// instance references. Attached containers are disconnected first;
// after a stop they are exited but still attached.
func (s *Steps) removeNetworks(ctx context.Context, sc StepContext) error {
	remaining := make([]*service.Instance, 0, len(sc.Fleet))
	for _, other := range sc.Fleet {
		if other.Name != sc.Instance.Name {
			remaining = append(remaining, other)
		}
	}
	for _, netName := range sc.Resources.Networks {
		if !network.Removable(netName, sc.Instance, remaining, s.cfg.Networks) {
			logging.Debug("Flow", "Network %s still referenced, keeping it", netName)
			continue
		}
		attached, err := s.runtime.NetworkContainers(ctx, netName)
		if err != nil {
			return fmt.Errorf("inspecting network %s: %w", netName, err)
		}
		for _, c := range attached {
			if err := s.runtime.DisconnectNetwork(ctx, netName, c); err != nil {
				return fmt.Errorf("disconnecting %s from %s: %w", c, netName, err)
			}
		}
		if err := s.runtime.RemoveNetwork(ctx, netName); err != nil {
			return fmt.Errorf("removing network %s: %w", netName, err)
		}
	}
	return nil
}

func (s *Steps) removeDirectory(sc StepContext) error {
	return s.store.RemoveDir(sc.Instance.Name)
}

// deregister is the final consistency check of a remove: the directory
// registry is the source of truth, so a directory that survived this
// far means the remove did not actually happen.
func (s *Steps) deregister(sc StepContext) error {
	if s.store.Exists(sc.Instance.Name) {
		return fmt.Errorf("instance %s is still registered after removal", sc.Instance.Name)
	}
	logging.Debug("Flow", "Instance %s deregistered", sc.Instance.Name)
	return nil
}

// notifyDependents re-points dependents at the new state of the world.
// On Ethnode removal, Validators referencing it first get the stale
// endpoints pruned from their configuration; the reconcile pass then
// realigns and restarts whoever changed.
func (s *Steps) notifyDependents(ctx context.Context, sc StepContext) error {
	if len(sc.Def.Dependents) == 0 {
		return nil
	}
	if sc.Action == ActionRemove && sc.Instance.Kind == service.KindEthnode {
		if err := s.pruneEthnodeRefs(sc); err != nil {
			return err
		}
	}
	report, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		return err
	}
	if !report.OK() {
		return fmt.Errorf("dependent reconcile finished with %d failure(s)", len(report.Failed))
	}
	return nil
}

func (s *Steps) pruneEthnodeRefs(sc StepContext) error {
	for _, other := range sc.Fleet {
		if other.Kind != service.KindValidator {
			continue
		}
		if !network.PruneEthnodeRef(other.Config, sc.Instance.Name) {
			continue
		}
		if err := s.store.Save(other); err != nil {
			return fmt.Errorf("saving pruned configuration for %s: %w", other.Name, err)
		}
		logging.Info("Flow", "Pruned %s from %s's upstream endpoints", sc.Instance.Name, other.Name)
	}
	return nil
}

func (s *Steps) integrationSetup(ctx context.Context, sc StepContext) error {
	for _, hook := range sc.Def.Hooks {
		switch hook {
		case IntegrationDashboard:
			if err := s.renderer.AddDashboard(ctx, sc.Instance.Name); err != nil {
				return err
			}
			if err := s.renderer.Reload(ctx); err != nil {
				return err
			}
		case IntegrationFleetAttach:
			s.scheduler.ScheduleAttach(sc.Instance.Name)
		default:
			return service.NewConfigurationError("no setup handler for integration %s", hook)
		}
	}
	return nil
}

func (s *Steps) integrationCleanup(ctx context.Context, sc StepContext) error {
	for _, hook := range sc.Def.Hooks {
		switch hook {
		case IntegrationDashboard:
			if err := s.renderer.RemoveDashboard(ctx, sc.Instance.Name); err != nil {
				return err
			}
			if err := s.renderer.Reload(ctx); err != nil {
				return err
			}
		case IntegrationFleetAttach:
			// The detached task re-checks liveness; nothing to undo.
		default:
			return service.NewConfigurationError("no cleanup handler for integration %s", hook)
		}
	}
	return nil
}
