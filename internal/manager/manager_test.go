package manager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodectl/internal/config"
	"nodectl/internal/docker"
	"nodectl/internal/envfile"
	"nodectl/internal/flow"
	"nodectl/internal/network"
	"nodectl/internal/ports"
	"nodectl/internal/service"
)

type managerStore struct {
	root      string
	instances []*service.Instance
}

func (s *managerStore) Dir(name string) string { return filepath.Join(s.root, name) }

func (s *managerStore) Exists(name string) bool {
	for _, inst := range s.instances {
		if inst.Name == name {
			return true
		}
	}
	return false
}

func (s *managerStore) Get(name string) (*service.Instance, error) {
	for _, inst := range s.instances {
		if inst.Name == name {
			return inst, nil
		}
	}
	return nil, fmt.Errorf("loading %s: %w", name, service.ErrNotInstalled)
}

func (s *managerStore) List() ([]*service.Instance, error) { return s.instances, nil }

type managerRuntime struct {
	containers    []docker.Container
	volumes       []string
	networks      []string
	netContainers map[string][]string
	listening     []int
	portTokens    []string
}

func (r *managerRuntime) ListContainers(_ context.Context, prefix string) ([]docker.Container, error) {
	var out []docker.Container
	for _, c := range r.containers {
		if strings.HasPrefix(c.Name, prefix) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *managerRuntime) ListVolumes(_ context.Context, prefix string) ([]string, error) {
	var out []string
	for _, v := range r.volumes {
		if strings.HasPrefix(v, prefix) {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *managerRuntime) ListNetworks(context.Context) ([]string, error) { return r.networks, nil }

func (r *managerRuntime) NetworkContainers(_ context.Context, name string) ([]string, error) {
	return r.netContainers[name], nil
}

func (r *managerRuntime) ContainerPortTokens(context.Context) ([]string, error) {
	return r.portTokens, nil
}

func (r *managerRuntime) ListeningPorts(context.Context) ([]int, error) { return r.listening, nil }

type recordedRun struct {
	inst   *service.Instance
	action flow.Action
	opts   flow.Options
}

type managerExecutor struct {
	runs   []recordedRun
	result func(inst *service.Instance, action flow.Action) *flow.Result
}

func (e *managerExecutor) Execute(_ context.Context, inst *service.Instance, action flow.Action, opts flow.Options) *flow.Result {
	e.runs = append(e.runs, recordedRun{inst: inst, action: action, opts: opts})
	if e.result != nil {
		return e.result(inst, action)
	}
	return &flow.Result{Instance: inst.Name, Action: action}
}

type managerReconciler struct {
	calls int
	err   error
}

func (r *managerReconciler) Reconcile(context.Context) (*network.Report, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &network.Report{Failed: map[string]error{}}, nil
}

type managerPrompter struct {
	confirm bool
	err     error
	plans   []*RemovalPlan
}

func (p *managerPrompter) ConfirmRemoval(plan *RemovalPlan) (bool, error) {
	p.plans = append(p.plans, plan)
	return p.confirm, p.err
}

type managerFixture struct {
	cfg        config.Config
	store      *managerStore
	runtime    *managerRuntime
	executor   *managerExecutor
	reconciler *managerReconciler
	prompter   *managerPrompter
	mgr        *Manager
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	f := &managerFixture{
		cfg:        config.GetDefaultConfig(),
		store:      &managerStore{root: t.TempDir()},
		runtime:    &managerRuntime{netContainers: map[string][]string{}},
		executor:   &managerExecutor{},
		reconciler: &managerReconciler{},
		prompter:   &managerPrompter{confirm: true},
	}
	f.mgr = New(Deps{
		Config:     &f.cfg,
		Store:      f.store,
		Runtime:    f.runtime,
		Executor:   f.executor,
		Flows:      flow.NewRegistry(),
		Allocator:  ports.NewAllocator(f.cfg, func(int) bool { return true }),
		Reconciler: f.reconciler,
		Prompter:   f.prompter,
	})
	return f
}

func storedInstance(t *testing.T, root, name string, keys map[string]string) *service.Instance {
	t.Helper()
	kind, err := service.KindForName(name)
	require.NoError(t, err)
	cfg := envfile.New()
	cfg.Set(service.KeyServiceKind, string(kind))
	for k, v := range keys {
		cfg.Set(k, v)
	}
	return &service.Instance{Name: name, Kind: kind, Dir: filepath.Join(root, name), Config: cfg}
}

func TestInstallEthnodeSeedsConfigAndPorts(t *testing.T) {
	f := newManagerFixture(t)

	result, err := f.mgr.Operate(context.Background(), flow.ActionInstall, "ethnode1", Options{})
	require.NoError(t, err)
	require.True(t, result.Success())
	require.Len(t, f.executor.runs, 1)

	run := f.executor.runs[0]
	assert.Equal(t, flow.ActionInstall, run.action)
	require.Equal(t, service.KindEthnode, run.inst.Kind)
	assert.Equal(t, f.store.Dir("ethnode1"), run.inst.Dir)

	wantValues := map[string]string{
		service.KeyServiceKind:     "Ethnode",
		service.KeyExecutionClient: "geth",
		service.KeyConsensusClient: "lighthouse",
		service.KeyMevEnabled:      "false",
	}
	for key, want := range wantValues {
		got, ok := run.inst.Config.Get(key)
		require.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}

	// Lowest free ports win, scanned per category with the configured
	// strides.
	wantPorts := map[string]int{
		service.KeyELRPCPort:     8545,
		service.KeyELWSPort:      8546,
		service.KeyELP2PPort:     30303,
		service.KeyCLAPIPort:     5052,
		service.KeyCLP2PPort:     9000,
		service.KeyELMetricsPort: 6060,
		service.KeyCLMetricsPort: 6062,
	}
	for key, want := range wantPorts {
		got, ok := run.inst.Config.GetInt(key)
		require.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}

	_, ok := run.inst.Config.Get(service.KeyMevPort)
	assert.False(t, ok, "no relay port while the sidecar is off")
}

func TestInstallEthnodeWithOverrides(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.mgr.Operate(context.Background(), flow.ActionInstall, "ethnode1", Options{
		Execution: "nethermind",
		Consensus: "teku",
		Mev:       true,
	})
	require.NoError(t, err)

	inst := f.executor.runs[0].inst
	got, _ := inst.Config.Get(service.KeyExecutionClient)
	assert.Equal(t, "nethermind", got)
	got, _ = inst.Config.Get(service.KeyConsensusClient)
	assert.Equal(t, "teku", got)
	got, _ = inst.Config.Get(service.KeyMevEnabled)
	assert.Equal(t, "true", got)

	mev, ok := inst.Config.GetInt(service.KeyMevPort)
	require.True(t, ok)
	assert.Equal(t, 18550, mev)
}

func TestInstallSkipsPortsAlreadyUsed(t *testing.T) {
	f := newManagerFixture(t)
	// 8545 has a live listener; 30303 is recorded by an installed
	// instance. Neither may be assigned again.
	f.runtime.listening = []int{8545}
	f.store.instances = []*service.Instance{
		storedInstance(t, f.store.root, "ethnode1", map[string]string{service.KeyELP2PPort: "30303"}),
	}

	_, err := f.mgr.Operate(context.Background(), flow.ActionInstall, "ethnode2", Options{})
	require.NoError(t, err)

	inst := f.executor.runs[0].inst
	rpc, _ := inst.Config.GetInt(service.KeyELRPCPort)
	ws, _ := inst.Config.GetInt(service.KeyELWSPort)
	p2p, _ := inst.Config.GetInt(service.KeyELP2PPort)
	assert.Equal(t, 8547, rpc)
	assert.Equal(t, 8548, ws)
	assert.Equal(t, 30304, p2p)
}

func TestInstallExistingInstanceFails(t *testing.T) {
	f := newManagerFixture(t)
	f.store.instances = []*service.Instance{storedInstance(t, f.store.root, "ethnode1", nil)}

	_, err := f.mgr.Operate(context.Background(), flow.ActionInstall, "ethnode1", Options{})
	require.ErrorIs(t, err, service.ErrAlreadyInstalled)
	assert.Empty(t, f.executor.runs)
}

func TestInstallValidatorDerivesEndpoints(t *testing.T) {
	f := newManagerFixture(t)
	f.store.instances = []*service.Instance{
		storedInstance(t, f.store.root, "ethnode1", nil),
		storedInstance(t, f.store.root, "ethnode2", nil),
		storedInstance(t, f.store.root, "web3signer", nil),
	}

	_, err := f.mgr.Operate(context.Background(), flow.ActionInstall, "validator1", Options{})
	require.NoError(t, err)

	inst := f.executor.runs[0].inst
	beacons, ok := inst.Config.Get(service.KeyBeaconNodes)
	require.True(t, ok)
	assert.Equal(t, "http://ethnode1-consensus:5052,http://ethnode2-consensus:5052", beacons)

	signer, ok := inst.Config.Get(service.KeyWeb3signerURL)
	require.True(t, ok)
	assert.Equal(t, "http://web3signer-signer:9000", signer)

	metrics, ok := inst.Config.GetInt(service.KeyVCMetricsPort)
	require.True(t, ok)
	assert.Equal(t, 6060, metrics)
}

func TestInstallValidatorExplicitEndpoints(t *testing.T) {
	f := newManagerFixture(t)
	f.store.instances = []*service.Instance{
		storedInstance(t, f.store.root, "ethnode1", nil),
		storedInstance(t, f.store.root, "ethnode2", nil),
		storedInstance(t, f.store.root, "web3signer", nil),
	}

	_, err := f.mgr.Operate(context.Background(), flow.ActionInstall, "validator1", Options{
		BeaconNodes: []string{"http://ethnode2-consensus:5052"},
		Ethnodes:    []string{"ethnode2"},
	})
	require.NoError(t, err)

	inst := f.executor.runs[0].inst
	beacons, _ := inst.Config.Get(service.KeyBeaconNodes)
	assert.Equal(t, "http://ethnode2-consensus:5052", beacons)
	refs, _ := inst.Config.Get(service.KeyEthnodeRefs)
	assert.Equal(t, "ethnode2", refs)
}

func TestInstallValidatorWithoutDependenciesFails(t *testing.T) {
	f := newManagerFixture(t)
	f.store.instances = []*service.Instance{storedInstance(t, f.store.root, "ethnode1", nil)}

	_, err := f.mgr.Operate(context.Background(), flow.ActionInstall, "validator1", Options{})
	require.Error(t, err)
	assert.True(t, service.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "Signer")
	assert.Empty(t, f.executor.runs)
}

func TestInstallMonitoringAssignsDashboardPorts(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.mgr.Operate(context.Background(), flow.ActionInstall, "monitoring", Options{})
	require.NoError(t, err)

	inst := f.executor.runs[0].inst
	grafana, _ := inst.Config.GetInt(service.KeyGrafanaPort)
	prometheus, _ := inst.Config.GetInt(service.KeyPrometheusPort)
	assert.Equal(t, 3000, grafana)
	assert.Equal(t, 3001, prometheus)
}

func TestInstallPluginPassesComposeOption(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.mgr.Operate(context.Background(), flow.ActionInstall, "ssv", Options{PluginCompose: "/tmp/ssv.yml"})
	require.NoError(t, err)

	run := f.executor.runs[0]
	assert.Equal(t, service.KindPlugin, run.inst.Kind)
	assert.Equal(t, "/tmp/ssv.yml", run.opts.PluginCompose)

	for _, key := range run.inst.Config.Keys() {
		assert.False(t, strings.HasSuffix(key, service.PortKeySuffix), "plugins get no port assignments, found %s", key)
	}
}

func TestOperateRejectsMalformedNames(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.mgr.Operate(context.Background(), flow.ActionInstall, "Ethnode_1", Options{})
	require.Error(t, err)
	assert.True(t, service.IsConfigurationError(err))
	assert.Empty(t, f.executor.runs)
}

func TestRemoveConfirmsThenSettles(t *testing.T) {
	f := newManagerFixture(t)
	f.store.instances = []*service.Instance{storedInstance(t, f.store.root, "ethnode1", nil)}

	result, err := f.mgr.Operate(context.Background(), flow.ActionRemove, "ethnode1", Options{})
	require.NoError(t, err)
	require.True(t, result.Success())

	require.Len(t, f.prompter.plans, 1)
	assert.Equal(t, "ethnode1", f.prompter.plans[0].Name)
	require.Len(t, f.executor.runs, 1)
	assert.Equal(t, flow.ActionRemove, f.executor.runs[0].action)
	assert.Equal(t, 1, f.reconciler.calls, "remaining instances realign after a removal")
}

func TestRemoveDeclined(t *testing.T) {
	f := newManagerFixture(t)
	f.store.instances = []*service.Instance{storedInstance(t, f.store.root, "ethnode1", nil)}
	f.prompter.confirm = false

	_, err := f.mgr.Operate(context.Background(), flow.ActionRemove, "ethnode1", Options{})
	require.ErrorIs(t, err, ErrDeclined)
	assert.Empty(t, f.executor.runs)
	assert.Equal(t, 0, f.reconciler.calls)
}

func TestRemoveYesSkipsPrompt(t *testing.T) {
	f := newManagerFixture(t)
	f.store.instances = []*service.Instance{storedInstance(t, f.store.root, "ethnode1", nil)}

	_, err := f.mgr.Operate(context.Background(), flow.ActionRemove, "ethnode1", Options{Yes: true})
	require.NoError(t, err)
	assert.Empty(t, f.prompter.plans)
	require.Len(t, f.executor.runs, 1)
}

func TestRemoveTwiceConverges(t *testing.T) {
	f := newManagerFixture(t)
	f.store.instances = []*service.Instance{storedInstance(t, f.store.root, "ethnode1", nil)}

	_, err := f.mgr.Operate(context.Background(), flow.ActionRemove, "ethnode1", Options{Yes: true})
	require.NoError(t, err)
	require.Len(t, f.executor.runs, 1)

	// The flow deregistered the instance; a second remove finds nothing
	// and succeeds without running anything.
	f.store.instances = nil
	result, err := f.mgr.Operate(context.Background(), flow.ActionRemove, "ethnode1", Options{Yes: true})
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Len(t, f.executor.runs, 1)
}

func TestRemoveScrubsLeftoverContainers(t *testing.T) {
	f := newManagerFixture(t)
	f.runtime.containers = []docker.Container{{Name: "ethnode1-execution", State: "exited"}}

	result, err := f.mgr.Operate(context.Background(), flow.ActionRemove, "ethnode1", Options{})
	require.NoError(t, err)
	require.True(t, result.Success())

	require.Len(t, f.executor.runs, 1)
	run := f.executor.runs[0]
	assert.Equal(t, flow.ActionRemove, run.action)
	assert.Equal(t, "ethnode1", run.inst.Name)
	assert.Equal(t, service.KindEthnode, run.inst.Kind)
}

func TestRemoveFlowFailureSkipsSettling(t *testing.T) {
	f := newManagerFixture(t)
	f.store.instances = []*service.Instance{storedInstance(t, f.store.root, "ethnode1", nil)}
	boom := errors.New("compose down failed")
	f.executor.result = func(inst *service.Instance, action flow.Action) *flow.Result {
		return &flow.Result{Instance: inst.Name, Action: action, Aborted: true, Err: boom}
	}

	_, err := f.mgr.Operate(context.Background(), flow.ActionRemove, "ethnode1", Options{Yes: true})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, f.reconciler.calls)
}

func TestStartLoadsStoredInstance(t *testing.T) {
	f := newManagerFixture(t)
	inst := storedInstance(t, f.store.root, "ethnode1", nil)
	f.store.instances = []*service.Instance{inst}

	_, err := f.mgr.Operate(context.Background(), flow.ActionStart, "ethnode1", Options{})
	require.NoError(t, err)
	require.Len(t, f.executor.runs, 1)
	assert.Same(t, inst, f.executor.runs[0].inst)
	assert.Equal(t, flow.ActionStart, f.executor.runs[0].action)
}

func TestStartUnknownInstanceFails(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.mgr.Operate(context.Background(), flow.ActionStart, "ethnode9", Options{})
	require.ErrorIs(t, err, service.ErrNotInstalled)
	assert.Empty(t, f.executor.runs)
}
