package network

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/juju/collections/set"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodectl/internal/compose"
	"nodectl/internal/docker"
	"nodectl/internal/service"
)

type mockRuntime struct {
	existing   set.Strings
	created    []string
	connected  []string // "network<-container"
	containers map[string][]docker.Container
	stopped    []string
	started    []string
	stopErr    map[string]error
}

func newMockRuntime() *mockRuntime {
	return &mockRuntime{
		existing:   set.NewStrings(),
		containers: make(map[string][]docker.Container),
		stopErr:    make(map[string]error),
	}
}

func (m *mockRuntime) NetworkExists(_ context.Context, name string) (bool, error) {
	return m.existing.Contains(name), nil
}

func (m *mockRuntime) CreateNetwork(_ context.Context, name string) error {
	if !m.existing.Contains(name) {
		m.existing.Add(name)
		m.created = append(m.created, name)
	}
	return nil
}

func (m *mockRuntime) ConnectNetwork(_ context.Context, network, container string) error {
	m.connected = append(m.connected, network+"<-"+container)
	return nil
}

func (m *mockRuntime) ListContainers(_ context.Context, namePrefix string) ([]docker.Container, error) {
	return m.containers[namePrefix], nil
}

func (m *mockRuntime) ComposeStop(_ context.Context, dir string, _ []string) error {
	if err := m.stopErr[dir]; err != nil {
		return err
	}
	m.stopped = append(m.stopped, dir)
	return nil
}

func (m *mockRuntime) ComposeUp(_ context.Context, dir string, _ []string) error {
	m.started = append(m.started, dir)
	return nil
}

type mockSource struct {
	instances []*service.Instance
	saved     []string
}

func (m *mockSource) List() ([]*service.Instance, error) { return m.instances, nil }

func (m *mockSource) Get(name string) (*service.Instance, error) {
	for _, inst := range m.instances {
		if inst.Name == name {
			return inst, nil
		}
	}
	return nil, service.ErrNotInstalled
}

func (m *mockSource) Save(inst *service.Instance) error {
	m.saved = append(m.saved, inst.Name)
	return nil
}

// newDiskInstance lays out a real instance directory with one fragment,
// since overlay generation reads fragment files to find service keys.
func newDiskInstance(t *testing.T, root, name string, kind service.Kind) *service.Instance {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	var doc *compose.Document
	switch kind {
	case service.KindEthnode:
		var err error
		doc, err = compose.ExecutionFragment(name, "geth")
		require.NoError(t, err)
	case service.KindValidator:
		doc = compose.ValidatorFragment(name)
	case service.KindMonitoring:
		doc = compose.MonitoringFragment(name)
	case service.KindSigner:
		doc = compose.SignerFragment(name)
	default:
		doc = &compose.Document{Services: map[string]compose.Service{"plugin": {Image: "x"}}}
	}
	fragment := "services.yml"
	require.NoError(t, compose.WriteDocument(filepath.Join(dir, fragment), doc))

	instance := inst(name, kind, nil)
	instance.Dir = dir
	compose.SetFragments(instance.Config, []string{fragment, compose.NetworkOverlayFile})
	return instance
}

func writeCurrentOverlay(t *testing.T, inst *service.Instance, networks []string) {
	t.Helper()
	keys, err := compose.ServiceKeys(inst.Dir, compose.Fragments(inst.Config))
	require.NoError(t, err)
	_, err = compose.WriteOverlay(inst.Dir, compose.NetworkOverlay(keys, networks))
	require.NoError(t, err)
}

func TestReconcile_CreatesRequiredNetworks(t *testing.T) {
	root := t.TempDir()
	ethnode := newDiskInstance(t, root, "ethnode1", service.KindEthnode)
	validator := newDiskInstance(t, root, "validator1", service.KindValidator)

	rt := newMockRuntime()
	src := &mockSource{instances: []*service.Instance{ethnode, validator}}
	r := NewReconciler(testNames, rt, src)

	report, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	require.True(t, report.OK(), "failures: %v", report.Failed)

	assert.ElementsMatch(t, []string{"ethnode1-net", "validator-net", "signer-net"}, report.Created)
	assert.True(t, rt.existing.Contains("ethnode1-net"), "every ethnode's isolated network exists after a pass")
	assert.False(t, rt.existing.Contains("monitoring-net"), "nothing references the monitoring network")
}

func TestReconcile_ExistingNetworksNotRecreated(t *testing.T) {
	root := t.TempDir()
	ethnode := newDiskInstance(t, root, "ethnode1", service.KindEthnode)
	writeCurrentOverlay(t, ethnode, []string{"ethnode1-net"})

	rt := newMockRuntime()
	rt.existing.Add("ethnode1-net")
	src := &mockSource{instances: []*service.Instance{ethnode}}

	report, err := NewReconciler(testNames, rt, src).Reconcile(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Created)
	assert.Empty(t, report.Rebuilt, "overlay already matches")
	assert.Empty(t, report.Restarted)
}

func TestReconcile_RebuildsAndRestartsRunning(t *testing.T) {
	root := t.TempDir()
	monitoring := newDiskInstance(t, root, "monitoring", service.KindMonitoring)
	ethnode := newDiskInstance(t, root, "ethnode1", service.KindEthnode)
	writeCurrentOverlay(t, ethnode, []string{"ethnode1-net"})
	// Monitoring's overlay predates the ethnode, so it must be rebuilt.
	writeCurrentOverlay(t, monitoring, []string{"monitoring-net", "validator-net"})

	rt := newMockRuntime()
	rt.containers["monitoring-"] = []docker.Container{
		{Name: "monitoring-prometheus", State: "running"},
		{Name: "monitoring-grafana", State: "running"},
	}
	src := &mockSource{instances: []*service.Instance{ethnode, monitoring}}

	report, err := NewReconciler(testNames, rt, src).Reconcile(context.Background())
	require.NoError(t, err)
	require.True(t, report.OK(), "failures: %v", report.Failed)

	assert.Equal(t, []string{"monitoring"}, report.Rebuilt)
	assert.Equal(t, []string{"monitoring"}, report.Restarted)
	assert.Equal(t, []string{monitoring.Dir}, rt.stopped)
	assert.Equal(t, []string{monitoring.Dir}, rt.started)

	nets, err := compose.OverlayNetworks(monitoring.Dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"ethnode1-net", "monitoring-net", "validator-net"}, nets.SortedValues())
}

func TestReconcile_NoRestartWhenStopped(t *testing.T) {
	root := t.TempDir()
	ethnode := newDiskInstance(t, root, "ethnode1", service.KindEthnode)

	rt := newMockRuntime()
	src := &mockSource{instances: []*service.Instance{ethnode}}

	report, err := NewReconciler(testNames, rt, src).Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ethnode1"}, report.Rebuilt, "overlay was missing")
	assert.Empty(t, report.Restarted)
	assert.Empty(t, rt.stopped)
}

func TestReconcile_FailureDoesNotBlockOthers(t *testing.T) {
	root := t.TempDir()
	ethnode := newDiskInstance(t, root, "ethnode1", service.KindEthnode)
	validator := newDiskInstance(t, root, "validator1", service.KindValidator)

	rt := newMockRuntime()
	rt.containers["ethnode1-"] = []docker.Container{{Name: "ethnode1-execution", State: "running"}}
	rt.stopErr[ethnode.Dir] = errors.New("daemon unreachable")
	src := &mockSource{instances: []*service.Instance{ethnode, validator}}

	report, err := NewReconciler(testNames, rt, src).Reconcile(context.Background())
	require.NoError(t, err)

	require.Contains(t, report.Failed, "ethnode1")
	assert.Contains(t, report.Rebuilt, "validator1", "the validator is still reconciled")
	assert.False(t, report.OK())
}

func TestAttachLive(t *testing.T) {
	root := t.TempDir()
	monitoring := newDiskInstance(t, root, "monitoring", service.KindMonitoring)
	ethnode := newDiskInstance(t, root, "ethnode1", service.KindEthnode)

	rt := newMockRuntime()
	rt.containers["monitoring-"] = []docker.Container{
		{Name: "monitoring-prometheus", State: "running"},
		{Name: "monitoring-grafana", State: "exited"},
	}
	src := &mockSource{instances: []*service.Instance{monitoring, ethnode}}
	r := NewReconciler(testNames, rt, src)

	require.NoError(t, r.AttachLive(context.Background(), "monitoring"))

	// Only the running container is connected, to every desired network.
	assert.ElementsMatch(t, []string{
		"ethnode1-net<-monitoring-prometheus",
		"monitoring-net<-monitoring-prometheus",
		"validator-net<-monitoring-prometheus",
	}, rt.connected)

	nets, err := compose.OverlayNetworks(monitoring.Dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"ethnode1-net", "monitoring-net", "validator-net"}, nets.SortedValues())
}

func TestAttachLive_SkipsStoppedInstance(t *testing.T) {
	root := t.TempDir()
	monitoring := newDiskInstance(t, root, "monitoring", service.KindMonitoring)

	rt := newMockRuntime()
	src := &mockSource{instances: []*service.Instance{monitoring}}
	r := NewReconciler(testNames, rt, src)

	require.NoError(t, r.AttachLive(context.Background(), "monitoring"))
	assert.Empty(t, rt.connected, "liveness is re-checked before acting")
}

func TestAttachLive_UnknownInstance(t *testing.T) {
	rt := newMockRuntime()
	src := &mockSource{}
	err := NewReconciler(testNames, rt, src).AttachLive(context.Background(), "ghost")
	assert.ErrorIs(t, err, service.ErrNotInstalled)
}
