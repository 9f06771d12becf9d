package monitoring

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodectl/internal/compose"
	"nodectl/internal/docker"
	"nodectl/internal/envfile"
	"nodectl/internal/service"
)

type stubStore struct {
	inst *service.Instance
}

func (s *stubStore) Get(name string) (*service.Instance, error) {
	if s.inst == nil || s.inst.Name != name {
		return nil, service.ErrNotInstalled
	}
	return s.inst, nil
}

type stubRuntime struct {
	containers []docker.Container
	restarts   []string // "dir services"
}

func (s *stubRuntime) ListContainers(_ context.Context, _ string) ([]docker.Container, error) {
	return s.containers, nil
}

func (s *stubRuntime) ComposeRestart(_ context.Context, dir string, _ []string, services ...string) error {
	s.restarts = append(s.restarts, dir+" "+strings.Join(services, ","))
	return nil
}

func monitoringInstance(t *testing.T) *service.Instance {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "monitoring")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	cfg := envfile.New()
	compose.SetFragments(cfg, []string{"monitoring.yml"})
	return &service.Instance{Name: "monitoring", Kind: service.KindMonitoring, Dir: dir, Config: cfg}
}

func TestAddAndRemoveDashboard(t *testing.T) {
	inst := monitoringInstance(t)
	r := NewFileRenderer(&stubStore{inst: inst}, &stubRuntime{})

	require.NoError(t, r.AddDashboard(context.Background(), "ethnode1"))

	path := filepath.Join(inst.Dir, dashboardsSubdir, "ethnode1.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"title": "ethnode1"`)

	require.NoError(t, r.RemoveDashboard(context.Background(), "ethnode1"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, r.RemoveDashboard(context.Background(), "ethnode1"),
		"removing an absent dashboard succeeds")
}

func TestDashboardCalls_NoMonitoringInstalled(t *testing.T) {
	r := NewFileRenderer(&stubStore{}, &stubRuntime{})

	assert.NoError(t, r.AddDashboard(context.Background(), "ethnode1"))
	assert.NoError(t, r.RemoveDashboard(context.Background(), "ethnode1"))
	assert.NoError(t, r.Reload(context.Background()))
}

func TestReload(t *testing.T) {
	inst := monitoringInstance(t)

	t.Run("running monitoring restarts grafana", func(t *testing.T) {
		rt := &stubRuntime{containers: []docker.Container{{Name: "monitoring-grafana", State: "running"}}}
		r := NewFileRenderer(&stubStore{inst: inst}, rt)

		require.NoError(t, r.Reload(context.Background()))
		require.Len(t, rt.restarts, 1)
		assert.Equal(t, inst.Dir+" grafana", rt.restarts[0])
	})

	t.Run("stopped monitoring skips the restart", func(t *testing.T) {
		rt := &stubRuntime{containers: []docker.Container{{Name: "monitoring-grafana", State: "exited"}}}
		r := NewFileRenderer(&stubStore{inst: inst}, rt)

		require.NoError(t, r.Reload(context.Background()))
		assert.Empty(t, rt.restarts)
	})
}
