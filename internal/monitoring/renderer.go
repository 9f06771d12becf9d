package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"nodectl/internal/compose"
	"nodectl/internal/docker"
	"nodectl/internal/service"
	"nodectl/pkg/logging"
)

// Renderer manages the dashboard definitions that accompany service
// instances. Every result is advisory: lifecycle flows log failures and
// carry on, a broken dashboard never blocks an install or a removal.
type Renderer interface {
	AddDashboard(ctx context.Context, name string) error
	RemoveDashboard(ctx context.Context, name string) error
	Reload(ctx context.Context) error
}

// InstanceSource locates the monitoring instance.
type InstanceSource interface {
	Get(name string) (*service.Instance, error)
}

// Runtime is the slice of the container runtime the renderer needs to
// reload grafana.
type Runtime interface {
	ListContainers(ctx context.Context, namePrefix string) ([]docker.Container, error)
	ComposeRestart(ctx context.Context, dir string, fragments []string, services ...string) error
}

// dashboardsSubdir is where grafana's file provisioning picks up
// dashboards, relative to the monitoring instance directory.
const dashboardsSubdir = "grafana/provisioning/dashboards"

// FileRenderer provisions dashboards as JSON files under the monitoring
// instance's grafana provisioning directory. With no monitoring
// instance installed every call is a no-op; dashboards appear once
// monitoring is added and the instance is re-rendered.
type FileRenderer struct {
	store   InstanceSource
	runtime Runtime
}

// NewFileRenderer returns the provisioning-file based renderer.
func NewFileRenderer(store InstanceSource, runtime Runtime) *FileRenderer {
	return &FileRenderer{store: store, runtime: runtime}
}

func (r *FileRenderer) AddDashboard(ctx context.Context, name string) error {
	inst, ok, err := r.monitoring()
	if err != nil || !ok {
		return err
	}
	dir := filepath.Join(inst.Dir, dashboardsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating dashboard directory: %w", err)
	}
	data, err := json.MarshalIndent(dashboard(name), "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing dashboard %s: %w", name, err)
	}
	logging.Debug("Monitoring", "Provisioned dashboard %s", name)
	return nil
}

func (r *FileRenderer) RemoveDashboard(ctx context.Context, name string) error {
	inst, ok, err := r.monitoring()
	if err != nil || !ok {
		return err
	}
	path := filepath.Join(inst.Dir, dashboardsSubdir, name+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing dashboard %s: %w", name, err)
	}
	logging.Debug("Monitoring", "Removed dashboard %s", name)
	return nil
}

// Reload restarts the grafana service so file provisioning is re-read.
// A stopped monitoring stack needs no reload; it picks the files up on
// its next start.
func (r *FileRenderer) Reload(ctx context.Context) error {
	inst, ok, err := r.monitoring()
	if err != nil || !ok {
		return err
	}
	containers, err := r.runtime.ListContainers(ctx, inst.Name+"-")
	if err != nil {
		return err
	}
	running := false
	for _, c := range containers {
		if c.Running() {
			running = true
			break
		}
	}
	if !running {
		logging.Debug("Monitoring", "Monitoring is not running, skipping grafana reload")
		return nil
	}
	return r.runtime.ComposeRestart(ctx, inst.Dir, compose.Fragments(inst.Config), "grafana")
}

// monitoring resolves the monitoring instance; ok=false (with nil
// error) when none is installed.
func (r *FileRenderer) monitoring() (*service.Instance, bool, error) {
	inst, err := r.store.Get(service.MonitoringName)
	if errors.Is(err, service.ErrNotInstalled) {
		logging.Debug("Monitoring", "No monitoring instance installed")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return inst, true, nil
}

// dashboard is the minimal grafana model file provisioning accepts.
func dashboard(name string) map[string]interface{} {
	return map[string]interface{}{
		"uid":           name,
		"title":         name,
		"tags":          []string{"nodectl"},
		"timezone":      "browser",
		"schemaVersion": 39,
		"version":       1,
		"panels":        []interface{}{},
	}
}
