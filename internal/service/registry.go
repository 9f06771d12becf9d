package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"nodectl/internal/envfile"
)

// Registry enumerates and loads installed instances from the services
// root. It holds no cache: every call reads the directory tree fresh,
// so the view is always the on-disk truth.
type Registry struct {
	root string
}

// NewRegistry returns a registry over the given services root. The root
// may not exist yet; it is created on the first Save.
func NewRegistry(root string) *Registry {
	return &Registry{root: root}
}

// Root returns the services root directory.
func (r *Registry) Root() string {
	return r.root
}

// Dir returns the directory an instance with this name occupies (or
// would occupy).
func (r *Registry) Dir(name string) string {
	return filepath.Join(r.root, name)
}

// Exists reports whether an instance directory with a configuration
// file is present.
func (r *Registry) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(r.Dir(name), ".env"))
	return err == nil
}

// Get loads one installed instance. Returns ErrNotInstalled when the
// directory or its configuration is absent.
func (r *Registry) Get(name string) (*Instance, error) {
	kind, err := KindForName(name)
	if err != nil {
		return nil, err
	}
	envPath := filepath.Join(r.Dir(name), ".env")
	if _, err := os.Stat(envPath); err != nil {
		return nil, fmt.Errorf("%q: %w", name, ErrNotInstalled)
	}
	cfg, err := envfile.Load(envPath)
	if err != nil {
		return nil, fmt.Errorf("loading config for %q: %w", name, err)
	}
	return &Instance{
		Name:   name,
		Kind:   kind,
		Dir:    r.Dir(name),
		Config: cfg,
	}, nil
}

// List loads every installed instance, sorted by name. A subdirectory
// without a readable configuration is skipped (half-removed instances
// must not wedge the whole listing).
func (r *Registry) List() ([]*Instance, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading services root %s: %w", r.root, err)
	}

	var instances []*Instance
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		inst, err := r.Get(entry.Name())
		if err != nil {
			continue
		}
		instances = append(instances, inst)
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i].Name < instances[j].Name })
	return instances, nil
}

// ListKind loads every installed instance of one kind, sorted by name.
func (r *Registry) ListKind(kind Kind) ([]*Instance, error) {
	all, err := r.List()
	if err != nil {
		return nil, err
	}
	var filtered []*Instance
	for _, inst := range all {
		if inst.Kind == kind {
			filtered = append(filtered, inst)
		}
	}
	return filtered, nil
}

// Save persists the instance's configuration, creating its directory as
// needed.
func (r *Registry) Save(inst *Instance) error {
	if err := os.MkdirAll(inst.Dir, 0o755); err != nil {
		return fmt.Errorf("creating instance directory %s: %w", inst.Dir, err)
	}
	return inst.Config.Save(filepath.Join(inst.Dir, ".env"))
}

// RemoveDir deletes the instance's directory tree. Removing an absent
// directory succeeds, keeping the remove flow idempotent.
func (r *Registry) RemoveDir(name string) error {
	if err := os.RemoveAll(r.Dir(name)); err != nil {
		return fmt.Errorf("removing instance directory %s: %w", r.Dir(name), err)
	}
	return nil
}
