package ports

import (
	"fmt"
	"net"

	"github.com/juju/collections/set"

	"nodectl/internal/config"
)

// Spec is one allocation request against a single category.
type Spec struct {
	Count       int
	Consecutive bool // the Count ports must be one contiguous block
	Increment   int  // scan stride through the category range
	Category    config.PortCategory
}

// Requirement is the declarative form carried by a flow definition: one
// config key per wanted port, resolved against the configured category
// by name. For consecutive requirements the keys are in block order.
type Requirement struct {
	Keys        []string
	Category    string
	Consecutive bool
	Increment   int
}

// ExhaustedError reports a category range that cannot satisfy a spec.
// It is fatal to install; nothing has been persisted when it occurs.
type ExhaustedError struct {
	Category config.PortCategory
	Count    int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("port range %q [%d,%d) exhausted: no room for %d port(s)",
		e.Category.Name, e.Category.Start, e.Category.End, e.Count)
}

// ProbeFunc reports whether a port is free of live listeners. It is the
// independent check demanded on top of the snapshot; the default binds
// a TCP listener and releases it immediately.
type ProbeFunc func(port int) bool

// BindProbe attempts a TCP bind on all interfaces.
func BindProbe(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

// Allocator assigns host ports from configured categories. It holds no
// state between calls: every allocation works against the used-port
// snapshot handed in, so identical inputs give identical outputs
// (lowest-wins). The window between snapshot and actual bind is an
// accepted race; the snapshot is taken fresh per operation and the
// probe narrows the window, nothing eliminates it.
type Allocator struct {
	cfg   config.Config
	probe ProbeFunc
}

// NewAllocator returns an allocator over the configured categories.
// A nil probe selects BindProbe.
func NewAllocator(cfg config.Config, probe ProbeFunc) *Allocator {
	if probe == nil {
		probe = BindProbe
	}
	return &Allocator{cfg: cfg, probe: probe}
}

// Allocate returns spec.Count ports satisfying the spec, in increasing
// order, none of which are in used or carry a live listener. The used
// set is not modified.
func (a *Allocator) Allocate(spec Spec, used set.Ints) ([]int, error) {
	if spec.Count <= 0 {
		return nil, fmt.Errorf("port spec: count must be positive, got %d", spec.Count)
	}
	increment := spec.Increment
	if increment <= 0 {
		increment = 1
	}
	cat := spec.Category

	if spec.Consecutive {
		for base := cat.Start; base+spec.Count <= cat.End; base += increment {
			if a.blockFree(base, spec.Count, used) {
				block := make([]int, spec.Count)
				for i := range block {
					block[i] = base + i
				}
				return block, nil
			}
		}
		return nil, &ExhaustedError{Category: cat, Count: spec.Count}
	}

	var out []int
	for p := cat.Start; p < cat.End; p += increment {
		if a.free(p, used) {
			out = append(out, p)
			if len(out) == spec.Count {
				return out, nil
			}
		}
	}
	return nil, &ExhaustedError{Category: cat, Count: spec.Count}
}

// AllocateSet satisfies a list of requirements, folding each result
// into the used set before the next so one composite call (a full node:
// execution RPC, execution P2P, consensus API, consensus P2P, optional
// relay, metrics) cannot collide with itself. Returns config key ->
// assigned port.
func (a *Allocator) AllocateSet(reqs []Requirement, used set.Ints) (map[string]int, error) {
	// Work on a copy so the caller's snapshot is untouched.
	working := set.NewInts(used.Values()...)

	assigned := make(map[string]int)
	for _, req := range reqs {
		if len(req.Keys) == 0 {
			continue
		}
		cat, ok := a.cfg.Category(req.Category)
		if !ok {
			return nil, fmt.Errorf("port requirement references unknown category %q", req.Category)
		}
		ports, err := a.Allocate(Spec{
			Count:       len(req.Keys),
			Consecutive: req.Consecutive,
			Increment:   req.Increment,
			Category:    cat,
		}, working)
		if err != nil {
			return nil, err
		}
		for i, key := range req.Keys {
			assigned[key] = ports[i]
			working.Add(ports[i])
		}
	}
	return assigned, nil
}

func (a *Allocator) free(p int, used set.Ints) bool {
	return !used.Contains(p) && a.probe(p)
}

func (a *Allocator) blockFree(base, count int, used set.Ints) bool {
	for p := base; p < base+count; p++ {
		if !a.free(p, used) {
			return false
		}
	}
	return true
}
