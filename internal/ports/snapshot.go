package ports

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/juju/collections/set"

	"nodectl/internal/service"
	"nodectl/pkg/logging"
)

// RuntimeObserver is the slice of live host/container state the
// snapshot needs. The docker client satisfies it.
type RuntimeObserver interface {
	// ListeningPorts returns host sockets currently in listening state.
	ListeningPorts(ctx context.Context) ([]int, error)
	// ContainerPortTokens returns every host-side port bound by any
	// container, running or stopped, as raw tokens: "8545" or a range
	// "30303-30310".
	ContainerPortTokens(ctx context.Context) ([]string, error)
}

// InstanceSource yields the installed instances whose configurations
// contribute *_PORT values.
type InstanceSource interface {
	List() ([]*service.Instance, error)
}

// Snapshot assembles the used-port set an allocation call works
// against: live host listeners, container port bindings (ranges
// expanded), and every numeric *_PORT value in any installed instance's
// configuration. The snapshot is taken fresh on every call; nothing is
// cached.
func Snapshot(ctx context.Context, obs RuntimeObserver, instances InstanceSource) (set.Ints, error) {
	used := set.NewInts()

	hostPorts, err := obs.ListeningPorts(ctx)
	if err != nil {
		// Host socket enumeration is best-effort; the bind probe still
		// guards against live listeners during the scan.
		logging.Warn("PortAllocator", "Could not list host listening ports: %v", err)
	}
	for _, p := range hostPorts {
		used.Add(p)
	}

	tokens, err := obs.ContainerPortTokens(ctx)
	if err != nil {
		return set.Ints{}, fmt.Errorf("listing container port bindings: %w", err)
	}
	for _, tok := range tokens {
		expanded, err := ExpandPortToken(tok)
		if err != nil {
			logging.Warn("PortAllocator", "Skipping unparseable port binding %q: %v", tok, err)
			continue
		}
		for _, p := range expanded {
			used.Add(p)
		}
	}

	installed, err := instances.List()
	if err != nil {
		return set.Ints{}, fmt.Errorf("listing installed instances: %w", err)
	}
	for _, inst := range installed {
		for _, key := range inst.Config.Keys() {
			if !strings.HasSuffix(key, service.PortKeySuffix) {
				continue
			}
			if p, ok := inst.Config.GetInt(key); ok {
				used.Add(p)
			}
		}
	}

	return used, nil
}

// ExpandPortToken parses a host port token into individual ports.
// Accepted forms: "8545" and the docker range notation "30303-30310"
// (inclusive on both ends).
func ExpandPortToken(tok string) ([]int, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return nil, nil
	}
	if lo, hi, ok := strings.Cut(tok, "-"); ok {
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("bad range start %q", lo)
		}
		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("bad range end %q", hi)
		}
		if end < start {
			return nil, fmt.Errorf("inverted range %q", tok)
		}
		out := make([]int, 0, end-start+1)
		for p := start; p <= end; p++ {
			out = append(out, p)
		}
		return out, nil
	}
	p, err := strconv.Atoi(tok)
	if err != nil {
		return nil, fmt.Errorf("bad port %q", tok)
	}
	return []int{p}, nil
}
