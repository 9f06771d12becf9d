package network

import (
	"net"
	"strings"

	"github.com/juju/collections/set"

	"nodectl/internal/envfile"
	"nodectl/internal/service"
	"nodectl/pkg/logging"
)

// EthnodeRefs resolves which Ethnode instances a Validator consumes.
//
// An explicit VALIDATOR_ETHNODES list wins. Without one, each
// BEACON_NODES endpoint URL is mapped to an Ethnode by taking the URL
// host's prefix before its first "-" (the consensus container of
// Ethnode "ethnode1" is reachable as "ethnode1-consensus"). That
// inference mis-resolves Ethnode names that themselves contain "-"; it
// is kept for existing deployments, which is exactly what the explicit
// list is there to avoid.
//
// Names that do not match an installed Ethnode are dropped with a
// warning. The result is sorted and duplicate-free.
func EthnodeRefs(inst *service.Instance, fleet []*service.Instance) []string {
	installed := set.NewStrings()
	for _, other := range fleet {
		if other.Kind == service.KindEthnode {
			installed.Add(other.Name)
		}
	}

	refs := set.NewStrings()
	keep := func(name, source string) {
		if name == "" {
			return
		}
		if !installed.Contains(name) {
			logging.Warn("Network", "Validator %s references unknown ethnode %q (from %s)", inst.Name, name, source)
			return
		}
		refs.Add(name)
	}

	if raw, ok := inst.Config.Get(service.KeyEthnodeRefs); ok && strings.TrimSpace(raw) != "" {
		for _, name := range splitList(raw) {
			keep(name, service.KeyEthnodeRefs)
		}
		return refs.SortedValues()
	}

	if raw, ok := inst.Config.Get(service.KeyBeaconNodes); ok {
		for _, endpoint := range splitList(raw) {
			keep(ethnodeNameFromEndpoint(endpoint), service.KeyBeaconNodes)
		}
	}
	return refs.SortedValues()
}

// PruneEthnodeRef removes every reference to a removed Ethnode from a
// Validator's configuration: matching BEACON_NODES endpoints and
// matching explicit VALIDATOR_ETHNODES entries. Reports whether the
// configuration changed.
func PruneEthnodeRef(cfg *envfile.File, removed string) bool {
	changed := false

	if raw, ok := cfg.Get(service.KeyBeaconNodes); ok {
		var kept []string
		for _, endpoint := range splitList(raw) {
			if ethnodeNameFromEndpoint(endpoint) == removed {
				changed = true
				continue
			}
			kept = append(kept, endpoint)
		}
		if changed {
			cfg.Set(service.KeyBeaconNodes, strings.Join(kept, ","))
		}
	}

	if raw, ok := cfg.Get(service.KeyEthnodeRefs); ok && strings.TrimSpace(raw) != "" {
		var kept []string
		pruned := false
		for _, name := range splitList(raw) {
			if name == removed {
				pruned = true
				continue
			}
			kept = append(kept, name)
		}
		if pruned {
			cfg.Set(service.KeyEthnodeRefs, strings.Join(kept, ","))
			changed = true
		}
	}

	return changed
}

// ethnodeNameFromEndpoint derives an Ethnode instance name from an
// endpoint such as "http://ethnode1-consensus:5052".
func ethnodeNameFromEndpoint(endpoint string) string {
	host := endpointHost(endpoint)
	if i := strings.Index(host, "-"); i > 0 {
		return host[:i]
	}
	return host
}

// endpointHost extracts the bare host from an endpoint that may carry a
// scheme, a port and a path.
func endpointHost(endpoint string) string {
	s := strings.TrimSpace(endpoint)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		return host
	}
	return s
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
