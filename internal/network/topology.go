package network

import (
	"github.com/juju/collections/set"

	"nodectl/internal/config"
	"nodectl/internal/service"
)

// sharedReferencers maps each shared network to the service kinds that
// need it. A shared network must exist while at least one instance of a
// referencing kind is installed, and may be removed once none remains.
func sharedReferencers(names config.NetworkNames) map[string][]service.Kind {
	return map[string][]service.Kind{
		names.Monitoring: {service.KindMonitoring, service.KindPlugin},
		names.Validator:  {service.KindValidator, service.KindMonitoring},
		names.Signer:     {service.KindSigner, service.KindValidator},
	}
}

// Desired computes the networks an instance must be attached to, given
// the currently installed fleet. Pure function of its inputs.
//
// Ethnodes live on their own isolated network only. The monitoring
// stack joins everything it scrapes: the monitoring and validator
// networks plus every Ethnode network in the fleet. Validators join the
// validator and signer networks plus only the Ethnode networks they
// actually consume, to keep exposure minimal. Plugins join the
// monitoring network so the dashboard stack can reach them.
func Desired(inst *service.Instance, fleet []*service.Instance, names config.NetworkNames) set.Strings {
	nets := set.NewStrings()
	switch inst.Kind {
	case service.KindEthnode:
		nets.Add(names.EthnodeNetwork(inst.Name))
	case service.KindSigner:
		nets.Add(names.Signer)
	case service.KindMonitoring:
		nets.Add(names.Monitoring)
		nets.Add(names.Validator)
		for _, other := range fleet {
			if other.Kind == service.KindEthnode {
				nets.Add(names.EthnodeNetwork(other.Name))
			}
		}
	case service.KindValidator:
		nets.Add(names.Validator)
		nets.Add(names.Signer)
		for _, ref := range EthnodeRefs(inst, fleet) {
			nets.Add(names.EthnodeNetwork(ref))
		}
	case service.KindPlugin:
		nets.Add(names.Monitoring)
	}
	return nets
}

// RequiredShared returns the shared networks the installed fleet needs.
func RequiredShared(fleet []*service.Instance, names config.NetworkNames) set.Strings {
	required := set.NewStrings()
	for netName, kinds := range sharedReferencers(names) {
		for _, inst := range fleet {
			if kindIn(inst.Kind, kinds) {
				required.Add(netName)
				break
			}
		}
	}
	return required
}

// Removable reports whether netName may be removed while tearing down
// inst, with remaining holding every other installed instance. An
// isolated network goes with its owning Ethnode; a shared network goes
// only when no remaining instance of a referencing kind is left.
func Removable(netName string, inst *service.Instance, remaining []*service.Instance, names config.NetworkNames) bool {
	if kinds, shared := sharedReferencers(names)[netName]; shared {
		for _, other := range remaining {
			if other.Name == inst.Name {
				continue
			}
			if kindIn(other.Kind, kinds) {
				return false
			}
		}
		return true
	}
	return inst.Kind == service.KindEthnode && netName == names.EthnodeNetwork(inst.Name)
}

func kindIn(kind service.Kind, kinds []service.Kind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
