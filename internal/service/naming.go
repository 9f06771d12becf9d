package service

import (
	"regexp"
	"strings"
)

// The naming convention is fixed: the instance name alone determines the
// kind, so resolving never consults disk or runtime state.
//
//	ethnode, ethnode2, ethnode-goerli  -> Ethnode
//	validator, validator2              -> Validator
//	web3signer                         -> Signer
//	monitoring                         -> Monitoring
//	anything else                      -> Plugin
//
// web3signer and monitoring are singletons; suffixed variants of those
// names fall through to Plugin and will simply not exist in the plugin
// catalog.
const (
	EthnodePrefix   = "ethnode"
	ValidatorPrefix = "validator"
	SignerName      = "web3signer"
	MonitoringName  = "monitoring"
)

var nameRE = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// ValidateName rejects names that cannot be a service instance:
// directory names, container name fragments and network names are all
// derived from it.
func ValidateName(name string) error {
	if name == "" {
		return NewConfigurationError("service name is empty")
	}
	if !nameRE.MatchString(name) {
		return NewConfigurationError("invalid service name %q: must match %s", name, nameRE.String())
	}
	return nil
}

// KindForName resolves an instance name to its kind via the naming
// convention. Malformed names are a ConfigurationError.
func KindForName(name string) (Kind, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	switch {
	case name == SignerName:
		return KindSigner, nil
	case name == MonitoringName:
		return KindMonitoring, nil
	case strings.HasPrefix(name, EthnodePrefix):
		return KindEthnode, nil
	case strings.HasPrefix(name, ValidatorPrefix):
		return KindValidator, nil
	default:
		return KindPlugin, nil
	}
}
