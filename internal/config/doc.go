// Package config provides configuration management for nodectl.
//
// This package implements a layered configuration system: the built-in
// defaults are merged with the user's YAML file, later sources overriding
// earlier ones.
//
// # Configuration Layers
//
//  1. Default Configuration (embedded in binary)
//     - Provides usable defaults for every setting
//     - Ensures nodectl works out-of-the-box
//
//  2. User Configuration (~/.config/nodectl/config.yaml, or the file
//     named by $NODECTL_CONFIG, or --config)
//     - Host-specific overrides: services root, docker binary, port
//     ranges, network names
//
// # Configuration Structure
//
//	servicesRoot: /var/lib/nodectl/services
//	docker:
//	  binary: docker
//	  compose: compose
//	networks:
//	  monitoring: monitoring-net
//	  validator: validator-net
//	  signer: signer-net
//	  ethnodeSuffix: -net
//	portCategories:
//	  - name: el-rpc
//	    start: 8545
//	    end: 8560
//	ethnode:
//	  execution: geth
//	  consensus: lighthouse
//	  mev: false
//	integration:
//	  detachDelay: 15s
//
// Port categories are half-open ranges [start, end). When a user config
// provides portCategories, the list replaces the default list wholesale;
// a partial list would leave installers without ranges to allocate from,
// so Validate requires all well-known categories to be present.
package config
