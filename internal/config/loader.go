package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir

const (
	userConfigDir  = ".config/nodectl"
	configFileName = "config.yaml"

	// EnvConfigPath overrides the user config file location when set.
	EnvConfigPath = "NODECTL_CONFIG"

	defaultServicesDir = ".nodectl/services"
)

// LoadConfig loads the nodectl configuration by layering the user's
// config file (if any) over the built-in defaults, then resolving and
// validating the result.
func LoadConfig() (Config, error) {
	// 1. Start with the default configuration
	cfg := GetDefaultConfig()

	// 2. Layer the user configuration over it, if present
	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// User config is optional; warn and continue with defaults.
		fmt.Fprintf(os.Stderr, "Warning: could not determine user config path: %v\n", err)
	} else {
		if _, err := os.Stat(userConfigPath); !os.IsNotExist(err) {
			userCfg, err := loadConfigFromFile(userConfigPath)
			if err != nil {
				return Config{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
			}
			cfg = mergeConfigs(cfg, userCfg)
		}
	}

	if err := resolveConfig(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFromPath loads configuration from an explicit file, layered
// over the defaults. Used when the user passes --config.
func LoadConfigFromPath(path string) (Config, error) {
	cfg := GetDefaultConfig()

	userCfg, err := loadConfigFromFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
	}
	cfg = mergeConfigs(cfg, userCfg)

	if err := resolveConfig(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var getUserConfigPath = func() (string, error) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, nil
	}
	homeDir, err := osUserHomeDir() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// loadConfigFromFile loads a Config from a YAML file.
func loadConfigFromFile(filePath string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Config{}, err
	}
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeConfigs merges 'overlay' config into 'base' config. Scalars
// override when non-zero; the port category list replaces wholesale
// when the overlay provides one (partial category lists would leave
// installers without ranges).
func mergeConfigs(base, overlay Config) Config {
	merged := base

	if overlay.ServicesRoot != "" {
		merged.ServicesRoot = overlay.ServicesRoot
	}
	if overlay.Docker.Binary != "" {
		merged.Docker.Binary = overlay.Docker.Binary
	}
	if overlay.Docker.Compose != "" {
		merged.Docker.Compose = overlay.Docker.Compose
	}
	if overlay.Networks.Monitoring != "" {
		merged.Networks.Monitoring = overlay.Networks.Monitoring
	}
	if overlay.Networks.Validator != "" {
		merged.Networks.Validator = overlay.Networks.Validator
	}
	if overlay.Networks.Signer != "" {
		merged.Networks.Signer = overlay.Networks.Signer
	}
	if overlay.Networks.EthnodeSuffix != "" {
		merged.Networks.EthnodeSuffix = overlay.Networks.EthnodeSuffix
	}
	if len(overlay.Ports) > 0 {
		merged.Ports = overlay.Ports
	}
	if overlay.Ethnode.Execution != "" {
		merged.Ethnode.Execution = overlay.Ethnode.Execution
	}
	if overlay.Ethnode.Consensus != "" {
		merged.Ethnode.Consensus = overlay.Ethnode.Consensus
	}
	if overlay.Ethnode.Mev {
		merged.Ethnode.Mev = true
	}
	if overlay.Integration.DetachDelay != 0 {
		merged.Integration.DetachDelay = overlay.Integration.DetachDelay
	}

	return merged
}

// resolveConfig fills derived values that depend on the environment,
// such as expanding the default services root under $HOME.
func resolveConfig(cfg *Config) error {
	if cfg.ServicesRoot == "" {
		homeDir, err := osUserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot resolve services root: %w", err)
		}
		cfg.ServicesRoot = filepath.Join(homeDir, defaultServicesDir)
	}
	return nil
}

// Validate rejects configurations the rest of the system cannot operate
// on. It runs after merging, so it sees the effective configuration.
func (c Config) Validate() error {
	if c.ServicesRoot == "" {
		return fmt.Errorf("config: servicesRoot must not be empty")
	}
	if c.Docker.Binary == "" {
		return fmt.Errorf("config: docker.binary must not be empty")
	}
	if c.Networks.Monitoring == "" || c.Networks.Validator == "" || c.Networks.Signer == "" {
		return fmt.Errorf("config: shared network names must not be empty")
	}
	if c.Networks.EthnodeSuffix == "" {
		return fmt.Errorf("config: networks.ethnodeSuffix must not be empty")
	}
	seen := make(map[string]bool, len(c.Ports))
	for _, cat := range c.Ports {
		if cat.Name == "" {
			return fmt.Errorf("config: port category with empty name")
		}
		if seen[cat.Name] {
			return fmt.Errorf("config: duplicate port category %q", cat.Name)
		}
		seen[cat.Name] = true
		if cat.Start <= 0 || cat.End > 65536 || cat.Start >= cat.End {
			return fmt.Errorf("config: port category %q has invalid range [%d,%d)", cat.Name, cat.Start, cat.End)
		}
	}
	for _, required := range []string{
		CategoryELRPC, CategoryELP2P, CategoryCLAPI, CategoryCLP2P,
		CategoryMEV, CategoryMetrics, CategorySigner, CategoryDashboard,
	} {
		if !seen[required] {
			return fmt.Errorf("config: missing port category %q", required)
		}
	}
	if c.Integration.DetachDelay < 0 {
		return fmt.Errorf("config: integration.detachDelay must not be negative")
	}
	return nil
}
