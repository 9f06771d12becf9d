package app

import (
	"fmt"
	"os"

	"nodectl/internal/config"
	"nodectl/internal/manager"
	"nodectl/pkg/logging"
)

// Application bootstraps the service graph the CLI verbs run against.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication creates and initializes a new application instance.
func NewApplication(cfg *Config) (*Application, error) {
	appLogLevel := logging.LevelInfo
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}
	// Logs go to stderr so command output stays scriptable.
	logging.Init(appLogLevel, os.Stderr)

	var nodectlCfg config.Config
	var err error
	if cfg.ConfigPath != "" {
		nodectlCfg, err = config.LoadConfigFromPath(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration from %s", cfg.ConfigPath)
			return nil, fmt.Errorf("failed to load configuration from %s: %w", cfg.ConfigPath, err)
		}
		logging.Debug("Bootstrap", "Loaded configuration from %s", cfg.ConfigPath)
	} else {
		nodectlCfg, err = config.LoadConfig()
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration")
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}
	cfg.Nodectl = &nodectlCfg

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Manager returns the lifecycle manager the CLI verbs drive.
func (a *Application) Manager() *manager.Manager {
	return a.services.Manager
}

// Config returns the effective service configuration.
func (a *Application) Config() *config.Config {
	return a.config.Nodectl
}
