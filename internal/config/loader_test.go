package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// Helper function to create a temporary config file
func createTempConfigFile(t *testing.T, dir string, content Config) string {
	t.Helper()
	tempFilePath := filepath.Join(dir, "config.yaml")
	data, err := yaml.Marshal(&content)
	require.NoError(t, err)
	err = os.WriteFile(tempFilePath, data, 0644)
	require.NoError(t, err)
	return tempFilePath
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	tempDir := t.TempDir()

	// Point the loader at a non-existent user config so only defaults apply.
	originalGetUserConfigPath := getUserConfigPath
	originalHome := osUserHomeDir
	defer func() {
		getUserConfigPath = originalGetUserConfigPath
		osUserHomeDir = originalHome
	}()
	getUserConfigPath = func() (string, error) {
		return filepath.Join(tempDir, "non-existent-config.yaml"), nil
	}
	osUserHomeDir = func() (string, error) { return tempDir, nil }

	cfg, err := LoadConfig()
	require.NoError(t, err)

	defaults := GetDefaultConfig()
	assert.Equal(t, defaults.Docker, cfg.Docker)
	assert.Equal(t, defaults.Networks, cfg.Networks)
	assert.ElementsMatch(t, defaults.Ports, cfg.Ports)
	assert.Equal(t, filepath.Join(tempDir, defaultServicesDir), cfg.ServicesRoot)
}

func TestLoadConfig_UserOverride(t *testing.T) {
	tempDir := t.TempDir()

	userCfg := Config{
		ServicesRoot: filepath.Join(tempDir, "svc"),
		Docker:       DockerSettings{Binary: "podman"},
		Integration:  IntegrationSettings{DetachDelay: 3 * time.Second},
	}
	userPath := createTempConfigFile(t, tempDir, userCfg)

	originalGetUserConfigPath := getUserConfigPath
	defer func() { getUserConfigPath = originalGetUserConfigPath }()
	getUserConfigPath = func() (string, error) { return userPath, nil }

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "podman", cfg.Docker.Binary)
	assert.Equal(t, "compose", cfg.Docker.Compose, "unset overlay fields keep defaults")
	assert.Equal(t, filepath.Join(tempDir, "svc"), cfg.ServicesRoot)
	assert.Equal(t, 3*time.Second, cfg.Integration.DetachDelay)
	assert.Equal(t, "monitoring-net", cfg.Networks.Monitoring)
}

func TestLoadConfig_EnvPathOverride(t *testing.T) {
	tempDir := t.TempDir()

	userCfg := Config{Docker: DockerSettings{Binary: "nerdctl"}}
	userPath := createTempConfigFile(t, tempDir, userCfg)
	t.Setenv(EnvConfigPath, userPath)

	originalHome := osUserHomeDir
	defer func() { osUserHomeDir = originalHome }()
	osUserHomeDir = func() (string, error) { return tempDir, nil }

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "nerdctl", cfg.Docker.Binary)
}

func TestLoadConfigFromPath_MalformedYAML(t *testing.T) {
	tempDir := t.TempDir()
	badPath := filepath.Join(tempDir, "config.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("docker: [not a mapping"), 0644))

	_, err := LoadConfigFromPath(badPath)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "empty docker binary",
			mutate:  func(c *Config) { c.Docker.Binary = "" },
			wantErr: "docker.binary",
		},
		{
			name: "inverted category range",
			mutate: func(c *Config) {
				c.Ports[0].Start, c.Ports[0].End = c.Ports[0].End, c.Ports[0].Start
			},
			wantErr: "invalid range",
		},
		{
			name: "duplicate category",
			mutate: func(c *Config) {
				c.Ports = append(c.Ports, PortCategory{Name: CategoryMetrics, Start: 1, End: 2})
			},
			wantErr: "duplicate port category",
		},
		{
			name: "missing well-known category",
			mutate: func(c *Config) {
				c.Ports = []PortCategory{{Name: CategoryELRPC, Start: 8545, End: 8560}}
			},
			wantErr: "missing port category",
		},
		{
			name:    "empty ethnode suffix",
			mutate:  func(c *Config) { c.Networks.EthnodeSuffix = "" },
			wantErr: "ethnodeSuffix",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			cfg.ServicesRoot = "/tmp/services"
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestCategoryLookup(t *testing.T) {
	cfg := GetDefaultConfig()

	cat, ok := cfg.Category(CategoryMetrics)
	require.True(t, ok)
	assert.Equal(t, 6060, cat.Start)
	assert.Equal(t, 6200, cat.End)
	assert.True(t, cat.Contains(6060))
	assert.True(t, cat.Contains(6199))
	assert.False(t, cat.Contains(6200))

	_, ok = cfg.Category("no-such-category")
	assert.False(t, ok)
}
