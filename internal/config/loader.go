package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd
var osLookupEnv = os.LookupEnv

const (
	userConfigDir    = ".config/autctl"
	projectConfigDir = ".autctl"
	configFileName   = "config.yaml"
)

// Environment variables honored on top of the file layers. The first two
// carry the names the test-editor fixtures have always used.
const (
	EnvWorkspacePath   = "AUT_WORKSPACE_PATH"
	EnvAgentBundlePath = "SWT_BOT_AGENT_BUNDLE_PATH"
	EnvExecutable      = "AUT_EXECUTABLE"
)

// LoadConfig loads the autctl configuration by layering default, user,
// project and explicit settings, then applies environment overrides.
// explicitPath may be empty; when set, the file must exist.
func LoadConfig(explicitPath string) (AutctlConfig, error) {
	config := GetDefaultConfig()

	userConfigPath, err := getUserConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
	} else if err := loadOptionalLayer(userConfigPath, &config); err != nil {
		return AutctlConfig{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
	}

	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not determine project config path: %v\n", err)
	} else if err := loadOptionalLayer(projectConfigPath, &config); err != nil {
		return AutctlConfig{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
	}

	if explicitPath != "" {
		if err := loadConfigFromFile(explicitPath, &config); err != nil {
			return AutctlConfig{}, fmt.Errorf("error loading config from %s: %w", explicitPath, err)
		}
	}

	applyEnvOverrides(&config)

	if err := config.Validate(); err != nil {
		return AutctlConfig{}, err
	}
	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

func loadOptionalLayer(path string, into *AutctlConfig) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return loadConfigFromFile(path, into)
}

// loadConfigFromFile decodes a YAML file on top of into. Keys absent from
// the file keep the values of the lower layers.
func loadConfigFromFile(filePath string, into *AutctlConfig) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, into)
}

func applyEnvOverrides(config *AutctlConfig) {
	if v, ok := osLookupEnv(EnvWorkspacePath); ok && v != "" {
		config.Workspace.Path = v
	}
	if v, ok := osLookupEnv(EnvAgentBundlePath); ok && v != "" {
		config.Agent.BundlePath = v
	}
	if v, ok := osLookupEnv(EnvExecutable); ok && v != "" {
		config.Application.Executable = v
	}
}

// Validate reports the first setting that cannot drive a launch.
func (c AutctlConfig) Validate() error {
	if c.Agent.Port <= 0 || c.Agent.Port > 65535 {
		return fmt.Errorf("invalid agent port %d", c.Agent.Port)
	}
	if c.Agent.Host == "" {
		return fmt.Errorf("agent host must not be empty")
	}
	if c.Agent.ReadTimeout < 0 {
		return fmt.Errorf("agent readTimeout must not be negative")
	}
	t := c.Timing
	if t.ReadinessAttempts <= 0 {
		return fmt.Errorf("timing.readinessAttempts must be positive, got %d", t.ReadinessAttempts)
	}
	for name, d := range map[string]time.Duration{
		"readinessInterval": t.ReadinessInterval,
		"slotPollInterval":  t.SlotPollInterval,
		"slotStaleAfter":    t.SlotStaleAfter,
		"exitPollInterval":  t.ExitPollInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("timing.%s must be positive", name)
		}
	}
	if t.SettleDelay < 0 {
		return fmt.Errorf("timing.settleDelay must not be negative")
	}
	return nil
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
