package config

import (
	"time"
)

// AutctlConfig is the top-level configuration structure for autctl.
type AutctlConfig struct {
	Agent       AgentConfig       `yaml:"agent"`
	Application ApplicationConfig `yaml:"application"`
	Workspace   WorkspaceConfig   `yaml:"workspace"`
	Timing      TimingConfig      `yaml:"timing"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// AgentConfig locates the remote-control agent running inside the AUT.
type AgentConfig struct {
	Host        string        `yaml:"host,omitempty"`        // Agent socket host (default: localhost)
	Port        int           `yaml:"port,omitempty"`        // Agent socket port (default: 9090)
	BundlePath  string        `yaml:"bundlePath,omitempty"`  // Agent bundle jar, or its project directory in development mode
	ReadTimeout time.Duration `yaml:"readTimeout,omitempty"` // Bound on a single read-to-EOF exchange; 0 disables
}

// ApplicationConfig describes how the AUT is launched.
type ApplicationConfig struct {
	Executable       string `yaml:"executable,omitempty"`       // Path to the AUT binary or .app bundle
	AgentApplication string `yaml:"agentApplication,omitempty"` // Value for -application
	UIApplication    string `yaml:"uiApplication,omitempty"`    // Value for -aut
	Locale           string `yaml:"locale,omitempty"`           // Value for -nl
	TestName         string `yaml:"testName,omitempty"`         // Session name sent with setTestName
}

// WorkspaceConfig describes the AUT workspace and the template it is reset from.
type WorkspaceConfig struct {
	Path            string `yaml:"path,omitempty"`            // The AUT's -data directory
	TemplateArchive string `yaml:"templateArchive,omitempty"` // Zip archive the workspace is rebuilt from
}

// TimingConfig holds every wait and poll interval of the launch lifecycle.
type TimingConfig struct {
	ReadinessAttempts int           `yaml:"readinessAttempts,omitempty"`
	ReadinessInterval time.Duration `yaml:"readinessInterval,omitempty"`
	SettleDelay       time.Duration `yaml:"settleDelay,omitempty"`
	SlotPollInterval  time.Duration `yaml:"slotPollInterval,omitempty"`
	SlotStaleAfter    time.Duration `yaml:"slotStaleAfter,omitempty"`
	ExitPollInterval  time.Duration `yaml:"exitPollInterval,omitempty"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty"` // Listen address for /metrics; empty disables
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // debug, info, warn or error
}
