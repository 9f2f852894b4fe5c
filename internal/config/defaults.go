package config

import (
	"path/filepath"
	"time"
)

const (
	DefaultAgentHost        = "localhost"
	DefaultAgentPort        = 9090
	DefaultAgentApplication = "org.testeditor.agent.swtbot.TestEditorSWTBotAgent"
	DefaultUIApplication    = "org.eclipse.e4.ui.workbench.swt.E4Application"
	DefaultLocale           = "de_de"
	defaultWorkspaceDir     = ".testeditor_aut"
)

// GetDefaultConfig returns the built-in configuration. The workspace path
// is placed under the user's home directory when it can be determined.
func GetDefaultConfig() AutctlConfig {
	workspace := defaultWorkspaceDir
	if home, err := osUserHomeDir(); err == nil {
		workspace = filepath.Join(home, defaultWorkspaceDir)
	}

	return AutctlConfig{
		Agent: AgentConfig{
			Host:        DefaultAgentHost,
			Port:        DefaultAgentPort,
			ReadTimeout: 30 * time.Second,
		},
		Application: ApplicationConfig{
			AgentApplication: DefaultAgentApplication,
			UIApplication:    DefaultUIApplication,
			Locale:           DefaultLocale,
		},
		Workspace: WorkspaceConfig{
			Path: workspace,
		},
		Timing: TimingConfig{
			ReadinessAttempts: 200,
			ReadinessInterval: 200 * time.Millisecond,
			SettleDelay:       500 * time.Millisecond,
			SlotPollInterval:  100 * time.Millisecond,
			SlotStaleAfter:    10 * time.Second,
			ExitPollInterval:  100 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
