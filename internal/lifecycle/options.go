package lifecycle

import (
	"time"

	"autctl/internal/config"
	"autctl/internal/injector"
	"autctl/internal/launch"
	"autctl/internal/perf"
	"autctl/internal/process"
	"autctl/internal/protocol"
	"autctl/internal/workspace"
)

// Options configures a Controller. Zero values fall back to the defaults
// in internal/config.
type Options struct {
	Endpoint    protocol.Endpoint
	ReadTimeout time.Duration
	Dialer      protocol.Dialer

	WorkspacePath    string
	TemplateArchive  string
	AgentBundlePath  string
	AgentApplication string
	UIApplication    string
	Locale           string
	TestName         string
	Env              []string

	ReadinessAttempts int
	ReadinessInterval time.Duration
	SettleDelay       time.Duration
	ExitPollInterval  time.Duration

	Slot           *launch.Slot
	Preparer       Preparer
	Injector       Injector
	Launcher       Launcher
	LookupTemplate func(executable string) (string, error)
	Reporter       perf.Reporter
	OnStateChange  StateChangeCallback
}

// OptionsFromConfig maps a loaded configuration onto controller options.
// The slot timings are applied to the process-wide slot, which every
// controller built this way shares.
func OptionsFromConfig(cfg config.AutctlConfig) Options {
	slot := launch.Default()
	slot.Configure(
		launch.WithPollInterval(cfg.Timing.SlotPollInterval),
		launch.WithStaleAfter(cfg.Timing.SlotStaleAfter),
	)
	return Options{
		Endpoint:          protocol.Endpoint{Host: cfg.Agent.Host, Port: cfg.Agent.Port},
		ReadTimeout:       cfg.Agent.ReadTimeout,
		WorkspacePath:     cfg.Workspace.Path,
		TemplateArchive:   cfg.Workspace.TemplateArchive,
		AgentBundlePath:   cfg.Agent.BundlePath,
		AgentApplication:  cfg.Application.AgentApplication,
		UIApplication:     cfg.Application.UIApplication,
		Locale:            cfg.Application.Locale,
		TestName:          cfg.Application.TestName,
		ReadinessAttempts: cfg.Timing.ReadinessAttempts,
		ReadinessInterval: cfg.Timing.ReadinessInterval,
		SettleDelay:       cfg.Timing.SettleDelay,
		ExitPollInterval:  cfg.Timing.ExitPollInterval,
		Slot:              slot,
	}
}

func (o Options) withDefaults() Options {
	d := config.GetDefaultConfig()
	if o.Endpoint.Host == "" {
		o.Endpoint.Host = d.Agent.Host
	}
	if o.Endpoint.Port == 0 {
		o.Endpoint.Port = d.Agent.Port
	}
	if o.WorkspacePath == "" {
		o.WorkspacePath = d.Workspace.Path
	}
	if o.AgentApplication == "" {
		o.AgentApplication = d.Application.AgentApplication
	}
	if o.UIApplication == "" {
		o.UIApplication = d.Application.UIApplication
	}
	if o.Locale == "" {
		o.Locale = d.Application.Locale
	}
	if o.ReadinessAttempts == 0 {
		o.ReadinessAttempts = d.Timing.ReadinessAttempts
	}
	if o.ReadinessInterval == 0 {
		o.ReadinessInterval = d.Timing.ReadinessInterval
	}
	if o.SettleDelay == 0 {
		o.SettleDelay = d.Timing.SettleDelay
	}
	if o.ExitPollInterval == 0 {
		o.ExitPollInterval = d.Timing.ExitPollInterval
	}
	if o.Slot == nil {
		o.Slot = launch.Default()
	}
	if o.Preparer == nil {
		o.Preparer = workspace.NewPreparer(o.TemplateArchive)
	}
	if o.Injector == nil {
		o.Injector = injector.New()
	}
	if o.Launcher == nil {
		o.Launcher = ProcessLauncher{L: process.NewLauncher()}
	}
	if o.LookupTemplate == nil {
		o.LookupTemplate = injector.LookupTemplate
	}
	if o.Reporter == nil {
		o.Reporter = perf.LogReporter{}
	}
	return o
}
