package cmd

import (
	"autctl/internal/lifecycle"
	"autctl/internal/protocol"
)

func newClient() *protocol.Client {
	return protocol.NewClient(
		protocol.Endpoint{Host: cfg.Agent.Host, Port: cfg.Agent.Port},
		protocol.WithReadTimeout(cfg.Agent.ReadTimeout),
	)
}

func newController() *lifecycle.Controller {
	return lifecycle.New(lifecycle.OptionsFromConfig(cfg))
}

// executableArg returns the executable from args or the configuration.
func executableArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.Application.Executable
}
