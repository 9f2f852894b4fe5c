package process

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Spec describes one AUT launch.
type Spec struct {
	// Executable is the AUT binary or .app bundle, validated before spawning.
	Executable string
	// Path and Args form the command line actually executed.
	Path string
	Args []string
	// Dir is the working directory, the directory holding the executable.
	Dir string
	Env []string
}

// String renders the command line for logs.
func (s Spec) String() string {
	return strings.TrimSpace(s.Path + " " + strings.Join(s.Args, " "))
}

// SpecOptions are the inputs to BuildSpec.
type SpecOptions struct {
	Executable       string
	AgentApplication string
	UIApplication    string
	Workspace        string
	Locale           string
	ConfigDir        string
	Env              []string
}

// Strategy decides how an executable path is turned into a command line.
type Strategy interface {
	Name() string
	Command(executable string) (path string, prefix []string)
}

type directStrategy struct{}

func (directStrategy) Name() string { return "direct" }

func (directStrategy) Command(executable string) (string, []string) {
	return executable, nil
}

// bundleStrategy launches macOS application bundles through open(1).
type bundleStrategy struct{}

func (bundleStrategy) Name() string { return "bundle" }

func (bundleStrategy) Command(executable string) (string, []string) {
	return "open", []string{executable, "--args"}
}

// StrategyFor picks the launch strategy from the executable path.
func StrategyFor(executable string) Strategy {
	if strings.HasSuffix(strings.TrimRight(executable, "/"), ".app") {
		return bundleStrategy{}
	}
	return directStrategy{}
}

// BuildSpec assembles the AUT command line:
//
//	<exe> -clean -application <agent> -aut <ui> -data <ws> -nl <locale> -configuration <dir>
func BuildSpec(opts SpecOptions) (Spec, error) {
	var missing []string
	for name, v := range map[string]string{
		"executable":        opts.Executable,
		"agent application": opts.AgentApplication,
		"ui application":    opts.UIApplication,
		"workspace":         opts.Workspace,
		"locale":            opts.Locale,
		"configuration dir": opts.ConfigDir,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Spec{}, fmt.Errorf("%w: missing %s", ErrInvalidSpec, strings.Join(missing, ", "))
	}

	path, args := StrategyFor(opts.Executable).Command(opts.Executable)
	args = append(args,
		"-clean",
		"-application", opts.AgentApplication,
		"-aut", opts.UIApplication,
		"-data", opts.Workspace,
		"-nl", opts.Locale,
		"-configuration", opts.ConfigDir,
	)

	return Spec{
		Executable: opts.Executable,
		Path:       path,
		Args:       args,
		Dir:        filepath.Dir(filepath.Clean(opts.Executable)),
		Env:        opts.Env,
	}, nil
}
