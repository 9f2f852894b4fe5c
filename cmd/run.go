package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"autctl/internal/fixture"
	"autctl/internal/lifecycle"
	"autctl/internal/perf"
	"autctl/internal/scenario"
	"autctl/pkg/logging"
)

var (
	runExecutable string
	runTimings    bool
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml>",
	Short: "Run a scenario of agent commands against a freshly launched AUT",
	Long: `Launches the AUT, executes every step of the scenario, tears the AUT down
and prints a result table. Each step names an agent command, an optional
element key resolved through the scenario's element list, arguments and the
expected outcome (true, false, error or text).

Example scenario:
  name: Login
  elements: elements.yaml
  steps:
    - command: setTextById
      element: userField
      args: [admin]
    - command: clickButton
      element: loginButton
    - command: getTextById
      element: title
      expect: text
      text: Welcome`,
	Args: cobra.ExactArgs(1),
	RunE: runScenario,
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	exe := runExecutable
	if exe == "" {
		exe = sc.Executable
	}
	if exe == "" {
		exe = cfg.Application.Executable
	}
	if exe == "" {
		return errors.New("no executable: use --executable, the scenario's executable or application.executable")
	}

	opts := lifecycle.OptionsFromConfig(cfg)
	if runTimings {
		opts.Reporter = perf.MultiReporter{perf.LogReporter{}, perf.TableReporter{Out: cmd.OutOrStdout()}}
	}
	ctrl := lifecycle.New(opts)
	defer func() {
		if err := ctrl.Close(); err != nil {
			logging.Warn(subsystem, "Removing generated configuration failed: %v", err)
		}
	}()

	report, err := scenario.NewRunner(fixture.New(ctrl, nil)).Run(cmd.Context(), sc, exe)
	if err != nil {
		return err
	}
	report.Render(cmd.OutOrStdout())

	if !report.Passed() {
		return fmt.Errorf("%d of %d steps failed", report.Failed(), len(report.Steps))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runExecutable, "executable", "", "AUT executable (overrides the scenario and config)")
	runCmd.Flags().BoolVar(&runTimings, "timings", false, "Print per-command timings after the AUT stops")
}
