package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"autctl/pkg/logging"
)

var (
	startTestName    string
	startStopTimeout time.Duration
)

var startCmd = &cobra.Command{
	Use:   "start [executable]",
	Short: "Launch the AUT and keep it running until interrupted",
	Long: `Resets the workspace, injects the agent bundle into the AUT configuration,
launches the AUT and waits until the agent reports it is ready. The AUT runs
until autctl receives SIGINT or SIGTERM, then it is stopped through the agent.

The executable defaults to application.executable (or AUT_EXECUTABLE).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	exe := executableArg(args)
	if exe == "" {
		return errors.New("no executable given and application.executable is not configured")
	}

	ctrl := newController()
	defer func() {
		if err := ctrl.Close(); err != nil {
			logging.Warn(subsystem, "Removing generated configuration failed: %v", err)
		}
	}()
	if startTestName != "" {
		ctrl.SetTestName(startTestName)
	}

	ctx := cmd.Context()
	if err := ctrl.Start(ctx, exe); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "AUT ready (launch %s), agent on %s\n", ctrl.LaunchID(), ctrl.Client().Endpoint().Address())

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), startStopTimeout)
	defer cancel()
	return ctrl.TearDown(stopCtx)
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().StringVar(&startTestName, "test-name", "", "Name sent to the agent with setTestName")
	startCmd.Flags().DurationVar(&startStopTimeout, "stop-timeout", 2*time.Minute, "How long to wait for the AUT to exit on shutdown")
}
