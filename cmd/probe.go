package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"autctl/internal/readiness"
)

var probeWait bool

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Ask the agent whether the AUT finished launching",
	Long: `Sends isLaunched to the agent. A refused connection is reported as not
launched. With --wait the probe is repeated using the configured readiness
attempts and interval.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	client := newClient()

	var (
		launched bool
		err      error
	)
	if probeWait {
		poller := readiness.NewPoller(client,
			readiness.WithMaxAttempts(cfg.Timing.ReadinessAttempts),
			readiness.WithInterval(cfg.Timing.ReadinessInterval),
		)
		launched, err = poller.WaitUntilReady(cmd.Context())
	} else {
		launched, err = client.Probe(cmd.Context())
	}
	if err != nil {
		return err
	}

	if launched {
		fmt.Fprintln(cmd.OutOrStdout(), "launched")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "not launched")
	return nil
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().BoolVar(&probeWait, "wait", false, "Poll until the AUT is launched or the attempts are used up")
}
