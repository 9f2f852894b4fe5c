package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"autctl/internal/protocol"
)

var sendText bool

var sendCmd = &cobra.Command{
	Use:   "send <command> [args...]",
	Short: "Send one command to the agent of a running AUT",
	Long: `Sends <command>;<arg>;... to the agent and prints the result.
Boolean commands print true or false; use --text for commands that return
text. An agent-side failure ("ERROR ...") exits non-zero.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	msg, err := protocol.NewMessage(args[0], args[1:]...)
	if err != nil {
		return err
	}

	client := newClient()
	if sendText {
		text, err := client.SendText(cmd.Context(), msg)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	}

	ok, err := client.Send(cmd.Context(), msg)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ok)
	return nil
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().BoolVar(&sendText, "text", false, "Print the raw text response")
}
