package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"autctl/internal/workspace"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Reset the AUT workspace from its template archive",
	Long: `Deletes workspace.path and recreates it from workspace.templateArchive.
Everything the previous run left behind is discarded.`,
	Args: cobra.NoArgs,
	RunE: runPrepare,
}

func runPrepare(cmd *cobra.Command, args []string) error {
	if cfg.Workspace.TemplateArchive == "" {
		return errors.New("workspace.templateArchive is not configured")
	}
	if err := workspace.NewPreparer(cfg.Workspace.TemplateArchive).Prepare(cfg.Workspace.Path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Workspace %s prepared\n", cfg.Workspace.Path)
	return nil
}

func init() {
	rootCmd.AddCommand(prepareCmd)
}
