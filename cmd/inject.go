package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"autctl/internal/injector"
)

var injectTemplate string

var injectCmd = &cobra.Command{
	Use:   "inject [executable]",
	Short: "Write an AUT configuration with the agent bundle added",
	Long: `Reads the config.ini shipped with the executable (or --template), appends
the agent bundle to osgi.bundles and writes the result to
<system temp>/configuration/config.ini. The directory path is printed and
left in place for use with -configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInject,
}

func runInject(cmd *cobra.Command, args []string) error {
	template := injectTemplate
	if template == "" {
		var err error
		template, err = injector.LookupTemplate(executableArg(args))
		if err != nil {
			return err
		}
	}

	dir, err := injector.New().Inject(template, cfg.Agent.BundlePath)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), dir)
	return nil
}

func init() {
	rootCmd.AddCommand(injectCmd)

	injectCmd.Flags().StringVar(&injectTemplate, "template", "", "Template config.ini (default: looked up next to the executable)")
}
