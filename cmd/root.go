package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"autctl/internal/config"
	"autctl/internal/metrics"
	"autctl/pkg/logging"
)

const subsystem = "CLI"

var (
	configPath  string
	logLevel    string
	metricsAddr string

	// cfg is loaded once per invocation by PersistentPreRunE.
	cfg config.AutctlConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "autctl",
	Short: "Launch and remote-control an application under test",
	Long: `autctl starts a GUI application under test (AUT) with a remote-control
agent injected into its configuration, waits until the agent answers and
sends it test commands over a line-oriented TCP protocol.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. failed launches, refused connections)
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "autctl version %s\n" .Version}}`)

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Cobra prints the error, we just exit non-zero
		cancel()
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		loaded.Logging.Level = logLevel
	}
	if cmd.Flags().Changed("metrics-addr") {
		loaded.Metrics.Addr = metricsAddr
	}
	cfg = loaded

	logging.InitForCLI(logging.ParseLevel(cfg.Logging.Level), cmd.ErrOrStderr())

	if cfg.Metrics.Addr != "" {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logging.Error(subsystem, err, "Metrics endpoint on %s stopped", cfg.Metrics.Addr)
			}
		}()
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigChan:
			fmt.Fprintf(os.Stderr, "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (layered on top of ~/.config/autctl/config.yaml and ./.autctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9464")

	rootCmd.AddCommand(newVersionCmd())
}
