// fpmsyncd - FPM route sync daemon for SONiC
//
// Accepts the routing stack's FPM connection, translates each route
// message into APPL_DB records, and acknowledges offloaded routes back to
// the routing stack.
//
// Usage:
//
//	fpmsyncd [flags]                      Run the daemon
//	fpmsyncd show routes [--table T]      Dump a route table from APPL_DB
//	fpmsyncd show warm-restart            Show warm-restart state
//	fpmsyncd version                      Print version information
//
// Signals:
//
//	SIGUSR1          End the warm-restart cycle now instead of at the timer
//	SIGINT, SIGTERM  Shut down
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/newtron-network/fpmsyncd/pkg/config"
	"github.com/newtron-network/fpmsyncd/pkg/daemon"
	"github.com/newtron-network/fpmsyncd/pkg/ifcache"
	"github.com/newtron-network/fpmsyncd/pkg/util"
	"github.com/newtron-network/fpmsyncd/pkg/version"
)

var (
	configPath string
	cfg        *config.Config

	// Flag overrides, applied only when set on the command line.
	redisAddr     string
	fpmListen     string
	metricsListen string
	warmRestart   bool
	suppress      bool
	logLevel      string
	logJSON       bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "fpmsyncd",
	Short:             "FPM route sync daemon",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `fpmsyncd accepts the routing stack's FPM connection and publishes every
route it receives to APPL_DB.

Settings come from the config file; flags override them.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}
		var err error
		cfg, err = config.LoadFrom(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		return util.ConfigureLogging(cfg.Log.Level, cfg.Log.JSON)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Config file")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Redis address (host:port)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.Flags().StringVar(&fpmListen, "fpm-listen", "", "FPM listen address (host:port)")
	rootCmd.Flags().StringVar(&metricsListen, "metrics-listen", "", "Prometheus listen address; empty disables")
	rootCmd.Flags().BoolVar(&warmRestart, "warm-restart", false, "Reconcile APPL_DB against routes replayed after a restart")
	rootCmd.Flags().BoolVar(&suppress, "suppress-fib-pending", false, "Acknowledge routes only once programmed")
	rootCmd.Flags().BoolVar(&logJSON, "log-json", false, "Log in JSON format")

	rootCmd.AddCommand(showCmd, versionCmd)
}

// applyFlags overrides config values with the flags that were set.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("redis") {
		cfg.Redis.Addr = redisAddr
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("fpm-listen") {
		cfg.FPM.Listen = fpmListen
	}
	if flags.Changed("metrics-listen") {
		cfg.Metrics.Listen = metricsListen
	}
	if flags.Changed("warm-restart") {
		cfg.WarmRestart.Enabled = warmRestart
	}
	if flags.Changed("suppress-fib-pending") {
		cfg.Offload.Suppress = suppress
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON = logJSON
	}
}

func runDaemon() error {
	util.WithFields(version.Fields()).Info("fpmsyncd starting")

	d, err := daemon.New(cfg, ifcache.NewNetlink())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	usr1 := make(chan os.Signal, 1)
	signal.Notify(usr1, syscall.SIGUSR1)
	defer signal.Stop(usr1)
	go func() {
		for {
			select {
			case <-usr1:
				util.Logger.Info("SIGUSR1: reconcile requested")
				d.RequestReconcile()
			case <-ctx.Done():
				return
			}
		}
	}()

	err = d.Run(ctx)
	util.Logger.Info("fpmsyncd stopped")
	return err
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if version.Version == "dev" {
			fmt.Println("fpmsyncd dev build (use 'make build' for version info)")
			return
		}
		fmt.Println(version.Info())
	},
}
