package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rileyhilliard/doorctl/internal/errors"
	"github.com/rileyhilliard/doorctl/internal/logger"
	"github.com/rileyhilliard/doorctl/internal/metrics"
	"github.com/rileyhilliard/doorctl/internal/ui"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitRemote = 1
	ExitLocal  = 2
)

// Global flags
var (
	cfgFile     string
	noColor     bool
	verbose     bool
	metricsFile string
)

var rootCmd = &cobra.Command{
	Use:   "doorctl",
	Short: "Open, close and ring doors over SSH or Bluetooth",
	Long: `doorctl sends one action to a door controller and reports the result.

Doors are configured in .doorctl.yaml. A door is either a host that runs a
shell command per action over SSH, or a Bluetooth LE smart lock.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetVerbose(verbose)
		logger.SetDefault(logger.NewEnvLogger(""))
		if noColor {
			ui.DisableColors()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .doorctl.yaml, searched upwards)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug messages")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write session metrics to a node-exporter textfile")
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()

	if metricsFile != "" {
		if werr := metrics.WriteTextfile(metricsFile); werr != nil {
			logger.Default().Warn("writing metrics to %s: %v", metricsFile, werr)
		}
	}
	return exitCode(err)
}

func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if code, ok := errors.GetExitCode(err); ok {
		return code
	}
	msg := err.Error()
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(os.Stderr, msg)
	return ExitLocal
}
