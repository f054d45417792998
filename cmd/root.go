package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/hostcomply/pkg/config"
	"github.com/user/hostcomply/pkg/logging"
	"github.com/user/hostcomply/pkg/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "hostcomply",
	Short: "Host compliance audit and remediation engine",
	Long: `hostcomply evaluates a catalog of CIS-style rules against a Linux host,
reports a hierarchical compliant/non-compliant verdict per rule and can
remediate the rules that support it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(ConfigPath)
		if err != nil {
			return err
		}
		logFile := LogFile
		if logFile == "" {
			logFile = cfg.LogFile
		}
		if _, err := logging.Init(DebugMode, logFile); err != nil {
			return fmt.Errorf("failed to initialise logging: %w", err)
		}
		traceOutput := TraceOutput
		if traceOutput == "" {
			traceOutput = cfg.TraceOutput
		}
		if tracing, err = telemetry.Setup(traceOutput); err != nil {
			return fmt.Errorf("failed to initialise tracing: %w", err)
		}
		return nil
	},
}

var (
	DebugMode   bool
	ConfigPath  string
	LogFile     string
	TraceOutput string

	cfg     = config.Default()
	tracing *telemetry.Provider
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitError)
	}
	if exitCode != exitCompliant {
		os.Exit(exitCode)
	}
}

// shutdown flushes spans and logs, including after a failed command.
func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.Shutdown(ctx); err != nil {
		logging.L().Warnf("Failed to flush traces: %v", err)
	}
	logging.Sync()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&DebugMode, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&ConfigPath, "config", "", "Config file (default ~/.hostcomply/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&LogFile, "log-file", "", "Write logs to this file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&TraceOutput, "trace-output", "", "Export spans as JSON to this file (\"-\" for stderr, default $OTEL_TRACES_EXPORTER)")
}
