// Package main implements the placefix CLI - a placement-constraint checker
// for cluster-scheduling manifests.
//
// This file is the entry point and command registration hub; the command
// implementations live in one cmd_*.go file per command family:
//
//   - cmd_check.go - checkCmd, fmtCmd: solve an entity file, round-trip IR
//   - cmd_k8s.go   - k8sCmd: import/inject/go over Kubernetes manifests
//   - cmd_yarn.go  - yarnCmd: import/inject over YARN placement specs
//   - cmd_watch.go - watchCmd: re-check on manifest change
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"placefix/internal/config"
	"placefix/internal/logging"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "placefix",
	Short: "placefix - placement-constraint satisfiability checker",
	Long: `placefix analyzes hard placement constraints across scheduling manifests
(Kubernetes pods, deployments and nodes, YARN placement specs, or its own
rule IR) and decides whether they can all hold at once.

When they cannot, it reports the minimal set of offending rules annotated
against their source text, can recommend a rule subset to remove, and can
rewrite the manifests with those rules gone.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}

		path := configPath
		if path == "" {
			path = filepath.Join(ws, "placefix.yaml")
		}
		cfg, err = config.LoadOrDefault(path)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Debug = true
		}

		return logging.Initialize(logging.Options{
			Dir:   cfg.Logging.Dir,
			Debug: cfg.Logging.Debug,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/placefix.yaml)")

	rootCmd.AddCommand(
		checkCmd,
		fmtCmd,
		k8sCmd,
		yarnCmd,
		watchCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
