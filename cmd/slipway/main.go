package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/slipway/internal/config"
	"github.com/kingrea/slipway/internal/job"
	"github.com/kingrea/slipway/internal/jobs"
	"github.com/kingrea/slipway/internal/logging"
	"github.com/kingrea/slipway/internal/pipeline"
	"github.com/kingrea/slipway/plugins"
)

var (
	// Global flags
	projectDir string
	debug      bool

	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "slipway",
	Short: "slipway - release pipeline runner",
	Long: `slipway builds, verifies, and publishes package releases.

A push trigger fans out into per-platform binary builds and a portable
build-and-test job; when every build succeeds and the trigger is a release
tag, the publisher creates the hosted release and uploads the packages to
the configured index.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "slipway: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "C", ".", "project directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(initCmd, runCmd, resumeCmd, statusCmd, classifyCmd, notesCmd, serveCmd)
}

// loadConfig reads the project configuration for the selected directory.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(projectDir)
	if err != nil {
		return config.Config{}, err
	}
	if debug {
		cfg.Debug = true
	}
	return cfg, nil
}

// initLogger builds the process logger writing to the project log dir.
func initLogger(cfg config.Config) error {
	l, err := logging.New(cfg.LogDir(), cfg.Debug)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// buildRegistry assembles the job registry: built-in jobs plus any command
// plugins discovered under the project's plugin directory.
func buildRegistry(cfg config.Config) (*job.Registry, error) {
	registry := job.NewRegistry()
	jobs.RegisterBuiltins(registry)
	if err := plugins.RegisterCommandPlugins(registry, cfg); err != nil {
		return nil, err
	}
	return registry, nil
}

// resolveDefinition picks the pipeline to run: a named YAML definition when
// the config selects one, the built-in release pipeline otherwise.
func resolveDefinition(cfg config.Config) (pipeline.Definition, error) {
	if cfg.Pipeline != "" {
		return pipeline.LoadDefinitionRelative(cfg.PipelineDir(), cfg.Pipeline)
	}
	return pipeline.ReleaseDefinition(cfg)
}
