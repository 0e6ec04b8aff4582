package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kingrea/slipway/internal/artifact"
	"github.com/kingrea/slipway/internal/config"
	"github.com/kingrea/slipway/internal/job"
	"github.com/kingrea/slipway/internal/pipeline"
	"github.com/kingrea/slipway/internal/pipeline/engine"
	"github.com/kingrea/slipway/internal/trigger"
)

var (
	flagEvent      string
	flagRef        string
	flagTagMessage string
	flagCommit     string
)

// runCmd executes the pipeline for a trigger
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the release pipeline for a trigger",
	Long: `Runs the configured pipeline. The trigger is read from the SLIPWAY_EVENT,
SLIPWAY_REF, SLIPWAY_TAG_MESSAGE, and SLIPWAY_COMMIT environment variables;
the --ref family of flags overrides them.

Example:
  slipway run --ref refs/tags/v1.2.3 --tag-message "$(git tag -l --format='%(contents)' v1.2.3)" --commit "$(git rev-parse HEAD)"`,
	RunE: runPipeline,
}

// resumeCmd continues the persisted run without rerunning finished jobs
var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the persisted pipeline run",
	RunE:  resumePipeline,
}

func init() {
	runCmd.Flags().StringVar(&flagEvent, "event", "", "trigger event kind (branch-push, tag-push, pull-request)")
	runCmd.Flags().StringVar(&flagRef, "ref", "", "pushed ref, qualified or bare")
	runCmd.Flags().StringVar(&flagTagMessage, "tag-message", "", "annotated tag message for tag pushes")
	runCmd.Flags().StringVar(&flagCommit, "commit", "", "commit the trigger points at")
}

func resolveTrigger() (trigger.Context, error) {
	if flagRef != "" {
		return trigger.New(trigger.EventKind(flagEvent), flagRef, flagTagMessage, flagCommit)
	}
	return trigger.FromEnv()
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initLogger(cfg); err != nil {
		return err
	}
	trig, err := resolveTrigger()
	if err != nil {
		return err
	}
	return executePipeline(cmd.Context(), cfg, trig, false)
}

func resumePipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initLogger(cfg); err != nil {
		return err
	}
	repo := engine.NewRepository(cfg.StateDir())
	persisted, err := repo.Load()
	if err != nil {
		return err
	}
	return executePipeline(cmd.Context(), cfg, persisted.Trigger, true)
}

func executePipeline(parent context.Context, cfg config.Config, trig trigger.Context, resume bool) error {
	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	eng, err := engine.New(registry, engine.NewRepository(cfg.StateDir()), engine.WithLogger(logger))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jctx := &job.Context{
		Ctx:     ctx,
		Trigger: trig,
		Config:  cfg,
		Staging: artifact.NewStaging(),
		Logger:  logger,
	}
	def, err := resolveDefinition(cfg)
	if err != nil {
		return err
	}
	watcher, err := startWatcher(cfg, def, jctx.Staging)
	if err != nil {
		return err
	}
	defer watcher.Close()

	var state engine.State
	if resume {
		state, err = eng.Resume(jctx)
	} else {
		state, err = eng.Run(jctx, def)
	}
	if err != nil {
		return err
	}
	printRunSummary(state)
	if state.Status == engine.StatusFailed {
		return fmt.Errorf("run %s failed: %s", state.RunID, state.StatusReason)
	}
	return nil
}

// startWatcher streams files the build tools drop into their output
// directories into staging, so `slipway status --watch` shows artifacts
// before the producing job finishes. Jobs still collect their own outputs on
// success; the per-job replace semantics keep the two paths consistent.
func startWatcher(cfg config.Config, def pipeline.Definition, staging *artifact.Staging) (*artifact.Watcher, error) {
	watcher, err := artifact.NewWatcher(staging, logger)
	if err != nil {
		return nil, err
	}
	for _, ref := range def.Jobs {
		var platform string
		switch ref.JobID {
		case pipeline.JobBinaryBuild:
			platform, _ = ref.Config["platform"].(string)
		case pipeline.JobPureBuild:
		default:
			continue
		}
		dir := cfg.OutputDir(ref.ID)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("ensure output dir %s: %w", dir, err)
		}
		if err := watcher.Watch(dir, ref.ID, artifact.KindBinaryPackage, platform); err != nil {
			_ = watcher.Close()
			return nil, err
		}
	}
	return watcher, nil
}

func printRunSummary(state engine.State) {
	fmt.Printf("run %s: %s\n", state.RunID, state.Status)
	for _, node := range state.Nodes {
		line := fmt.Sprintf("  %-16s %s", node.ID, node.State)
		if run, ok := state.Runs[node.ID]; ok && run.Message != "" {
			line += "  " + run.Message
		}
		fmt.Println(line)
	}
}
