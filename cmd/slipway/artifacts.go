package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kingrea/slipway/internal/artifact"
	"github.com/kingrea/slipway/internal/config"
	"github.com/kingrea/slipway/internal/job"
	"github.com/kingrea/slipway/internal/jobs/publish"
)

// collectCmd lists the packages the build jobs left behind
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "List the packages in the job output directories",
	Long: `Scans .slipway/dist/<job>/ and prints every package with its kind, size,
and checksum. Useful for inspecting what a publish would upload.`,
	RunE: collectArtifacts,
}

// publishCmd runs the publisher alone against existing build outputs
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Run the publisher against existing build outputs",
	Long: `Collects the packages already present under .slipway/dist/ and runs the
release publisher for the given trigger. This is the recovery path after an
index upload failure: the builds are not rerun.`,
	RunE: publishArtifacts,
}

func init() {
	publishCmd.Flags().StringVar(&flagEvent, "event", "", "trigger event kind (branch-push, tag-push, pull-request)")
	publishCmd.Flags().StringVar(&flagRef, "ref", "", "pushed ref, qualified or bare")
	publishCmd.Flags().StringVar(&flagTagMessage, "tag-message", "", "annotated tag message for tag pushes")
	publishCmd.Flags().StringVar(&flagCommit, "commit", "", "commit the trigger points at")
	rootCmd.AddCommand(collectCmd, publishCmd)
}

// stageFromDist fills a staging collection from the per-job output
// directories left by earlier builds.
func stageFromDist(cfg config.Config) (*artifact.Staging, error) {
	staging := artifact.NewStaging()
	distDir := filepath.Join(cfg.Dir(), "dist")
	jobs, err := os.ReadDir(distDir)
	if err != nil {
		if os.IsNotExist(err) {
			return staging, nil
		}
		return nil, fmt.Errorf("read %s: %w", distDir, err)
	}
	for _, entry := range jobs {
		if !entry.IsDir() {
			continue
		}
		jobID := entry.Name()
		files, err := os.ReadDir(filepath.Join(distDir, jobID))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filepath.Join(distDir, jobID), err)
		}
		var artifacts []artifact.Artifact
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			art, err := artifact.FromFile(filepath.Join(distDir, jobID, file.Name()), kindFor(file.Name()), jobID, time.Now())
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, art)
		}
		if len(artifacts) == 0 {
			continue
		}
		if err := staging.Collect(jobID, artifacts); err != nil {
			return nil, err
		}
	}
	return staging, nil
}

// kindFor classifies a package file by suffix: archives are source packages,
// everything else is an installable package.
func kindFor(name string) artifact.Kind {
	if strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".zip") {
		return artifact.KindSourcePackage
	}
	return artifact.KindBinaryPackage
}

func collectArtifacts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	staging, err := stageFromDist(cfg)
	if err != nil {
		return err
	}
	if staging.Len() == 0 {
		fmt.Println("no packages found")
		return nil
	}
	for _, jobID := range staging.Jobs() {
		fmt.Printf("%s:\n", jobID)
		for _, art := range staging.ByJob(jobID) {
			fmt.Printf("  %-40s %-14s %8d  %s\n", art.Name(), art.Kind, art.Size, art.Checksum)
		}
	}
	return nil
}

func publishArtifacts(cmd *cobra.Command, args []string) error {
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
	staging, err := stageFromDist(cfg)
	if err != nil {
		return err
	}
	publisher := publish.New()
	jctx := &job.Context{
		Ctx:     cmd.Context(),
		Trigger: trig,
		Config:  cfg,
		Staging: staging,
		Logger:  logger,
	}
	result, err := publisher.Run(jctx.ForInstance("publish"))
	if err != nil {
		return err
	}
	fmt.Printf("publish: %s", result.Status)
	if result.Message != "" {
		fmt.Printf(" (%s)", result.Message)
	}
	fmt.Println()
	return nil
}
