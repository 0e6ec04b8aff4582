package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kingrea/slipway/internal/pipeline/engine"
	"github.com/kingrea/slipway/internal/tui"
)

var flagWatch bool

// statusCmd shows the persisted run state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the last pipeline run",
	RunE:  showStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "watch the run interactively")
}

func showStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	repo := engine.NewRepository(cfg.StateDir())
	if flagWatch {
		return tui.NewApp(repo).Run()
	}
	state, err := repo.Load()
	if err != nil {
		return err
	}
	fmt.Printf("pipeline %s · run %s · %s\n", state.PipelineID, state.RunID, state.Status)
	if state.StatusReason != "" {
		fmt.Printf("  %s\n", state.StatusReason)
	}
	for _, node := range state.Nodes {
		line := fmt.Sprintf("  %-16s %s", node.ID, node.State)
		if run, ok := state.Runs[node.ID]; ok {
			if run.Message != "" {
				line += "  " + run.Message
			}
			if run.Error != "" {
				line += "  error: " + run.Error
			}
		}
		fmt.Println(line)
	}
	return nil
}
