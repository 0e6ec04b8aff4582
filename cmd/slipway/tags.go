package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kingrea/slipway/internal/config"
	"github.com/kingrea/slipway/internal/release"
	"github.com/kingrea/slipway/internal/version"
)

// classifyCmd reports how a tag would be treated by the publisher
var classifyCmd = &cobra.Command{
	Use:   "classify [tag]",
	Short: "Classify a tag as final or pre-release",
	Long: `Reports whether a tag passes the release gate and, if it does, whether it
would be published as a pre-release. Tags without a recognized pre-release
suffix classify as final.`,
	Args: cobra.ExactArgs(1),
	RunE: classifyTag,
}

// notesCmd extracts release notes from an annotated tag message
var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Extract release notes from a tag message on stdin",
	Long: `Reads an annotated tag message from stdin and prints the release notes:
the message body with any trailing PGP signature block removed.

Example:
  git tag -l --format='%(contents)' v1.2.3 | slipway notes`,
	Args: cobra.NoArgs,
	RunE: extractNotes,
}

// initCmd scaffolds the .slipway directory
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .slipway directory layout",
	RunE:  initProject,
}

func classifyTag(cmd *cobra.Command, args []string) error {
	tag := args[0]
	if !version.IsReleaseTag(tag) {
		fmt.Printf("%s: not a release tag (would not trigger a publish)\n", tag)
		return nil
	}
	classification := version.Classify(tag)
	kind := "final"
	if classification.IsPrerelease {
		kind = "pre-release"
	}
	parsed, err := version.ParseTag(tag)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s (%s)\n", tag, kind, parsed)
	return nil
}

func extractNotes(cmd *cobra.Command, args []string) error {
	message, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	fmt.Println(release.ExtractNotes(string(message)))
	return nil
}

func initProject(cmd *cobra.Command, args []string) error {
	if err := config.InitDir(projectDir); err != nil {
		return err
	}
	fmt.Printf("initialized %s/.slipway\n", projectDir)
	return nil
}
