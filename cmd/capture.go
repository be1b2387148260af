package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/alpkeskin/gotoon"
	"github.com/spf13/cobra"

	"github.com/pders01/repour/internal/git"
	"github.com/pders01/repour/internal/models"
	"github.com/pders01/repour/internal/scm"
)

var (
	captureOperation   string
	captureDescription string
	captureReadWrite   string
	captureReadOnly    string
	captureTagName     string
	captureOrphan      bool
	captureNoChangeOK  bool
	captureForce       bool
	captureRealTime    bool
	captureFlatten     bool
	captureJSON        bool
	captureToon        bool
)

var captureCmd = &cobra.Command{
	Use:   "capture [dir]",
	Short: "Capture a working tree as a tagged commit",
	Long: `Commit everything in the working tree on a fresh temporary branch, tag the
commit and push the tag to origin.

Commits use a fixed 1970 timestamp, so identical content yields the identical
commit id and tag name. A repeated capture of unchanged content reuses the
existing tag.

Examples:
  repour capture --description "import 1.0" --url-readwrite git+ssh://host/org/repo.git
  repour capture ./src --no-change-ok --json
  repour capture --flatten --tag-name release-1.0`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().StringVar(&captureOperation, "operation", string(models.OperationPull), "Operation the capture belongs to: pull|adjust")
	captureCmd.Flags().StringVar(&captureDescription, "description", "Repour capture", "Annotation of the created tag")
	captureCmd.Flags().StringVar(&captureReadWrite, "url-readwrite", "", "Read-write URL reported with the result")
	captureCmd.Flags().StringVar(&captureReadOnly, "url-readonly", "", "Read-only URL reported with the result")
	captureCmd.Flags().StringVar(&captureTagName, "tag-name", "", "Use this tag name instead of the content-derived one")
	captureCmd.Flags().BoolVar(&captureOrphan, "orphan", false, "Commit without history")
	captureCmd.Flags().BoolVar(&captureNoChangeOK, "no-change-ok", false, "Accept a tree without changes")
	captureCmd.Flags().BoolVar(&captureForce, "force-continue", false, "Tag HEAD when nothing changed (with --no-change-ok)")
	captureCmd.Flags().BoolVar(&captureRealTime, "real-commit-time", false, "Commit at the current time and deduplicate by tree hash")
	captureCmd.Flags().BoolVar(&captureFlatten, "flatten", false, "Turn submodules into ordinary files first")
	captureCmd.Flags().BoolVar(&captureJSON, "json", false, "Output as JSON")
	captureCmd.Flags().BoolVar(&captureToon, "toon", false, "Output in LLM-friendly toon format")
}

func runCapture(cmd *cobra.Command, args []string) error {
	dir, err := dirArg(args)
	if err != nil {
		return err
	}

	op, err := models.ParseOperation(captureOperation)
	if err != nil {
		return err
	}

	env, err := loadRuntime()
	if err != nil {
		return err
	}
	defer env.close()

	ctx := commandContext(cmd)
	repo := git.Open(dir)
	if !repo.IsRepo(ctx) {
		return fmt.Errorf("not a git repository: %s", dir)
	}

	opts := scm.Options{
		Operation:                op,
		Description:              captureDescription,
		Orphan:                   captureOrphan,
		NoChangeOK:               captureNoChangeOK,
		ForceContinueOnNoChanges: captureForce,
		RealCommitTime:           captureRealTime,
		TagName:                  captureTagName,
		Flatten:                  captureFlatten,
	}
	url := models.RepositoryURL{ReadWrite: captureReadWrite, ReadOnly: captureReadOnly}

	result, err := scm.NewService(env.cfg, env.logger).Capture(ctx, repo, url, opts)
	if err != nil {
		return err
	}

	response := models.CaptureResponse{Captured: result != nil, Result: result}

	if captureJSON {
		output, err := json.MarshalIndent(response, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if captureToon {
		output, err := gotoon.Encode(response)
		if err != nil {
			return fmt.Errorf("failed to encode Toon: %w", err)
		}
		fmt.Println(output)
		return nil
	}

	if result == nil {
		fmt.Println("Nothing new was captured")
		return nil
	}

	fmt.Printf("✓ Captured %s\n", dir)
	fmt.Printf("  Tag:    %s\n", result.Tag)
	fmt.Printf("  Commit: %s\n", result.Commit)
	return nil
}
