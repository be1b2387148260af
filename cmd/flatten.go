package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pders01/repour/internal/git"
	"github.com/pders01/repour/internal/models"
	"github.com/pders01/repour/internal/scm"
)

var flattenJSON bool

var flattenCmd = &cobra.Command{
	Use:   "flatten [dir]",
	Short: "Turn submodules into ordinary files",
	Long: `Materialize every submodule declared in .gitmodules, drop its nested .git
and track its files directly in the parent repository. The result is
recorded in one commit. A repository without .gitmodules is left alone.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFlatten,
}

func init() {
	rootCmd.AddCommand(flattenCmd)

	flattenCmd.Flags().BoolVar(&flattenJSON, "json", false, "Output as JSON")
}

func runFlatten(cmd *cobra.Command, args []string) error {
	dir, err := dirArg(args)
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

	result, err := scm.NewFlattener(env.cfg, env.logger).Flatten(ctx, repo)
	if err != nil {
		return err
	}

	if flattenJSON {
		output, err := json.MarshalIndent(models.FlattenResponse{
			State:      result.State.String(),
			Commit:     result.Commit,
			Submodules: result.Submodules,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if result.State == scm.StateNotApplicable {
		fmt.Println("No submodules found")
		return nil
	}

	fmt.Printf("✓ Flattened %d submodule(s) in %s\n", len(result.Submodules), result.Commit[:8])
	for _, sub := range result.Submodules {
		fmt.Printf("  %s\n", sub.Path)
	}
	return nil
}
