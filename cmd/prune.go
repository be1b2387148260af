package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pders01/repour/internal/git"
	"github.com/pders01/repour/internal/scm"
)

var pruneForce bool

var pruneCmd = &cobra.Command{
	Use:   "prune [dir]",
	Short: "Remove leftover capture branches",
	Long: `Every capture commits on its own temporary branch. Tags keep the captured
commits reachable, so the branches can be removed once the capture is done.
The currently checked out branch is never removed.

Example:
  repour prune              # Show what would be pruned
  repour prune --force      # Actually delete the branches`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().BoolVar(&pruneForce, "force", false, "Actually delete branches")
}

func runPrune(cmd *cobra.Command, args []string) error {
	dir, err := dirArg(args)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	repo := git.Open(dir)
	if !repo.IsRepo(ctx) {
		return fmt.Errorf("not a git repository: %s", dir)
	}

	branches, err := repo.ListBranches(ctx, scm.TempBranchPrefix+"*")
	if err != nil {
		return err
	}

	current, err := repo.CurrentBranch(ctx)
	if err != nil {
		return err
	}

	var toPrune []string
	for _, branch := range branches {
		if branch != current {
			toPrune = append(toPrune, branch)
		}
	}

	if len(toPrune) == 0 {
		fmt.Println("No capture branches to prune")
		return nil
	}

	fmt.Printf("Capture branches to prune (%d):\n\n", len(toPrune))
	for _, branch := range toPrune {
		fmt.Printf("  %s\n", branch)
	}

	if !pruneForce {
		fmt.Println("\nThis is a dry run. Use --force to actually prune branches.")
		return nil
	}

	fmt.Println("\nPruning branches...")
	pruned := 0
	for _, branch := range toPrune {
		if err := repo.DeleteBranch(ctx, branch); err != nil {
			fmt.Printf("  Error: %v\n", err)
			continue
		}
		pruned++
	}
	fmt.Printf("✓ Pruned %d branch(es)\n", pruned)
	return nil
}
