package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/alpkeskin/gotoon"
	"github.com/spf13/cobra"

	"github.com/pders01/repour/internal/git"
	"github.com/pders01/repour/internal/scm"
)

var (
	tagsJSON    bool
	tagsToon    bool
	tagsPattern string
	tagsTree    string
)

var tagsCmd = &cobra.Command{
	Use:   "tags [dir]",
	Short: "List capture tags",
	Long: `List the tags created by captures together with the commit and tree they
reference.

Examples:
  repour tags                        # All repour-* tags
  repour tags --pattern 'release-*'  # Custom tag names
  repour tags --tree <sha>           # Which tag already captures this tree`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTags,
}

func init() {
	rootCmd.AddCommand(tagsCmd)

	tagsCmd.Flags().BoolVar(&tagsJSON, "json", false, "Output as JSON")
	tagsCmd.Flags().BoolVar(&tagsToon, "toon", false, "Output in LLM-friendly toon format")
	tagsCmd.Flags().StringVar(&tagsPattern, "pattern", scm.TagPrefix+"*", "Tag name pattern")
	tagsCmd.Flags().StringVar(&tagsTree, "tree", "", "Only show the tag capturing this tree hash")
}

func runTags(cmd *cobra.Command, args []string) error {
	dir, err := dirArg(args)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	repo := git.Open(dir)
	if !repo.IsRepo(ctx) {
		return fmt.Errorf("not a git repository: %s", dir)
	}

	tags, err := repo.ListTags(ctx, tagsPattern)
	if err != nil {
		return fmt.Errorf("failed to list tags: %w", err)
	}

	if tagsTree != "" {
		var matching []git.Tag
		for _, tag := range tags {
			if tag.Tree == tagsTree {
				matching = append(matching, tag)
			}
		}
		tags = matching
	}

	if tagsJSON {
		if tags == nil {
			tags = []git.Tag{}
		}
		output, err := json.MarshalIndent(tags, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	if tagsToon {
		output, err := gotoon.Encode(tags)
		if err != nil {
			return fmt.Errorf("failed to encode Toon: %w", err)
		}
		fmt.Println(output)
		return nil
	}

	if len(tags) == 0 {
		fmt.Println("No tags found")
		return nil
	}

	fmt.Printf("Found %d tag(s):\n\n", len(tags))
	for _, tag := range tags {
		fmt.Printf("  %-60s %s\n", tag.Name, shortHash(tag.Commit))
	}
	return nil
}

func shortHash(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
