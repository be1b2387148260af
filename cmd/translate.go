package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pders01/repour/internal/urltranslate"
)

var translateJSON bool

var translateCmd = &cobra.Command{
	Use:   "translate <external-url>",
	Short: "Print the internal mirror URL of a repository",
	Long: `Map a public repository URL onto the internal git server configured by
git_url_internal_template.

Example:
  repour translate https://github.com/org/repo.git`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().BoolVar(&translateJSON, "json", false, "Output as JSON")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	env, err := loadRuntime()
	if err != nil {
		return err
	}
	defer env.close()

	result, err := urltranslate.New(env.cfg).Translate(args[0])
	if err != nil {
		return err
	}

	if translateJSON {
		output, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(result.InternalURL)
	return nil
}
