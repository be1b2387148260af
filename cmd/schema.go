package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pders01/repour/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [name]",
	Short: "Print the JSON schema of an API body",
	Long: `Print the JSON schema of a request or response body of the HTTP API.
Without a name, list the available schemas.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	registry := schema.Default()

	if len(args) == 0 {
		for _, label := range registry.Labels() {
			fmt.Println(label)
		}
		return nil
	}

	s, err := registry.Get(args[0])
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, []byte(s), "", "  "); err != nil {
		return fmt.Errorf("failed to format schema: %w", err)
	}
	fmt.Println(out.String())
	return nil
}
