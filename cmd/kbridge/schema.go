package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbridge-ai/kbridge/internal/config"
)

var schemaCmd = &cobra.Command{
	Use:   "schema <file>",
	Short: "Validate and display a metadata schema file",
	Long: `Validate and display a metadata schema file.

The schema is a JSON array of field definitions:
  [{"key": "author_name", "type": "STRING", "description": "Author of the document"}]

Examples:
  kbridge schema ./schema.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSchema(args[0])
	},
}

func runSchema(path string) error {
	schema, err := config.LoadSchema(path)
	if err != nil {
		return err
	}

	printSuccess("Schema is valid (%d fields)", schema.Len())
	fmt.Print(schema.Render())
	return nil
}
