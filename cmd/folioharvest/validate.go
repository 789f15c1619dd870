package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwtham/folioharvest/internal/schemas"
)

var validateSchemaPath string

var validateCmd = &cobra.Command{
	Use:   "validate <snapshot.json>",
	Short: "Validate a snapshot or exported data file against its schema",
	Long: `Validate checks a crawl snapshot JSON file against the built-in snapshot
schema, or against an explicit schema file when --schema is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateSchemaPath, "schema", "", "Path to a JSON Schema file (default: built-in snapshot schema)")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, args []string) error {
	jsonPath := args[0]

	var err error
	if validateSchemaPath != "" {
		err = schemas.ValidateJSON(validateSchemaPath, jsonPath)
	} else {
		err = schemas.ValidateSnapshotFile(jsonPath)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s is valid\n", jsonPath)
	return nil
}
