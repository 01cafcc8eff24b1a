package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var librariesCmd = &cobra.Command{
	Use:   "libraries",
	Short: "Preload the library directory and print the inventory as JSON",
	Long: `Load every feature library in LIBRARY_DIR the way the server would at
startup, then print the resulting registry as JSON. Useful for checking a
library directory or catalog before deploying it.

Examples:
  seqimprove libraries
  LIBRARY_DIR=./libs seqimprove libraries | jq '.[].identifier'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		store, err := newLibraryStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(store.List())
	},
}
