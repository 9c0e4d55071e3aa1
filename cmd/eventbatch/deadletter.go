package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/eventbatch/pkg/eventbatch/deadletter"
)

var (
	deadLetterPath  string
	deadLetterLimit int
)

var deadLetterCmd = &cobra.Command{
	Use:   "dead-letter",
	Short: "Inspect events that exhausted their retries",
}

var deadLetterListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print dead-lettered events as JSON lines, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDeadLetter()
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.List(cmd.Context(), deadLetterLimit)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	},
}

var deadLetterPurgeCmd = &cobra.Command{
	Use:   "purge [id...]",
	Short: "Delete dead-lettered events by ID",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDeadLetter()
		if err != nil {
			return err
		}
		defer store.Close()

		for _, id := range args {
			if err := store.Delete(cmd.Context(), id); err != nil {
				return err
			}
		}
		n, err := store.Count(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d events remain\n", n)
		return nil
	},
}

func init() {
	deadLetterCmd.PersistentFlags().StringVar(&deadLetterPath, "path", "", "dead-letter database (default: dead_letter.path from settings)")
	deadLetterListCmd.Flags().IntVar(&deadLetterLimit, "limit", 0, "maximum events to print (0 = all)")
	deadLetterCmd.AddCommand(deadLetterListCmd, deadLetterPurgeCmd)
	rootCmd.AddCommand(deadLetterCmd)
}

func openDeadLetter() (*deadletter.SQLiteStore, error) {
	path := deadLetterPath
	if path == "" {
		settings, err := loadSettings(configPath, os.LookupEnv)
		if err != nil {
			return nil, err
		}
		path = settings.DeadLetterPath
	}
	if path == "" {
		return nil, fmt.Errorf("no dead-letter database configured (use --path or dead_letter.path)")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("dead-letter database: %w", err)
	}
	return deadletter.NewSQLiteStore(path)
}
