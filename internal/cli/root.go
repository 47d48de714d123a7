// Package cli implements the pitchctl operator commands.
package cli

import (
	"fmt"
	"os"

	"github.com/ashureev/pitch-tank/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Version is stamped at build time.
var Version = "dev"

type options struct {
	dbPath string
}

// NewRootCmd builds the pitchctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "pitchctl",
		Short:         "Inspect and maintain a Pitch Tank database",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	defaultDB := os.Getenv("DB_PATH")
	if defaultDB == "" {
		defaultDB = "./data/pitchtank.db"
	}
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", defaultDB, "SQLite database path (defaults to DB_PATH)")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "pitchctl %s\n", Version)
			},
		},
		newPersonasCmd(),
		newSessionCmd(opts),
		newMatchesCmd(opts),
		newPruneCmd(opts),
	)
	return rootCmd
}

// Execute runs pitchctl with os.Args.
func Execute() error {
	_ = godotenv.Load()
	return NewRootCmd().Execute()
}

func (o *options) openStore() (*store.SQLiteStore, error) {
	if _, err := os.Stat(o.dbPath); err != nil {
		return nil, fmt.Errorf("database %s: %w", o.dbPath, err)
	}
	return store.NewSQLite(o.dbPath)
}
