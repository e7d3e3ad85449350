package commands

import (
	"context"

	"github.com/spf13/cobra"

	"gridfeed/internal/store"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Applies the dataset schema. All statements are idempotent, so
this is safe to run on every deploy.

Example:
  go run ./cmd/gridfeed migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if err := store.Migrate(context.Background(), rt.db.Pool); err != nil {
		return err
	}

	PrintSuccess("Schema is up to date")
	return nil
}
