package cli

import (
	"fmt"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Bogunok/eudi-wallet/internal/config"
	"github.com/Bogunok/eudi-wallet/internal/database"
)

var databaseURL string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long: `Apply or inspect the embedded database migrations.

The database is read from --database-url or the DATABASE_URL environment variable.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := database.Connect(cmd.Context(), migrationConfig())
		if err != nil {
			return err
		}
		defer pool.Close()

		applied, err := database.Migrate(cmd.Context(), pool)
		if err != nil {
			return err
		}
		appLogger.Info("migrations applied", slog.Int("count", applied))
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", applied)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they have been applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := database.Connect(cmd.Context(), migrationConfig())
		if err != nil {
			return err
		}
		defer pool.Close()

		statuses, err := database.Status(cmd.Context(), pool)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tSTATE\tSOURCE")
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, state, s.Source)
		}
		return tw.Flush()
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&databaseURL, "database-url", envOr("DATABASE_URL", ""), "Postgres connection URL")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

// migrationConfig is a single-connection pool configuration for the CLI
func migrationConfig() *config.ServerEnvironment {
	return &config.ServerEnvironment{
		DatabaseURL:         databaseURL,
		DBMaxConnections:    1,
		DBMaxConnLifetime:   time.Hour,
		DBMaxConnIdleTime:   time.Minute,
		DBConnectTimeout:    5 * time.Second,
		DatabasePingTimeout: 10 * time.Second,
	}
}
