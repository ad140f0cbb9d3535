// Package cli implements walletctl, the operator command line for the wallet.
//
// Commands talk either to the database directly (migrate) or to a running wallet-server over HTTP
// (did, token verify). token inspect and auth token work offline.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Bogunok/eudi-wallet/internal/logger"
	"github.com/Bogunok/eudi-wallet/internal/version"
)

const defaultServerURL = "http://localhost:8080"

var (
	appLogger *slog.Logger

	logLevel      string
	serverURL     string
	clientTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:               "walletctl",
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	Short:             "Wallet operator CLI",
	Long:              `walletctl manages the wallet database and inspects, verifies and resolves credentials and DIDs`,
	SilenceUsage:      true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		appLogger = logger.InitLogger(logger.ParseLogLevel(logLevel), "dev")
		return nil
	},
}

func Execute() {
	v := version.Get()
	rootCmd.Version = fmt.Sprintf("%s (built %s, commit %s)", v.Version, v.BuildDate, v.GitCommit)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error, none)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("WALLET_SERVER_URL", defaultServerURL), "wallet-server base URL")
	rootCmd.PersistentFlags().DurationVar(&clientTimeout, "timeout", 30*time.Second, "HTTP client timeout")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(didCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(jwksCmd)
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
