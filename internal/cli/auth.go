package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Bogunok/eudi-wallet/internal/auth"
	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

var (
	authSecret  string
	authSubject string
	authRole    string
	authTTL     time.Duration
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Caller token helpers for development",
}

var authTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token signed with the shared secret",
	Long: `Mint an HS256 bearer token the wallet-server accepts, for development and testing.

In production tokens are issued by the account service.

Example:
  AUTH_JWT_SECRET=... walletctl auth token --sub 4f0c2b1e --role ISSUER`,
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := wallet.ParseRole(authRole)
		if err != nil {
			return fmt.Errorf("invalid role %q (expected HOLDER, ISSUER or ADMIN)", authRole)
		}

		token, err := auth.Issue([]byte(authSecret), wallet.Caller{ID: authSubject, Role: role}, authTTL, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	authTokenCmd.Flags().StringVar(&authSecret, "secret", envOr("AUTH_JWT_SECRET", ""), "shared HS256 secret (default $AUTH_JWT_SECRET)")
	authTokenCmd.Flags().StringVar(&authSubject, "sub", "", "account id (required)")
	authTokenCmd.Flags().StringVar(&authRole, "role", string(wallet.RoleHolder), "account role")
	authTokenCmd.Flags().DurationVar(&authTTL, "ttl", time.Hour, "token lifetime")
	authTokenCmd.MarkFlagRequired("sub")

	authCmd.AddCommand(authTokenCmd)
}
