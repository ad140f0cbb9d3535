package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Bogunok/eudi-wallet/internal/issuance"
	"github.com/Bogunok/eudi-wallet/internal/vc"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Inspect and verify credential tokens",
}

var tokenInspectCmd = &cobra.Command{
	Use:   "inspect <token>",
	Short: "Decode a credential token without verifying it",
	Long: `Decode the header and body of a compact credential token.

The signature is NOT checked; use "token verify" for that.

Example:
  walletctl token inspect eyJhbGciOiJFZERTQSIs...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed, err := vc.ParseToken(strings.TrimSpace(args[0]))
		if err != nil {
			return err
		}

		var credential any
		if err := json.Unmarshal(parsed.Body.VC, &credential); err != nil {
			return fmt.Errorf("credential is not valid JSON: %w", err)
		}

		return printJSON(cmd.OutOrStdout(), map[string]any{
			"header": parsed.Header,
			"body": map[string]any{
				"iss": parsed.Body.Issuer,
				"sub": parsed.Body.Subject,
				"iat": parsed.Body.IssuedAt,
				"vc":  credential,
			},
		})
	},
}

var tokenVerifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Verify a credential token with a wallet-server",
	Long: `Ask the wallet-server (--server) to verify the token signature and report its revocation status.

The command fails when the signature is invalid or the credential has been revoked.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result issuance.Verification
		body := map[string]string{"jwt": strings.TrimSpace(args[0])}
		if err := callServer(cmd.Context(), "POST", "/vc/verify", body, &result); err != nil {
			return err
		}

		if err := printJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
		switch {
		case !result.Valid:
			return fmt.Errorf("token signature is not valid")
		case result.Revoked:
			return fmt.Errorf("credential %s has been revoked", result.CredentialID)
		}
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenInspectCmd)
	tokenCmd.AddCommand(tokenVerifyCmd)
}
