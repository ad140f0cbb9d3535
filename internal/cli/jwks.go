package cli

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
)

var printPEM bool

var jwksCmd = &cobra.Command{
	Use:   "jwks",
	Short: "Inspect JWK sets published by issuers",
}

var jwksFetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch a JWK set and list its Ed25519 keys",
	Long: `Fetch the JWK set at url (for example an issuer's /.well-known/jwks.json) and list the
Ed25519 keys it contains with their RFC 7638 thumbprints.

Use this to check an endpoint before adding it to TRUSTED_JWKS_URLS.
Keys of other types are reported and skipped; the wallet only verifies EdDSA tokens.

Example:
  walletctl jwks fetch https://issuer.example.com/.well-known/jwks.json --pem`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := crypto.FetchJWKSet(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KID\tTHUMBPRINT")

		var pems [][]byte
		usable := 0
		for i := range set.Len() {
			key, ok := set.Key(i)
			if !ok {
				continue
			}
			kid, _ := key.KeyID()

			publicKey, err := crypto.Ed25519JWKToPublicKey(key)
			if err != nil {
				appLogger.Warn("skipping key", slog.String("kid", kid), slog.String("error", err.Error()))
				continue
			}
			thumbprint, err := crypto.Thumbprint(publicKey)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s\t%s\n", kid, thumbprint)
			usable++

			if printPEM {
				pem, err := crypto.EncodeEd25519PublicKeyPEM(publicKey)
				if err != nil {
					return err
				}
				pems = append(pems, pem)
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		for _, pem := range pems {
			fmt.Fprintf(out, "\n%s", pem)
		}

		if usable == 0 {
			return fmt.Errorf("no Ed25519 keys found at %s", args[0])
		}
		return nil
	},
}

func init() {
	jwksFetchCmd.Flags().BoolVar(&printPEM, "pem", false, "also print each key as a PEM public key")

	jwksCmd.AddCommand(jwksFetchCmd)
}
