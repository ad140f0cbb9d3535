package cli

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
	"github.com/Bogunok/eudi-wallet/internal/did"
)

var didCmd = &cobra.Command{
	Use:   "did",
	Short: "Work with did:web identifiers",
}

var didResolveCmd = &cobra.Command{
	Use:   "resolve <did>",
	Short: "Resolve a DID document from a wallet-server",
	Long: `Fetch the DID document and metadata of a did:web identifier held by the wallet-server (--server).

Example:
  walletctl did resolve did:web:wallet.example.com --server https://wallet.example.com`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		identifier := args[0]
		if !did.IsWebIdentifier(identifier) {
			return fmt.Errorf("%q is not a did:web identifier", identifier)
		}

		var result did.ResolutionResult
		if err := callServer(cmd.Context(), "GET", "/did/resolve/"+url.PathEscape(identifier), nil, &result); err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
		return checkVerificationMethods(result.Document)
	},
}

// checkVerificationMethods reports a document whose JWK and multibase forms describe different keys
func checkVerificationMethods(doc did.Document) error {
	for _, vm := range doc.VerificationMethod {
		key, err := crypto.ParsePublicJWK(vm.PublicKeyJWK)
		if err != nil {
			return fmt.Errorf("verification method %s: %w", vm.ID, err)
		}
		fromJWK, err := crypto.Ed25519JWKToPublicKey(key)
		if err != nil {
			return fmt.Errorf("verification method %s: %w", vm.ID, err)
		}
		if vm.PublicKeyMultibase == "" {
			continue
		}
		fromMultibase, err := crypto.DecodeEd25519Multibase(vm.PublicKeyMultibase)
		if err != nil {
			return fmt.Errorf("verification method %s: %w", vm.ID, err)
		}
		if !fromJWK.Equal(fromMultibase) {
			return fmt.Errorf("verification method %s: publicKeyJwk and publicKeyMultibase do not match", vm.ID)
		}
	}
	return nil
}

func init() {
	didCmd.AddCommand(didResolveCmd)
}
