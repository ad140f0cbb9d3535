// walletctl is the operator CLI for the wallet (migrations, token inspection and verification, DID resolution).
package main

import "github.com/Bogunok/eudi-wallet/internal/cli"

func main() {
	cli.Execute()
}
