package issuance_test

import (
	"os"
	"testing"

	"github.com/Bogunok/eudi-wallet/internal/crypto"
)

func TestMain(m *testing.M) {
	if err := crypto.ConfigureSealParams(crypto.SealParams{KDFTime: 1, KDFMemoryKB: 1024, KDFThreads: 1}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}
