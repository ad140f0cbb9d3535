package crypto

import (
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	// low argon2 costs keep the sealing tests fast
	if err := ConfigureSealParams(SealParams{KDFTime: 1, KDFMemoryKB: 1024, KDFThreads: 1}); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}
