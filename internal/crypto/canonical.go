// token headers, bodies and credential payloads are canonicalized per RFC 8785 before they are encoded or signed
// this implementation uses the gowebpki/jcs library to perform this canonicalization
package crypto

import (
	"github.com/gowebpki/jcs"
)

// CanonicalizeJSON converts JSON to canonical form per RFC 8785
// This ensures the same credential always serialises to the same bytes
//
// If the input is not valid JSON, an error is returned (handled by jcs library).
func CanonicalizeJSON(jsonData []byte) ([]byte, error) {
	canonical, err := jcs.Transform(jsonData)
	if err != nil {
		return nil, WrapValidationError(err, "failed to canonicalize JSON")
	}
	return canonical, nil
}
