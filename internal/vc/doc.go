// Package vc builds, signs and verifies W3C verifiable credentials in compact JWT form.
//
// The credential object is canonicalized (RFC 8785) and carried in the "vc" claim of a token
// signed with the issuer identity's Ed25519 key:
//
//	header {"alg":"EdDSA","kid":"<did>#key-1","typ":"JWT"}
//	body   {"iat":<unix seconds>,"iss":"<issuer did>","sub":"<subject did>","vc":{...}}
package vc
