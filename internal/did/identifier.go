package did

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Bogunok/eudi-wallet/internal/wallet"
)

const (
	methodPrefix = "did:web:"

	// keyFragment is the fragment of the single verification method of every identity
	keyFragment = "key-1"

	MinPINLength = 4
	MaxPINLength = 12
)

var (
	hostLabelPattern   = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)
	pathSegmentPattern = regexp.MustCompile(`^[A-Za-z0-9._~-]+$`)
)

// ValidatePIN checks the PIN is MinPINLength to MaxPINLength ASCII digits
func ValidatePIN(pin string) error {
	if len(pin) < MinPINLength || len(pin) > MaxPINLength {
		return wallet.NewValidationError(fmt.Sprintf("PIN must be %d to %d digits", MinPINLength, MaxPINLength))
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return wallet.NewValidationError("PIN must contain only digits")
		}
	}
	return nil
}

// IdentifierForDomain builds the did:web identifier for a domain.
//
// domain is the did:web method specific id: a host name, optionally followed by a port
// (percent encoded as %3A) and by path segments separated with ":", e.g. "example.com:users:alice".
func IdentifierForDomain(domain string) (string, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return "", wallet.NewValidationError("domain is required")
	}
	if strings.HasPrefix(domain, "did:") {
		return "", wallet.NewValidationError("domain must not include the did: prefix")
	}

	segments := strings.Split(domain, ":")
	host := strings.ToLower(segments[0])

	hostname, port, hasPort := strings.Cut(host, "%3a")
	if hasPort {
		if port == "" || len(port) > 5 || strings.Trim(port, "0123456789") != "" {
			return "", wallet.NewValidationError(fmt.Sprintf("invalid port in domain %q", domain))
		}
	}
	if len(hostname) > 253 {
		return "", wallet.NewValidationError("domain is too long")
	}
	labels := strings.Split(hostname, ".")
	for _, label := range labels {
		if !hostLabelPattern.MatchString(label) {
			return "", wallet.NewValidationError(fmt.Sprintf("invalid host name in domain %q", domain))
		}
	}

	for _, segment := range segments[1:] {
		if !pathSegmentPattern.MatchString(segment) {
			return "", wallet.NewValidationError(fmt.Sprintf("invalid path segment %q in domain", segment))
		}
	}

	msi := hostname
	if hasPort {
		msi += "%3A" + port
	}
	if len(segments) > 1 {
		msi += ":" + strings.Join(segments[1:], ":")
	}
	return methodPrefix + msi, nil
}

// KeyReferenceFor returns the verification method id for identifier
func KeyReferenceFor(identifier string) string {
	return identifier + "#" + keyFragment
}

// IdentifierFromKeyReference returns the identifier part of a key reference (the text before '#')
func IdentifierFromKeyReference(keyReference string) (string, error) {
	identifier, fragment, found := strings.Cut(keyReference, "#")
	if !found || identifier == "" || fragment == "" {
		return "", wallet.NewValidationError(fmt.Sprintf("invalid key reference %q", keyReference))
	}
	return identifier, nil
}

// IsWebIdentifier reports whether s looks like a did:web identifier
func IsWebIdentifier(s string) bool {
	return strings.HasPrefix(s, methodPrefix) && len(s) > len(methodPrefix)
}
