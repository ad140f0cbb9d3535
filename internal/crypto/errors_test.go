package crypto

import (
	"errors"
	"testing"
)

func TestErrorCodes(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name      string
		err       error
		wantCode  ErrorCode
		wantCause bool
	}{
		{"validation", NewValidationError("bad jwk"), ErrCodeValidation, false},
		{"wrapped validation", WrapValidationError(cause, "bad jwk"), ErrCodeValidation, true},
		{"invalid pin", NewInvalidPinError(), ErrCodeInvalidPinOrCorruptData, false},
		{"wrapped signature", WrapSignatureError(cause, "verify failed"), ErrCodeInvalidSignature, true},
		{"key management", NewKeyManagementError("unknown kid"), ErrCodeKeyManagement, false},
		{"wrapped internal", WrapInternalError(cause, "rand failed"), ErrCodeInternal, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !HasCode(tt.err, tt.wantCode) {
				t.Errorf("HasCode(%v, %q) = false", tt.err, tt.wantCode)
			}
			if got := errors.Is(tt.err, cause); got != tt.wantCause {
				t.Errorf("errors.Is(cause) = %v, want %v", got, tt.wantCause)
			}
		})
	}

	if HasCode(cause, ErrCodeInternal) {
		t.Error("HasCode() = true for a plain error")
	}
}

func TestInvalidPinErrorHidesCause(t *testing.T) {
	err := NewInvalidPinError()

	var cryptoErr *CryptoError
	if !errors.As(err, &cryptoErr) {
		t.Fatal("not a CryptoError")
	}
	if cryptoErr.Message() != "invalid PIN or corrupted key data" || err.Error() != cryptoErr.Message() {
		t.Errorf("unexpected message %q / %q", cryptoErr.Message(), err.Error())
	}
	if errors.Unwrap(err) != nil {
		t.Error("invalid PIN error wraps a cause")
	}
}
