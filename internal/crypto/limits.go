package crypto

// MaxClaimDataSize is the maximum size of the claim object carried in a credential request or payload.
var MaxClaimDataSize int64 = 64 * 1024 // 64KB

// MaxTokenSize bounds the compact tokens accepted for verification.
var MaxTokenSize = 256 * 1024
