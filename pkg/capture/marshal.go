package capture

import (
	cryptoinfra "sealtrail/internal/infra/crypto"
)

// MarshalCapture renders c as canonical JSON without the payload, which
// can be large.
func MarshalCapture(c ArtifactCapture) ([]byte, error) {
	return cryptoinfra.CanonicalizeAny(map[string]any{
		"alg":                 c.Alg,
		"content_fingerprint": c.ContentFingerprint,
	})
}

func MarshalVerification(result VerifyResult) ([]byte, error) {
	return cryptoinfra.CanonicalizeAny(result)
}
