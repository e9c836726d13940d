package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"

	"sealtrail/internal/domain"
)

// Fingerprint transcodes artifact into its canonical text payload (standard
// padded base64) and digests the payload's ASCII bytes with SHA-256.
// The digest covers the encoded payload, not the raw bytes.
func Fingerprint(artifact []byte) (domain.Fingerprint, error) {
	if artifact == nil {
		return domain.Fingerprint{}, domain.ErrArtifactUnavailable
	}
	if len(artifact) == 0 {
		return domain.Fingerprint{}, domain.ErrEmptyArtifact
	}
	payload := base64.StdEncoding.EncodeToString(artifact)
	return domain.Fingerprint{
		CanonicalPayload: payload,
		Digest:           SHA256Hex([]byte(payload)),
	}, nil
}

// VerifyFingerprint reports whether digest is the fingerprint of an
// already-encoded canonical payload.
func VerifyFingerprint(canonicalPayload, digest string) bool {
	expected := SHA256Hex([]byte(canonicalPayload))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(digest)) == 1
}

// DecodePayload returns the raw artifact bytes behind a canonical payload.
func DecodePayload(canonicalPayload string) ([]byte, error) {
	return base64.StdEncoding.Strict().DecodeString(canonicalPayload)
}

func SHA256Hex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}
