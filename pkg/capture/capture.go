// Package capture exposes the artifact fingerprint and proof checks to
// callers outside the service, so a recipient can verify a proof without
// trusting the issuer.
package capture

import (
	"fmt"
	"os"

	cryptoinfra "sealtrail/internal/infra/crypto"
)

const FingerprintAlg = "sha256"

type ArtifactCapture struct {
	Alg                string
	ContentFingerprint string
	CanonicalPayload   string
}

// CaptureArtifact encodes input into its canonical payload and returns the
// fingerprint a session ledger would seal for it.
func CaptureArtifact(input []byte) (ArtifactCapture, error) {
	fp, err := cryptoinfra.Fingerprint(input)
	if err != nil {
		return ArtifactCapture{}, err
	}
	return ArtifactCapture{
		Alg:                FingerprintAlg,
		ContentFingerprint: fp.Digest,
		CanonicalPayload:   fp.CanonicalPayload,
	}, nil
}

func FingerprintFile(path string) (ArtifactCapture, error) {
	input, err := os.ReadFile(path)
	if err != nil {
		return ArtifactCapture{}, fmt.Errorf("read artifact: %w", err)
	}
	return CaptureArtifact(input)
}

// MatchesSnapshot reports whether input is the artifact behind a sealed
// content fingerprint.
func MatchesSnapshot(input []byte, contentFingerprint string) bool {
	fp, err := cryptoinfra.Fingerprint(input)
	if err != nil {
		return false
	}
	return cryptoinfra.VerifyFingerprint(fp.CanonicalPayload, contentFingerprint)
}
