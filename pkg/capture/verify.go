package capture

import (
	"fmt"
	"os"

	"sealtrail/internal/domain"
	"sealtrail/internal/infra/replay"
)

type VerifyResult = domain.ProofVerification

// VerifyProof re-derives every snapshot fingerprint and the final event
// hash of an exported proof document. Integrity problems are reported in
// the result; an error means the document could not be read at all.
func VerifyProof(document []byte) (VerifyResult, error) {
	return replay.VerifyDocument(document)
}

func VerifyProofFile(path string) (VerifyResult, error) {
	document, err := os.ReadFile(path)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("read proof: %w", err)
	}
	return VerifyProof(document)
}
