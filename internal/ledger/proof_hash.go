package ledger

import (
	"sealtrail/internal/domain"
	"sealtrail/internal/infra/crypto"
)

// FinalEventHash is the SHA-256 hex digest of the canonical JSON form of
// {"report_id", "snapshots", "trace_token"}. Object keys are sorted at
// every level; the snapshot array keeps seal order.
func FinalEventHash(reportID, traceToken string, snapshots []domain.Snapshot) (string, error) {
	canonical, err := crypto.CanonicalizeAny(HashInput(reportID, traceToken, SnapshotValues(snapshots)))
	if err != nil {
		return "", err
	}
	return crypto.SHA256Hex(canonical), nil
}

// HashInput assembles the hashed triple from already-encoded values so
// that verifiers working on a decoded document build the same object.
func HashInput(reportID, traceToken any, snapshots []any) map[string]any {
	return map[string]any{
		"report_id":   reportID,
		"trace_token": traceToken,
		"snapshots":   snapshots,
	}
}

// SnapshotValue is the document form of a snapshot.
func SnapshotValue(s domain.Snapshot) map[string]any {
	return map[string]any{
		"version_index":       s.VersionIndex,
		"input_parameters":    s.InputParameters.Map(),
		"content_fingerprint": s.ContentFingerprint,
		"sealed_at":           domain.FormatTimestamp(s.SealedAt),
		"canonical_payload":   s.CanonicalPayload,
	}
}

func SnapshotValues(snapshots []domain.Snapshot) []any {
	out := make([]any, len(snapshots))
	for i, snap := range snapshots {
		out[i] = SnapshotValue(snap)
	}
	return out
}
