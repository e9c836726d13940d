package replay

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"sealtrail/internal/domain"
	cryptoinfra "sealtrail/internal/infra/crypto"
	"sealtrail/internal/ledger"
)

const (
	FailSchemaUnsupported   = "PROOF_SCHEMA_UNSUPPORTED"
	FailFieldMissing        = "PROOF_FIELD_MISSING"
	FailSnapshotsEmpty      = "SNAPSHOTS_EMPTY"
	FailSnapshotMalformed   = "SNAPSHOT_MALFORMED"
	FailSnapshotIndex       = "SNAPSHOT_INDEX_INVALID"
	FailSnapshotPayload     = "SNAPSHOT_PAYLOAD_INVALID"
	FailSnapshotFingerprint = "SNAPSHOT_FINGERPRINT_MISMATCH"
	FailSnapshotTimestamp   = "SNAPSHOT_TIMESTAMP_INVALID"
	FailFinalEventHash      = "FINAL_EVENT_HASH_MISMATCH"
)

// VerifyDocument re-derives an exported proof document the way a third
// party would: every snapshot fingerprint is recomputed from its
// canonical_payload, indices must run 1..n, and final_event_hash is
// recomputed over the document's own report_id, trace_token and snapshots
// members. An error is returned only when the input is not a JSON object;
// integrity problems are reported as failures.
func VerifyDocument(document []byte) (domain.ProofVerification, error) {
	value, err := cryptoinfra.DecodeJSON(document)
	if err != nil {
		return domain.ProofVerification{}, fmt.Errorf("%w: %v", domain.ErrInvalidProof, err)
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return domain.ProofVerification{}, fmt.Errorf("%w: document must be a JSON object", domain.ErrInvalidProof)
	}

	failures := make(map[string]struct{})
	addFailure := func(code string) {
		failures[code] = struct{}{}
	}

	if schema, ok := obj["schema"]; ok && schema != ProofSchema {
		addFailure(FailSchemaUnsupported)
	}
	reportID, _ := obj["report_id"].(string)
	traceToken, _ := obj["trace_token"].(string)
	recorded, _ := obj["final_event_hash"].(string)
	if reportID == "" || traceToken == "" || recorded == "" {
		addFailure(FailFieldMissing)
	}

	snapshots, ok := obj["snapshots"].([]any)
	if !ok {
		addFailure(FailFieldMissing)
	} else if len(snapshots) == 0 {
		addFailure(FailSnapshotsEmpty)
	}
	for i, raw := range snapshots {
		for _, code := range checkSnapshot(raw, int64(i+1)) {
			addFailure(code)
		}
	}

	result := domain.ProofVerification{
		ReportID:       reportID,
		TraceToken:     traceToken,
		SnapshotCount:  len(snapshots),
		FinalEventHash: recorded,
	}
	if snapshots != nil {
		canonical, err := cryptoinfra.CanonicalizeAny(ledger.HashInput(obj["report_id"], obj["trace_token"], snapshots))
		if err != nil {
			return domain.ProofVerification{}, fmt.Errorf("%w: %v", domain.ErrInvalidProof, err)
		}
		result.ComputedHash = cryptoinfra.SHA256Hex(canonical)
		if result.ComputedHash != recorded {
			addFailure(FailFinalEventHash)
		}
	}

	result.Failures = sortedFailures(failures)
	result.Passed = len(result.Failures) == 0
	return result, nil
}

// VerifyProof exports proof and verifies the resulting document.
func VerifyProof(proof domain.ProofObject) (domain.ProofVerification, error) {
	document, err := ExportProof(proof)
	if err != nil {
		return domain.ProofVerification{}, err
	}
	return VerifyDocument(document)
}

func checkSnapshot(raw any, expectedIndex int64) []string {
	snap, ok := raw.(map[string]any)
	if !ok {
		return []string{FailSnapshotMalformed}
	}
	var failures []string

	index, ok := snap["version_index"].(json.Number)
	if !ok || index.String() != fmt.Sprint(expectedIndex) {
		failures = append(failures, FailSnapshotIndex)
	}
	if _, ok := snap["input_parameters"].(map[string]any); !ok {
		failures = append(failures, FailSnapshotMalformed)
	}

	payload, payloadOK := snap["canonical_payload"].(string)
	fingerprint, fingerprintOK := snap["content_fingerprint"].(string)
	switch {
	case !payloadOK || !fingerprintOK:
		failures = append(failures, FailSnapshotMalformed)
	default:
		if decoded, err := cryptoinfra.DecodePayload(payload); err != nil || len(decoded) == 0 {
			failures = append(failures, FailSnapshotPayload)
		}
		if !cryptoinfra.VerifyFingerprint(payload, fingerprint) {
			failures = append(failures, FailSnapshotFingerprint)
		}
	}

	sealedAt, ok := snap["sealed_at"].(string)
	if !ok {
		failures = append(failures, FailSnapshotMalformed)
	} else if _, err := time.Parse(domain.TimestampLayout, sealedAt); err != nil {
		failures = append(failures, FailSnapshotTimestamp)
	}
	return failures
}

func sortedFailures(failures map[string]struct{}) []string {
	if len(failures) == 0 {
		return nil
	}
	out := make([]string, 0, len(failures))
	for code := range failures {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
