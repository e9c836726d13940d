package replay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"sealtrail/internal/domain"
	cryptoinfra "sealtrail/internal/infra/crypto"
	"sealtrail/internal/ledger"
)

const ProofSchema = "sealtrail.proof.v1"

// ProofDocument is the exported, human-inspectable form of a proof object.
type ProofDocument struct {
	Schema         string             `json:"schema"`
	ReportID       string             `json:"report_id"`
	TraceToken     string             `json:"trace_token"`
	Applicant      string             `json:"applicant"`
	IssuedAt       string             `json:"issued_at"`
	Snapshots      []SnapshotDocument `json:"snapshots"`
	FinalEventHash string             `json:"final_event_hash"`
}

type SnapshotDocument struct {
	VersionIndex       int64          `json:"version_index"`
	InputParameters    map[string]any `json:"input_parameters"`
	ContentFingerprint string         `json:"content_fingerprint"`
	SealedAt           string         `json:"sealed_at"`
	CanonicalPayload   string         `json:"canonical_payload"`
}

// ExportProof renders proof as canonical JSON. The snapshots member is
// encoded exactly as it is when final_event_hash is computed.
func ExportProof(proof domain.ProofObject) ([]byte, error) {
	if proof.ReportID == "" || proof.TraceToken == "" || proof.FinalEventHash == "" {
		return nil, fmt.Errorf("%w: report_id, trace_token and final_event_hash are required", domain.ErrInvalidProof)
	}
	return cryptoinfra.CanonicalizeAny(map[string]any{
		"schema":           ProofSchema,
		"report_id":        proof.ReportID,
		"trace_token":      proof.TraceToken,
		"applicant":        proof.Applicant,
		"issued_at":        domain.FormatTimestamp(proof.IssuedAt),
		"snapshots":        ledger.SnapshotValues(proof.Snapshots),
		"final_event_hash": proof.FinalEventHash,
	})
}

// DecodeProof parses an exported document back into a proof object. It
// does not check integrity; use VerifyDocument for that.
func DecodeProof(document []byte) (domain.ProofObject, error) {
	dec := json.NewDecoder(bytes.NewReader(document))
	dec.UseNumber()
	var doc ProofDocument
	if err := dec.Decode(&doc); err != nil {
		return domain.ProofObject{}, fmt.Errorf("%w: %v", domain.ErrInvalidProof, err)
	}
	if doc.Schema != "" && doc.Schema != ProofSchema {
		return domain.ProofObject{}, fmt.Errorf("%w: unsupported schema %q", domain.ErrInvalidProof, doc.Schema)
	}
	issuedAt, err := parseTimestamp(doc.IssuedAt)
	if err != nil {
		return domain.ProofObject{}, fmt.Errorf("%w: issued_at: %v", domain.ErrInvalidProof, err)
	}

	snapshots := make([]domain.Snapshot, 0, len(doc.Snapshots))
	for i, snap := range doc.Snapshots {
		params, err := domain.NormalizeParameters(snap.InputParameters)
		if err != nil {
			return domain.ProofObject{}, fmt.Errorf("%w: snapshot %d: %v", domain.ErrInvalidProof, i+1, err)
		}
		sealedAt, err := parseTimestamp(snap.SealedAt)
		if err != nil {
			return domain.ProofObject{}, fmt.Errorf("%w: snapshot %d sealed_at: %v", domain.ErrInvalidProof, i+1, err)
		}
		snapshots = append(snapshots, domain.Snapshot{
			VersionIndex:       snap.VersionIndex,
			InputParameters:    params,
			ContentFingerprint: snap.ContentFingerprint,
			SealedAt:           sealedAt,
			CanonicalPayload:   snap.CanonicalPayload,
		})
	}

	return domain.ProofObject{
		ReportID:       doc.ReportID,
		TraceToken:     doc.TraceToken,
		Applicant:      doc.Applicant,
		IssuedAt:       issuedAt,
		Snapshots:      snapshots,
		FinalEventHash: doc.FinalEventHash,
	}, nil
}

func parseTimestamp(value string) (time.Time, error) {
	t, err := time.Parse(domain.TimestampLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
