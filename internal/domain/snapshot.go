package domain

import "time"

// TimestampLayout is the rendering used for every timestamp that enters a
// hashed or exported document.
const TimestampLayout = time.RFC3339Nano

// Fingerprint is the canonical encoding of an artifact and the digest
// computed over it.
type Fingerprint struct {
	CanonicalPayload string
	Digest           string
}

// Snapshot is one sealed evidentiary record. Values handed out by the
// ledger are copies; the ledger's own entries are never edited.
type Snapshot struct {
	VersionIndex       int64      `json:"version_index"`
	InputParameters    Parameters `json:"input_parameters"`
	ContentFingerprint string     `json:"content_fingerprint"`
	SealedAt           time.Time  `json:"sealed_at"`
	CanonicalPayload   string     `json:"canonical_payload"`
}

func (s Snapshot) Clone() Snapshot {
	s.InputParameters = s.InputParameters.Clone()
	return s
}

func CloneSnapshots(in []Snapshot) []Snapshot {
	if in == nil {
		return nil
	}
	out := make([]Snapshot, len(in))
	for i, snap := range in {
		out[i] = snap.Clone()
	}
	return out
}

type ProofObject struct {
	ReportID       string     `json:"report_id"`
	TraceToken     string     `json:"trace_token"`
	Applicant      string     `json:"applicant"`
	IssuedAt       time.Time  `json:"issued_at"`
	Snapshots      []Snapshot `json:"snapshots"`
	FinalEventHash string     `json:"final_event_hash"`
}

func (p ProofObject) Clone() ProofObject {
	p.Snapshots = CloneSnapshots(p.Snapshots)
	return p
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// StoredProof is a finalized proof as persisted by a proof repository,
// together with the exact canonical document that was exported.
type StoredProof struct {
	Proof     ProofObject
	Document  []byte
	CreatedAt time.Time
}

// ProofVerification is the outcome of re-deriving an exported proof.
type ProofVerification struct {
	Passed         bool     `json:"passed"`
	Failures       []string `json:"failures,omitempty"`
	ReportID       string   `json:"report_id,omitempty"`
	TraceToken     string   `json:"trace_token,omitempty"`
	SnapshotCount  int      `json:"snapshot_count"`
	FinalEventHash string   `json:"final_event_hash,omitempty"`
	ComputedHash   string   `json:"computed_hash,omitempty"`
}
