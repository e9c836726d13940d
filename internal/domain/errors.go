package domain

import "errors"

var (
	ErrArtifactUnavailable = errors.New("artifact unavailable")
	ErrEmptyArtifact       = errors.New("empty artifact")
	ErrLedgerFinalized     = errors.New("ledger finalized")
	ErrEmptyLedger         = errors.New("empty ledger")
	ErrAlreadyFinalized    = errors.New("already finalized")
	ErrInvalidParameters   = errors.New("invalid parameters")
	ErrInvalidProof        = errors.New("invalid proof document")
	ErrNotFound            = errors.New("not found")
	ErrSessionNotFound     = errors.New("session not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrPolicyDenied        = errors.New("policy denied")
	ErrGenerationFailed    = errors.New("generation failed")
	ErrGenerationTimeout   = errors.New("generation timed out")
)
