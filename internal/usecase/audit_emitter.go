package usecase

import (
	"context"
	"errors"
	"time"

	"sealtrail/internal/domain"
	cryptoinfra "sealtrail/internal/infra/crypto"
)

type AuditEmitter struct {
	Repo  AuditEventRepository
	Clock Clock
}

func NewAuditEmitter(repo AuditEventRepository, clock Clock) *AuditEmitter {
	return &AuditEmitter{
		Repo:  repo,
		Clock: clock,
	}
}

func (e *AuditEmitter) Emit(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if e == nil || e.Repo == nil {
		return domain.AuditEvent{}, errors.New("audit repository required")
	}
	if event.EventType == "" || event.TargetType == "" || event.Result == "" || event.ActorType == "" {
		return domain.AuditEvent{}, errors.New("audit event missing required fields")
	}
	if event.Scope == "" {
		event.Scope = domain.AuditSystemScope
	}
	if event.Payload == nil {
		event.Payload = map[string]any{}
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = e.now().UTC()
	} else {
		event.CreatedAt = event.CreatedAt.UTC()
	}
	return e.Repo.Append(ctx, event)
}

func (e *AuditEmitter) EmitSessionStarted(ctx context.Context, traceToken string) error {
	return e.emitFor(ctx, domain.AuditEvent{
		Scope:      traceToken,
		EventType:  domain.AuditEventSessionStarted,
		Payload:    map[string]any{"trace_token": traceToken},
		TargetType: domain.AuditTargetSession,
		TargetID:   traceToken,
		Result:     domain.AuditResultSuccess,
	})
}

func (e *AuditEmitter) EmitSnapshotSealed(ctx context.Context, traceToken string, snap domain.Snapshot, source string) error {
	return e.emitFor(ctx, domain.AuditEvent{
		Scope:     traceToken,
		EventType: domain.AuditEventSnapshotSealed,
		Payload: map[string]any{
			"version_index":       snap.VersionIndex,
			"content_fingerprint": snap.ContentFingerprint,
			"sealed_at":           domain.FormatTimestamp(snap.SealedAt),
			"source":              source,
		},
		TargetType: domain.AuditTargetSnapshot,
		TargetID:   snap.ContentFingerprint,
		Result:     domain.AuditResultSuccess,
	})
}

func (e *AuditEmitter) EmitProofFinalized(ctx context.Context, proof domain.ProofObject) error {
	return e.emitFor(ctx, domain.AuditEvent{
		Scope:     proof.TraceToken,
		EventType: domain.AuditEventProofFinalized,
		Payload: map[string]any{
			"report_id":        proof.ReportID,
			"final_event_hash": proof.FinalEventHash,
			"snapshot_count":   len(proof.Snapshots),
			"applicant_hash":   hashString(proof.Applicant),
		},
		TargetType: domain.AuditTargetProof,
		TargetID:   proof.ReportID,
		Result:     domain.AuditResultSuccess,
	})
}

func (e *AuditEmitter) EmitProofVerified(ctx context.Context, result domain.ProofVerification) error {
	outcome := domain.AuditResultSuccess
	errorCode := ""
	if !result.Passed {
		outcome = domain.AuditResultFailure
		if len(result.Failures) > 0 {
			errorCode = result.Failures[0]
		}
	}
	payload := map[string]any{
		"report_id":     result.ReportID,
		"computed_hash": result.ComputedHash,
		"passed":        result.Passed,
	}
	if len(result.Failures) > 0 {
		payload["failures"] = result.Failures
	}
	return e.emitFor(ctx, domain.AuditEvent{
		Scope:      domain.AuditSystemScope,
		EventType:  domain.AuditEventProofVerified,
		Payload:    payload,
		TargetType: domain.AuditTargetProof,
		TargetID:   result.ReportID,
		Result:     outcome,
		ErrorCode:  errorCode,
	})
}

func (e *AuditEmitter) EmitGenerationDenied(ctx context.Context, traceToken string, eval domain.PolicyEvaluation) error {
	codes := make([]string, 0, len(eval.Result.Deny))
	for _, deny := range eval.Result.Deny {
		codes = append(codes, deny.Code)
	}
	errorCode := ""
	if len(codes) > 0 {
		errorCode = codes[0]
	}
	return e.emitFor(ctx, domain.AuditEvent{
		Scope:     traceToken,
		EventType: domain.AuditEventGenerationDenied,
		Payload: map[string]any{
			"bundle_id":   eval.BundleID,
			"bundle_hash": eval.BundleHash,
			"deny":        codes,
		},
		TargetType: domain.AuditTargetSession,
		TargetID:   traceToken,
		Result:     domain.AuditResultFailure,
		ErrorCode:  errorCode,
	})
}

func (e *AuditEmitter) emitFor(ctx context.Context, event domain.AuditEvent) error {
	actor := actorFrom(ctx)
	event.ActorType = actor.Type
	event.ActorIDHash = hashString(actor.ID)
	_, err := e.Emit(ctx, event)
	return err
}

func (e *AuditEmitter) now() time.Time {
	if e != nil && e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}

func hashString(value string) string {
	if value == "" {
		return ""
	}
	return cryptoinfra.SHA256Hex([]byte(value))
}
