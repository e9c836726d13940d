package domain

import "time"

type AuditActorType string

const (
	// AuditSystemScope is the reserved scope for events that belong to no session.
	AuditSystemScope  = "__system__"
	AuditChainVersion = "audit_chain_v0"

	AuditActorSystem      AuditActorType = "system"
	AuditActorAdminAPIKey AuditActorType = "admin_api_key"
	AuditActorClient      AuditActorType = "client"
)

type AuditEventType string

const (
	AuditEventSessionStarted   AuditEventType = "session_started"
	AuditEventSnapshotSealed   AuditEventType = "snapshot_sealed"
	AuditEventProofFinalized   AuditEventType = "proof_finalized"
	AuditEventProofVerified    AuditEventType = "proof_verified"
	AuditEventGenerationDenied AuditEventType = "generation_denied"
)

type AuditTargetType string

const (
	AuditTargetSession  AuditTargetType = "session"
	AuditTargetSnapshot AuditTargetType = "snapshot"
	AuditTargetProof    AuditTargetType = "proof"
)

type AuditResult string

const (
	AuditResultSuccess AuditResult = "success"
	AuditResultFailure AuditResult = "failure"
)

// AuditEvent is one link of a per-scope hash chain. Scope is the session
// trace token, or AuditSystemScope.
type AuditEvent struct {
	ID            string
	Scope         string
	Seq           int64
	EventType     AuditEventType
	Payload       any
	PayloadHash   string
	ActorType     AuditActorType
	ActorIDHash   string
	TargetType    AuditTargetType
	TargetID      string
	Result        AuditResult
	ErrorCode     string
	PrevEventHash string
	EventHash     string
	CreatedAt     time.Time
}
