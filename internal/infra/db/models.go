package db

import "time"

// ProofModel keeps the exported canonical document verbatim. Columns other
// than Document exist for lookup only.
type ProofModel struct {
	ReportID       string    `gorm:"column:report_id;primaryKey"`
	TraceToken     string    `gorm:"index;not null"`
	FinalEventHash string    `gorm:"uniqueIndex;not null"`
	SnapshotCount  int       `gorm:"not null"`
	IssuedAt       time.Time `gorm:"not null"`
	Document       []byte    `gorm:"type:bytea;not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (ProofModel) TableName() string {
	return "proofs"
}

type AuditEventModel struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	Scope         string `gorm:"type:text;index;not null"`
	Seq           int64  `gorm:"not null"`
	EventType     string `gorm:"column:event_type;not null"`
	PayloadJSON   []byte `gorm:"type:jsonb;not null"`
	PayloadHash   string `gorm:"not null"`
	ActorType     string `gorm:"not null"`
	ActorIDHash   *string
	TargetType    string `gorm:"not null"`
	TargetID      *string
	Result        string `gorm:"not null"`
	ErrorCode     *string
	PrevEventHash string    `gorm:"not null"`
	EventHash     string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
}

func (AuditEventModel) TableName() string {
	return "audit_events"
}

type AuditScopeSeqModel struct {
	Scope string `gorm:"type:text;primaryKey"`
	Seq   int64  `gorm:"not null"`
}

func (AuditScopeSeqModel) TableName() string {
	return "audit_scope_seq"
}
