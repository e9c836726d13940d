package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sealtrail/internal/domain"
	cryptoinfra "sealtrail/internal/infra/crypto"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuditEventRepository stores the per-scope audit chains in Postgres.
type AuditEventRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAuditEventRepository(db *gorm.DB) *AuditEventRepository {
	return &AuditEventRepository{db: db, now: time.Now}
}

func (r *AuditEventRepository) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if r.db == nil {
		return domain.AuditEvent{}, errDBUnavailable
	}
	if err := cryptoinfra.PrepareAuditEvent(&event, r.now()); err != nil {
		return domain.AuditEvent{}, err
	}
	if event.ID == "" {
		event.ID = newID()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		head, err := lockScopeHead(tx, event.Scope)
		if err != nil {
			return err
		}
		if err := cryptoinfra.LinkAuditEvent(&event, head.seq+1, head.hash); err != nil {
			return err
		}
		row := newAuditEventModel(event)
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}
		return tx.Model(&AuditScopeSeqModel{}).
			Where("scope = ?", event.Scope).
			Update("seq", event.Seq).Error
	})
	if err != nil {
		return domain.AuditEvent{}, err
	}
	return event, nil
}

func (r *AuditEventRepository) ListByScope(ctx context.Context, scope string) ([]domain.AuditEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if scope == "" {
		scope = domain.AuditSystemScope
	}
	var rows []AuditEventModel
	err := r.db.WithContext(ctx).
		Where(&AuditEventModel{Scope: scope}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "seq"}}).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	events := make([]domain.AuditEvent, len(rows))
	for i, row := range rows {
		event, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("audit event %s: %w", row.ID, err)
		}
		events[i] = event
	}
	return events, nil
}

type chainHead struct {
	seq  int64
	hash string
}

// lockScopeHead takes the audit_scope_seq row lock for scope, creating the
// row on first use, and returns the current tail of the chain.
func lockScopeHead(tx *gorm.DB, scope string) (chainHead, error) {
	if scope == "" {
		return chainHead{}, errors.New("scope is required")
	}
	seed := AuditScopeSeqModel{Scope: scope}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return chainHead{}, fmt.Errorf("seed scope %s: %w", scope, err)
	}

	var counter AuditScopeSeqModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("scope = ?", scope).
		Take(&counter).Error; err != nil {
		return chainHead{}, fmt.Errorf("lock scope %s: %w", scope, err)
	}
	if counter.Seq == 0 {
		return chainHead{hash: cryptoinfra.ZeroHash}, nil
	}

	var tail AuditEventModel
	if err := tx.Select("event_hash").
		Where("scope = ? AND seq = ?", scope, counter.Seq).
		Take(&tail).Error; err != nil {
		return chainHead{}, fmt.Errorf("load tail of %s: %w", scope, err)
	}
	if tail.EventHash == "" {
		return chainHead{}, fmt.Errorf("scope %s: tail at seq %d has no hash", scope, counter.Seq)
	}
	return chainHead{seq: counter.Seq, hash: tail.EventHash}, nil
}

func newAuditEventModel(event domain.AuditEvent) AuditEventModel {
	payload, _ := event.Payload.([]byte)
	return AuditEventModel{
		ID:            event.ID,
		Scope:         event.Scope,
		Seq:           event.Seq,
		EventType:     string(event.EventType),
		PayloadJSON:   payload,
		PayloadHash:   event.PayloadHash,
		ActorType:     string(event.ActorType),
		ActorIDHash:   nullable(event.ActorIDHash),
		TargetType:    string(event.TargetType),
		TargetID:      nullable(event.TargetID),
		Result:        string(event.Result),
		ErrorCode:     nullable(event.ErrorCode),
		PrevEventHash: event.PrevEventHash,
		EventHash:     event.EventHash,
		CreatedAt:     event.CreatedAt,
	}
}

// toDomain restores the canonical payload bytes; jsonb reorders keys.
func (m AuditEventModel) toDomain() (domain.AuditEvent, error) {
	payload, err := cryptoinfra.CanonicalizeJSON(m.PayloadJSON)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	return domain.AuditEvent{
		ID:            m.ID,
		Scope:         m.Scope,
		Seq:           m.Seq,
		EventType:     domain.AuditEventType(m.EventType),
		Payload:       payload,
		PayloadHash:   m.PayloadHash,
		ActorType:     domain.AuditActorType(m.ActorType),
		ActorIDHash:   deref(m.ActorIDHash),
		TargetType:    domain.AuditTargetType(m.TargetType),
		TargetID:      deref(m.TargetID),
		Result:        domain.AuditResult(m.Result),
		ErrorCode:     deref(m.ErrorCode),
		PrevEventHash: m.PrevEventHash,
		EventHash:     m.EventHash,
		CreatedAt:     m.CreatedAt.UTC(),
	}, nil
}
