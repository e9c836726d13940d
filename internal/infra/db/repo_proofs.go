package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"sealtrail/internal/domain"
	"sealtrail/internal/infra/replay"

	"gorm.io/gorm"
)

type ProofRepository struct {
	db *gorm.DB
}

func NewProofRepository(db *gorm.DB) *ProofRepository {
	return &ProofRepository{db: db}
}

func (r *ProofRepository) Save(ctx context.Context, proof domain.StoredProof) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if proof.Proof.ReportID == "" || proof.Proof.FinalEventHash == "" {
		return errors.New("report_id and final_event_hash are required")
	}
	if len(proof.Document) == 0 {
		return errors.New("proof document is required")
	}
	createdAt := proof.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	model := ProofModel{
		ReportID:       proof.Proof.ReportID,
		TraceToken:     proof.Proof.TraceToken,
		FinalEventHash: proof.Proof.FinalEventHash,
		SnapshotCount:  len(proof.Proof.Snapshots),
		IssuedAt:       proof.Proof.IssuedAt.UTC(),
		Document:       bytes.Clone(proof.Document),
		CreatedAt:      createdAt.UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *ProofRepository) GetByReportID(ctx context.Context, reportID string) (domain.StoredProof, error) {
	return r.find(ctx, "report_id = ?", reportID)
}

func (r *ProofRepository) GetByHash(ctx context.Context, finalEventHash string) (domain.StoredProof, error) {
	return r.find(ctx, "final_event_hash = ?", finalEventHash)
}

func (r *ProofRepository) find(ctx context.Context, query string, arg string) (domain.StoredProof, error) {
	if r.db == nil {
		return domain.StoredProof{}, errDBUnavailable
	}
	var model ProofModel
	if err := r.db.WithContext(ctx).First(&model, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.StoredProof{}, domain.ErrNotFound
		}
		return domain.StoredProof{}, err
	}
	proof, err := replay.DecodeProof(model.Document)
	if err != nil {
		return domain.StoredProof{}, fmt.Errorf("decode stored proof %s: %w", model.ReportID, err)
	}
	return domain.StoredProof{
		Proof:     proof,
		Document:  bytes.Clone(model.Document),
		CreatedAt: model.CreatedAt.UTC(),
	}, nil
}
