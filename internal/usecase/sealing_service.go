package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sealtrail/internal/domain"
	cryptoinfra "sealtrail/internal/infra/crypto"
	"sealtrail/internal/infra/replay"
	"sealtrail/internal/ledger"
)

const (
	SourceUpload   = "upload"
	SourceHandle   = "handle"
	SourceGenerate = "generate"
)

type GenerationDefaults struct {
	Model             string
	Steps             int
	Seed              int64
	BaseImageStrength float64
}

// SealingService drives session ledgers on behalf of the transport layer
// and wires them to storage, generation, policy, audit and metrics.
type SealingService struct {
	Sessions   SessionRegistry
	Finalizer  ledger.Finalizer
	Proofs     domain.ProofRepository
	Artifacts  domain.ArtifactStore
	Generator  domain.ImageGenerator
	Policy     domain.GenerationPolicy
	Audit      *AuditEmitter
	Metrics    Metrics
	Logger     *slog.Logger
	Clock      Clock
	Generation GenerationDefaults
}

type SessionInfo struct {
	TraceToken string
	StartedAt  time.Time
}

type SessionView struct {
	TraceToken string
	Finalized  bool
	Snapshots  []domain.Snapshot
	Proof      *domain.ProofObject
}

type GenerateRequest struct {
	Prompt     string
	Model      string
	Steps      int
	Seed       *int64
	Width      int
	Height     int
	BaseHandle string
}

type GenerateResult struct {
	Handle    string
	BaseFrom  string
	RawSHA256 string
	SourceURL string
	Snapshot  domain.Snapshot
	Policy    *domain.PolicyEvaluation
}

func (s *SealingService) StartSession(ctx context.Context, contextID string) (SessionInfo, error) {
	if s.Sessions == nil {
		return SessionInfo{}, errors.New("session registry required")
	}
	l := s.Sessions.Start(contextID)
	s.metrics().SessionStarted()
	s.audit(ctx, "session_started", func(e *AuditEmitter) error {
		return e.EmitSessionStarted(ctx, l.TraceToken())
	})
	s.logger().InfoContext(ctx, "session_started", "trace_token", l.TraceToken())
	return SessionInfo{TraceToken: l.TraceToken(), StartedAt: l.StartedAt()}, nil
}

func (s *SealingService) Seal(ctx context.Context, traceToken string, artifact []byte, params domain.Parameters) (domain.Snapshot, error) {
	l, err := s.session(traceToken)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return s.seal(ctx, l, artifact, params, SourceUpload)
}

// SealHandle seals an artifact previously committed to the artifact store.
// The handle is recorded in the parameters unless the caller set one.
func (s *SealingService) SealHandle(ctx context.Context, traceToken, handle string, params domain.Parameters) (domain.Snapshot, error) {
	l, err := s.session(traceToken)
	if err != nil {
		return domain.Snapshot{}, err
	}
	artifact, err := s.loadArtifact(ctx, handle)
	if err != nil {
		s.metrics().SealFailed(reasonFor(err))
		return domain.Snapshot{}, err
	}
	withHandle := params.Clone()
	if withHandle == nil {
		withHandle = domain.Parameters{}
	}
	if _, ok := withHandle["artifact_handle"]; !ok {
		withHandle["artifact_handle"] = handle
	}
	return s.seal(ctx, l, artifact, withHandle, SourceHandle)
}

func (s *SealingService) Snapshots(ctx context.Context, traceToken string) (SessionView, error) {
	l, err := s.session(traceToken)
	if err != nil {
		return SessionView{}, err
	}
	view := SessionView{
		TraceToken: l.TraceToken(),
		Finalized:  l.Finalized(),
		Snapshots:  l.Snapshots(),
	}
	if proof, ok := l.Proof(); ok {
		view.Proof = &proof
	}
	return view, nil
}

// Generate asks the remote generator for a new artifact, stores it and
// seals it into the session. A base handle requests a variation of an
// earlier artifact.
func (s *SealingService) Generate(ctx context.Context, traceToken string, req GenerateRequest) (GenerateResult, error) {
	if s.Generator == nil {
		return GenerateResult{}, errors.New("image generator not configured")
	}
	l, err := s.session(traceToken)
	if err != nil {
		return GenerateResult{}, err
	}
	if l.Finalized() {
		return GenerateResult{}, domain.ErrLedgerFinalized
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return GenerateResult{}, fmt.Errorf("%w: prompt is required", domain.ErrInvalidParameters)
	}

	genReq := s.generationRequest(req)
	if req.BaseHandle != "" {
		base, err := s.loadArtifact(ctx, req.BaseHandle)
		if err != nil {
			return GenerateResult{}, err
		}
		genReq.BaseImage = base
		genReq.BaseImageStrength = s.Generation.BaseImageStrength
	}

	var result GenerateResult
	if s.Policy != nil {
		eval, err := s.Policy.Evaluate(ctx, policyInput(l, genReq))
		if err != nil {
			return GenerateResult{}, fmt.Errorf("evaluate generation policy: %w", err)
		}
		result.Policy = &eval
		if !eval.Result.Allow {
			s.audit(ctx, "generation_denied", func(e *AuditEmitter) error {
				return e.EmitGenerationDenied(ctx, l.TraceToken(), eval)
			})
			return result, fmt.Errorf("%w: %s", domain.ErrPolicyDenied, denyCodes(eval.Result.Deny))
		}
	}

	started := s.now()
	generated, err := s.Generator.Generate(ctx, genReq)
	elapsed := s.now().Sub(started)
	if err != nil {
		s.metrics().GenerationCompleted(reasonFor(err), elapsed)
		s.logger().WarnContext(ctx, "generation_failed", "trace_token", l.TraceToken(), "error", err)
		return result, err
	}
	s.metrics().GenerationCompleted("ok", elapsed)

	if s.Artifacts != nil {
		handle, err := s.Artifacts.Put(ctx, generated.Bytes)
		if err != nil {
			return result, fmt.Errorf("store artifact: %w", err)
		}
		result.Handle = handle
	}

	params := domain.Parameters{
		"prompt": genReq.Prompt,
		"model":  genReq.Model,
		"steps":  genReq.Steps,
		"seed":   genReq.Seed,
	}
	if genReq.Width > 0 && genReq.Height > 0 {
		params["width"] = genReq.Width
		params["height"] = genReq.Height
	}
	if req.BaseHandle != "" {
		params["base_from"] = req.BaseHandle
		params["image_prompt_strength"] = genReq.BaseImageStrength
	}
	if result.Handle != "" {
		params["artifact_handle"] = result.Handle
	}

	snap, err := s.seal(ctx, l, generated.Bytes, params, SourceGenerate)
	if err != nil {
		return result, err
	}
	result.Snapshot = snap
	result.BaseFrom = req.BaseHandle
	result.RawSHA256 = cryptoinfra.SHA256Hex(generated.Bytes)
	result.SourceURL = generated.SourceURL
	return result, nil
}

// Finalize freezes the session and persists its proof. Calling it again
// returns the existing proof with domain.ErrAlreadyFinalized; that path
// also retries persistence if the first attempt failed.
func (s *SealingService) Finalize(ctx context.Context, traceToken, applicant string, issuedAt time.Time) (domain.ProofObject, error) {
	l, err := s.session(traceToken)
	if err != nil {
		return domain.ProofObject{}, err
	}
	proof, err := s.Finalizer.Finalize(l, applicant, issuedAt)
	if errors.Is(err, domain.ErrAlreadyFinalized) {
		if persistErr := s.ensurePersisted(ctx, proof); persistErr != nil {
			return proof, errors.Join(err, persistErr)
		}
		return proof, err
	}
	if err != nil {
		return domain.ProofObject{}, err
	}

	s.metrics().ProofFinalized(len(proof.Snapshots))
	s.logger().InfoContext(ctx, "proof_finalized",
		"trace_token", proof.TraceToken,
		"report_id", proof.ReportID,
		"final_event_hash", proof.FinalEventHash,
		"snapshots", len(proof.Snapshots),
	)
	if err := s.persist(ctx, proof); err != nil {
		return proof, err
	}
	s.audit(ctx, "proof_finalized", func(e *AuditEmitter) error {
		return e.EmitProofFinalized(ctx, proof)
	})
	return proof, nil
}

func (s *SealingService) GetProof(ctx context.Context, reportID string) (domain.StoredProof, error) {
	if s.Proofs == nil {
		return domain.StoredProof{}, domain.ErrNotFound
	}
	return s.Proofs.GetByReportID(ctx, reportID)
}

// LookupByHash resolves a proof by its final_event_hash and re-verifies the
// stored document.
func (s *SealingService) LookupByHash(ctx context.Context, finalEventHash string) (domain.StoredProof, domain.ProofVerification, error) {
	if s.Proofs == nil {
		return domain.StoredProof{}, domain.ProofVerification{}, domain.ErrNotFound
	}
	stored, err := s.Proofs.GetByHash(ctx, strings.ToLower(finalEventHash))
	if err != nil {
		return domain.StoredProof{}, domain.ProofVerification{}, err
	}
	result, err := s.VerifyDocument(ctx, stored.Document)
	if err != nil {
		return domain.StoredProof{}, domain.ProofVerification{}, err
	}
	return stored, result, nil
}

func (s *SealingService) VerifyDocument(ctx context.Context, document []byte) (domain.ProofVerification, error) {
	result, err := replay.VerifyDocument(document)
	if err != nil {
		return domain.ProofVerification{}, err
	}
	s.metrics().ProofVerified(result.Passed)
	s.audit(ctx, "proof_verified", func(e *AuditEmitter) error {
		return e.EmitProofVerified(ctx, result)
	})
	return result, nil
}

// VerifyAuditChain checks the audit chain of one scope.
func (s *SealingService) VerifyAuditChain(ctx context.Context, scope string) error {
	if s.Audit == nil {
		return errors.New("audit log not configured")
	}
	return VerifyAuditChain(ctx, s.Audit.Repo, scope)
}

func (s *SealingService) seal(ctx context.Context, l *ledger.Ledger, artifact []byte, params domain.Parameters, source string) (domain.Snapshot, error) {
	snap, err := l.Seal(artifact, params)
	if err != nil {
		s.metrics().SealFailed(reasonFor(err))
		return domain.Snapshot{}, err
	}
	s.metrics().SnapshotSealed(source)
	s.audit(ctx, "snapshot_sealed", func(e *AuditEmitter) error {
		return e.EmitSnapshotSealed(ctx, l.TraceToken(), snap, source)
	})
	s.logger().InfoContext(ctx, "snapshot_sealed",
		"trace_token", l.TraceToken(),
		"version_index", snap.VersionIndex,
		"content_fingerprint", snap.ContentFingerprint,
		"source", source,
	)
	return snap, nil
}

func (s *SealingService) persist(ctx context.Context, proof domain.ProofObject) error {
	if s.Proofs == nil {
		return nil
	}
	document, err := replay.ExportProof(proof)
	if err != nil {
		return fmt.Errorf("export proof: %w", err)
	}
	if err := s.Proofs.Save(ctx, domain.StoredProof{
		Proof:     proof,
		Document:  document,
		CreatedAt: s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("persist proof: %w", err)
	}
	return nil
}

func (s *SealingService) ensurePersisted(ctx context.Context, proof domain.ProofObject) error {
	if s.Proofs == nil {
		return nil
	}
	_, err := s.Proofs.GetByReportID(ctx, proof.ReportID)
	if errors.Is(err, domain.ErrNotFound) {
		return s.persist(ctx, proof)
	}
	return err
}

func (s *SealingService) session(traceToken string) (*ledger.Ledger, error) {
	if s.Sessions == nil {
		return nil, errors.New("session registry required")
	}
	if traceToken == "" {
		return nil, domain.ErrSessionNotFound
	}
	return s.Sessions.Get(traceToken)
}

func (s *SealingService) loadArtifact(ctx context.Context, handle string) ([]byte, error) {
	if s.Artifacts == nil {
		return nil, fmt.Errorf("%w: artifact store not configured", domain.ErrArtifactUnavailable)
	}
	data, err := s.Artifacts.Get(ctx, handle)
	if err != nil {
		if errors.Is(err, domain.ErrArtifactUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrArtifactUnavailable, err)
	}
	return data, nil
}

func (s *SealingService) generationRequest(req GenerateRequest) domain.GenerationRequest {
	out := domain.GenerationRequest{
		Prompt: req.Prompt,
		Model:  req.Model,
		Steps:  req.Steps,
		Seed:   s.Generation.Seed,
		Width:  req.Width,
		Height: req.Height,
	}
	if out.Model == "" {
		out.Model = s.Generation.Model
	}
	if out.Steps <= 0 {
		out.Steps = s.Generation.Steps
	}
	if req.Seed != nil {
		out.Seed = *req.Seed
	}
	return out
}

func policyInput(l *ledger.Ledger, req domain.GenerationRequest) domain.PolicyInput {
	return domain.PolicyInput{
		Generation: domain.GenerationRequestInput{
			Prompt: req.Prompt,
			Model:  req.Model,
			Steps:  req.Steps,
			Seed:   req.Seed,
			Width:  req.Width,
			Height: req.Height,
		},
		Session: domain.PolicySession{
			TraceToken:    l.TraceToken(),
			SnapshotCount: l.Len(),
		},
		HasBaseImage:  len(req.BaseImage) > 0,
		BaseImageSize: len(req.BaseImage),
	}
}

func (s *SealingService) audit(ctx context.Context, event string, emit func(e *AuditEmitter) error) {
	if s.Audit == nil {
		return
	}
	if err := emit(s.Audit); err != nil {
		s.logger().ErrorContext(ctx, "audit_emit_failed", "event", event, "error", err)
	}
}

func (s *SealingService) metrics() Metrics {
	if s.Metrics == nil {
		return noopMetrics{}
	}
	return s.Metrics
}

func (s *SealingService) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *SealingService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func denyCodes(deny []domain.PolicyDeny) string {
	codes := make([]string, 0, len(deny))
	for _, d := range deny {
		codes = append(codes, d.Code)
	}
	return strings.Join(codes, ",")
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrArtifactUnavailable):
		return "artifact_unavailable"
	case errors.Is(err, domain.ErrEmptyArtifact):
		return "empty_artifact"
	case errors.Is(err, domain.ErrLedgerFinalized):
		return "ledger_finalized"
	case errors.Is(err, domain.ErrInvalidParameters):
		return "invalid_parameters"
	case errors.Is(err, domain.ErrGenerationFailed):
		return "failed"
	case errors.Is(err, domain.ErrGenerationTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

type noopMetrics struct{}

func (noopMetrics) SessionStarted()                           {}
func (noopMetrics) SnapshotSealed(string)                     {}
func (noopMetrics) SealFailed(string)                         {}
func (noopMetrics) ProofFinalized(int)                        {}
func (noopMetrics) GenerationCompleted(string, time.Duration) {}
func (noopMetrics) ProofVerified(bool)                        {}
