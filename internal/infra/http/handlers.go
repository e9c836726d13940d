package http

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"sealtrail/internal/domain"
	"sealtrail/internal/infra/replay"
	"sealtrail/internal/logging"
	"sealtrail/internal/usecase"

	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type startSessionResponse struct {
	TraceToken     string `json:"trace_token"`
	SessionContext string `json:"session_context"`
	StartedAt      string `json:"started_at"`
}

type sealRequest struct {
	ArtifactBase64 string          `json:"artifact_base64"`
	ArtifactHandle string          `json:"artifact_handle"`
	Parameters     json.RawMessage `json:"parameters"`
}

type snapshotsResponse struct {
	TraceToken string               `json:"trace_token"`
	Finalized  bool                 `json:"finalized"`
	Snapshots  []domain.Snapshot    `json:"snapshots"`
	Proof      *finalizedProofBrief `json:"proof,omitempty"`
}

type finalizedProofBrief struct {
	ReportID       string `json:"report_id"`
	FinalEventHash string `json:"final_event_hash"`
	IssuedAt       string `json:"issued_at"`
}

type generateRequest struct {
	Prompt     string `json:"prompt"`
	Model      string `json:"model"`
	Steps      int    `json:"steps"`
	Seed       *int64 `json:"seed"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	BaseHandle string `json:"base_handle"`
}

type generateResponse struct {
	ArtifactHandle string          `json:"artifact_handle,omitempty"`
	BaseFrom       string          `json:"base_from,omitempty"`
	RawSHA256      string          `json:"raw_sha256"`
	SourceURL      string          `json:"source_url,omitempty"`
	Snapshot       domain.Snapshot `json:"snapshot"`
	PolicyBundle   string          `json:"policy_bundle_hash,omitempty"`
}

type finalizeRequest struct {
	Applicant string `json:"applicant"`
	IssuedAt  string `json:"issued_at"`
}

type lookupResponse struct {
	Verification domain.ProofVerification `json:"verification"`
	Proof        json.RawMessage          `json:"proof"`
}

type auditVerifyResponse struct {
	Scope  string `json:"scope"`
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	mode := "no-db"
	if s.store != nil && s.store.Enabled() {
		mode = "db"
		if err := s.store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "mode": mode})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": mode})
}

func (s *Server) handleStartSession(c *gin.Context) {
	contextID := strings.TrimSpace(c.GetHeader(SessionContextHeader))
	if contextID == "" {
		contextID = s.newContextID()
	}
	ctx := s.clientContext(c, contextID)
	info, err := s.svc.StartSession(ctx, contextID)
	if err != nil {
		writeError(c, err)
		return
	}
	logging.AddField(ctx, "trace_token", info.TraceToken)
	c.JSON(http.StatusCreated, startSessionResponse{
		TraceToken:     info.TraceToken,
		SessionContext: contextID,
		StartedAt:      domain.FormatTimestamp(info.StartedAt),
	})
}

func (s *Server) handleSeal(c *gin.Context) {
	traceToken := c.Param("trace_token")
	var req sealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	hasPayload, hasHandle := req.ArtifactBase64 != "", req.ArtifactHandle != ""
	if hasPayload == hasHandle {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "exactly one of artifact_base64 or artifact_handle is required")
		return
	}
	params, err := decodeParameters(req.Parameters)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := s.clientContext(c, c.GetHeader(SessionContextHeader))
	logging.AddField(ctx, "trace_token", traceToken)
	var snap domain.Snapshot
	if hasHandle {
		snap, err = s.svc.SealHandle(ctx, traceToken, req.ArtifactHandle, params)
	} else {
		artifact, decodeErr := base64.StdEncoding.DecodeString(req.ArtifactBase64)
		if decodeErr != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_ARTIFACT", "artifact_base64 is not valid base64")
			return
		}
		snap, err = s.svc.Seal(ctx, traceToken, artifact, params)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	logging.AddField(ctx, "version_index", snap.VersionIndex)
	c.JSON(http.StatusCreated, snap)
}

func (s *Server) handleSnapshots(c *gin.Context) {
	view, err := s.svc.Snapshots(c.Request.Context(), c.Param("trace_token"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := snapshotsResponse{
		TraceToken: view.TraceToken,
		Finalized:  view.Finalized,
		Snapshots:  view.Snapshots,
	}
	if out.Snapshots == nil {
		out.Snapshots = []domain.Snapshot{}
	}
	if view.Proof != nil {
		out.Proof = &finalizedProofBrief{
			ReportID:       view.Proof.ReportID,
			FinalEventHash: view.Proof.FinalEventHash,
			IssuedAt:       domain.FormatTimestamp(view.Proof.IssuedAt),
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGenerate(c *gin.Context) {
	if s.svc.Generator == nil {
		writeErrorCode(c, http.StatusNotImplemented, "GENERATION_DISABLED", "image generation is not configured")
		return
	}
	contextID := c.GetHeader(SessionContextHeader)
	if !s.enforceRateLimit(c, routeGenerate, contextID) {
		return
	}
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	ctx := s.clientContext(c, contextID)
	traceToken := c.Param("trace_token")
	logging.AddField(ctx, "trace_token", traceToken)

	result, err := s.svc.Generate(ctx, traceToken, usecase.GenerateRequest{
		Prompt:     req.Prompt,
		Model:      req.Model,
		Steps:      req.Steps,
		Seed:       req.Seed,
		Width:      req.Width,
		Height:     req.Height,
		BaseHandle: req.BaseHandle,
	})
	if errors.Is(err, domain.ErrPolicyDenied) && result.Policy != nil {
		c.JSON(http.StatusForbidden, errorResponse{
			Code:    "POLICY_DENIED",
			Message: err.Error(),
			Details: map[string]any{
				"bundle_id":   result.Policy.BundleID,
				"bundle_hash": result.Policy.BundleHash,
				"deny":        result.Policy.Result.Deny,
			},
		})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	out := generateResponse{
		ArtifactHandle: result.Handle,
		BaseFrom:       result.BaseFrom,
		RawSHA256:      result.RawSHA256,
		SourceURL:      result.SourceURL,
		Snapshot:       result.Snapshot,
	}
	if result.Policy != nil {
		out.PolicyBundle = result.Policy.BundleHash
	}
	c.JSON(http.StatusCreated, out)
}

func (s *Server) handleFinalize(c *gin.Context) {
	var req finalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	issuedAt := s.now()
	if req.IssuedAt != "" {
		parsed, err := time.Parse(time.RFC3339Nano, req.IssuedAt)
		if err != nil {
			writeErrorCode(c, http.StatusBadRequest, "INVALID_REQUEST", "issued_at must be RFC3339")
			return
		}
		issuedAt = parsed
	}
	ctx := s.clientContext(c, c.GetHeader(SessionContextHeader))
	traceToken := c.Param("trace_token")
	logging.AddField(ctx, "trace_token", traceToken)

	proof, err := s.svc.Finalize(ctx, traceToken, req.Applicant, issuedAt)
	if errors.Is(err, domain.ErrAlreadyFinalized) && err != domain.ErrAlreadyFinalized {
		// The session is frozen but its proof is still not stored.
		s.logger.ErrorContext(ctx, "proof_persist_retry_failed",
			"trace_token", traceToken,
			"report_id", proof.ReportID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, errorResponse{
			Code:    "PROOF_NOT_PERSISTED",
			Message: "session already finalized but its proof could not be stored",
			Details: map[string]any{
				"report_id":        proof.ReportID,
				"final_event_hash": proof.FinalEventHash,
			},
		})
		return
	}
	if errors.Is(err, domain.ErrAlreadyFinalized) {
		c.JSON(http.StatusConflict, errorResponse{
			Code:    "ALREADY_FINALIZED",
			Message: "session already finalized",
			Details: map[string]any{
				"report_id":        proof.ReportID,
				"final_event_hash": proof.FinalEventHash,
			},
		})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	document, err := replay.ExportProof(proof)
	if err != nil {
		writeError(c, err)
		return
	}
	logging.AddField(ctx, "report_id", proof.ReportID)
	c.Data(http.StatusCreated, "application/json", document)
}

func (s *Server) handleGetProof(c *gin.Context) {
	stored, err := s.svc.GetProof(c.Request.Context(), c.Param("report_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", stored.Document)
}

func (s *Server) handleLookupByHash(c *gin.Context) {
	hash := strings.ToLower(c.Param("hash"))
	if !isHexDigest(hash) {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_HASH", "hash must be 64 hex characters")
		return
	}
	stored, result, err := s.svc.LookupByHash(c.Request.Context(), hash)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, lookupResponse{
		Verification: result,
		Proof:        json.RawMessage(stored.Document),
	})
}

func (s *Server) handleVerifyDocument(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxDocumentBytes))
	if err != nil {
		writeErrorCode(c, http.StatusRequestEntityTooLarge, "DOCUMENT_TOO_LARGE", "proof document too large")
		return
	}
	result, err := s.svc.VerifyDocument(c.Request.Context(), body)
	if err != nil {
		writeError(c, err)
		return
	}
	logging.AddField(c.Request.Context(), "verification_passed", result.Passed)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleVerifyAuditChain(c *gin.Context) {
	if !s.requireAdmin(c) {
		return
	}
	scope := c.Param("scope")
	ctx := usecase.WithActor(c.Request.Context(), usecase.Actor{Type: domain.AuditActorAdminAPIKey})
	out := auditVerifyResponse{Scope: scope, Valid: true}
	if err := s.svc.VerifyAuditChain(ctx, scope); err != nil {
		var chainErr *usecase.ChainBreakError
		if !errors.As(err, &chainErr) {
			writeError(c, err)
			return
		}
		out.Valid = false
		out.Reason = chainErr.Error()
	}
	logging.AddField(c.Request.Context(), "audit_chain_valid", out.Valid)
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleNoRoute(c *gin.Context) {
	if c.Request.Method == http.MethodPost && c.Request.URL.Path == "/v1/proofs:verify" {
		s.handleVerifyDocument(c)
		return
	}
	writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
}

func (s *Server) requireAdmin(c *gin.Context) bool {
	if s.adminAPIKey == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "admin key required")
		return false
	}
	key := c.GetHeader("X-Admin-Key")
	if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminAPIKey)) != 1 {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin key")
		return false
	}
	return true
}

// clientContext attaches the caller's session context as the audit actor
// and returns the request context.
func (s *Server) clientContext(c *gin.Context, contextID string) context.Context {
	ctx := c.Request.Context()
	if contextID != "" {
		ctx = usecase.WithActor(ctx, usecase.Actor{Type: domain.AuditActorClient, ID: contextID})
		c.Request = c.Request.WithContext(ctx)
	}
	return ctx
}

func decodeParameters(raw json.RawMessage) (domain.Parameters, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return domain.Parameters{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var params map[string]any
	if err := dec.Decode(&params); err != nil {
		return nil, errors.Join(domain.ErrInvalidParameters, errors.New("parameters must be a JSON object"))
	}
	return domain.NormalizeParameters(params)
}

func isHexDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		status, code = http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrLedgerFinalized):
		status, code = http.StatusConflict, "LEDGER_FINALIZED"
	case errors.Is(err, domain.ErrAlreadyFinalized):
		status, code = http.StatusConflict, "ALREADY_FINALIZED"
	case errors.Is(err, domain.ErrEmptyLedger):
		status, code = http.StatusUnprocessableEntity, "EMPTY_LEDGER"
	case errors.Is(err, domain.ErrEmptyArtifact):
		status, code = http.StatusBadRequest, "EMPTY_ARTIFACT"
	case errors.Is(err, domain.ErrArtifactUnavailable):
		status, code = http.StatusUnprocessableEntity, "ARTIFACT_UNAVAILABLE"
	case errors.Is(err, domain.ErrInvalidParameters):
		status, code = http.StatusBadRequest, "INVALID_PARAMETERS"
	case errors.Is(err, domain.ErrInvalidProof):
		status, code = http.StatusBadRequest, "INVALID_PROOF"
	case errors.Is(err, domain.ErrPolicyDenied):
		status, code = http.StatusForbidden, "POLICY_DENIED"
	case errors.Is(err, domain.ErrGenerationTimeout):
		status, code = http.StatusGatewayTimeout, "GENERATION_TIMEOUT"
	case errors.Is(err, domain.ErrGenerationFailed):
		status, code = http.StatusBadGateway, "GENERATION_FAILED"
	case errors.Is(err, domain.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "UNAUTHORIZED"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
