package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sealtrail/internal/config"
	"sealtrail/internal/domain"
	"sealtrail/internal/infra/artifactfs"
	"sealtrail/internal/infra/logmem"
	"sealtrail/internal/infra/replay"
	"sealtrail/internal/infra/sessionmem"
	"sealtrail/internal/ledger"
	"sealtrail/internal/usecase"

	"github.com/gin-gonic/gin"
)

type generatorStub struct {
	output []byte
}

func (g *generatorStub) Generate(_ context.Context, _ domain.GenerationRequest) (domain.GeneratedArtifact, error) {
	return domain.GeneratedArtifact{Bytes: g.output, SourceURL: "https://cdn.example/out.png"}, nil
}

type denyPolicy struct{}

func (denyPolicy) Evaluate(_ context.Context, _ domain.PolicyInput) (domain.PolicyEvaluation, error) {
	return domain.PolicyEvaluation{
		BundleID:   "generation",
		BundleHash: "bundle-hash",
		Result: domain.PolicyResult{
			Deny: []domain.PolicyDeny{{Code: "PROMPT_TOO_LONG", Message: "prompt too long"}},
		},
	}, nil
}

type countingLimiter struct {
	mu      sync.Mutex
	allow   int
	calls   int
	keys    []string
	resetAt time.Time
}

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (domain.RateLimitDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	l.keys = append(l.keys, key)
	remaining := limit - l.calls
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   l.calls <= l.allow,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   l.resetAt,
	}, nil
}

type flakyProofs struct {
	domain.ProofRepository
	mu   sync.Mutex
	fail bool
}

func (p *flakyProofs) setFail(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = fail
}

func (p *flakyProofs) Save(ctx context.Context, proof domain.StoredProof) error {
	p.mu.Lock()
	fail := p.fail
	p.mu.Unlock()
	if fail {
		return errors.New("proof store unavailable")
	}
	return p.ProofRepository.Save(ctx, proof)
}

type testServer struct {
	srv *Server
	log *logmem.Log
}

func newTestServer(t *testing.T, cfg config.Config, deps ServerDeps) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	base := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}
	artifacts, err := artifactfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	log := logmem.NewWithClock(clock)
	svc := deps.Service
	if svc == nil {
		svc = &usecase.SealingService{}
	}
	svc.Sessions = sessionmem.New(sessionmem.Config{
		TTL:           time.Hour,
		Now:           clock,
		LedgerOptions: []ledger.Option{ledger.WithClock(clock)},
	})
	svc.Finalizer = ledger.Finalizer{Clock: clock}
	svc.Proofs = log
	svc.Artifacts = artifacts
	svc.Audit = usecase.NewAuditEmitter(log, clock)
	svc.Clock = clock
	svc.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	svc.Generation = usecase.GenerationDefaults{Model: "flux-test", Steps: 4, Seed: 7, BaseImageStrength: 0.5}

	deps.Service = svc
	deps.Logger = svc.Logger
	deps.Clock = clock
	return testServer{srv: NewServerWithDeps(cfg, deps), log: log}
}

func (ts testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func (ts testServer) startSession(t *testing.T, contextID string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/v1/sessions", nil, map[string]string{SessionContextHeader: contextID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start session: %d %s", rec.Code, rec.Body.String())
	}
	var out startSessionResponse
	decodeBody(t, rec, &out)
	if out.TraceToken == "" {
		t.Fatal("expected trace token")
	}
	return out.TraceToken
}

func (ts testServer) seal(t *testing.T, traceToken string, artifact []byte, params map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, http.MethodPost, "/v1/sessions/"+traceToken+"/snapshots", map[string]any{
		"artifact_base64": base64.StdEncoding.EncodeToString(artifact),
		"parameters":      params,
	}, nil)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) errorResponse {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	var out errorResponse
	decodeBody(t, rec, &out)
	if out.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, out.Code, out.Message)
	}
	return out
}

func TestHealthzNoDB(t *testing.T) {
	ts := newTestServer(t, config.Config{}, ServerDeps{})
	rec := ts.do(t, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out map[string]string
	decodeBody(t, rec, &out)
	if out["mode"] != "no-db" || out["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", out)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t, config.Config{}, ServerDeps{})
	trace := ts.startSession(t, "browser-1")

	rec := ts.seal(t, trace, []byte("first draft"), map[string]any{"prompt": "a lighthouse", "seed": 42})
	if rec.Code != http.StatusCreated {
		t.Fatalf("seal: %d %s", rec.Code, rec.Body.String())
	}
	var snap domain.Snapshot
	decodeBody(t, rec, &snap)
	if snap.VersionIndex != 1 {
		t.Fatalf("expected version 1, got %d", snap.VersionIndex)
	}
	if snap.CanonicalPayload != base64.StdEncoding.EncodeToString([]byte("first draft")) {
		t.Fatalf("unexpected canonical payload: %s", snap.CanonicalPayload)
	}
	if rec := ts.seal(t, trace, []byte("second draft"), nil); rec.Code != http.StatusCreated {
		t.Fatalf("seal second: %d %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/v1/sessions/"+trace+"/snapshots", nil, nil)
	var view snapshotsResponse
	decodeBody(t, rec, &view)
	if view.Finalized || len(view.Snapshots) != 2 || view.Snapshots[1].VersionIndex != 2 {
		t.Fatalf("unexpected session view: %+v", view)
	}

	rec = ts.do(t, http.MethodPost, "/v1/sessions/"+trace+"/finalize", map[string]any{"applicant": "Ada Lovelace"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("finalize: %d %s", rec.Code, rec.Body.String())
	}
	document := append([]byte(nil), rec.Body.Bytes()...)
	proof, err := replay.DecodeProof(document)
	if err != nil {
		t.Fatalf("decode proof: %v", err)
	}
	if proof.TraceToken != trace || len(proof.Snapshots) != 2 || proof.Applicant != "Ada Lovelace" {
		t.Fatalf("unexpected proof: %+v", proof)
	}

	rec = ts.do(t, http.MethodGet, "/v1/proofs/"+proof.ReportID, nil, nil)
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), document) {
		t.Fatalf("stored document differs: %d %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/v1/verify/"+strings.ToUpper(proof.FinalEventHash), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup: %d %s", rec.Code, rec.Body.String())
	}
	var lookup lookupResponse
	decodeBody(t, rec, &lookup)
	if !lookup.Verification.Passed || lookup.Verification.ReportID != proof.ReportID {
		t.Fatalf("unexpected lookup verification: %+v", lookup.Verification)
	}

	rec = ts.do(t, http.MethodPost, "/v1/proofs:verify", document, nil)
	var verification domain.ProofVerification
	decodeBody(t, rec, &verification)
	if rec.Code != http.StatusOK || !verification.Passed {
		t.Fatalf("verify document: %d %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/v1/sessions/"+trace+"/snapshots", nil, nil)
	decodeBody(t, rec, &view)
	if !view.Finalized || view.Proof == nil || view.Proof.ReportID != proof.ReportID {
		t.Fatalf("expected finalized view with proof, got %+v", view)
	}
}

func TestFinalizeTwiceReturnsExistingProof(t *testing.T) {
	ts := newTestServer(t, config.Config{}, ServerDeps{})
	trace := ts.startSession(t, "ctx")
	ts.seal(t, trace, []byte("only"), nil)

	rec := ts.do(t, http.MethodPost, "/v1/sessions/"+trace+"/finalize", map[string]any{"applicant": "a"}, nil)
	proof, err := replay.DecodeProof(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("decode proof: %v", err)
	}

	rec = ts.do(t, http.MethodPost, "/v1/sessions/"+trace+"/finalize", map[string]any{"applicant": "b"}, nil)
	out := expectError(t, rec, http.StatusConflict, "ALREADY_FINALIZED")
	if out.Details["report_id"] != proof.ReportID || out.Details["final_event_hash"] != proof.FinalEventHash {
		t.Fatalf("expected existing proof in details, got %v", out.Details)
	}

	rec = ts.seal(t, trace, []byte("late"), nil)
	expectError(t, rec, http.StatusConflict, "LEDGER_FINALIZED")
}

func TestFinalizeRetryReportsPersistFailure(t *testing.T) {
	ts := newTestServer(t, config.Config{}, ServerDeps{})
	proofs := &flakyProofs{ProofRepository: ts.srv.svc.Proofs, fail: true}
	ts.srv.svc.Proofs = proofs
	var logs bytes.Buffer
	ts.srv.logger = slog.New(slog.NewTextHandler(&logs, nil))

	trace := ts.startSession(t, "ctx")
	ts.seal(t, trace, []byte("only"), nil)

	rec := ts.do(t, http.MethodPost, "/v1/sessions/"+trace+"/finalize", map[string]any{"applicant": "a"}, nil)
	expectError(t, rec, http.StatusInternalServerError, "INTERNAL")

	rec = ts.do(t, http.MethodPost, "/v1/sessions/"+trace+"/finalize", map[string]any{"applicant": "a"}, nil)
	out := expectError(t, rec, http.StatusInternalServerError, "PROOF_NOT_PERSISTED")
	reportID, _ := out.Details["report_id"].(string)
	if reportID == "" {
		t.Fatalf("expected report id in details, got %v", out.Details)
	}
	if !strings.Contains(logs.String(), "proof_persist_retry_failed") || !strings.Contains(logs.String(), "proof store unavailable") {
		t.Fatalf("expected the persist failure to be logged, got %q", logs.String())
	}

	proofs.setFail(false)
	rec = ts.do(t, http.MethodPost, "/v1/sessions/"+trace+"/finalize", map[string]any{"applicant": "a"}, nil)
	out = expectError(t, rec, http.StatusConflict, "ALREADY_FINALIZED")
	if out.Details["report_id"] != reportID {
		t.Fatalf("expected the same proof, got %v", out.Details)
	}
	if rec := ts.do(t, http.MethodGet, "/v1/proofs/"+reportID, nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected the retried proof to be stored, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestFinalizeEmptyLedgerStaysOpen(t *testing.T) {
	ts := newTestServer(t, config.Config{}, ServerDeps{})
	trace := ts.startSession(t, "ctx")

	rec := ts.do(t, http.MethodPost, "/v1/sessions/"+trace+"/finalize", map[string]any{"applicant": "a"}, nil)
	expectError(t, rec, http.StatusUnprocessableEntity, "EMPTY_LEDGER")

	if rec := ts.seal(t, trace, []byte("after"), nil); rec.Code != http.StatusCreated {
		t.Fatalf("expected ledger to stay open, got %d", rec.Code)
	}
}

func TestSealRejectsBadRequests(t *testing.T) {
	ts := newTestServer(t, config.Config{}, ServerDeps{})
	trace := ts.startSession(t, "ctx")
	path := "/v1/sessions/" + trace + "/snapshots"

	cases := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"neither artifact", path, map[string]any{}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"both artifacts", path, map[string]any{"artifact_base64": "eA==", "artifact_handle": "x.png"}, http.StatusBadRequest, "INVALID_REQUEST"},
		{"bad base64", path, map[string]any{"artifact_base64": "%%%"}, http.StatusBadRequest, "INVALID_ARTIFACT"},
		{"parameters not object", path, map[string]any{"artifact_base64": "eA==", "parameters": []int{1}}, http.StatusBadRequest, "INVALID_PARAMETERS"},
		{"unknown handle", path, map[string]any{"artifact_handle": "../etc/passwd"}, http.StatusUnprocessableEntity, "ARTIFACT_UNAVAILABLE"},
		{"unknown session", "/v1/sessions/missing/snapshots", map[string]any{"artifact_base64": "eA=="}, http.StatusNotFound, "SESSION_NOT_FOUND"},
		{"malformed json", path, []byte("{"), http.StatusBadRequest, "INVALID_JSON"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, tc.path, tc.body, nil)
			expectError(t, rec, tc.status, tc.code)
		})
	}

	rec := ts.do(t, http.MethodGet, path, nil, nil)
	var view snapshotsResponse
	decodeBody(t, rec, &view)
	if len(view.Snapshots) != 0 {
		t.Fatalf("rejected requests must not seal, got %d snapshots", len(view.Snapshots))
	}
}

func TestVerifyReportsTampering(t *testing.T) {
	ts := newTestServer(t, config.Config{}, ServerDeps{})
	trace := ts.startSession(t, "ctx")
	ts.seal(t, trace, []byte("evidence"), map[string]any{"prompt": "p"})
	rec := ts.do(t, http.MethodPost, "/v1/sessions/"+trace+"/finalize", map[string]any{"applicant": "a"}, nil)
	proof, err := replay.DecodeProof(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("decode proof: %v", err)
	}

	forged := bytes.Replace(rec.Body.Bytes(), []byte(proof.ReportID), []byte("forged-report"), 1)
	rec = ts.do(t, http.MethodPost, "/v1/proofs:verify", forged, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify: %d %s", rec.Code, rec.Body.String())
	}
	var result domain.ProofVerification
	decodeBody(t, rec, &result)
	if result.Passed {
		t.Fatal("expected forged document to fail")
	}
	if len(result.Failures) != 1 || result.Failures[0] != replay.FailFinalEventHash {
		t.Fatalf("unexpected failures: %v", result.Failures)
	}

	rec = ts.do(t, http.MethodPost, "/v1/proofs:verify", []byte("[1,2]"), nil)
	expectError(t, rec, http.StatusBadRequest, "INVALID_PROOF")
}

func TestLookupByHashErrors(t *testing.T) {
	ts := newTestServer(t, config.Config{}, ServerDeps{})

	rec := ts.do(t, http.MethodGet, "/v1/verify/not-a-hash", nil, nil)
	expectError(t, rec, http.StatusBadRequest, "INVALID_HASH")

	rec = ts.do(t, http.MethodGet, "/v1/verify/"+strings.Repeat("ab", 32), nil, nil)
	expectError(t, rec, http.StatusNotFound, "NOT_FOUND")

	rec = ts.do(t, http.MethodGet, "/v1/proofs/unknown", nil, nil)
	expectError(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestGenerateSealsArtifact(t *testing.T) {
	ts := newTestServer(t, config.Config{}, ServerDeps{
		Service: &usecase.SealingService{Generator: &generatorStub{output: []byte("png-bytes")}},
	})
	trace := ts.startSession(t, "ctx")

	rec := ts.do(t, http.MethodPost, "/v1/sessions/"+trace+"/generate", map[string]any{"prompt": "a red fox"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("generate: %d %s", rec.Code, rec.Body.String())
	}
	var out generateResponse
	decodeBody(t, rec, &out)
	if out.ArtifactHandle == "" || out.Snapshot.VersionIndex != 1 {
		t.Fatalf("unexpected generate response: %+v", out)
	}
	if out.Snapshot.InputParameters["prompt"] != "a red fox" || out.Snapshot.InputParameters["model"] != "flux-test" {
		t.Fatalf("unexpected sealed parameters: %v", out.Snapshot.InputParameters)
	}

	rec = ts.do(t, http.MethodPost, "/v1/sessions/"+trace+"/generate", map[string]any{
		"prompt":      "same fox, at night",
		"base_handle": out.ArtifactHandle,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("variation: %d %s", rec.Code, rec.Body.String())
	}
	var variation generateResponse
	decodeBody(t, rec, &variation)
	if variation.BaseFrom != out.ArtifactHandle || variation.Snapshot.InputParameters["base_from"] != out.ArtifactHandle {
		t.Fatalf("expected base_from %s, got %+v", out.ArtifactHandle, variation)
	}

	rec = ts.do(t, http.MethodPost, "/v1/sessions/"+trace+"/snapshots", map[string]any{"artifact_handle": out.ArtifactHandle}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("seal by handle: %d %s", rec.Code, rec.Body.String())
	}
	var byHandle domain.Snapshot
	decodeBody(t, rec, &byHandle)
	if byHandle.ContentFingerprint != out.Snapshot.ContentFingerprint {
		t.Fatal("sealing the stored artifact must reproduce its fingerprint")
	}
}

func TestGenerateDisabled(t *testing.T) {
	ts := newTestServer(t, config.Config{}, ServerDeps{})
	trace := ts.startSession(t, "ctx")
	rec := ts.do(t, http.MethodPost, "/v1/sessions/"+trace+"/generate", map[string]any{"prompt": "x"}, nil)
	expectError(t, rec, http.StatusNotImplemented, "GENERATION_DISABLED")
}

func TestGeneratePolicyDenied(t *testing.T) {
	ts := newTestServer(t, config.Config{}, ServerDeps{
		Service: &usecase.SealingService{
			Generator: &generatorStub{output: []byte("png")},
			Policy:    denyPolicy{},
		},
	})
	trace := ts.startSession(t, "ctx")
	rec := ts.do(t, http.MethodPost, "/v1/sessions/"+trace+"/generate", map[string]any{"prompt": "x"}, nil)
	out := expectError(t, rec, http.StatusForbidden, "POLICY_DENIED")
	if out.Details["bundle_hash"] != "bundle-hash" {
		t.Fatalf("expected bundle hash in details, got %v", out.Details)
	}
	deny, ok := out.Details["deny"].([]any)
	if !ok || len(deny) != 1 {
		t.Fatalf("expected one deny entry, got %v", out.Details["deny"])
	}
}

func TestGenerateRateLimited(t *testing.T) {
	limiter := &countingLimiter{allow: 1, resetAt: time.Date(2026, 5, 6, 7, 9, 9, 0, time.UTC)}
	ts := newTestServer(t, config.Config{RateLimitRequests: 1, RateLimitWindowSeconds: 60}, ServerDeps{
		Service:     &usecase.SealingService{Generator: &generatorStub{output: []byte("png")}},
		RateLimiter: limiter,
	})
	trace := ts.startSession(t, "ctx")
	headers := map[string]string{SessionContextHeader: "ctx"}

	rec := ts.do(t, http.MethodPost, "/v1/sessions/"+trace+"/generate", map[string]any{"prompt": "x"}, headers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first generate: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("RateLimit-Limit") != "1" || rec.Header().Get("RateLimit-Remaining") != "0" {
		t.Fatalf("unexpected rate limit headers: %v", rec.Header())
	}

	rec = ts.do(t, http.MethodPost, "/v1/sessions/"+trace+"/generate", map[string]any{"prompt": "x"}, headers)
	expectError(t, rec, http.StatusTooManyRequests, "RATE_LIMITED")
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if limiter.keys[0] != "context:ctx:endpoint:"+routeGenerate {
		t.Fatalf("unexpected limiter key: %s", limiter.keys[0])
	}
}

func TestAuditVerifyRequiresAdminKey(t *testing.T) {
	ts := newTestServer(t, config.Config{AdminAPIKey: "secret"}, ServerDeps{})
	trace := ts.startSession(t, "ctx")
	ts.seal(t, trace, []byte("evidence"), nil)

	rec := ts.do(t, http.MethodGet, "/v1/audit/"+trace+"/verify", nil, nil)
	expectError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")

	rec = ts.do(t, http.MethodGet, "/v1/audit/"+trace+"/verify", nil, map[string]string{"X-Admin-Key": "wrong"})
	expectError(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")

	rec = ts.do(t, http.MethodGet, "/v1/audit/"+trace+"/verify", nil, map[string]string{"X-Admin-Key": "secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("audit verify: %d %s", rec.Code, rec.Body.String())
	}
	var out auditVerifyResponse
	decodeBody(t, rec, &out)
	if !out.Valid || out.Scope != trace {
		t.Fatalf("expected valid chain, got %+v", out)
	}
	events, err := ts.log.ListByScope(context.Background(), trace)
	if err != nil {
		t.Fatalf("list audit events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected session_started and snapshot_sealed events, got %d", len(events))
	}
}

func TestMetricsRouteOnlyWhenEnabled(t *testing.T) {
	ts := newTestServer(t, config.Config{}, ServerDeps{})
	rec := ts.do(t, http.MethodGet, "/metrics", nil, nil)
	expectError(t, rec, http.StatusNotFound, "NOT_FOUND")

	ts = newTestServer(t, config.Config{}, ServerDeps{
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("sealtrail_sessions_started_total 0\n"))
		}),
	})
	rec = ts.do(t, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "sealtrail_sessions_started_total") {
		t.Fatalf("unexpected metrics response: %d %s", rec.Code, rec.Body.String())
	}
}
