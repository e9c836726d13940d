package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"sealtrail/internal/config"
	"sealtrail/internal/domain"
	"sealtrail/internal/infra/idgen"
	"sealtrail/internal/logging"
	"sealtrail/internal/usecase"

	"github.com/gin-gonic/gin"
)

// SessionContextHeader names the caller's session context. Requests that
// omit it get a fresh context per session start.
const SessionContextHeader = "X-Session-Context"

const maxDocumentBytes = 32 << 20

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Enabled() bool
	Ping(ctx context.Context) error
}

type Server struct {
	r      *gin.Engine
	svc    *usecase.SealingService
	logger *slog.Logger
	store  Pinger

	metricsHandler http.Handler
	adminAPIKey    string
	newContextID   idgen.Generator
	now            func() time.Time

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
}

type ServerDeps struct {
	Service     *usecase.SealingService
	Logger      *slog.Logger
	Environment logging.Environment
	Store       Pinger
	RateLimiter domain.RateLimiter
	Metrics     http.Handler
	ContextIDs  idgen.Generator
	Clock       func() time.Time
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Middleware(logger, deps.Environment))

	s := &Server{
		r:                 r,
		svc:               deps.Service,
		logger:            logger,
		store:             deps.Store,
		metricsHandler:    deps.Metrics,
		adminAPIKey:       cfg.AdminAPIKey,
		newContextID:      deps.ContextIDs,
		now:               deps.Clock,
		rateLimiter:       deps.RateLimiter,
		rateLimitRequests: cfg.RateLimitRequests,
		rateLimitWindow:   cfg.RateLimitWindow(),
	}
	if s.newContextID == nil {
		s.newContextID = idgen.Prefixed("ctx_", idgen.Random())
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.r.GET("/healthz", s.handleHealth)
	if s.metricsHandler != nil {
		s.r.GET("/metrics", gin.WrapH(s.metricsHandler))
	}

	v1 := s.r.Group("/v1")
	{
		v1.POST("/sessions", s.handleStartSession)
		v1.POST("/sessions/:trace_token/snapshots", s.handleSeal)
		v1.GET("/sessions/:trace_token/snapshots", s.handleSnapshots)
		v1.POST("/sessions/:trace_token/generate", s.handleGenerate)
		v1.POST("/sessions/:trace_token/finalize", s.handleFinalize)

		v1.GET("/proofs/:report_id", s.handleGetProof)
		v1.GET("/verify/:hash", s.handleLookupByHash)

		v1.GET("/audit/:scope/verify", s.handleVerifyAuditChain)
	}

	s.r.NoRoute(s.handleNoRoute)
}

func (s *Server) Handler() http.Handler {
	return s.r
}
