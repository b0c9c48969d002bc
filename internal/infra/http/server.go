// Package http exposes the contract API over gin. Handlers stay thin:
// they bind input, call a usecase, and translate errors to status codes.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"signet/internal/config"
	"signet/internal/domain"
	"signet/internal/usecase"
)

type Server struct {
	cfg config.Config
	r   *gin.Engine

	lifecycle    *usecase.Lifecycle
	signing      *usecase.Signing
	certificates *usecase.CertificateService
	audit        usecase.AuditRepository

	dbMode string

	rateLimiter         domain.RateLimiter
	rateLimitRequests   int
	rateLimitWindow     time.Duration
	rateLimitFailClosed bool
}

type ServerDeps struct {
	Lifecycle    *usecase.Lifecycle
	Signing      *usecase.Signing
	Certificates *usecase.CertificateService
	Audit        usecase.AuditRepository
	RateLimiter  domain.RateLimiter
	DBMode       string
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:          cfg,
		r:            r,
		lifecycle:    deps.Lifecycle,
		signing:      deps.Signing,
		certificates: deps.Certificates,
		audit:        deps.Audit,
		dbMode:       deps.DBMode,
	}
	if s.dbMode == "" {
		s.dbMode = "memory"
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initRateLimit(limiter domain.RateLimiter) {
	s.rateLimiter = limiter
	s.rateLimitRequests = s.cfg.RateLimitRequests
	window := s.cfg.RateLimitWindowSeconds
	if window <= 0 {
		window = 60
	}
	s.rateLimitWindow = time.Duration(window) * time.Second
	s.rateLimitFailClosed = s.cfg.RateLimitFailClosed
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": s.dbMode})
	})

	v1 := s.r.Group("/v1")
	{
		v1.POST("/contracts", s.handleCreateContract)
		v1.GET("/contracts", s.handleListContracts)
		v1.GET("/contracts/search", s.handleSearchContracts)
		v1.POST("/contracts/bulk", s.handleCreateContracts)
		v1.POST("/contracts/bulk/delete", s.handleDeleteContracts)
		v1.GET("/contracts/:contract_id", s.handleGetContract)
		v1.PATCH("/contracts/:contract_id", s.handleUpdateContract)
		v1.DELETE("/contracts/:contract_id", s.handleDeleteContract)
		v1.POST("/contracts/:contract_id/status", s.handleChangeStatus)

		v1.POST("/contracts/:contract_id/signature-requests", s.handleRequestSignature)
		v1.GET("/contracts/:contract_id/sign/:token", s.handleResolveSigningLink)
		v1.POST("/contracts/:contract_id/signatures", s.handleSubmitSignature)
		v1.GET("/contracts/:contract_id/verification", s.handleVerifySignatures)

		v1.GET("/contracts/:contract_id/certificate", s.handleGetCertificate)
		v1.GET("/contracts/:contract_id/certificate/download", s.handleDownloadCertificate)
		v1.GET("/contracts/:contract_id/audit", s.handleListAudit)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.r
}
