package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"signet/internal/domain"
	"signet/internal/usecase"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type bulkCreateRequest struct {
	Contracts []usecase.ContractInput `json:"contracts"`
}

type bulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

type changeStatusRequest struct {
	Status string `json:"status"`
}

type requestSignatureRequest struct {
	PartyID string `json:"party_id"`
}

type submitSignatureRequest struct {
	Token              string `json:"token"`
	SignatureImageData string `json:"signature_image_data"`
}

func (s *Server) handleCreateContract(c *gin.Context) {
	var input usecase.ContractInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	created, err := s.lifecycle.Create(c.Request.Context(), input, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleCreateContracts(c *gin.Context) {
	var req bulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if len(req.Contracts) == 0 {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_BODY", "contracts must not be empty")
		return
	}
	created, err := s.lifecycle.CreateMany(c.Request.Context(), req.Contracts, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"contracts": created})
}

func (s *Server) handleListContracts(c *gin.Context) {
	req := pageRequestFrom(c)
	page, err := s.lifecycle.Page(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// handleSearchContracts is the unpaginated variant of listing: it
// returns every match, for callers that want the full result set.
func (s *Server) handleSearchContracts(c *gin.Context) {
	filter := pageRequestFrom(c).Filter
	items, err := s.lifecycle.Search(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (s *Server) handleGetContract(c *gin.Context) {
	contract, err := s.lifecycle.Get(c.Request.Context(), c.Param("contract_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, contract)
}

func (s *Server) handleUpdateContract(c *gin.Context) {
	var input usecase.ContractUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	updated, err := s.lifecycle.Update(c.Request.Context(), c.Param("contract_id"), input, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleDeleteContract(c *gin.Context) {
	if err := s.lifecycle.Delete(c.Request.Context(), c.Param("contract_id"), actorFrom(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteContracts(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if len(req.IDs) == 0 {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_BODY", "ids must not be empty")
		return
	}
	deleted, err := s.lifecycle.DeleteMany(c.Request.Context(), req.IDs, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (s *Server) handleChangeStatus(c *gin.Context) {
	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	updated, err := s.lifecycle.ChangeStatus(c.Request.Context(), c.Param("contract_id"), domain.ContractStatus(req.Status), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleRequestSignature(c *gin.Context) {
	if !s.enforceRateLimit(c, routeSignatureRequest) {
		return
	}
	var req requestSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if req.PartyID == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_BODY", "party_id is required")
		return
	}
	result, err := s.signing.RequestSignature(c.Request.Context(), c.Param("contract_id"), req.PartyID, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":       result.Token,
		"signing_url": result.SigningURL,
		"expires_at":  result.ExpiresAt.UTC().Format(time.RFC3339),
		"party":       result.Party,
	})
}

func (s *Server) handleResolveSigningLink(c *gin.Context) {
	contract, party, err := s.signing.ResolveSigningLink(c.Request.Context(), c.Param("contract_id"), c.Param("token"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"contract_id": contract.ID,
		"title":       contract.Title,
		"content":     contract.Content,
		"status":      contract.Status,
		"party":       party,
	})
}

func (s *Server) handleSubmitSignature(c *gin.Context) {
	if !s.enforceRateLimit(c, routeSignatureSubmit) {
		return
	}
	var req submitSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if req.Token == "" {
		writeErrorCode(c, http.StatusBadRequest, "INVALID_BODY", "token is required")
		return
	}
	result, err := s.signing.SubmitSignature(c.Request.Context(), usecase.SubmitSignatureInput{
		ContractID:         c.Param("contract_id"),
		Token:              req.Token,
		SignatureImageData: req.SignatureImageData,
		IPAddress:          c.ClientIP(),
		UserAgent:          c.Request.UserAgent(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	resp := gin.H{
		"contract":   result.Contract,
		"signature":  result.Signature,
		"all_signed": result.AllSigned,
	}
	if result.Warning != "" {
		resp["warning"] = result.Warning
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleVerifySignatures(c *gin.Context) {
	report, err := s.signing.VerifyContractSignatures(c.Request.Context(), c.Param("contract_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleGetCertificate(c *gin.Context) {
	cert, err := s.certificates.Generate(c.Request.Context(), c.Param("contract_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cert)
}

func (s *Server) handleDownloadCertificate(c *gin.Context) {
	if !s.enforceRateLimit(c, routeCertificateRender) {
		return
	}
	artifact, err := s.certificates.Render(c.Request.Context(), c.Param("contract_id"), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="certificate.txt"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", artifact)
}

func (s *Server) handleListAudit(c *gin.Context) {
	contractID := c.Param("contract_id")
	if _, err := s.lifecycle.Get(c.Request.Context(), contractID); err != nil {
		writeError(c, err)
		return
	}
	entries, err := s.audit.ListByContract(c.Request.Context(), contractID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func pageRequestFrom(c *gin.Context) domain.PageRequest {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	req := domain.PageRequest{
		Page:  page,
		Limit: limit,
		Sort:  c.Query("sort"),
		Filter: domain.ContractFilter{
			Query:    c.Query("q"),
			Status:   domain.ContractStatus(c.Query("status")),
			Type:     c.Query("type"),
			Category: c.Query("category"),
			Priority: c.Query("priority"),
		},
	}
	if tags := c.Query("tags"); tags != "" {
		req.Filter.Tags = strings.Split(tags, ",")
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			req.Filter.From = &t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			req.Filter.To = &t
		}
	}
	return req
}

func actorFrom(c *gin.Context) string {
	if actor := c.GetHeader("X-Actor"); actor != "" {
		return actor
	}
	return "api"
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case domain.IsValidationError(err):
		status, code = http.StatusBadRequest, "VALIDATION_FAILED"
	case domain.IsInvalidTransition(err):
		status, code = http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, domain.ErrPartyNotFound):
		status, code = http.StatusNotFound, "PARTY_NOT_FOUND"
	case errors.Is(err, domain.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrAlreadySigned):
		status, code = http.StatusConflict, "ALREADY_SIGNED"
	case errors.Is(err, domain.ErrSigningClosed):
		status, code = http.StatusConflict, "SIGNING_CLOSED"
	case errors.Is(err, domain.ErrTokenExpired):
		status, code = http.StatusGone, "TOKEN_EXPIRED"
	case errors.Is(err, domain.ErrTokenInvalid):
		status, code = http.StatusBadRequest, "TOKEN_INVALID"
	case errors.Is(err, domain.ErrContractMismatch):
		status, code = http.StatusBadRequest, "TOKEN_MISMATCH"
	case errors.Is(err, domain.ErrCompletedImmutable):
		status, code = http.StatusConflict, "COMPLETED_IMMUTABLE"
	case errors.Is(err, domain.ErrPartiesLocked):
		status, code = http.StatusConflict, "PARTIES_LOCKED"
	case errors.Is(err, domain.ErrConflict):
		status, code = http.StatusConflict, "CONFLICT"
	case errors.Is(err, domain.ErrPolicyDenied):
		status, code = http.StatusForbidden, "POLICY_DENIED"
	case errors.Is(err, domain.ErrNotCompleted):
		status, code = http.StatusConflict, "NOT_COMPLETED"
	case errors.Is(err, domain.ErrSignatureForged):
		status, code = http.StatusConflict, "SIGNATURE_INVALID"
	case errors.Is(err, domain.ErrRateLimited):
		status, code = http.StatusTooManyRequests, "RATE_LIMITED"
	}
	writeErrorCode(c, status, code, err.Error())
}

func writeErrorCode(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{
		Code:    code,
		Message: message,
	})
}
