package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"signet/internal/config"
	"signet/internal/domain"
	"signet/internal/infra/crypto"
	"signet/internal/infra/ratelimit"
	"signet/internal/infra/render"
	"signet/internal/infra/repomem"
	"signet/internal/infra/tokenstore"
	"signet/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	clock := time.Now
	contracts := repomem.NewContractStore(clock)
	auditRepo := repomem.NewAuditStore()
	certRepo := repomem.NewCertificateStore()

	hasher := crypto.NewService("test-secret")
	emitter := usecase.NewAuditEmitter(auditRepo, clock)
	logger := zerolog.Nop()

	renderer, err := render.NewTextRenderer()
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	certificates := usecase.NewCertificateService(certRepo, contracts, hasher, renderer, emitter, clock, logger)
	lifecycle := usecase.NewLifecycle(contracts, emitter, clock, logger)
	signing := &usecase.Signing{
		Contracts:     contracts,
		Tokens:        tokenstore.NewMemoryStore(clock),
		Codec:         crypto.NewTokenCodec("test-secret", clock),
		Hasher:        hasher,
		Factory:       usecase.NewSignatureFactory(hasher, clock),
		Certificates:  certificates,
		Audit:         emitter,
		Clock:         clock,
		Logger:        logger,
		PublicBaseURL: "http://sign.test",
	}

	var limiter domain.RateLimiter
	if cfg.RateLimitRequests > 0 {
		limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{Now: clock})
	}
	return NewServerWithDeps(cfg, ServerDeps{
		Lifecycle:    lifecycle,
		Signing:      signing,
		Certificates: certificates,
		Audit:        auditRepo,
		RateLimiter:  limiter,
	})
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %s: %v", w.Body.String(), err)
	}
	return out
}

func createContractBody(parties ...map[string]any) map[string]any {
	if len(parties) == 0 {
		parties = []map[string]any{
			{"name": "Alice", "email": "alice@example.com", "signature_required": true},
		}
	}
	return map[string]any{
		"title":   "Service Agreement",
		"parties": parties,
	}
}

func TestContractCRUD(t *testing.T) {
	srv := newTestServer(t, config.Config{})

	w := doJSON(t, srv, http.MethodPost, "/v1/contracts", createContractBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", w.Code, w.Body.String())
	}
	created := decode[domain.Contract](t, w)
	if created.ID == "" || created.Status != domain.StatusDraft {
		t.Fatalf("created = %+v", created)
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/contracts/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	w = doJSON(t, srv, http.MethodPatch, "/v1/contracts/"+created.ID, map[string]any{"title": "Amended"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d body = %s", w.Code, w.Body.String())
	}
	updated := decode[domain.Contract](t, w)
	if updated.Title != "Amended" || updated.Version != created.Version+1 {
		t.Fatalf("updated = %+v", updated)
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/contracts?limit=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	page := decode[domain.ContractPage](t, w)
	if page.Total != 1 {
		t.Fatalf("total = %d, want 1", page.Total)
	}

	w = doJSON(t, srv, http.MethodDelete, "/v1/contracts/"+created.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doJSON(t, srv, http.MethodGet, "/v1/contracts/"+created.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", w.Code)
	}
}

func TestCreateContractValidationError(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	w := doJSON(t, srv, http.MethodPost, "/v1/contracts", map[string]any{"title": ""})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp := decode[errorResponse](t, w)
	if resp.Code != "VALIDATION_FAILED" {
		t.Fatalf("code = %s, want VALIDATION_FAILED", resp.Code)
	}
}

func TestSigningFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t, config.Config{})

	w := doJSON(t, srv, http.MethodPost, "/v1/contracts", createContractBody())
	contract := decode[domain.Contract](t, w)
	partyID := contract.Parties[0].ID

	w = doJSON(t, srv, http.MethodPost, "/v1/contracts/"+contract.ID+"/signature-requests", map[string]any{"party_id": partyID})
	if w.Code != http.StatusOK {
		t.Fatalf("request status = %d body = %s", w.Code, w.Body.String())
	}
	reqResp := decode[map[string]any](t, w)
	token, _ := reqResp["token"].(string)
	if token == "" {
		t.Fatal("expected token in response")
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/contracts/"+contract.ID+"/sign/"+token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve status = %d body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/contracts/"+contract.ID+"/signatures", map[string]any{"token": token})
	if w.Code != http.StatusOK {
		t.Fatalf("submit status = %d body = %s", w.Code, w.Body.String())
	}
	submitResp := decode[map[string]any](t, w)
	if allSigned, _ := submitResp["all_signed"].(bool); !allSigned {
		t.Fatalf("all_signed = %v, want true", submitResp["all_signed"])
	}

	// Token reuse is refused.
	w = doJSON(t, srv, http.MethodPost, "/v1/contracts/"+contract.ID+"/signatures", map[string]any{"token": token})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("reuse status = %d, want 400", w.Code)
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/contracts/"+contract.ID+"/verification", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("verification status = %d", w.Code)
	}
	report := decode[usecase.VerificationReport](t, w)
	if !report.AllValid || report.TotalSignatures != 1 {
		t.Fatalf("report = %+v", report)
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/contracts/"+contract.ID+"/certificate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("certificate status = %d body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/contracts/"+contract.ID+"/certificate/download", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("download status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Fatalf("content type = %s", ct)
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/contracts/"+contract.ID+"/audit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit status = %d", w.Code)
	}
	auditResp := decode[map[string][]domain.AuditEntry](t, w)
	if len(auditResp["entries"]) == 0 {
		t.Fatal("expected audit entries")
	}
}

func TestStatusTransitionOverHTTP(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	w := doJSON(t, srv, http.MethodPost, "/v1/contracts", createContractBody())
	contract := decode[domain.Contract](t, w)

	w = doJSON(t, srv, http.MethodPost, "/v1/contracts/"+contract.ID+"/status", map[string]any{"status": "pending_review"})
	if w.Code != http.StatusOK {
		t.Fatalf("valid transition status = %d body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/contracts/"+contract.ID+"/status", map[string]any{"status": "completed"})
	if w.Code != http.StatusConflict {
		t.Fatalf("invalid transition status = %d, want 409", w.Code)
	}
	resp := decode[errorResponse](t, w)
	if resp.Code != "INVALID_TRANSITION" {
		t.Fatalf("code = %s, want INVALID_TRANSITION", resp.Code)
	}
}

func TestSubmitSignatureBadToken(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	w := doJSON(t, srv, http.MethodPost, "/v1/contracts", createContractBody())
	contract := decode[domain.Contract](t, w)

	w = doJSON(t, srv, http.MethodPost, "/v1/contracts/"+contract.ID+"/signatures", map[string]any{"token": "garbage"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp := decode[errorResponse](t, w)
	if resp.Code != "TOKEN_INVALID" {
		t.Fatalf("code = %s, want TOKEN_INVALID", resp.Code)
	}
}

func TestRateLimitSignatureRequests(t *testing.T) {
	srv := newTestServer(t, config.Config{
		RateLimitRequests:      1,
		RateLimitWindowSeconds: 60,
	})
	w := doJSON(t, srv, http.MethodPost, "/v1/contracts", createContractBody())
	contract := decode[domain.Contract](t, w)
	partyID := contract.Parties[0].ID

	w = doJSON(t, srv, http.MethodPost, "/v1/contracts/"+contract.ID+"/signature-requests", map[string]any{"party_id": partyID})
	if w.Code != http.StatusOK {
		t.Fatalf("first request status = %d body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get("RateLimit-Limit") != "1" {
		t.Fatalf("RateLimit-Limit = %s, want 1", w.Header().Get("RateLimit-Limit"))
	}

	w = doJSON(t, srv, http.MethodPost, "/v1/contracts/"+contract.ID+"/signature-requests", map[string]any{"party_id": partyID})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
}

func TestRateLimitCertificateDownload(t *testing.T) {
	srv := newTestServer(t, config.Config{
		RateLimitRequests:      1,
		RateLimitWindowSeconds: 60,
	})
	w := doJSON(t, srv, http.MethodPost, "/v1/contracts", createContractBody())
	contract := decode[domain.Contract](t, w)

	// The contract is not completed, but the limit is spent on the
	// attempt either way.
	w = doJSON(t, srv, http.MethodGet, "/v1/contracts/"+contract.ID+"/certificate/download", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("first download status = %d, want 409", w.Code)
	}
	if w.Header().Get("RateLimit-Limit") != "1" {
		t.Fatalf("RateLimit-Limit = %s, want 1", w.Header().Get("RateLimit-Limit"))
	}

	w = doJSON(t, srv, http.MethodGet, "/v1/contracts/"+contract.ID+"/certificate/download", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second download status = %d, want 429", w.Code)
	}
	resp := decode[errorResponse](t, w)
	if resp.Code != "RATE_LIMITED" {
		t.Fatalf("code = %s, want RATE_LIMITED", resp.Code)
	}
}

func TestSearchContracts(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	parties := []map[string]any{
		{"name": "Alice", "email": "alice@example.com", "signature_required": true},
	}
	for _, title := range []string{"Master Services Agreement", "Office Lease"} {
		w := doJSON(t, srv, http.MethodPost, "/v1/contracts", map[string]any{"title": title, "parties": parties})
		if w.Code != http.StatusCreated {
			t.Fatalf("create %q status = %d body = %s", title, w.Code, w.Body.String())
		}
	}

	type searchResponse struct {
		Items []domain.Contract `json:"items"`
		Total int               `json:"total"`
	}

	w := doJSON(t, srv, http.MethodGet, "/v1/contracts/search?q=master", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d body = %s", w.Code, w.Body.String())
	}
	result := decode[searchResponse](t, w)
	if result.Total != 1 || len(result.Items) != 1 || result.Items[0].Title != "Master Services Agreement" {
		t.Fatalf("result = %+v", result)
	}

	// No filter returns everything.
	w = doJSON(t, srv, http.MethodGet, "/v1/contracts/search", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unfiltered search status = %d", w.Code)
	}
	if result = decode[searchResponse](t, w); result.Total != 2 {
		t.Fatalf("unfiltered total = %d, want 2", result.Total)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	w := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode[map[string]string](t, w)
	if resp["mode"] != "memory" {
		t.Fatalf("mode = %s, want memory", resp["mode"])
	}
}
