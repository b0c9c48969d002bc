package usecase

import (
	"context"
	"time"

	"signet/internal/domain"
)

type Clock func() time.Time

// ContractPatch is a partial update: nil fields are left untouched. Every
// applied patch bumps UpdatedAt and the optimistic-concurrency version.
type ContractPatch struct {
	Title       *string
	Description *string
	Content     *string
	Type        *string
	Category    *string
	Priority    *string
	Tags        []string
	Amount      *float64
	Status      *domain.ContractStatus
	Parties     []domain.Party
	Signatures  []domain.Signature

	SignatureRequestToken *string
	SignatureExpiresAt    *time.Time
	// ClearSignatureRequest resets both transient signing-request fields.
	ClearSignatureRequest bool

	CompletedAt *time.Time
}

// Apply merges the patch into the contract, bumps the version, and
// refreshes UpdatedAt. Both storage backends route every update through
// it so merge semantics cannot drift.
func (p ContractPatch) Apply(c *domain.Contract, now time.Time) {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Content != nil {
		c.Content = *p.Content
	}
	if p.Type != nil {
		c.Type = *p.Type
	}
	if p.Category != nil {
		c.Category = *p.Category
	}
	if p.Priority != nil {
		c.Priority = *p.Priority
	}
	if p.Tags != nil {
		c.Tags = append([]string(nil), p.Tags...)
	}
	if p.Amount != nil {
		c.Amount = p.Amount
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.Parties != nil {
		c.Parties = append([]domain.Party(nil), p.Parties...)
	}
	if p.Signatures != nil {
		c.Signatures = append([]domain.Signature(nil), p.Signatures...)
	}
	if p.SignatureRequestToken != nil {
		c.SignatureRequestToken = *p.SignatureRequestToken
	}
	if p.SignatureExpiresAt != nil {
		t := *p.SignatureExpiresAt
		c.SignatureExpiresAt = &t
	}
	if p.ClearSignatureRequest {
		c.SignatureRequestToken = ""
		c.SignatureExpiresAt = nil
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	c.Version++
	c.UpdatedAt = now.UTC()
}

// ContractRepository is the storage boundary. Backends must satisfy
// identical semantics: Update merges the patch, refreshes UpdatedAt, and
// fails with domain.ErrConflict when expectedVersion is stale; Search and
// FindPaginated apply domain.ContractFilter the same way everywhere.
type ContractRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Contract, error)
	FindAll(ctx context.Context) ([]domain.Contract, error)
	Create(ctx context.Context, contract domain.Contract) (domain.Contract, error)
	Update(ctx context.Context, id string, expectedVersion int64, patch ContractPatch) (*domain.Contract, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, filter domain.ContractFilter) ([]domain.Contract, error)
	FindPaginated(ctx context.Context, req domain.PageRequest) (domain.ContractPage, error)
	Exists(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context, filter domain.ContractFilter) (int64, error)
	CreateMany(ctx context.Context, contracts []domain.Contract) ([]domain.Contract, error)
	UpdateMany(ctx context.Context, ids []string, patch ContractPatch) (int64, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
}

type AuditRepository interface {
	Append(ctx context.Context, entry domain.AuditEntry) (domain.AuditEntry, error)
	ListByContract(ctx context.Context, contractID string) ([]domain.AuditEntry, error)
}

type CertificateRepository interface {
	GetByContract(ctx context.Context, contractID string) (*domain.Certificate, error)
	Create(ctx context.Context, cert domain.Certificate) error
}

// TokenStore tracks which issued tokens are still honorable. Consume must
// be atomic so two racing submissions cannot both observe a live entry.
type TokenStore interface {
	Put(ctx context.Context, token, partyID string, ttl time.Duration) error
	Exists(ctx context.Context, token string) (bool, error)
	Consume(ctx context.Context, token string) (bool, error)
	Delete(ctx context.Context, token string) error
}

type TokenCodec interface {
	Issue(contractID, partyID string, ttl time.Duration) (string, domain.TokenClaims, error)
	Verify(token string) domain.TokenVerification
}

type HashService interface {
	VerificationHash(contractID, partyID string, signedAt time.Time, ipAddress, userAgent string) string
	VerifySignature(contractID string, sig domain.Signature) bool
}

// Notifier delivers the signing URL out of band. Failures are logged by
// the caller and never block the signing workflow.
type Notifier interface {
	SendSignatureRequest(ctx context.Context, contract domain.Contract, party domain.Party, signingURL string, expiresAt time.Time) error
}

// CertificateRenderer produces the completion-certificate artifact. The
// core only decides when to call it and tolerates its failure.
type CertificateRenderer interface {
	Render(ctx context.Context, contract domain.Contract, cert domain.Certificate) ([]byte, error)
}

// PolicyGate optionally vets a contract before it may be sent out for
// signature. A nil gate allows everything.
type PolicyGate interface {
	Evaluate(ctx context.Context, contract domain.Contract) error
}
