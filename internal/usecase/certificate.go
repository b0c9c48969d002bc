package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"signet/internal/domain"
	"signet/internal/infra/crypto"
)

// CertificateService issues the completion certificate for a fully signed
// contract. Generation is idempotent per contract and refuses to certify a
// contract whose stored signatures no longer verify.
type CertificateService struct {
	Certificates CertificateRepository
	Contracts    ContractRepository
	Hasher       HashService
	Renderer     CertificateRenderer
	Audit        *AuditEmitter
	Clock        Clock
	Logger       zerolog.Logger
}

func NewCertificateService(certs CertificateRepository, contracts ContractRepository, hasher HashService, renderer CertificateRenderer, audit *AuditEmitter, clock Clock, logger zerolog.Logger) *CertificateService {
	if clock == nil {
		clock = time.Now
	}
	return &CertificateService{
		Certificates: certs,
		Contracts:    contracts,
		Hasher:       hasher,
		Renderer:     renderer,
		Audit:        audit,
		Clock:        clock,
		Logger:       logger,
	}
}

func (s *CertificateService) Generate(ctx context.Context, contractID string) (domain.Certificate, error) {
	existing, err := s.Certificates.GetByContract(ctx, contractID)
	if err == nil && existing != nil {
		return *existing, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.Certificate{}, err
	}

	contract, err := s.Contracts.FindByID(ctx, contractID)
	if err != nil {
		return domain.Certificate{}, err
	}
	if contract.Status != domain.StatusCompleted || contract.CompletedAt == nil {
		return domain.Certificate{}, domain.ErrNotCompleted
	}
	for _, sig := range contract.Signatures {
		if !s.Hasher.VerifySignature(contract.ID, sig) {
			return domain.Certificate{}, domain.ErrSignatureForged
		}
	}

	issuedAt := s.Clock().UTC()
	integrity, err := crypto.ContractIntegrityHash(*contract)
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("contract integrity hash: %w", err)
	}
	cert := domain.Certificate{
		ID:            crypto.CertificateID(contract.ID, *contract.CompletedAt, integrity),
		ContractID:    contract.ID,
		ContractTitle: contract.Title,
		Parties:       certificateParties(*contract),
		IssuedAt:      issuedAt,
	}
	cert.CertificateHash, err = crypto.CertificateHash(cert.ID, cert.ContractID, issuedAt, cert.Parties)
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("certificate hash: %w", err)
	}

	if err := s.Certificates.Create(ctx, cert); err != nil {
		// Another generator won the insert between the lookup and here;
		// its certificate is the canonical one.
		if errors.Is(err, domain.ErrConflict) {
			if winner, getErr := s.Certificates.GetByContract(ctx, contractID); getErr == nil && winner != nil {
				return *winner, nil
			}
		}
		return domain.Certificate{}, err
	}
	if s.Audit != nil {
		if err := s.Audit.EmitCertificateIssued(ctx, contract.ID, cert.ID); err != nil {
			s.Logger.Warn().Err(err).Str("contract_id", contract.ID).Msg("audit emit failed")
		}
	}
	return cert, nil
}

// Render returns the printable certificate artifact, generating the
// certificate first if none exists yet.
func (s *CertificateService) Render(ctx context.Context, contractID, actor string) ([]byte, error) {
	cert, err := s.Generate(ctx, contractID)
	if err != nil {
		return nil, err
	}
	contract, err := s.Contracts.FindByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	artifact, err := s.Renderer.Render(ctx, *contract, cert)
	if err != nil {
		return nil, err
	}
	if s.Audit != nil {
		if err := s.Audit.EmitPDFDownloaded(ctx, contractID, actor); err != nil {
			s.Logger.Warn().Err(err).Str("contract_id", contractID).Msg("audit emit failed")
		}
	}
	return artifact, nil
}

func certificateParties(contract domain.Contract) []domain.CertificateParty {
	parties := make([]domain.CertificateParty, 0, len(contract.Signatures))
	for _, sig := range contract.Signatures {
		party := contract.FindParty(sig.PartyID)
		if party == nil {
			continue
		}
		parties = append(parties, domain.CertificateParty{
			ID:       party.ID,
			Name:     party.Name,
			Email:    party.Email,
			SignedAt: sig.SignedAt,
		})
	}
	return parties
}
