package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"signet/internal/domain"
)

const signingUpdateAttempts = 3

type RequestSignatureResult struct {
	Token      string
	SigningURL string
	ExpiresAt  time.Time
	Party      domain.Party
}

type SubmitSignatureInput struct {
	ContractID         string
	Token              string
	SignatureImageData string
	IPAddress          string
	UserAgent          string
}

type SubmitSignatureResult struct {
	Contract  *domain.Contract
	Signature domain.Signature
	AllSigned bool
	// Warning is set when the signature persisted but a best-effort
	// follow-up (certificate generation) failed.
	Warning string
}

type SignatureCheck struct {
	PartyID       string    `json:"party_id"`
	PartyName     string    `json:"party_name"`
	SignedAt      time.Time `json:"signed_at"`
	CertificateID string    `json:"certificate_id"`
	Valid         bool      `json:"valid"`
}

type VerificationReport struct {
	ContractID      string                `json:"contract_id"`
	Status          domain.ContractStatus `json:"status"`
	TotalSignatures int                   `json:"total_signatures"`
	ValidSignatures int                   `json:"valid_signatures"`
	AllValid        bool                  `json:"all_valid"`
	Checks          []SignatureCheck      `json:"checks"`
}

// Signing orchestrates the signature workflow: issuing signing requests,
// accepting submitted signatures, and verifying stored ones. Writes go
// through compare-and-swap updates so two racing signers cannot clobber
// each other's signatures.
type Signing struct {
	Contracts     ContractRepository
	Tokens        TokenStore
	Codec         TokenCodec
	Hasher        HashService
	Factory       *SignatureFactory
	Certificates  *CertificateService
	Audit         *AuditEmitter
	Notifier      Notifier
	Policy        PolicyGate
	Clock         Clock
	Logger        zerolog.Logger
	PublicBaseURL string
}

// RequestSignature issues a single-use signing token for one party and
// moves the contract into the signing flow if it is not there already.
func (s *Signing) RequestSignature(ctx context.Context, contractID, partyID, actor string) (RequestSignatureResult, error) {
	contract, err := s.Contracts.FindByID(ctx, contractID)
	if err != nil {
		return RequestSignatureResult{}, err
	}
	party := contract.FindParty(partyID)
	if party == nil {
		return RequestSignatureResult{}, domain.ErrPartyNotFound
	}
	if contract.SignatureFor(partyID) != nil {
		return RequestSignatureResult{}, domain.ErrAlreadySigned
	}
	if s.Policy != nil {
		if err := s.Policy.Evaluate(ctx, *contract); err != nil {
			return RequestSignatureResult{}, err
		}
	}

	needsTransition := contract.Status != domain.StatusPendingSignature && contract.Status != domain.StatusPartiallySigned
	if needsTransition && !contract.Status.CanTransitionTo(domain.StatusPendingSignature) {
		return RequestSignatureResult{}, &domain.InvalidTransitionError{From: contract.Status, To: domain.StatusPendingSignature}
	}

	token, claims, err := s.Codec.Issue(contractID, partyID, domain.SignatureRequestTTL)
	if err != nil {
		return RequestSignatureResult{}, fmt.Errorf("issue signing token: %w", err)
	}
	if err := s.Tokens.Put(ctx, token, partyID, domain.SignatureRequestTTL); err != nil {
		return RequestSignatureResult{}, fmt.Errorf("register signing token: %w", err)
	}

	expiresAt := claims.ExpiresAt
	patch := ContractPatch{
		SignatureRequestToken: &token,
		SignatureExpiresAt:    &expiresAt,
	}
	if needsTransition {
		target := domain.StatusPendingSignature
		patch.Status = &target
	}
	if _, err := s.updateWithRetry(ctx, contractID, patch); err != nil {
		return RequestSignatureResult{}, err
	}

	if s.Audit != nil {
		if err := s.Audit.EmitSentForSignature(ctx, contractID, actor, partyID, expiresAt); err != nil {
			s.Logger.Warn().Err(err).Str("contract_id", contractID).Msg("audit emit failed")
		}
	}

	signingURL := s.signingURL(contractID, token)
	if s.Notifier != nil {
		if err := s.Notifier.SendSignatureRequest(ctx, *contract, *party, signingURL, expiresAt); err != nil {
			s.Logger.Warn().Err(err).
				Str("contract_id", contractID).
				Str("party_id", partyID).
				Msg("signature request notification failed")
		}
	}

	return RequestSignatureResult{
		Token:      token,
		SigningURL: signingURL,
		ExpiresAt:  expiresAt,
		Party:      *party,
	}, nil
}

// ResolveSigningLink validates a magic link before the signing page is
// shown. It does not consume the token.
func (s *Signing) ResolveSigningLink(ctx context.Context, contractID, token string) (*domain.Contract, *domain.Party, error) {
	live, err := s.Tokens.Exists(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if !live {
		return nil, nil, domain.ErrTokenInvalid
	}
	verification := s.Codec.Verify(token)
	if verification.Expired {
		return nil, nil, domain.ErrTokenExpired
	}
	if !verification.Valid {
		return nil, nil, domain.ErrTokenInvalid
	}
	if verification.ContractID != contractID {
		return nil, nil, domain.ErrContractMismatch
	}
	contract, err := s.Contracts.FindByID(ctx, contractID)
	if err != nil {
		return nil, nil, err
	}
	if !signingOpen(contract.Status) {
		return nil, nil, domain.ErrSigningClosed
	}
	party := contract.FindParty(verification.PartyID)
	if party == nil {
		return nil, nil, domain.ErrPartyNotFound
	}
	if contract.SignatureFor(party.ID) != nil {
		return nil, nil, domain.ErrAlreadySigned
	}
	return contract, party, nil
}

// SubmitSignature records a party's signature. The token must be
// cryptographically valid, unexpired, unconsumed, and bound to the
// contract in the URL. On the final signature the contract completes and
// a certificate is generated best effort.
func (s *Signing) SubmitSignature(ctx context.Context, input SubmitSignatureInput) (SubmitSignatureResult, error) {
	live, err := s.Tokens.Exists(ctx, input.Token)
	if err != nil {
		return SubmitSignatureResult{}, err
	}
	if !live {
		return SubmitSignatureResult{}, domain.ErrTokenInvalid
	}
	verification := s.Codec.Verify(input.Token)
	if verification.Expired {
		return SubmitSignatureResult{}, domain.ErrTokenExpired
	}
	if !verification.Valid {
		return SubmitSignatureResult{}, domain.ErrTokenInvalid
	}
	if verification.ContractID != input.ContractID {
		return SubmitSignatureResult{}, domain.ErrContractMismatch
	}
	partyID := verification.PartyID

	var (
		updated   *domain.Contract
		signature domain.Signature
		allSigned bool
	)
	for attempt := 0; ; attempt++ {
		contract, err := s.Contracts.FindByID(ctx, input.ContractID)
		if err != nil {
			return SubmitSignatureResult{}, err
		}
		// The token stays cryptographically valid after a cancellation or
		// expiry, so acceptance is gated on the live status every attempt.
		if !signingOpen(contract.Status) {
			return SubmitSignatureResult{}, domain.ErrSigningClosed
		}
		if contract.FindParty(partyID) == nil {
			return SubmitSignatureResult{}, domain.ErrPartyNotFound
		}
		if contract.SignatureFor(partyID) != nil {
			return SubmitSignatureResult{}, domain.ErrAlreadySigned
		}

		signature = s.Factory.Create(SignatureInput{
			ContractID:         input.ContractID,
			PartyID:            partyID,
			SignatureImageData: input.SignatureImageData,
			IPAddress:          input.IPAddress,
			UserAgent:          input.UserAgent,
		})

		next := *contract
		next.Signatures = append(append([]domain.Signature(nil), contract.Signatures...), signature)
		allSigned = next.AllSigned()

		// The pending request token is consumed by this signature either
		// way, so it comes off the contract on every successful submit.
		patch := ContractPatch{
			Signatures:            next.Signatures,
			ClearSignatureRequest: true,
		}
		if allSigned {
			target := domain.StatusCompleted
			patch.Status = &target
			completedAt := s.now().UTC()
			patch.CompletedAt = &completedAt
		} else if contract.Status == domain.StatusPendingSignature {
			target := domain.StatusPartiallySigned
			patch.Status = &target
		}

		updated, err = s.Contracts.Update(ctx, input.ContractID, contract.Version, patch)
		if errors.Is(err, domain.ErrConflict) && attempt < signingUpdateAttempts-1 {
			continue
		}
		if err != nil {
			return SubmitSignatureResult{}, err
		}
		break
	}

	consumed, err := s.Tokens.Consume(ctx, input.Token)
	if err != nil || !consumed {
		// The signature is already persisted; a consume miss only means
		// the entry expired or was raced away between checks.
		s.Logger.Warn().Err(err).
			Str("contract_id", input.ContractID).
			Bool("consumed", consumed).
			Msg("signing token consume did not land")
	}

	if s.Audit != nil {
		if err := s.Audit.EmitSigned(ctx, input.ContractID, partyID, signature.CertificateID, allSigned); err != nil {
			s.Logger.Warn().Err(err).Str("contract_id", input.ContractID).Msg("audit emit failed")
		}
	}

	result := SubmitSignatureResult{
		Contract:  updated,
		Signature: signature,
		AllSigned: allSigned,
	}
	if allSigned && s.Certificates != nil {
		if _, err := s.Certificates.Generate(ctx, input.ContractID); err != nil {
			s.Logger.Error().Err(err).Str("contract_id", input.ContractID).Msg("certificate generation failed")
			result.Warning = "contract completed but certificate generation failed"
		}
	}
	return result, nil
}

// VerifyContractSignatures recomputes every stored verification hash and
// reports per-party validity. It never mutates the contract.
func (s *Signing) VerifyContractSignatures(ctx context.Context, contractID string) (VerificationReport, error) {
	contract, err := s.Contracts.FindByID(ctx, contractID)
	if err != nil {
		return VerificationReport{}, err
	}
	report := VerificationReport{
		ContractID:      contract.ID,
		Status:          contract.Status,
		TotalSignatures: len(contract.Signatures),
		Checks:          make([]SignatureCheck, 0, len(contract.Signatures)),
	}
	for _, sig := range contract.Signatures {
		check := SignatureCheck{
			PartyID:       sig.PartyID,
			SignedAt:      sig.SignedAt,
			CertificateID: sig.CertificateID,
			Valid:         s.Hasher.VerifySignature(contract.ID, sig),
		}
		if party := contract.FindParty(sig.PartyID); party != nil {
			check.PartyName = party.Name
		}
		if check.Valid {
			report.ValidSignatures++
		}
		report.Checks = append(report.Checks, check)
	}
	report.AllValid = report.ValidSignatures == report.TotalSignatures
	return report, nil
}

func (s *Signing) updateWithRetry(ctx context.Context, contractID string, patch ContractPatch) (*domain.Contract, error) {
	for attempt := 0; ; attempt++ {
		current, err := s.Contracts.FindByID(ctx, contractID)
		if err != nil {
			return nil, err
		}
		updated, err := s.Contracts.Update(ctx, contractID, current.Version, patch)
		if errors.Is(err, domain.ErrConflict) && attempt < signingUpdateAttempts-1 {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
}

// signingOpen reports whether the contract can still accept signatures.
func signingOpen(status domain.ContractStatus) bool {
	return status == domain.StatusPendingSignature || status == domain.StatusPartiallySigned
}

func (s *Signing) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *Signing) signingURL(contractID, token string) string {
	base := strings.TrimRight(s.PublicBaseURL, "/")
	return fmt.Sprintf("%s/contracts/%s/sign/%s", base, contractID, token)
}
