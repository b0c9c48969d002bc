package usecase

import (
	"time"

	"signet/internal/domain"
	"signet/internal/infra/crypto"
)

type SignatureInput struct {
	ContractID         string
	PartyID            string
	SignatureImageData string
	IPAddress          string
	UserAgent          string
}

// SignatureFactory assembles a fully populated Signature from raw signing
// input. It is pure: no persistence, no validation of party existence or
// duplicates; that is the orchestration layer's job.
type SignatureFactory struct {
	Hasher HashService
	Clock  Clock
}

func NewSignatureFactory(hasher HashService, clock Clock) *SignatureFactory {
	if clock == nil {
		clock = time.Now
	}
	return &SignatureFactory{Hasher: hasher, Clock: clock}
}

func (f *SignatureFactory) Create(input SignatureInput) domain.Signature {
	// Truncated to the second so the RFC3339 form bound by the hash is
	// stable across storage round trips.
	signedAt := f.Clock().UTC().Truncate(time.Second)

	sig := domain.Signature{
		PartyID:   input.PartyID,
		SignedAt:  signedAt,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	}
	if input.SignatureImageData != "" {
		sig.ImageHash = crypto.ImageHash(input.SignatureImageData)
	}
	sig.VerificationHash = f.Hasher.VerificationHash(input.ContractID, input.PartyID, signedAt, input.IPAddress, input.UserAgent)
	sig.CertificateID = crypto.CertificateID(input.PartyID, signedAt, sig.VerificationHash)
	return sig
}
